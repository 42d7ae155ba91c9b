package chat

import (
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "partyhub/errors"
	"partyhub/groups"
	"partyhub/identity"
	"partyhub/internal/testdb"
	"partyhub/models"
	"partyhub/party"
	"partyhub/presence"
)

type fakeConn struct {
	mu       sync.Mutex
	messages []models.WSMessage
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, v.(models.WSMessage))
	return nil
}

func (c *fakeConn) received() []models.WSMessage {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]models.WSMessage(nil), c.messages...)
}

type fixture struct {
	db       *sql.DB
	router   *Router
	registry *presence.Registry
	parties  *party.Store
	alice    int64
	bob      int64
	carol    int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	users := identity.NewResolver(db)
	groupStore := groups.NewStore(db)
	registry := presence.NewRegistry()
	return &fixture{
		db:       db,
		router:   NewRouter(NewStore(db), groupStore, users, registry),
		registry: registry,
		parties:  party.NewStore(db, users, groupStore),
		alice:    testdb.SeedUser(t, db, "alice"),
		bob:      testdb.SeedUser(t, db, "bob"),
		carol:    testdb.SeedUser(t, db, "carol"),
	}
}

// createParty makes a party hosted by alice, whose mirrored group carries
// the party name.
func (f *fixture) createParty(t *testing.T, name string) *models.Party {
	t.Helper()
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	p, err := f.parties.Create(name, f.alice, nil, models.Location{}, start, start.Add(4*time.Hour), 50)
	require.NoError(t, err)
	return p
}

func TestSendDirectEchoesAndPushes(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	aliceConn, bobConn := &fakeConn{}, &fakeConn{}
	f.registry.Register(f.alice, aliceConn)
	f.registry.Register(f.bob, bobConn)

	msg, err := f.router.SendDirect(f.alice, "bob", "hi")
	req.NoError(err)
	req.Equal("alice", msg.Sender)
	req.Equal("bob", msg.Recipient)

	req.Len(aliceConn.received(), 1)
	req.Equal(models.WSTypeReceiveMessage, aliceConn.received()[0].Type)
	req.Len(bobConn.received(), 1)
	pushed := bobConn.received()[0].Data.(*models.Message)
	req.Equal("hi", pushed.Body)
}

func TestSendDirectToOfflineRecipient(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	aliceConn := &fakeConn{}
	f.registry.Register(f.alice, aliceConn)

	// Recipient offline: stored and echoed to the sender, no push attempted.
	_, err := f.router.SendDirect(f.alice, "bob", "hi")
	req.NoError(err)
	req.Len(aliceConn.received(), 1)

	history, err := f.router.FetchHistory(f.alice, f.bob)
	req.NoError(err)
	req.Len(history, 1)
	req.Equal("hi", history[0].Body)
}

func TestSendDirectUnknownRecipient(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	_, err := f.router.SendDirect(f.alice, "ghost", "hi")
	req.ErrorIs(err, apperrors.ErrNotFound)

	var count int
	req.NoError(f.db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count))
	req.Zero(count)
}

func TestSendDirectRejectsEmptyBody(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.SendDirect(f.alice, "bob", "")
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestHistoryOrderingAndSymmetry(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	for _, m := range []struct {
		from, to int64
		body     string
	}{
		{f.alice, f.bob, "one"},
		{f.bob, f.alice, "two"},
		{f.alice, f.bob, "three"},
		{f.alice, f.carol, "unrelated"},
	} {
		_, err := f.router.SendDirect(m.from, handleOf(t, f.db, m.to), m.body)
		req.NoError(err)
		time.Sleep(2 * time.Millisecond)
	}

	forward, err := f.router.FetchHistory(f.alice, f.bob)
	req.NoError(err)
	req.Len(forward, 3)
	req.Equal([]string{"one", "two", "three"}, bodies(forward))
	for i := 1; i < len(forward); i++ {
		req.False(forward[i].CreatedAt.Before(forward[i-1].CreatedAt))
	}

	backward, err := f.router.FetchHistory(f.bob, f.alice)
	req.NoError(err)
	req.Equal(forward, backward)
}

func TestSendToGroupFansOutToMembers(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, "Housewarming")
	_, err := f.parties.Join(p.ID, f.bob)
	req.NoError(err)

	aliceConn, bobConn, carolConn := &fakeConn{}, &fakeConn{}, &fakeConn{}
	f.registry.Register(f.alice, aliceConn)
	f.registry.Register(f.bob, bobConn)
	f.registry.Register(f.carol, carolConn)

	msg, err := f.router.SendToGroup(f.alice, "Housewarming", "party time")
	req.NoError(err)
	req.Equal("Housewarming", msg.GroupName)

	// The sender receives the fan-out as a member, like everyone else.
	req.Len(aliceConn.received(), 1)
	req.Equal(models.WSTypeReceiveGroupMessage, aliceConn.received()[0].Type)
	req.Len(bobConn.received(), 1)
	req.Empty(carolConn.received())
}

func TestSendToGroupUnknownGroup(t *testing.T) {
	f := newFixture(t)
	_, err := f.router.SendToGroup(f.alice, "NoSuchGroup", "hello?")
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestDepartedParticipantStillReceivesGroupChat(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, "Housewarming")
	_, err := f.parties.Join(p.ID, f.bob)
	req.NoError(err)
	_, err = f.parties.Leave(p.ID, f.bob)
	req.NoError(err)

	bobConn := &fakeConn{}
	f.registry.Register(f.bob, bobConn)

	// Leaving the party does not leave the messaging group.
	_, err = f.router.SendToGroup(f.alice, "Housewarming", "still there?")
	req.NoError(err)
	req.Len(bobConn.received(), 1)
}

func handleOf(t *testing.T, db *sql.DB, userID int64) string {
	t.Helper()
	var username string
	require.NoError(t, db.QueryRow("SELECT username FROM users WHERE id = ?", userID).Scan(&username))
	return username
}

func bodies(messages []models.Message) []string {
	out := make([]string, len(messages))
	for i, m := range messages {
		out[i] = m.Body
	}
	return out
}
