package party

import (
	"database/sql"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "partyhub/errors"
	"partyhub/groups"
	"partyhub/identity"
	"partyhub/internal/testdb"
	"partyhub/models"
)

type fixture struct {
	db     *sql.DB
	store  *Store
	groups *groups.Store
	alice  int64
	bob    int64
	carol  int64
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := testdb.Open(t)
	groupStore := groups.NewStore(db)
	return &fixture{
		db:     db,
		store:  NewStore(db, identity.NewResolver(db), groupStore),
		groups: groupStore,
		alice:  testdb.SeedUser(t, db, "alice"),
		bob:    testdb.SeedUser(t, db, "bob"),
		carol:  testdb.SeedUser(t, db, "carol"),
	}
}

func (f *fixture) createParty(t *testing.T, budget float64, reqs ...models.RequirementInput) *models.Party {
	t.Helper()
	start := time.Date(2026, 6, 1, 18, 0, 0, 0, time.UTC)
	p, err := f.store.Create("Housewarming", f.alice, reqs, models.Location{Lat: 48.85, Lng: 2.35}, start, start.Add(6*time.Hour), budget)
	require.NoError(t, err)
	return p
}

func TestCreateParty(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	p := f.createParty(t, 100, models.RequirementInput{Item: "beer", Quantity: 2})

	req.Equal(models.PartyStatusActive, p.Status)
	req.Equal("alice", p.Host)
	req.Equal([]string{"alice"}, p.Participants)
	req.Equal(float64(100), p.Budget)
	req.Len(p.Requirements, 1)
	req.NotEmpty(p.Requirements[0].ID)
	req.Empty(p.Requirements[0].FulfilledBy)

	// The paired messaging group exists with the same name and membership.
	g, err := f.groups.FindByParty(p.ID)
	req.NoError(err)
	req.Equal(p.Name, g.Name)
	members, err := f.groups.Members(g.ID)
	req.NoError(err)
	req.Equal([]int64{f.alice}, members)
}

func TestCreatePartyRejectsNegativeBudget(t *testing.T) {
	f := newFixture(t)
	start := time.Now()
	_, err := f.store.Create("Broke", f.alice, nil, models.Location{}, start, start.Add(time.Hour), -1)
	require.ErrorIs(t, err, apperrors.ErrValidation)
}

func TestJoinIsIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 50)

	_, err := f.store.Join(p.ID, f.bob)
	req.NoError(err)
	updated, err := f.store.Join(p.ID, f.bob)
	req.NoError(err)

	req.Equal([]string{"alice", "bob"}, updated.Participants)

	g, err := f.groups.FindByParty(p.ID)
	req.NoError(err)
	members, err := f.groups.Members(g.ID)
	req.NoError(err)
	req.ElementsMatch([]int64{f.alice, f.bob}, members)
}

func TestJoinUnknownPartyFails(t *testing.T) {
	f := newFixture(t)
	_, err := f.store.Join("no-such-party", f.bob)
	require.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestFulfillExclusivity(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 100, models.RequirementInput{Item: "beer", Quantity: 2})
	reqID := p.Requirements[0].ID

	updated, err := f.store.Fulfill(p.ID, reqID, "bob", 30)
	req.NoError(err)
	req.Equal(float64(70), updated.Budget)
	req.Equal([]string{"bob"}, updated.Requirements[0].FulfilledBy)

	// Second attempt by the same user conflicts and leaves the budget alone.
	_, err = f.store.Fulfill(p.ID, reqID, "bob", 30)
	req.ErrorIs(err, apperrors.ErrAlreadyFulfilled)

	after, err := f.store.Get(p.ID)
	req.NoError(err)
	req.Equal(float64(70), after.Budget)
	req.Equal([]string{"bob"}, after.Requirements[0].FulfilledBy)
}

func TestFulfillAcceptsRawIDOrHandle(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 100, models.RequirementInput{Item: "ice", Quantity: 1})
	reqID := p.Requirements[0].ID

	updated, err := f.store.Fulfill(p.ID, reqID, strconv.FormatInt(f.bob, 10), 10)
	req.NoError(err)
	req.Equal([]string{"bob"}, updated.Requirements[0].FulfilledBy)

	updated, err = f.store.Fulfill(p.ID, reqID, "CAROL", 5)
	req.NoError(err)
	req.ElementsMatch([]string{"bob", "carol"}, updated.Requirements[0].FulfilledBy)
}

func TestBudgetIsARunningTotal(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 100,
		models.RequirementInput{Item: "beer", Quantity: 2},
		models.RequirementInput{Item: "ice", Quantity: 1},
		models.RequirementInput{Item: "cups", Quantity: 40},
	)

	prices := []float64{30, 45, 50}
	for i, price := range prices {
		_, err := f.store.Fulfill(p.ID, p.Requirements[i].ID, "bob", price)
		req.NoError(err)
	}

	after, err := f.store.Get(p.ID)
	req.NoError(err)
	// No floor: the total overshoots the initial budget and goes negative.
	req.Equal(float64(100-30-45-50), after.Budget)
}

func TestLeaveResetsFulfillmentsWithoutRefund(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 100, models.RequirementInput{Item: "beer", Quantity: 2})
	reqID := p.Requirements[0].ID

	_, err := f.store.Join(p.ID, f.bob)
	req.NoError(err)
	updated, err := f.store.Fulfill(p.ID, reqID, "bob", 30)
	req.NoError(err)
	req.Equal(float64(70), updated.Budget)

	// Leaving strips bob from fulfilledBy but the spend is sunk.
	updated, err = f.store.Leave(p.ID, f.bob)
	req.NoError(err)
	req.NotContains(updated.Participants, "bob")
	req.Empty(updated.Requirements[0].FulfilledBy)
	req.Equal(float64(70), updated.Budget)

	// Bob remains reachable through the party's messaging group.
	g, err := f.groups.FindByParty(p.ID)
	req.NoError(err)
	members, err := f.groups.Members(g.ID)
	req.NoError(err)
	req.Contains(members, f.bob)

	// A second user can take the requirement over at a new price.
	_, err = f.store.Join(p.ID, f.carol)
	req.NoError(err)
	updated, err = f.store.Fulfill(p.ID, reqID, "carol", 20)
	req.NoError(err)
	req.Equal(float64(50), updated.Budget)
	req.Equal([]string{"carol"}, updated.Requirements[0].FulfilledBy)
}

func TestLeaveRequiresParticipation(t *testing.T) {
	f := newFixture(t)
	p := f.createParty(t, 50)
	_, err := f.store.Leave(p.ID, f.bob)
	require.ErrorIs(t, err, apperrors.ErrNotParticipant)
}

func TestHostCannotLeaveActiveParty(t *testing.T) {
	f := newFixture(t)
	p := f.createParty(t, 50)
	_, err := f.store.Leave(p.ID, f.alice)
	require.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestOnlyHostMayEditCancelInvite(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 50, models.RequirementInput{Item: "beer", Quantity: 1})

	newStart := time.Date(2026, 7, 1, 20, 0, 0, 0, time.UTC)
	_, err := f.store.Edit(p.ID, "bob", models.EditPartyRequest{StartTime: &newStart})
	req.ErrorIs(err, apperrors.ErrForbidden)

	_, err = f.store.Cancel(p.ID, "bob")
	req.ErrorIs(err, apperrors.ErrForbidden)

	_, err = f.store.Invite(p.ID, "bob", []string{"carol"})
	req.ErrorIs(err, apperrors.ErrForbidden)

	// No mutation leaked through.
	after, err := f.store.Get(p.ID)
	req.NoError(err)
	req.Equal(models.PartyStatusActive, after.Status)
	req.Equal(p.StartTime.UTC(), after.StartTime.UTC())
	req.Equal([]string{"alice"}, after.Participants)
	req.Len(after.Requirements, 1)
}

func TestCancelIsSilentlyIdempotent(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 50)

	updated, err := f.store.Cancel(p.ID, "alice")
	req.NoError(err)
	req.Equal(models.PartyStatusCancelled, updated.Status)

	updated, err = f.store.Cancel(p.ID, "alice")
	req.NoError(err)
	req.Equal(models.PartyStatusCancelled, updated.Status)
}

func TestEditReplacesProvidedFieldsWholesale(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 100, models.RequirementInput{Item: "beer", Quantity: 2})

	_, err := f.store.Fulfill(p.ID, p.Requirements[0].ID, "bob", 30)
	req.NoError(err)

	newReqs := []models.RequirementInput{
		{Item: "wine", Quantity: 3},
		{Item: "cheese", Quantity: 1},
	}
	newEnd := p.EndTime.Add(2 * time.Hour)
	updated, err := f.store.Edit(p.ID, "alice", models.EditPartyRequest{
		Requirements: &newReqs,
		EndTime:      &newEnd,
	})
	req.NoError(err)

	// Requirements are replaced, not merged: new identities, cleared
	// fulfilledBy, old entries gone.
	req.Len(updated.Requirements, 2)
	req.Equal("wine", updated.Requirements[0].Item)
	req.NotEqual(p.Requirements[0].ID, updated.Requirements[0].ID)
	req.Empty(updated.Requirements[0].FulfilledBy)
	req.Equal(newEnd.UTC(), updated.EndTime.UTC())
	// Omitted field untouched.
	req.Equal(p.StartTime.UTC(), updated.StartTime.UTC())
	// The budget already spent stays spent.
	req.Equal(float64(70), updated.Budget)
}

func TestInviteFiltersExistingAndUnknown(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 50)

	updated, err := f.store.Invite(p.ID, "alice", []string{"bob", "alice", "nobody", "bob"})
	req.NoError(err)
	req.ElementsMatch([]string{"alice", "bob"}, updated.Participants)

	g, err := f.groups.FindByParty(p.ID)
	req.NoError(err)
	members, err := f.groups.Members(g.ID)
	req.NoError(err)
	req.ElementsMatch([]int64{f.alice, f.bob}, members)
}

func TestAddRequirementAllowsDuplicateItems(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 50, models.RequirementInput{Item: "beer", Quantity: 2})

	updated, err := f.store.AddRequirement(p.ID, "beer", 6)
	req.NoError(err)
	req.Len(updated.Requirements, 2)
	req.Equal("beer", updated.Requirements[1].Item)
	req.NotEqual(updated.Requirements[0].ID, updated.Requirements[1].ID)

	// The original requirement keeps its identity after the append.
	after, err := f.store.Fulfill(p.ID, p.Requirements[0].ID, "bob", 10)
	req.NoError(err)
	req.Equal([]string{"bob"}, after.Requirements[0].FulfilledBy)
	req.Empty(after.Requirements[1].FulfilledBy)
}

func TestConcurrentFulfillmentsAreSerialized(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p := f.createParty(t, 100, models.RequirementInput{Item: "beer", Quantity: 2})
	reqID := p.Requirements[0].ID

	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.store.Fulfill(p.ID, reqID, "bob", 25)
		}(i)
	}
	wg.Wait()

	var succeeded int
	for _, err := range errs {
		if err == nil {
			succeeded++
		} else {
			req.ErrorIs(err, apperrors.ErrAlreadyFulfilled)
		}
	}
	req.Equal(1, succeeded)

	after, err := f.store.Get(p.ID)
	req.NoError(err)
	req.Equal(float64(75), after.Budget)
	req.Equal([]string{"bob"}, after.Requirements[0].FulfilledBy)
}

func TestQueries(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	p1 := f.createParty(t, 50)
	p2 := f.createParty(t, 80)

	_, err := f.store.Join(p2.ID, f.bob)
	req.NoError(err)
	_, err = f.store.Cancel(p1.ID, "alice")
	req.NoError(err)

	active, err := f.store.Active()
	req.NoError(err)
	req.Len(active, 1)
	req.Equal(p2.ID, active[0].ID)

	mine, err := f.store.ForParticipant(f.bob)
	req.NoError(err)
	req.Len(mine, 1)
	req.Equal(p2.ID, mine[0].ID)

	hosted, err := f.store.HostedBy(f.alice)
	req.NoError(err)
	req.Len(hosted, 2)

	_, err = f.store.Get("missing")
	req.ErrorIs(err, apperrors.ErrNotFound)
}
