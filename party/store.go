// Package party owns party records and their requirement sub-records and
// enforces the party invariants. Every mutation of one party is serialized
// behind a per-party lock and committed in a single transaction, together
// with the membership-mirror updates it implies.
package party

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	apperrors "partyhub/errors"
	"partyhub/groups"
	"partyhub/identity"
	"partyhub/models"
)

type querier interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

type Store struct {
	db     *sql.DB
	users  *identity.Resolver
	groups *groups.Store

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

func NewStore(db *sql.DB, users *identity.Resolver, groupStore *groups.Store) *Store {
	return &Store{
		db:     db,
		users:  users,
		groups: groupStore,
		locks:  make(map[string]*sync.Mutex),
	}
}

// lock returns the mutex serializing mutations of one party. Distinct
// parties never contend.
func (s *Store) lock(partyID string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.locks[partyID]
	if !ok {
		l = &sync.Mutex{}
		s.locks[partyID] = l
	}
	return l
}

// Create creates a party with status=active and the host as sole
// participant, plus the paired messaging group with the same membership.
func (s *Store) Create(name string, hostID int64, reqs []models.RequirementInput, loc models.Location, startTime, endTime time.Time, budget float64) (*models.Party, error) {
	if name == "" {
		return nil, fmt.Errorf("party name is required: %w", apperrors.ErrValidation)
	}
	if budget < 0 {
		return nil, fmt.Errorf("budget must not be negative: %w", apperrors.ErrValidation)
	}
	if startTime.IsZero() || endTime.IsZero() {
		return nil, fmt.Errorf("start and end time are required: %w", apperrors.ErrValidation)
	}

	partyID := uuid.NewString()
	now := time.Now()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO parties (id, name, host_id, lat, lng, start_time, end_time, budget, status, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, partyID, name, hostID, loc.Lat, loc.Lng, startTime, endTime, budget, models.PartyStatusActive, now)
	if err != nil {
		return nil, fmt.Errorf("inserting party: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO party_participants (party_id, user_id, joined_at) VALUES (?, ?, ?)
	`, partyID, hostID, now)
	if err != nil {
		return nil, fmt.Errorf("inserting host participant: %w", err)
	}

	if err := insertRequirements(tx, partyID, reqs, 0); err != nil {
		return nil, err
	}

	if _, err := s.groups.CreateForParty(tx, partyID, name, hostID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.load(s.db, partyID)
}

// Join adds userID to the party and its mirrored group. Idempotent: joining
// twice leaves a single occurrence.
func (s *Store) Join(partyID string, userID int64) (*models.Party, error) {
	l := s.lock(partyID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := partyExists(tx, partyID); err != nil {
		return nil, err
	}

	_, err = tx.Exec(`
		INSERT INTO party_participants (party_id, user_id, joined_at)
		VALUES (?, ?, ?)
		ON CONFLICT(party_id, user_id) DO NOTHING
	`, partyID, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("inserting participant: %w", err)
	}

	if err := s.groups.AddMemberForParty(tx, partyID, userID); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.load(s.db, partyID)
}

// Leave removes userID from the participants and from every requirement's
// fulfilledBy set. Budget already spent on that user's fulfillments is sunk,
// never refunded, and the mirrored group keeps the user as a member.
func (s *Store) Leave(partyID string, userID int64) (*models.Party, error) {
	l := s.lock(partyID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var hostID int64
	var status string
	err = tx.QueryRow("SELECT host_id, status FROM parties WHERE id = ?", partyID).Scan(&hostID, &status)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("party %s: %w", partyID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading party %s: %w", partyID, err)
	}
	if userID == hostID && status == models.PartyStatusActive {
		return nil, fmt.Errorf("host cannot leave an active party: %w", apperrors.ErrForbidden)
	}

	res, err := tx.Exec("DELETE FROM party_participants WHERE party_id = ? AND user_id = ?", partyID, userID)
	if err != nil {
		return nil, fmt.Errorf("removing participant: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, fmt.Errorf("user %d in party %s: %w", userID, partyID, apperrors.ErrNotParticipant)
	}

	_, err = tx.Exec(`
		DELETE FROM requirement_fulfillments
		WHERE user_id = ? AND requirement_id IN (SELECT id FROM requirements WHERE party_id = ?)
	`, userID, partyID)
	if err != nil {
		return nil, fmt.Errorf("resetting fulfillments: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.load(s.db, partyID)
}

// Fulfill records that the referenced user takes on requirementID and
// deducts price from the party budget. The ledger is a running total: no
// floor is enforced and the budget may go negative. userRef accepts either a
// raw user id or a handle.
func (s *Store) Fulfill(partyID, requirementID, userRef string, price float64) (*models.Party, error) {
	userID, err := s.users.ResolveRef(userRef)
	if err != nil {
		return nil, err
	}

	l := s.lock(partyID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := partyExists(tx, partyID); err != nil {
		return nil, err
	}

	var belongs bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM requirements WHERE id = ? AND party_id = ?)
	`, requirementID, partyID).Scan(&belongs)
	if err != nil {
		return nil, fmt.Errorf("checking requirement: %w", err)
	}
	if !belongs {
		return nil, fmt.Errorf("requirement %s: %w", requirementID, apperrors.ErrNotFound)
	}

	var already bool
	err = tx.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM requirement_fulfillments WHERE requirement_id = ? AND user_id = ?)
	`, requirementID, userID).Scan(&already)
	if err != nil {
		return nil, fmt.Errorf("checking fulfillment: %w", err)
	}
	if already {
		return nil, fmt.Errorf("user %d on requirement %s: %w", userID, requirementID, apperrors.ErrAlreadyFulfilled)
	}

	_, err = tx.Exec(`
		INSERT INTO requirement_fulfillments (requirement_id, user_id, fulfilled_at) VALUES (?, ?, ?)
	`, requirementID, userID, time.Now())
	if err != nil {
		return nil, fmt.Errorf("inserting fulfillment: %w", err)
	}

	_, err = tx.Exec("UPDATE parties SET budget = budget - ? WHERE id = ?", price, partyID)
	if err != nil {
		return nil, fmt.Errorf("updating budget: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.load(s.db, partyID)
}

// AddRequirement appends a new requirement with an empty fulfilledBy set.
// Duplicate items are allowed: two entries for the same item are two
// distinct demands.
func (s *Store) AddRequirement(partyID, item string, quantity int) (*models.Party, error) {
	if item == "" || quantity <= 0 {
		return nil, fmt.Errorf("requirement needs an item and a positive quantity: %w", apperrors.ErrValidation)
	}

	l := s.lock(partyID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := partyExists(tx, partyID); err != nil {
		return nil, err
	}

	var next int
	if err := tx.QueryRow("SELECT COALESCE(MAX(position)+1, 0) FROM requirements WHERE party_id = ?", partyID).Scan(&next); err != nil {
		return nil, fmt.Errorf("computing position: %w", err)
	}

	_, err = tx.Exec(`
		INSERT INTO requirements (id, party_id, item, quantity, position) VALUES (?, ?, ?, ?, ?)
	`, uuid.NewString(), partyID, item, quantity, next)
	if err != nil {
		return nil, fmt.Errorf("inserting requirement: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.load(s.db, partyID)
}

// Edit applies the host's changes. Each provided field replaces the stored
// one wholesale; omitted fields are untouched. Replacing the requirements
// resets every fulfilledBy set.
func (s *Store) Edit(partyID, actingUsername string, changes models.EditPartyRequest) (*models.Party, error) {
	l := s.lock(partyID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.requireHost(tx, partyID, actingUsername); err != nil {
		return nil, err
	}

	if changes.Requirements != nil {
		_, err = tx.Exec(`
			DELETE FROM requirement_fulfillments
			WHERE requirement_id IN (SELECT id FROM requirements WHERE party_id = ?)
		`, partyID)
		if err != nil {
			return nil, fmt.Errorf("clearing fulfillments: %w", err)
		}
		if _, err := tx.Exec("DELETE FROM requirements WHERE party_id = ?", partyID); err != nil {
			return nil, fmt.Errorf("clearing requirements: %w", err)
		}
		if err := insertRequirements(tx, partyID, *changes.Requirements, 0); err != nil {
			return nil, err
		}
	}
	if changes.StartTime != nil {
		if _, err := tx.Exec("UPDATE parties SET start_time = ? WHERE id = ?", *changes.StartTime, partyID); err != nil {
			return nil, fmt.Errorf("updating start time: %w", err)
		}
	}
	if changes.EndTime != nil {
		if _, err := tx.Exec("UPDATE parties SET end_time = ? WHERE id = ?", *changes.EndTime, partyID); err != nil {
			return nil, fmt.Errorf("updating end time: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.load(s.db, partyID)
}

// Cancel is the terminal soft-delete. Host only. Cancelling an already
// cancelled party succeeds silently; a completed party stays completed.
func (s *Store) Cancel(partyID, actingUsername string) (*models.Party, error) {
	l := s.lock(partyID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.requireHost(tx, partyID, actingUsername); err != nil {
		return nil, err
	}

	var status string
	if err := tx.QueryRow("SELECT status FROM parties WHERE id = ?", partyID).Scan(&status); err != nil {
		return nil, fmt.Errorf("loading status: %w", err)
	}
	if status == models.PartyStatusCompleted {
		return nil, fmt.Errorf("completed party cannot be cancelled: %w", apperrors.ErrValidation)
	}

	if _, err := tx.Exec("UPDATE parties SET status = ? WHERE id = ?", models.PartyStatusCancelled, partyID); err != nil {
		return nil, fmt.Errorf("cancelling party: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.load(s.db, partyID)
}

// Invite resolves each handle and appends the users not already
// participating to both the party and its mirrored group. Host only.
// Handles that resolve to no user are skipped.
func (s *Store) Invite(partyID, actingUsername string, handles []string) (*models.Party, error) {
	l := s.lock(partyID)
	l.Lock()
	defer l.Unlock()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := s.requireHost(tx, partyID, actingUsername); err != nil {
		return nil, err
	}

	var invited []int64
	for _, handle := range lo.Uniq(handles) {
		id, err := s.users.Resolve(handle)
		if err != nil {
			continue
		}
		invited = append(invited, id)
	}

	now := time.Now()
	for _, userID := range invited {
		_, err = tx.Exec(`
			INSERT INTO party_participants (party_id, user_id, joined_at)
			VALUES (?, ?, ?)
			ON CONFLICT(party_id, user_id) DO NOTHING
		`, partyID, userID, now)
		if err != nil {
			return nil, fmt.Errorf("inviting user %d: %w", userID, err)
		}
		if err := s.groups.AddMemberForParty(tx, partyID, userID); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return s.load(s.db, partyID)
}

func (s *Store) requireHost(q querier, partyID, actingUsername string) error {
	var hostID int64
	err := q.QueryRow("SELECT host_id FROM parties WHERE id = ?", partyID).Scan(&hostID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("party %s: %w", partyID, apperrors.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading party %s: %w", partyID, err)
	}

	actorID, err := s.users.Resolve(actingUsername)
	if err != nil {
		return err
	}
	if actorID != hostID {
		return fmt.Errorf("user %q is not the host of party %s: %w", actingUsername, partyID, apperrors.ErrForbidden)
	}
	return nil
}

func partyExists(q querier, partyID string) error {
	var exists bool
	if err := q.QueryRow("SELECT EXISTS(SELECT 1 FROM parties WHERE id = ?)", partyID).Scan(&exists); err != nil {
		return fmt.Errorf("checking party %s: %w", partyID, err)
	}
	if !exists {
		return fmt.Errorf("party %s: %w", partyID, apperrors.ErrNotFound)
	}
	return nil
}

func insertRequirements(q querier, partyID string, reqs []models.RequirementInput, startPos int) error {
	for i, r := range reqs {
		if r.Item == "" || r.Quantity <= 0 {
			return fmt.Errorf("requirement %d needs an item and a positive quantity: %w", i, apperrors.ErrValidation)
		}
		_, err := q.Exec(`
			INSERT INTO requirements (id, party_id, item, quantity, position) VALUES (?, ?, ?, ?, ?)
		`, uuid.NewString(), partyID, r.Item, r.Quantity, startPos+i)
		if err != nil {
			return fmt.Errorf("inserting requirement %q: %w", r.Item, err)
		}
	}
	return nil
}
