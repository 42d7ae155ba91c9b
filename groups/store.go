// Package groups keeps each party's messaging group in sync with the party's
// participant set. Membership additions track participant additions; leaving
// a party intentionally does NOT remove the user here, so departed
// participants keep receiving the party's group chat.
package groups

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	apperrors "partyhub/errors"
	"partyhub/models"
)

// DBTX lets write methods run inside a caller's transaction, so mirror
// updates commit atomically with the party mutation that caused them.
type DBTX interface {
	Exec(query string, args ...interface{}) (sql.Result, error)
	QueryRow(query string, args ...interface{}) *sql.Row
	Query(query string, args ...interface{}) (*sql.Rows, error)
}

type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateForParty creates the 1:1 messaging group for a new party, named after
// it, with the host as the only member.
func (s *Store) CreateForParty(tx DBTX, partyID, name string, hostID int64) (string, error) {
	groupID := uuid.NewString()
	_, err := tx.Exec(`
		INSERT INTO groups (id, party_id, name, created_at)
		VALUES (?, ?, ?, ?)
	`, groupID, partyID, name, time.Now())
	if err != nil {
		return "", fmt.Errorf("creating group for party %s: %w", partyID, err)
	}
	if err := s.AddMember(tx, groupID, hostID); err != nil {
		return "", err
	}
	return groupID, nil
}

// AddMember adds userID to the group, a no-op if already a member.
func (s *Store) AddMember(tx DBTX, groupID string, userID int64) error {
	_, err := tx.Exec(`
		INSERT INTO group_members (group_id, user_id, added_at)
		VALUES (?, ?, ?)
		ON CONFLICT(group_id, user_id) DO NOTHING
	`, groupID, userID, time.Now())
	if err != nil {
		return fmt.Errorf("adding member %d to group %s: %w", userID, groupID, err)
	}
	return nil
}

// AddMemberForParty resolves the party's mirrored group and adds userID.
func (s *Store) AddMemberForParty(tx DBTX, partyID string, userID int64) error {
	groupID, err := s.idForParty(tx, partyID)
	if err != nil {
		return err
	}
	return s.AddMember(tx, groupID, userID)
}

func (s *Store) idForParty(tx DBTX, partyID string) (string, error) {
	var groupID string
	err := tx.QueryRow("SELECT id FROM groups WHERE party_id = ?", partyID).Scan(&groupID)
	if err == sql.ErrNoRows {
		return "", fmt.Errorf("group for party %s: %w", partyID, apperrors.ErrNotFound)
	}
	if err != nil {
		return "", fmt.Errorf("looking up group for party %s: %w", partyID, err)
	}
	return groupID, nil
}

// FindByName returns the first group with the given name. Party names are
// not unique, so neither are group names; name lookup picks the oldest.
func (s *Store) FindByName(name string) (*models.Group, error) {
	var g models.Group
	err := s.db.QueryRow(`
		SELECT id, party_id, name, created_at FROM groups
		WHERE name = ? ORDER BY created_at ASC LIMIT 1
	`, name).Scan(&g.ID, &g.PartyID, &g.Name, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group %q: %w", name, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up group %q: %w", name, err)
	}
	return &g, nil
}

// FindByParty returns the group mirroring partyID.
func (s *Store) FindByParty(partyID string) (*models.Group, error) {
	var g models.Group
	err := s.db.QueryRow(`
		SELECT id, party_id, name, created_at FROM groups WHERE party_id = ?
	`, partyID).Scan(&g.ID, &g.PartyID, &g.Name, &g.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("group for party %s: %w", partyID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up group for party %s: %w", partyID, err)
	}
	return &g, nil
}

// Members returns the user ids in the group's delivery scope.
func (s *Store) Members(groupID string) ([]int64, error) {
	rows, err := s.db.Query("SELECT user_id FROM group_members WHERE group_id = ? ORDER BY added_at ASC", groupID)
	if err != nil {
		return nil, fmt.Errorf("listing members of group %s: %w", groupID, err)
	}
	defer rows.Close()

	var members []int64
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return nil, err
		}
		members = append(members, userID)
	}
	return members, rows.Err()
}

// IsMember reports whether userID is in the group's delivery scope.
func (s *Store) IsMember(groupID string, userID int64) (bool, error) {
	var ok bool
	err := s.db.QueryRow(`
		SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id = ? AND user_id = ?)
	`, groupID, userID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("checking membership of %d in group %s: %w", userID, groupID, err)
	}
	return ok, nil
}
