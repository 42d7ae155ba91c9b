package party

import (
	"database/sql"
	"fmt"

	apperrors "partyhub/errors"
	"partyhub/models"
)

// Active lists parties with status=active, newest first.
func (s *Store) Active() ([]models.Party, error) {
	return s.list("SELECT id FROM parties WHERE status = ? ORDER BY created_at DESC", models.PartyStatusActive)
}

// ForParticipant lists the parties userID participates in.
func (s *Store) ForParticipant(userID int64) ([]models.Party, error) {
	return s.list(`
		SELECT p.id FROM parties p
		JOIN party_participants pp ON pp.party_id = p.id
		WHERE pp.user_id = ?
		ORDER BY p.created_at DESC
	`, userID)
}

// HostedBy lists the parties userID hosts.
func (s *Store) HostedBy(userID int64) ([]models.Party, error) {
	return s.list("SELECT id FROM parties WHERE host_id = ? ORDER BY created_at DESC", userID)
}

// Get fetches a single party by id.
func (s *Store) Get(partyID string) (*models.Party, error) {
	return s.load(s.db, partyID)
}

func (s *Store) list(query string, args ...interface{}) ([]models.Party, error) {
	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing parties: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	parties := make([]models.Party, 0, len(ids))
	for _, id := range ids {
		p, err := s.load(s.db, id)
		if err != nil {
			return nil, err
		}
		parties = append(parties, *p)
	}
	return parties, nil
}

// load assembles the denormalized party record: ids are resolved to display
// handles, requirements keep their stored order.
func (s *Store) load(q querier, partyID string) (*models.Party, error) {
	var p models.Party
	err := q.QueryRow(`
		SELECT p.id, p.name, u.username, p.lat, p.lng, p.start_time, p.end_time, p.budget, p.status, p.created_at
		FROM parties p
		JOIN users u ON u.id = p.host_id
		WHERE p.id = ?
	`, partyID).Scan(&p.ID, &p.Name, &p.Host, &p.Location.Lat, &p.Location.Lng,
		&p.StartTime, &p.EndTime, &p.Budget, &p.Status, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("party %s: %w", partyID, apperrors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading party %s: %w", partyID, err)
	}

	participants, err := q.Query(`
		SELECT u.username FROM party_participants pp
		JOIN users u ON u.id = pp.user_id
		WHERE pp.party_id = ?
		ORDER BY pp.joined_at ASC, pp.id ASC
	`, partyID)
	if err != nil {
		return nil, fmt.Errorf("loading participants: %w", err)
	}
	defer participants.Close()

	p.Participants = []string{}
	for participants.Next() {
		var username string
		if err := participants.Scan(&username); err != nil {
			return nil, err
		}
		p.Participants = append(p.Participants, username)
	}
	if err := participants.Err(); err != nil {
		return nil, err
	}

	reqRows, err := q.Query(`
		SELECT id, item, quantity FROM requirements WHERE party_id = ? ORDER BY position ASC
	`, partyID)
	if err != nil {
		return nil, fmt.Errorf("loading requirements: %w", err)
	}
	defer reqRows.Close()

	p.Requirements = []models.Requirement{}
	for reqRows.Next() {
		var r models.Requirement
		if err := reqRows.Scan(&r.ID, &r.Item, &r.Quantity); err != nil {
			return nil, err
		}
		r.FulfilledBy = []string{}
		p.Requirements = append(p.Requirements, r)
	}
	if err := reqRows.Err(); err != nil {
		return nil, err
	}

	for i := range p.Requirements {
		fulfillers, err := q.Query(`
			SELECT u.username FROM requirement_fulfillments rf
			JOIN users u ON u.id = rf.user_id
			WHERE rf.requirement_id = ?
			ORDER BY rf.fulfilled_at ASC, rf.id ASC
		`, p.Requirements[i].ID)
		if err != nil {
			return nil, fmt.Errorf("loading fulfillments: %w", err)
		}
		for fulfillers.Next() {
			var username string
			if err := fulfillers.Scan(&username); err != nil {
				fulfillers.Close()
				return nil, err
			}
			p.Requirements[i].FulfilledBy = append(p.Requirements[i].FulfilledBy, username)
		}
		if err := fulfillers.Err(); err != nil {
			fulfillers.Close()
			return nil, err
		}
		fulfillers.Close()
	}

	return &p, nil
}
