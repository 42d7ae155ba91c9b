package chat

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"partyhub/models"
)

// Store persists messages. Rows are append-only; a message never changes
// after insert.
type Store struct {
	db *sql.DB
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

func (s *Store) InsertDirect(senderID, recipientID int64, body string) (*models.Message, error) {
	msg := models.Message{
		ID:          uuid.NewString(),
		SenderID:    senderID,
		RecipientID: &recipientID,
		Body:        body,
		CreatedAt:   time.Now(),
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, sender_id, recipient_id, body, created_at) VALUES (?, ?, ?, ?, ?)
	`, msg.ID, senderID, recipientID, body, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting direct message: %w", err)
	}

	err = s.db.QueryRow("SELECT username FROM users WHERE id = ?", senderID).Scan(&msg.Sender)
	if err != nil {
		return nil, fmt.Errorf("resolving sender handle: %w", err)
	}
	err = s.db.QueryRow("SELECT username FROM users WHERE id = ?", recipientID).Scan(&msg.Recipient)
	if err != nil {
		return nil, fmt.Errorf("resolving recipient handle: %w", err)
	}
	return &msg, nil
}

func (s *Store) InsertGroup(senderID int64, groupID, groupName, body string) (*models.Message, error) {
	msg := models.Message{
		ID:        uuid.NewString(),
		SenderID:  senderID,
		GroupID:   &groupID,
		GroupName: groupName,
		Body:      body,
		CreatedAt: time.Now(),
	}
	_, err := s.db.Exec(`
		INSERT INTO messages (id, sender_id, group_id, body, created_at) VALUES (?, ?, ?, ?, ?)
	`, msg.ID, senderID, groupID, body, msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting group message: %w", err)
	}

	err = s.db.QueryRow("SELECT username FROM users WHERE id = ?", senderID).Scan(&msg.Sender)
	if err != nil {
		return nil, fmt.Errorf("resolving sender handle: %w", err)
	}
	return &msg, nil
}

// HistoryBetween returns the direct messages exchanged between the two
// users, in either direction, ordered by timestamp ascending. Symmetric in
// its arguments.
func (s *Store) HistoryBetween(userA, userB int64) ([]models.Message, error) {
	rows, err := s.db.Query(`
		SELECT m.id, m.sender_id, m.recipient_id, su.username, ru.username, m.body, m.created_at
		FROM messages m
		JOIN users su ON su.id = m.sender_id
		JOIN users ru ON ru.id = m.recipient_id
		WHERE (m.sender_id = ? AND m.recipient_id = ?)
		   OR (m.sender_id = ? AND m.recipient_id = ?)
		ORDER BY m.created_at ASC, m.id ASC
	`, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("loading history: %w", err)
	}
	defer rows.Close()

	messages := []models.Message{}
	for rows.Next() {
		var m models.Message
		var recipientID int64
		if err := rows.Scan(&m.ID, &m.SenderID, &recipientID, &m.Sender, &m.Recipient, &m.Body, &m.CreatedAt); err != nil {
			return nil, err
		}
		m.RecipientID = &recipientID
		messages = append(messages, m)
	}
	return messages, rows.Err()
}
