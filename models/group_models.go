package models

import "time"

// Group mirrors a party's participant set for message delivery. Created 1:1
// with its party, named after it.
type Group struct {
	ID        string    `json:"id"`
	PartyID   string    `json:"party_id"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"created_at"`
}
