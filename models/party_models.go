package models

import "time"

// Party statuses. Transitions are one-directional: active parties can be
// cancelled or completed, nothing transitions back out.
const (
	PartyStatusActive    = "active"
	PartyStatusCompleted = "completed"
	PartyStatusCancelled = "cancelled"
)

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Requirement is a named, quantified need within a party. It carries its own
// identity so lookups never depend on list position.
type Requirement struct {
	ID          string   `json:"id"`
	Item        string   `json:"item"`
	Quantity    int      `json:"quantity"`
	FulfilledBy []string `json:"fulfilled_by"`
}

// Party is the central aggregate, denormalized to display handles at the
// boundary: host and participants are usernames, not row ids.
type Party struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Host         string        `json:"host"`
	Participants []string      `json:"participants"`
	Requirements []Requirement `json:"requirements"`
	Location     Location      `json:"location"`
	StartTime    time.Time     `json:"start_time"`
	EndTime      time.Time     `json:"end_time"`
	Budget       float64       `json:"budget"`
	Status       string        `json:"status"`
	CreatedAt    time.Time     `json:"created_at"`
}

type RequirementInput struct {
	Item     string `json:"item" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type CreatePartyRequest struct {
	Name         string             `json:"name" validate:"required"`
	Username     string             `json:"username" validate:"required"`
	Requirements []RequirementInput `json:"requirements" validate:"dive"`
	Location     Location           `json:"location"`
	StartTime    time.Time          `json:"start_time" validate:"required"`
	EndTime      time.Time          `json:"end_time" validate:"required"`
	Budget       float64            `json:"budget" validate:"gte=0"`
}

type JoinPartyRequest struct {
	Username string `json:"username" validate:"required"`
}

type AddRequirementRequest struct {
	Item     string `json:"item" validate:"required"`
	Quantity int    `json:"quantity" validate:"gt=0"`
}

type FulfillRequirementRequest struct {
	// UserID accepts either a raw user id or a username needing resolution.
	UserID string  `json:"user_id" validate:"required"`
	Price  float64 `json:"price"`
}

type CancelPartyRequest struct {
	Username string `json:"username" validate:"required"`
}

// EditPartyRequest replaces each provided field wholesale; nil fields are
// left untouched.
type EditPartyRequest struct {
	Username     string              `json:"username" validate:"required"`
	Requirements *[]RequirementInput `json:"requirements,omitempty"`
	StartTime    *time.Time          `json:"start_time,omitempty"`
	EndTime      *time.Time          `json:"end_time,omitempty"`
}

type InviteFriendsRequest struct {
	Username string   `json:"username" validate:"required"`
	Friends  []string `json:"friends" validate:"required,min=1"`
}
