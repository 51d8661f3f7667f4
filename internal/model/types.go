package model

import (
	"strconv"
	"time"
)

// Status is the lifecycle status of a quick check.
type Status string

const (
	StatusPending    Status = "pending"
	StatusInProgress Status = "in_progress"
	StatusSubmitted  Status = "submitted"
	StatusArchived   Status = "archived"
)

// IsDraft reports whether the status places a quick check in the
// in-progress collection.
func (s Status) IsDraft() bool {
	return s == StatusPending || s == StatusInProgress
}

// Valid reports whether the status is one of the known values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusInProgress, StatusSubmitted, StatusArchived:
		return true
	}
	return false
}

// Inspection represents a single quick check.
type Inspection struct {
	ID        int64     `json:"id"`
	Status    Status    `json:"status"`
	OwnerName string    `json:"user"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at,omitempty"`
	Payload   Payload   `json:"data"`
}

// SubjectKey returns the vehicle identity used for notification dedup.
// Falls back to the record id when no VIN has been entered yet.
func (i Inspection) SubjectKey() string {
	if i.Payload.VIN != "" {
		return i.Payload.VIN
	}
	return "quick-check-" + strconv.FormatInt(i.ID, 10)
}

// Label returns a short human-readable identity for the quick check.
func (i Inspection) Label() string {
	if i.Title != "" {
		return i.Title
	}
	if i.Payload.VIN != "" {
		return i.Payload.VIN
	}
	return "#" + strconv.FormatInt(i.ID, 10)
}
