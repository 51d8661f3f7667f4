package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Action identifies what a mutation event did to a quick check.
type Action string

const (
	ActionCreated    Action = "created"
	ActionUpdated    Action = "updated"
	ActionDeleted    Action = "deleted"
	ActionArchived   Action = "archived"
	ActionVINDecoded Action = "vin_decoded"
)

// Parse errors.
var (
	ErrMissingID     = errors.New("mutation event missing record id")
	ErrUnknownAction = errors.New("unknown mutation action")
)

// MutationEvent is a server-pushed change to a single quick check.
// Ephemeral: applied to the collections, never stored.
type MutationEvent struct {
	Action Action

	ID     int64
	Status Status // empty when the patch does not touch status

	// Patch holds the partial domain fields carried by the event.
	Patch map[string]json.RawMessage

	// Actor metadata
	User       string
	ArchivedBy string
	DeletedBy  string
	Reason     string

	// Description is the decoded vehicle display string on vin_decoded.
	Description string

	Timestamp  time.Time
	ReceivedAt time.Time
}

// quickCheckUpdateWire is the wire format of a quick_check_update message.
type quickCheckUpdateWire struct {
	Type   string `json:"type"`
	Action string `json:"action"`
	Data   struct {
		ID          int64                      `json:"id"`
		Status      string                     `json:"status,omitempty"`
		Data        map[string]json.RawMessage `json:"data,omitempty"`
		User        string                     `json:"user,omitempty"`
		ArchivedBy  string                     `json:"archived_by,omitempty"`
		DeletedBy   string                     `json:"deleted_by,omitempty"`
		Reason      string                     `json:"reason,omitempty"`
		Description string                     `json:"description,omitempty"`
	} `json:"data"`
	Timestamp string `json:"timestamp,omitempty"`
}

// ParseMutationEvent decodes a quick_check_update message body.
func ParseMutationEvent(data []byte, receivedAt time.Time) (MutationEvent, error) {
	var wire quickCheckUpdateWire
	if err := json.Unmarshal(data, &wire); err != nil {
		return MutationEvent{}, fmt.Errorf("parse quick_check_update: %w", err)
	}

	action := Action(wire.Action)
	switch action {
	case ActionCreated, ActionUpdated, ActionDeleted, ActionArchived, ActionVINDecoded:
	default:
		return MutationEvent{}, fmt.Errorf("%w: %q", ErrUnknownAction, wire.Action)
	}

	if wire.Data.ID == 0 {
		return MutationEvent{}, ErrMissingID
	}

	ev := MutationEvent{
		Action:      action,
		ID:          wire.Data.ID,
		Status:      Status(wire.Data.Status),
		Patch:       wire.Data.Data,
		User:        wire.Data.User,
		ArchivedBy:  wire.Data.ArchivedBy,
		DeletedBy:   wire.Data.DeletedBy,
		Reason:      wire.Data.Reason,
		Description: wire.Data.Description,
		ReceivedAt:  receivedAt,
	}

	if wire.Timestamp != "" {
		if ts, err := time.Parse(time.RFC3339, wire.Timestamp); err == nil {
			ev.Timestamp = ts
		}
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = receivedAt
	}

	return ev, nil
}

// NewInspection builds a full record from a created event.
func (ev MutationEvent) NewInspection() (Inspection, error) {
	status := ev.Status
	if status == "" {
		status = StatusPending
	}

	var payload Payload
	if len(ev.Patch) > 0 {
		merged, err := Payload{}.Merge(ev.Patch)
		if err != nil {
			return Inspection{}, fmt.Errorf("build payload: %w", err)
		}
		payload = merged
	}

	return Inspection{
		ID:        ev.ID,
		Status:    status,
		OwnerName: ev.User,
		CreatedAt: ev.Timestamp,
		Payload:   payload,
	}, nil
}
