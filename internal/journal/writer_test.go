package journal

import (
	"testing"
	"time"

	"github.com/quickcheckhq/realtime/internal/config"
	"github.com/quickcheckhq/realtime/internal/model"
)

func testConfig() config.JournalConfig {
	return config.JournalConfig{
		Enabled:       true,
		BatchSize:     10,
		FlushInterval: time.Second,
		BufferSize:    4,
	}
}

func TestTransform(t *testing.T) {
	eventTS := time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC)
	receivedAt := eventTS.Add(120 * time.Millisecond)

	ev := model.MutationEvent{
		Action:     model.ActionUpdated,
		ID:         42,
		Status:     model.StatusSubmitted,
		User:       "m.torres",
		Timestamp:  eventTS,
		ReceivedAt: receivedAt,
	}
	rec := &model.Inspection{
		ID:      42,
		Status:  model.StatusSubmitted,
		Payload: model.Payload{VIN: "1HGCM82633A004352", Mileage: "40000"},
	}

	row := transform(ev, rec)

	if row.QuickCheckID != 42 {
		t.Errorf("QuickCheckID = %d, want 42", row.QuickCheckID)
	}
	if row.Action != "updated" {
		t.Errorf("Action = %q, want updated", row.Action)
	}
	if row.Status != "submitted" {
		t.Errorf("Status = %q, want submitted", row.Status)
	}
	if row.Actor != "m.torres" {
		t.Errorf("Actor = %q, want m.torres", row.Actor)
	}
	if !row.EventTS.Equal(eventTS) {
		t.Errorf("EventTS = %v, want %v", row.EventTS, eventTS)
	}
	if !row.ReceivedAt.Equal(receivedAt) {
		t.Errorf("ReceivedAt = %v, want %v", row.ReceivedAt, receivedAt)
	}
	if len(row.Payload) == 0 {
		t.Error("Payload is empty, want serialized record payload")
	}
}

func TestTransformActorFallback(t *testing.T) {
	tests := []struct {
		name string
		ev   model.MutationEvent
		want string
	}{
		{
			name: "archived_by",
			ev:   model.MutationEvent{Action: model.ActionArchived, ID: 1, ArchivedBy: "s.chen"},
			want: "s.chen",
		},
		{
			name: "deleted_by",
			ev:   model.MutationEvent{Action: model.ActionDeleted, ID: 1, DeletedBy: "j.ruiz"},
			want: "j.ruiz",
		},
		{
			name: "user wins over archived_by",
			ev:   model.MutationEvent{Action: model.ActionArchived, ID: 1, User: "a", ArchivedBy: "b"},
			want: "a",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			row := transform(tt.ev, nil)
			if row.Actor != tt.want {
				t.Errorf("Actor = %q, want %q", row.Actor, tt.want)
			}
		})
	}
}

func TestTransformNilRecordHasNoPayload(t *testing.T) {
	row := transform(model.MutationEvent{Action: model.ActionDeleted, ID: 7}, nil)
	if row.Payload != nil {
		t.Errorf("Payload = %q, want nil", row.Payload)
	}
}

func TestRecordDropsWhenBufferFull(t *testing.T) {
	w := NewWriter(testConfig(), nil, nil)
	// Not started: nothing drains the input channel.

	for i := 0; i < 10; i++ {
		w.Record(model.MutationEvent{Action: model.ActionCreated, ID: int64(i)}, nil)
	}

	stats := w.Stats()
	if stats.Dropped != 6 {
		t.Errorf("Dropped = %d, want 6 (buffer of 4)", stats.Dropped)
	}
	if len(w.input) != 4 {
		t.Errorf("buffered = %d, want 4", len(w.input))
	}
}
