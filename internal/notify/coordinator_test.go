package notify

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/quickcheckhq/realtime/internal/model"
	"github.com/quickcheckhq/realtime/internal/reconcile"
)

var errAudioLocked = errors.New("audio context locked")

// recorderSounder records cue playback for assertions.
type recorderSounder struct {
	mu        sync.Mutex
	unlockErr error
	unlocks   int
	played    []Cue
}

func (r *recorderSounder) Unlock() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unlocks++
	return r.unlockErr
}

func (r *recorderSounder) Play(cue Cue) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.played = append(r.played, cue)
	return nil
}

func (r *recorderSounder) playCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.played)
}

func newTestCoordinator() (*Coordinator, *recorderSounder, *clock.Mock) {
	snd := &recorderSounder{}
	mock := clock.NewMock()
	c := NewCoordinator(DefaultConfig(), snd, nil, WithClock(mock))
	return c, snd, mock
}

func openCount(c *Coordinator) int {
	n := 0
	for _, e := range c.Entries() {
		if e.Open {
			n++
		}
	}
	return n
}

func TestCoordinator_DedupWindow(t *testing.T) {
	// Two created events for the same subject within 5s: one visible
	// notification, two sound cues.
	c, snd, mock := newTestCoordinator()

	if _, shown := c.Publish(KindCreated, "VIN-1", "started"); !shown {
		t.Fatal("first notification suppressed")
	}

	mock.Add(2 * time.Second)

	if _, shown := c.Publish(KindCreated, "VIN-1", "started again"); shown {
		t.Error("duplicate within window not suppressed")
	}

	if got := openCount(c); got != 1 {
		t.Errorf("open entries = %d, want 1", got)
	}
	if got := snd.playCount(); got != 2 {
		t.Errorf("cues played = %d, want 2 (dedup never mutes the sound)", got)
	}
}

func TestCoordinator_OpenSubjectSuppressesOtherKinds(t *testing.T) {
	c, _, _ := newTestCoordinator()

	c.Publish(KindCreated, "VIN-1", "started")

	if _, shown := c.Publish(KindSubmitted, "VIN-1", "submitted"); shown {
		t.Error("open notification for the subject must suppress new ones")
	}
}

func TestCoordinator_DifferentSubjectsNotDeduped(t *testing.T) {
	c, _, _ := newTestCoordinator()

	if _, shown := c.Publish(KindCreated, "VIN-1", "a"); !shown {
		t.Error("first subject suppressed")
	}
	if _, shown := c.Publish(KindCreated, "VIN-2", "b"); !shown {
		t.Error("second subject should not be suppressed")
	}
}

func TestCoordinator_ClosedEntryAllowsRepeatAfterWindow(t *testing.T) {
	c, _, mock := newTestCoordinator()

	entry, _ := c.Publish(KindCreated, "VIN-1", "started")
	c.Dismiss(entry.ID)

	mock.Add(6 * time.Second)

	if _, shown := c.Publish(KindCreated, "VIN-1", "again"); !shown {
		t.Error("dismissed entry past the window must not suppress")
	}
}

func TestCoordinator_StackCapEvictsOldest(t *testing.T) {
	c, _, mock := newTestCoordinator()

	subjects := []string{"V1", "V2", "V3", "V4"}
	for _, s := range subjects {
		c.Publish(KindCreated, s, "started "+s)
		mock.Add(6 * time.Second) // stay clear of the dedup window
	}

	entries := c.Entries()
	if len(entries) != 3 {
		t.Fatalf("stack size = %d, want 3", len(entries))
	}
	// Newest first; V1 evicted outright.
	if entries[0].SubjectKey != "V4" || entries[2].SubjectKey != "V2" {
		t.Errorf("stack = %v", entries)
	}
	for _, e := range entries {
		if e.SubjectKey == "V1" {
			t.Error("oldest entry should be removed, not merely hidden")
		}
	}
}

func TestCoordinator_AutoCloseAfterTTL(t *testing.T) {
	c, _, mock := newTestCoordinator()

	c.Publish(KindCreated, "VIN-1", "started")

	mock.Add(60 * time.Second)

	if got := openCount(c); got != 0 {
		t.Errorf("open entries = %d, want 0 after TTL", got)
	}
	// Closed, not evicted.
	if got := len(c.Entries()); got != 1 {
		t.Errorf("stack size = %d, want 1", got)
	}
}

func TestCoordinator_LazyAudioUnlock(t *testing.T) {
	snd := &recorderSounder{unlockErr: errAudioLocked}
	mock := clock.NewMock()
	c := NewCoordinator(DefaultConfig(), snd, nil, WithClock(mock))

	c.Publish(KindCreated, "VIN-1", "started")
	if snd.playCount() != 0 {
		t.Error("cue played before audio unlock")
	}
	if c.AudioReady() {
		t.Error("AudioReady = true while unlock keeps failing")
	}

	// The user gesture arrives and unlock starts succeeding.
	snd.mu.Lock()
	snd.unlockErr = nil
	snd.mu.Unlock()
	c.Unlock()

	if !c.AudioReady() {
		t.Fatal("AudioReady = false after successful unlock")
	}

	mock.Add(6 * time.Second)
	c.Publish(KindCreated, "VIN-2", "started")
	if snd.playCount() != 1 {
		t.Errorf("cues played = %d, want 1 after unlock", snd.playCount())
	}
}

func TestCoordinator_VINDecodedHasNoCue(t *testing.T) {
	c, snd, _ := newTestCoordinator()

	c.Publish(KindVINDecoded, "VIN-1", "VIN decoded: 2021 Honda Accord")

	if snd.playCount() != 0 {
		t.Errorf("cues played = %d, want 0 for vin_decoded", snd.playCount())
	}
	if got := openCount(c); got != 1 {
		t.Errorf("open entries = %d, want 1", got)
	}
}

func TestFromOutcome(t *testing.T) {
	tests := []struct {
		name     string
		out      reconcile.Outcome
		wantKind Kind
		wantShow bool
	}{
		{
			name: "draft created",
			out: reconcile.Outcome{
				Kind:   reconcile.OutcomeCreated,
				Record: model.Inspection{ID: 1, Status: model.StatusPending, Payload: model.Payload{VIN: "X"}},
			},
			wantKind: KindCreated,
			wantShow: true,
		},
		{
			name: "submitted created",
			out: reconcile.Outcome{
				Kind:   reconcile.OutcomeCreated,
				Record: model.Inspection{ID: 1, Status: model.StatusSubmitted},
			},
			wantKind: KindSubmitted,
			wantShow: true,
		},
		{
			name: "moved to submitted",
			out: reconcile.Outcome{
				Kind:   reconcile.OutcomeUpdated,
				Moved:  true,
				Record: model.Inspection{ID: 1, Status: model.StatusSubmitted},
			},
			wantKind: KindSubmitted,
			wantShow: true,
		},
		{
			name: "in-place update is silent",
			out: reconcile.Outcome{
				Kind:     reconcile.OutcomeUpdated,
				Material: true,
				Record:   model.Inspection{ID: 1, Status: model.StatusInProgress},
			},
			wantShow: false,
		},
		{
			name: "deleted",
			out: reconcile.Outcome{
				Kind:   reconcile.OutcomeRemoved,
				Event:  model.MutationEvent{DeletedBy: "lena"},
				Record: model.Inspection{ID: 1},
			},
			wantKind: KindDeleted,
			wantShow: true,
		},
		{
			name:     "noop is silent",
			out:      reconcile.Outcome{Kind: reconcile.OutcomeNoop},
			wantShow: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, subject, msg, show := FromOutcome(tt.out)
			if show != tt.wantShow {
				t.Fatalf("show = %v, want %v", show, tt.wantShow)
			}
			if !show {
				return
			}
			if kind != tt.wantKind {
				t.Errorf("kind = %q, want %q", kind, tt.wantKind)
			}
			if subject == "" {
				t.Error("subject key empty")
			}
			if msg == "" {
				t.Error("message empty")
			}
		})
	}
}
