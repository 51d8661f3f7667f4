package notify

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/quickcheckhq/realtime/internal/model"
	"github.com/quickcheckhq/realtime/internal/reconcile"
)

// Kind classifies a notification.
type Kind string

const (
	KindCreated    Kind = "created"
	KindSubmitted  Kind = "submitted"
	KindDeleted    Kind = "deleted"
	KindVINDecoded Kind = "vin_decoded"
)

// Cue is an audio cue identifier.
type Cue string

const (
	CueCreated   Cue = "created"
	CueSubmitted Cue = "submitted"
	CueDeleted   Cue = "deleted"
)

// cueFor maps notification kinds to their audio cues. vin_decoded is
// visual-only.
func cueFor(kind Kind) (Cue, bool) {
	switch kind {
	case KindCreated:
		return CueCreated, true
	case KindSubmitted:
		return CueSubmitted, true
	case KindDeleted:
		return CueDeleted, true
	}
	return "", false
}

// Sounder plays audio cues. Platforms that gate autoplay reject Play
// until Unlock succeeds after a user gesture.
type Sounder interface {
	// Unlock prepares the audio backend. Safe to call repeatedly.
	Unlock() error

	// Play emits the cue. Only called after a successful Unlock.
	Play(cue Cue) error
}

// Entry is one visible notification.
type Entry struct {
	ID         string
	Kind       Kind
	Message    string
	SubjectKey string
	CreatedAt  time.Time
	Open       bool
}

// Config bounds the notification stack.
type Config struct {
	MaxVisible  int           // Stack cap; oldest beyond it is evicted
	TTL         time.Duration // Auto-close timeout per entry
	DedupWindow time.Duration // Identical (kind, subject) suppression window
}

// DefaultConfig returns the stock limits.
func DefaultConfig() Config {
	return Config{
		MaxVisible:  3,
		TTL:         60 * time.Second,
		DedupWindow: 5 * time.Second,
	}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithClock sets the clock used for TTLs and the dedup window.
func WithClock(c clock.Clock) Option {
	return func(co *Coordinator) {
		co.clock = c
	}
}

// Coordinator turns reconciliation outcomes into notifications.
type Coordinator struct {
	cfg     Config
	logger  *slog.Logger
	clock   clock.Clock
	sounder Sounder

	mu         sync.Mutex
	entries    []Entry // newest first
	lastShown  map[string]time.Time
	timers     map[string]*clock.Timer
	audioReady bool
}

// NewCoordinator creates a notification coordinator.
func NewCoordinator(cfg Config, sounder Sounder, logger *slog.Logger, opts ...Option) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxVisible == 0 {
		cfg = DefaultConfig()
	}

	c := &Coordinator{
		cfg:       cfg,
		logger:    logger,
		clock:     clock.New(),
		sounder:   sounder,
		lastShown: make(map[string]time.Time),
		timers:    make(map[string]*clock.Timer),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Publish presents a notification. The sound cue plays for every
// qualifying event; the visual entry is subject to dedup and returns
// false when suppressed.
func (c *Coordinator) Publish(kind Kind, subjectKey, message string) (Entry, bool) {
	c.playCue(kind)

	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.clock.Now()

	if c.suppressedLocked(kind, subjectKey, now) {
		c.logger.Debug("notification suppressed",
			"kind", kind,
			"subject", subjectKey,
		)
		return Entry{}, false
	}

	entry := Entry{
		ID:         uuid.NewString(),
		Kind:       kind,
		Message:    message,
		SubjectKey: subjectKey,
		CreatedAt:  now,
		Open:       true,
	}

	c.entries = append([]Entry{entry}, c.entries...)
	c.lastShown[dedupKey(kind, subjectKey)] = now

	// Evict beyond the cap, oldest first.
	for len(c.entries) > c.cfg.MaxVisible {
		evicted := c.entries[len(c.entries)-1]
		c.entries = c.entries[:len(c.entries)-1]
		c.clearTimerLocked(evicted.ID)
	}

	id := entry.ID
	c.timers[id] = c.clock.AfterFunc(c.cfg.TTL, func() {
		c.expire(id)
	})

	return entry, true
}

// Dismiss closes an entry manually.
func (c *Coordinator) Dismiss(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range c.entries {
		if c.entries[i].ID == id {
			c.entries[i].Open = false
			c.clearTimerLocked(id)
			return
		}
	}
}

// Entries returns a copy of the stack, newest first.
func (c *Coordinator) Entries() []Entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Entry(nil), c.entries...)
}

// Unlock attempts the one-time audio unlock; call it on a user gesture.
func (c *Coordinator) Unlock() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.unlockLocked()
}

// AudioReady reports whether the audio backend has been unlocked.
func (c *Coordinator) AudioReady() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.audioReady
}

// suppressedLocked applies the two dedup rules: an open entry for the
// subject, or an identical (kind, subject) within the window.
func (c *Coordinator) suppressedLocked(kind Kind, subjectKey string, now time.Time) bool {
	for _, e := range c.entries {
		if e.Open && e.SubjectKey == subjectKey {
			return true
		}
	}
	if shown, ok := c.lastShown[dedupKey(kind, subjectKey)]; ok {
		if now.Sub(shown) < c.cfg.DedupWindow {
			return true
		}
	}
	return false
}

func (c *Coordinator) expire(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	delete(c.timers, id)
	for i := range c.entries {
		if c.entries[i].ID == id {
			c.entries[i].Open = false
			return
		}
	}
}

func (c *Coordinator) clearTimerLocked(id string) {
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
}

// playCue fires the audio cue for a kind, lazily unlocking the backend.
func (c *Coordinator) playCue(kind Kind) {
	cue, ok := cueFor(kind)
	if !ok || c.sounder == nil {
		return
	}

	c.mu.Lock()
	if !c.audioReady {
		c.unlockLocked()
	}
	ready := c.audioReady
	c.mu.Unlock()

	if !ready {
		return
	}
	if err := c.sounder.Play(cue); err != nil {
		c.logger.Debug("cue playback failed", "cue", cue, "error", err)
	}
}

func (c *Coordinator) unlockLocked() {
	if c.audioReady || c.sounder == nil {
		return
	}
	if err := c.sounder.Unlock(); err != nil {
		c.logger.Debug("audio unlock failed", "error", err)
		return
	}
	c.audioReady = true
}

func dedupKey(kind Kind, subjectKey string) string {
	return string(kind) + "|" + subjectKey
}

// FromOutcome derives the notification for a reconciliation outcome.
// Returns false when the outcome is not user-facing (in-place edits,
// noops, drops).
func FromOutcome(out reconcile.Outcome) (Kind, string, string, bool) {
	rec := out.Record
	subject := rec.SubjectKey()
	label := rec.Label()

	switch out.Kind {
	case reconcile.OutcomeCreated:
		if rec.Status == model.StatusSubmitted {
			return KindSubmitted, subject, "Quick check submitted for " + label, true
		}
		return KindCreated, subject, "Quick check started for " + label, true

	case reconcile.OutcomeUpdated:
		if out.Moved && rec.Status == model.StatusSubmitted {
			return KindSubmitted, subject, "Quick check submitted for " + label, true
		}
		return "", "", "", false

	case reconcile.OutcomeRemoved:
		msg := "Quick check removed for " + label
		switch {
		case out.Event.DeletedBy != "":
			msg = "Quick check deleted by " + out.Event.DeletedBy
		case out.Event.ArchivedBy != "":
			msg = "Quick check archived by " + out.Event.ArchivedBy
		}
		return KindDeleted, subject, msg, true

	case reconcile.OutcomeVINDecoded:
		if out.Event.Description == "" {
			return "", "", "", false
		}
		return KindVINDecoded, subject, "VIN decoded: " + out.Event.Description, true
	}

	return "", "", "", false
}
