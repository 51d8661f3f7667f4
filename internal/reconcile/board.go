package reconcile

import (
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/quickcheckhq/realtime/internal/model"
)

// DefaultRecentTTL is how long a materially updated record keeps its
// "recently updated" marker.
const DefaultRecentTTL = 3 * time.Second

// OutcomeKind classifies what applying an event did to the collections.
type OutcomeKind int

const (
	// OutcomeNoop: the event was valid but changed nothing (duplicate
	// delivery, removal of an absent record).
	OutcomeNoop OutcomeKind = iota
	// OutcomeDropped: the event was malformed and discarded.
	OutcomeDropped
	// OutcomeCreated: a record was inserted.
	OutcomeCreated
	// OutcomeUpdated: a record was merged in place or moved across the
	// collection boundary.
	OutcomeUpdated
	// OutcomeRemoved: a record was deleted or archived out of view.
	OutcomeRemoved
	// OutcomeVINDecoded: informational, collections untouched.
	OutcomeVINDecoded
)

// Outcome describes the result of applying one mutation event.
type Outcome struct {
	Kind   OutcomeKind
	Event  model.MutationEvent
	Record model.Inspection // the post-apply record, zero for noop/dropped

	// Material is set when a technician-entered field actually changed.
	Material bool
	// Moved is set when the record crossed the in-progress/submitted
	// boundary.
	Moved bool
	// EvictedDrafts lists draft ids removed because a submitted record
	// with the same VIN arrived.
	EvictedDrafts []int64
}

// BoardOption configures a Board.
type BoardOption func(*Board)

// WithClock sets the clock used for recently-updated markers.
func WithClock(c clock.Clock) BoardOption {
	return func(b *Board) {
		b.clock = c
	}
}

// WithRecentTTL overrides the recently-updated marker lifetime.
func WithRecentTTL(ttl time.Duration) BoardOption {
	return func(b *Board) {
		b.recentTTL = ttl
	}
}

// Board holds the two reconciled collections. All mutation goes through
// Apply and Hydrate; UI code only reads.
type Board struct {
	logger    *slog.Logger
	clock     clock.Clock
	recentTTL time.Duration

	mu         sync.RWMutex
	inProgress []model.Inspection
	submitted  []model.Inspection
	recent     map[int64]*clock.Timer
}

// NewBoard creates an empty board.
func NewBoard(logger *slog.Logger, opts ...BoardOption) *Board {
	if logger == nil {
		logger = slog.Default()
	}
	b := &Board{
		logger:    logger,
		clock:     clock.New(),
		recentTTL: DefaultRecentTTL,
		recent:    make(map[int64]*clock.Timer),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Hydrate replaces both collections wholesale from a snapshot fetch.
func (b *Board) Hydrate(inProgress, submitted []model.Inspection) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.inProgress = append([]model.Inspection(nil), inProgress...)
	b.submitted = append([]model.Inspection(nil), submitted...)

	b.logger.Info("board hydrated",
		"in_progress", len(b.inProgress),
		"submitted", len(b.submitted),
	)
}

// InProgress returns a copy of the in-progress collection, newest first.
func (b *Board) InProgress() []model.Inspection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Inspection(nil), b.inProgress...)
}

// Submitted returns a copy of the submitted collection, newest first.
func (b *Board) Submitted() []model.Inspection {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return append([]model.Inspection(nil), b.submitted...)
}

// RecentlyUpdated returns the ids currently carrying the transient
// "recently updated" marker.
func (b *Board) RecentlyUpdated() []int64 {
	b.mu.RLock()
	defer b.mu.RUnlock()

	ids := make([]int64, 0, len(b.recent))
	for id := range b.recent {
		ids = append(ids, id)
	}
	return ids
}

// Apply merges one mutation event into the collections.
func (b *Board) Apply(ev model.MutationEvent) Outcome {
	if ev.ID == 0 {
		b.logger.Warn("dropping mutation event without id", "action", ev.Action)
		return Outcome{Kind: OutcomeDropped, Event: ev}
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	switch ev.Action {
	case model.ActionCreated:
		return b.applyCreated(ev)
	case model.ActionUpdated:
		return b.applyUpdated(ev)
	case model.ActionDeleted, model.ActionArchived:
		return b.applyRemoved(ev)
	case model.ActionVINDecoded:
		return b.applyVINDecoded(ev)
	default:
		b.logger.Warn("dropping mutation event with unknown action",
			"action", ev.Action,
			"id", ev.ID,
		)
		return Outcome{Kind: OutcomeDropped, Event: ev}
	}
}

func (b *Board) applyCreated(ev model.MutationEvent) Outcome {
	rec, err := ev.NewInspection()
	if err != nil {
		b.logger.Warn("dropping created event with bad payload", "id", ev.ID, "error", err)
		return Outcome{Kind: OutcomeDropped, Event: ev}
	}

	switch {
	case rec.Status.IsDraft():
		if indexByID(b.inProgress, rec.ID) >= 0 {
			return Outcome{Kind: OutcomeNoop, Event: ev}
		}
		b.inProgress = insertHead(b.inProgress, rec)
		return Outcome{Kind: OutcomeCreated, Event: ev, Record: rec}

	case rec.Status == model.StatusSubmitted:
		// A draft was just finalized: drop any lingering draft card for
		// the same vehicle before inserting the submitted record.
		var evicted []int64
		if vin := rec.Payload.VIN; vin != "" {
			b.inProgress, evicted = removeByVIN(b.inProgress, vin)
		}
		if indexByID(b.submitted, rec.ID) >= 0 {
			return Outcome{Kind: OutcomeNoop, Event: ev, EvictedDrafts: evicted}
		}
		b.submitted = insertHead(b.submitted, rec)
		return Outcome{Kind: OutcomeCreated, Event: ev, Record: rec, EvictedDrafts: evicted}

	default:
		// created+archived: never displayed, nothing to track.
		return Outcome{Kind: OutcomeNoop, Event: ev}
	}
}

func (b *Board) applyUpdated(ev model.MutationEvent) Outcome {
	src, idx := b.locate(ev.ID)
	if src == nil {
		// Push/snapshot race: the update references a record we have
		// never seen. Promote the patch to a full record (best-effort
		// upsert) rather than dropping the change.
		b.logger.Debug("update for unknown record, upserting", "id", ev.ID)
		return b.applyCreated(ev)
	}

	base := (*src)[idx]

	merged := base
	if len(ev.Patch) > 0 {
		p, err := base.Payload.Merge(ev.Patch)
		if err != nil {
			b.logger.Warn("dropping update with unmergeable patch", "id", ev.ID, "error", err)
			return Outcome{Kind: OutcomeDropped, Event: ev}
		}
		merged.Payload = p
	}
	if ev.Status != "" {
		merged.Status = ev.Status
	}
	if ev.User != "" {
		merged.OwnerName = ev.User
	}
	merged.UpdatedAt = ev.Timestamp

	material := model.MaterialChange(base.Payload, merged.Payload)

	// Status moved out of view entirely.
	if merged.Status == model.StatusArchived {
		*src = removeAt(*src, idx)
		return Outcome{Kind: OutcomeRemoved, Event: ev, Record: merged}
	}

	dst := b.collectionFor(merged.Status)
	moved := dst != src
	if moved {
		*src = removeAt(*src, idx)
		if indexByID(*dst, merged.ID) < 0 {
			*dst = insertHead(*dst, merged)
		}
	} else {
		(*src)[idx] = merged
	}

	if material {
		b.markRecentLocked(merged.ID)
	}

	return Outcome{
		Kind:     OutcomeUpdated,
		Event:    ev,
		Record:   merged,
		Material: material,
		Moved:    moved,
	}
}

func (b *Board) applyRemoved(ev model.MutationEvent) Outcome {
	src, idx := b.locate(ev.ID)
	if src == nil {
		// Already converged; duplicate or raced delivery is not an error.
		b.logger.Debug("removal for absent record", "id", ev.ID, "action", ev.Action)
		return Outcome{Kind: OutcomeNoop, Event: ev}
	}

	rec := (*src)[idx]
	*src = removeAt(*src, idx)

	return Outcome{Kind: OutcomeRemoved, Event: ev, Record: rec}
}

func (b *Board) applyVINDecoded(ev model.MutationEvent) Outcome {
	idx := indexByID(b.inProgress, ev.ID)
	if idx < 0 {
		return Outcome{Kind: OutcomeNoop, Event: ev}
	}
	// Informational only: collection membership is untouched.
	return Outcome{Kind: OutcomeVINDecoded, Event: ev, Record: b.inProgress[idx]}
}

// locate finds which collection holds the id. Returns nil when absent.
func (b *Board) locate(id int64) (*[]model.Inspection, int) {
	if idx := indexByID(b.inProgress, id); idx >= 0 {
		return &b.inProgress, idx
	}
	if idx := indexByID(b.submitted, id); idx >= 0 {
		return &b.submitted, idx
	}
	return nil, -1
}

func (b *Board) collectionFor(status model.Status) *[]model.Inspection {
	if status == model.StatusSubmitted {
		return &b.submitted
	}
	return &b.inProgress
}

// markRecentLocked arms (or re-arms) the transient marker for an id.
// Caller holds b.mu.
func (b *Board) markRecentLocked(id int64) {
	if t, ok := b.recent[id]; ok {
		t.Stop()
	}
	b.recent[id] = b.clock.AfterFunc(b.recentTTL, func() {
		b.mu.Lock()
		delete(b.recent, id)
		b.mu.Unlock()
	})
}

func indexByID(col []model.Inspection, id int64) int {
	for i, rec := range col {
		if rec.ID == id {
			return i
		}
	}
	return -1
}

func insertHead(col []model.Inspection, rec model.Inspection) []model.Inspection {
	return append([]model.Inspection{rec}, col...)
}

func removeAt(col []model.Inspection, idx int) []model.Inspection {
	return append(col[:idx:idx], col[idx+1:]...)
}

func removeByVIN(col []model.Inspection, vin string) ([]model.Inspection, []int64) {
	var removed []int64
	kept := col[:0:0]
	for _, rec := range col {
		if rec.Payload.VIN == vin {
			removed = append(removed, rec.ID)
			continue
		}
		kept = append(kept, rec)
	}
	if len(removed) == 0 {
		return col, nil
	}
	return kept, removed
}
