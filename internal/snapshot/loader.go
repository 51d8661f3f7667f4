package snapshot

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/quickcheckhq/realtime/internal/model"
	"github.com/quickcheckhq/realtime/internal/reconcile"
)

// Fetcher is the slice of the REST client the loader needs.
type Fetcher interface {
	GetInProgress(ctx context.Context) ([]model.Inspection, error)
	GetSubmitted(ctx context.Context) ([]model.Inspection, error)
}

// Loader fetches full snapshots and replaces the board's collections.
type Loader struct {
	api    Fetcher
	board  *reconcile.Board
	logger *slog.Logger
}

// NewLoader creates a snapshot loader.
func NewLoader(api Fetcher, board *reconcile.Board, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		api:    api,
		board:  board,
		logger: logger,
	}
}

// Hydrate fetches both collections and swaps them into the board. Either
// both collections are replaced or neither is.
func (l *Loader) Hydrate(ctx context.Context) error {
	start := time.Now()

	inProgress, err := l.api.GetInProgress(ctx)
	if err != nil {
		return fmt.Errorf("fetch in-progress snapshot: %w", err)
	}

	submitted, err := l.api.GetSubmitted(ctx)
	if err != nil {
		return fmt.Errorf("fetch submitted snapshot: %w", err)
	}

	l.board.Hydrate(inProgress, submitted)

	l.logger.Info("snapshot hydrated",
		"in_progress", len(inProgress),
		"submitted", len(submitted),
		"duration", time.Since(start),
	)
	return nil
}
