package main

import (
	"log/slog"

	"github.com/quickcheckhq/realtime/internal/notify"
)

// logSounder is the headless audio backend: cues are logged instead of
// played, so operators can still see that one fired.
type logSounder struct {
	logger *slog.Logger
}

func (s *logSounder) Unlock() error {
	return nil
}

func (s *logSounder) Play(cue notify.Cue) error {
	s.logger.Info("sound cue", "cue", cue)
	return nil
}
