// Package workflow defines the external collaborator boundary for the
// workflow subsystem. The subsystem itself is out of scope (spec §1, §6);
// this package exists so the ingestor and status applier can depend on an
// interface instead of a concrete system, per the "never duck-type an
// external collaborator" design note.
package workflow

import (
	"context"

	"github.com/rs/zerolog/log"
)

// Engine receives fire-and-forget notifications about domain events the
// workflow subsystem might act on (message_received, status_updated).
type Engine interface {
	Notify(ctx context.Context, eventType string, payload any) error
}

// LoggingEngine is the stub Engine used until a real workflow subsystem is
// wired in; it only logs, exactly the shape needed to exercise the
// ingestor and status applier's control flow end-to-end.
type LoggingEngine struct{}

func NewLoggingEngine() *LoggingEngine {
	return &LoggingEngine{}
}

func (LoggingEngine) Notify(ctx context.Context, eventType string, payload any) error {
	log.Ctx(ctx).Debug().Str("event_type", eventType).Interface("payload", payload).Msg("workflow event")
	return nil
}
