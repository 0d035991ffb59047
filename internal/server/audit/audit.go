// Package audit records session events (logins, rotations, revocations)
// asynchronously so the request path never waits on the audit backend.
package audit

import (
	"context"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
)

const (
	EventRegister = "register"
	EventLogin    = "login"
	EventRefresh  = "refresh"
	EventLogout   = "logout"
	EventRevoke   = "deferred_revoke"
)

type Event struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id,omitempty"`
	RecordID  string    `json:"record_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

type Sink interface {
	Emit(ctx context.Context, event Event) error
}

// Emitter is what producers of events depend on.
type Emitter interface {
	Emit(ctx context.Context, event Event)
}

type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) {}

// LogSink writes events through the structured logger.
type LogSink struct {
	log logging.Logger
}

func NewLogSink(log logging.Logger) *LogSink {
	return &LogSink{log: log.With("component", "audit")}
}

func (s *LogSink) Emit(ctx context.Context, e Event) error {
	args := []any{
		"event_type", e.EventType,
		"success", e.Success,
		"timestamp", e.Timestamp,
	}
	if e.UserID != "" {
		args = append(args, "user_id", e.UserID)
	}
	if e.RecordID != "" {
		args = append(args, "record_id", e.RecordID)
	}
	if e.Error != "" {
		args = append(args, "error", e.Error)
	}
	s.log.Info(ctx, "audit event", args...)
	return nil
}

// MultiSink emits to every sink and returns the first error.
type MultiSink []Sink

func (m MultiSink) Emit(ctx context.Context, e Event) error {
	var first error
	for _, s := range m {
		if err := s.Emit(ctx, e); err != nil && first == nil {
			first = err
		}
	}
	return first
}
