// Package store provides the interaction-log repository interface and its
// SQLite implementation.
package store

import (
	"context"
	"encoding/json"
	"time"
)

// InteractionRecord captures one completed pipeline run for offline
// analysis. Logging is best-effort: a failed insert never affects the
// job result.
type InteractionRecord struct {
	SessionID         string
	Iteration         int
	IsFinalAnalysis   bool
	QuestionText      string
	UserChoice        string
	AvoidedMetaphors  []string
	DerivedParameters json.RawMessage
	LLMDebugInfo      string
	CreatedAt         time.Time
}

// Repository persists interaction records.
type Repository interface {
	// LogInteraction inserts one record.
	LogInteraction(ctx context.Context, rec *InteractionRecord) error

	// Ping verifies connectivity.
	Ping(ctx context.Context) error

	// Close closes the underlying database.
	Close() error
}
