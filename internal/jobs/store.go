// Package jobs owns the async job lifecycle: a submission creates a job,
// a detached pipeline resolves it, clients poll until it is terminal, and
// a background sweeper reclaims what nobody collects.
package jobs

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/snsmsm/psyche-scan/internal/domain"
	"github.com/snsmsm/psyche-scan/internal/provider"
	"github.com/snsmsm/psyche-scan/internal/store"
)

// State is a job's lifecycle phase. Processing is initial; Done and
// Failed are terminal and written exactly once.
type State int

const (
	Processing State = iota
	Done
	Failed
)

type job struct {
	state     State
	createdAt time.Time
	snapshot  *domain.SessionState
	outcome   *domain.Outcome
	failure   *domain.Error
}

// PollResult is the answer to one poll: still processing (with elapsed
// time), a terminal outcome, or a terminal failure.
type PollResult struct {
	Processing bool
	Elapsed    time.Duration
	Outcome    *domain.Outcome
	Failure    *domain.Error
}

// Config tunes the store and its pipeline.
type Config struct {
	// ProcessingTimeout is how long a job may stay in Processing before
	// the sweeper force-fails it. Jobs older than twice this value are
	// deleted outright.
	ProcessingTimeout time.Duration
}

// Store is the in-memory id→job map plus the pipeline that resolves jobs.
// All map access is serialized through one mutex so a poll never observes
// a half-written record.
type Store struct {
	mu   sync.Mutex
	jobs map[string]*job

	completer provider.Completer
	repo      store.Repository // nil disables interaction logging
	cfg       Config
}

// NewStore creates a job store. repo may be nil.
func NewStore(completer provider.Completer, repo store.Repository, cfg Config) *Store {
	return &Store{
		jobs:      make(map[string]*job),
		completer: completer,
		repo:      repo,
		cfg:       cfg,
	}
}

// Submit validates the session state, records a Processing job under a
// fresh unguessable id, and starts the pipeline in its own goroutine. It
// never waits on the completion provider. The pipeline is intentionally
// not cancellable by the client: an abandoned job runs to completion or
// sweep-timeout either way.
func (s *Store) Submit(state *domain.SessionState) (string, error) {
	if state == nil {
		return "", domain.NewError(domain.CodeSessionStateRequired, "session_state is required")
	}
	if state.Iteration < 0 {
		return "", domain.NewError(domain.CodeInvalidIteration, "iteration must be a non-negative integer")
	}
	if state.History == nil {
		return "", domain.NewError(domain.CodeInvalidSessionState, "history must be an array")
	}

	id, err := newSessionID()
	if err != nil {
		return "", domain.WrapError(domain.CodeProcessingError, "generate session id", err)
	}

	snapshot := state.Clone()
	s.mu.Lock()
	s.jobs[id] = &job{
		state:     Processing,
		createdAt: time.Now(),
		snapshot:  snapshot,
	}
	s.mu.Unlock()

	slog.Info("Job submitted", "session_id", id, "iteration", snapshot.Iteration)
	go s.run(id, snapshot)
	return id, nil
}

// Poll reports a job's state. Reading a terminal job deletes it: results
// are delivered at most once, and a repeat poll returns NotFound.
func (s *Store) Poll(id string) (*PollResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return nil, domain.NewError(domain.CodeSessionNotFound, "unknown or already consumed session id")
	}

	if j.state == Processing {
		return &PollResult{Processing: true, Elapsed: time.Since(j.createdAt)}, nil
	}

	delete(s.jobs, id)
	slog.Info("Job result collected", "session_id", id, "failed", j.state == Failed)
	if j.state == Failed {
		return &PollResult{Failure: j.failure}, nil
	}
	return &PollResult{Outcome: j.outcome}, nil
}

// Status reports whether a job is still processing without consuming it.
// Unknown ids report not-processing, matching the polling client's
// "nothing to wait for" interpretation.
func (s *Store) Status(id string) (processing bool, elapsed time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		return false, 0
	}
	return j.state == Processing, time.Since(j.createdAt)
}

// complete transitions a job to Done. A no-op if the job was swept or
// already forced terminal.
func (s *Store) complete(id string, outcome *domain.Outcome) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[id]
	if !ok {
		slog.Warn("Job finished after its record was reclaimed; result dropped", "session_id", id)
		return
	}
	if j.state != Processing {
		slog.Warn("Job finished after being force-failed; result dropped", "session_id", id)
		return
	}
	j.state = Done
	j.outcome = outcome
}

// fail transitions a job to Failed. Same no-op rules as complete.
func (s *Store) fail(id string, err error) {
	var coded *domain.Error
	if !errors.As(err, &coded) {
		coded = domain.WrapError(domain.CodeProcessingError, "background processing failed", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	j, exists := s.jobs[id]
	if !exists || j.state != Processing {
		return
	}
	j.state = Failed
	j.failure = coded
}

// Len returns the number of live jobs.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.jobs)
}

func newSessionID() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
