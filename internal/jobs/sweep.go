package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/snsmsm/psyche-scan/internal/domain"
)

// StartSweeper runs a background goroutine that periodically force-fails
// jobs stuck in Processing beyond the configured timeout and deletes any
// job older than twice the timeout, bounding memory under client
// abandonment or provider hangs.
func (s *Store) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Job sweeper started", "interval", interval, "processing_timeout", s.cfg.ProcessingTimeout)

		for {
			select {
			case <-ticker.C:
				s.sweep(time.Now())
			case <-ctx.Done():
				slog.Info("Job sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func (s *Store) sweep(now time.Time) {
	timeout := s.cfg.ProcessingTimeout

	s.mu.Lock()
	defer s.mu.Unlock()

	for id, j := range s.jobs {
		age := now.Sub(j.createdAt)
		switch {
		case age > 2*timeout:
			delete(s.jobs, id)
			slog.Info("Sweeper reclaimed old job", "session_id", id, "age", age, "state", j.state)
		case j.state == Processing && age > timeout:
			j.state = Failed
			j.failure = domain.NewError(domain.CodeTimeout,
				"processing timed out after "+timeout.String())
			slog.Warn("Sweeper timed out a processing job", "session_id", id, "age", age)
		}
	}
}
