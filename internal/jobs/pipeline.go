package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"log/slog"
	"time"

	"github.com/snsmsm/psyche-scan/internal/domain"
	"github.com/snsmsm/psyche-scan/internal/parser"
	"github.com/snsmsm/psyche-scan/internal/prompt"
	"github.com/snsmsm/psyche-scan/internal/provider"
	"github.com/snsmsm/psyche-scan/internal/psyche"
	"github.com/snsmsm/psyche-scan/internal/store"
)

const (
	questionMaxTokens = 4000
	analysisMaxTokens = 2000
	// A touch more creative latitude for the closing narrative.
	analysisTemperature = 0.6

	logDebugInfoLimit = 2000
	logQuestionLimit  = 500
	logWriteTimeout   = 10 * time.Second
)

// run executes the background pipeline for one job: fold the latest
// answer into the session vector, build the prompt, call the provider,
// parse, log, and write the terminal state. Any panic or error lands on
// the job as a Failed record; nothing escapes into other requests.
func (s *Store) run(id string, snapshot *domain.SessionState) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Pipeline panicked", "session_id", id, "panic", r)
			s.fail(id, domain.NewError(domain.CodeProcessingError, fmt.Sprintf("pipeline panic: %v", r)))
		}
	}()

	// Deliberately detached from any request context: the client learns
	// completion only by polling, and abandonment is handled by the
	// sweeper rather than cancellation.
	ctx := context.Background()

	if n := len(snapshot.History); n > 0 {
		if last := snapshot.History[n-1]; len(last.Parameters) > 0 {
			snapshot.Parameters = psyche.Aggregate(snapshot.Parameters, last.Parameters, snapshot.History)
		}
	}

	var (
		outcome *domain.Outcome
		err     error
	)
	if snapshot.Complete() {
		outcome, err = s.generateFinalAnalysis(ctx, snapshot)
	} else {
		outcome, err = s.generateQuestion(ctx, snapshot)
	}
	if err != nil {
		slog.Error("Pipeline failed", "session_id", id, "iteration", snapshot.Iteration, "error", err)
		s.fail(id, err)
		return
	}

	outcome.SessionParameters = snapshot.Parameters

	go s.logInteraction(id, snapshot, outcome)

	s.complete(id, outcome)
	slog.Info("Pipeline finished", "session_id", id, "iteration", snapshot.Iteration,
		"has_question", outcome.HasQuestion(), "has_analysis", outcome.FinalAnalysis != nil)
}

func (s *Store) generateQuestion(ctx context.Context, state *domain.SessionState) (*domain.Outcome, error) {
	messages := []provider.Message{
		provider.System(prompt.System()),
		provider.User(prompt.Question(state)),
	}
	completion, err := s.completer.Complete(ctx, messages, provider.Options{
		MaxCompletionTokens: questionMaxTokens,
	})
	if err != nil {
		return nil, err
	}
	return parser.Parse(completion, state.Iteration+1)
}

// generateFinalAnalysis serves completed sessions. Unlike the question
// path, a missing analysis block degrades to the escaped raw completion
// wrapped for display instead of a parsing failure.
func (s *Store) generateFinalAnalysis(ctx context.Context, state *domain.SessionState) (*domain.Outcome, error) {
	temp := analysisTemperature
	messages := []provider.Message{
		provider.System(prompt.System()),
		provider.User(prompt.FinalAnalysis(state)),
	}
	completion, err := s.completer.Complete(ctx, messages, provider.Options{
		MaxCompletionTokens: analysisMaxTokens,
		Temperature:         &temp,
	})
	if err != nil {
		return nil, err
	}

	analysis := parser.ParseFinalAnalysis(completion)
	if analysis == nil {
		slog.Warn("Final analysis block missing; wrapping raw completion for display")
		analysis = &domain.FinalAnalysis{
			HTML: `<div class="profile-box"><p>Analysis structure error. Raw output:</p><pre>` +
				html.EscapeString(completion) + `</pre></div>`,
		}
	}
	return &domain.Outcome{FinalAnalysis: analysis}, nil
}

// logInteraction records the run in the repository. Best-effort by
// contract: failures are logged and swallowed.
func (s *Store) logInteraction(id string, state *domain.SessionState, outcome *domain.Outcome) {
	if s.repo == nil {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Interaction logging panicked", "session_id", id, "panic", r)
		}
	}()

	rec := &store.InteractionRecord{
		SessionID:       id,
		Iteration:       outcome.Iteration,
		IsFinalAnalysis: outcome.FinalAnalysis != nil && !outcome.HasQuestion(),
		LLMDebugInfo:    truncate(outcome.DebugContent, logDebugInfoLimit),
	}
	if rec.Iteration == 0 {
		rec.Iteration = state.Iteration + 1
	}

	if rec.IsFinalAnalysis {
		rec.DerivedParameters = marshalForLog(state.Parameters)
	} else if n := len(state.History); n > 0 {
		last := state.History[n-1]
		rec.QuestionText = truncate(last.Question, logQuestionLimit)
		rec.UserChoice = last.Metaphor
		rec.AvoidedMetaphors = last.AvoidedMetaphors
		if !outcome.PsycheParameters.Empty() {
			rec.DerivedParameters = marshalForLog(outcome.PsycheParameters)
		} else {
			rec.DerivedParameters = marshalForLog(last.Parameters)
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), logWriteTimeout)
	defer cancel()
	if err := s.repo.LogInteraction(ctx, rec); err != nil {
		slog.Error("Interaction log insert failed", "session_id", id, "error", err)
		return
	}
	slog.Debug("Interaction logged", "session_id", id, "iteration", rec.Iteration)
}

func marshalForLog(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return raw
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	return s[:limit]
}
