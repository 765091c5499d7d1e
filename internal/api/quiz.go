package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/snsmsm/psyche-scan/internal/domain"
	"github.com/snsmsm/psyche-scan/internal/jobs"
)

// QuizHandler exposes the submit/poll contract over HTTP.
type QuizHandler struct {
	store *jobs.Store
}

// NewQuizHandler creates a handler around the job store.
func NewQuizHandler(store *jobs.Store) *QuizHandler {
	return &QuizHandler{store: store}
}

// RegisterRoutes mounts the quiz endpoints under /api.
func (h *QuizHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Post("/get_question", h.GetQuestion)
		r.Post("/get_result", h.GetResult)
		r.Get("/status", h.Status)
	})
}

type getQuestionRequest struct {
	SessionState *domain.SessionState `json:"session_state"`
}

// GetQuestion accepts the session state, starts a background job, and
// returns the job handle immediately with 202.
func (h *QuizHandler) GetQuestion(w http.ResponseWriter, r *http.Request) {
	var req getQuestionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		Error(w, http.StatusBadRequest, domain.CodeInvalidSessionState, "request body must be valid JSON")
		return
	}

	sessionID, err := h.store.Submit(req.SessionState)
	if err != nil {
		slog.Warn("Rejected submission", "error", err)
		Error(w, domain.StatusOf(err), domain.CodeOf(err), errMessage(err))
		return
	}

	JSON(w, http.StatusAccepted, map[string]string{
		"status":    "processing",
		"sessionId": sessionID,
	})
}

// GetResult polls a job. While pending it reports elapsed time; a
// terminal read consumes the job, so a repeat poll gets 404.
func (h *QuizHandler) GetResult(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		Error(w, http.StatusBadRequest, domain.CodeMissingSessionID, "sessionId query parameter is required")
		return
	}

	res, err := h.store.Poll(sessionID)
	if err != nil {
		Error(w, domain.StatusOf(err), domain.CodeOf(err), errMessage(err))
		return
	}

	if res.Processing {
		JSON(w, http.StatusOK, map[string]any{
			"status":    "processing",
			"elapsedMs": res.Elapsed.Milliseconds(),
		})
		return
	}

	if res.Failure != nil {
		slog.Error("Returning job failure", "session_id", sessionID,
			"code", res.Failure.Code, "message", res.Failure.Message)
		Error(w, res.Failure.StatusCode, res.Failure.Code, res.Failure.Message)
		return
	}

	JSON(w, http.StatusOK, res.Outcome)
}

// Status reports whether a job is still processing without consuming it.
func (h *QuizHandler) Status(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("sessionId")
	if sessionID == "" {
		Error(w, http.StatusBadRequest, domain.CodeMissingSessionID, "sessionId query parameter is required")
		return
	}

	processing, elapsed := h.store.Status(sessionID)
	JSON(w, http.StatusOK, map[string]any{
		"processing": processing,
		"elapsedMs":  elapsed.Milliseconds(),
	})
}

func errMessage(err error) string {
	var de *domain.Error
	if errors.As(err, &de) {
		return de.Message
	}
	return err.Error()
}
