package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/snsmsm/psyche-scan/internal/domain"
	"github.com/snsmsm/psyche-scan/internal/jobs"
	"github.com/snsmsm/psyche-scan/internal/markup"
	"github.com/snsmsm/psyche-scan/internal/provider"
)

type stubCompleter struct {
	completion string
	err        error
	block      chan struct{}
}

func (s *stubCompleter) Complete(ctx context.Context, messages []provider.Message, opts provider.Options) (string, error) {
	if s.block != nil {
		<-s.block
	}
	return s.completion, s.err
}

func newTestServer(c provider.Completer) *httptest.Server {
	store := jobs.NewStore(c, nil, jobs.Config{ProcessingTimeout: time.Minute})
	r := chi.NewRouter()
	NewQuizHandler(store).RegisterRoutes(r)
	return httptest.NewServer(r)
}

func submitSession(t *testing.T, srv *httptest.Server, body string) string {
	t.Helper()
	resp, err := http.Post(srv.URL+"/api/get_question", "application/json", strings.NewReader(body))
	if err != nil {
		t.Fatalf("POST /api/get_question: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	var out struct {
		Status    string `json:"status"`
		SessionID string `json:"sessionId"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode submit response: %v", err)
	}
	if out.Status != "processing" || out.SessionID == "" {
		t.Fatalf("submit response = %+v", out)
	}
	return out.SessionID
}

func pollResult(t *testing.T, srv *httptest.Server, id string) (*http.Response, []byte) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		resp, err := http.Post(srv.URL+"/api/get_result?sessionId="+id, "application/json", nil)
		if err != nil {
			t.Fatalf("POST /api/get_result: %v", err)
		}
		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			t.Fatalf("read poll response: %v", err)
		}
		var probe map[string]any
		if err := json.Unmarshal(body, &probe); err != nil {
			t.Fatalf("decode poll response: %v (body %s)", err, body)
		}
		if probe["status"] == "processing" && resp.StatusCode == http.StatusOK {
			time.Sleep(5 * time.Millisecond)
			continue
		}
		return resp, body
	}
	t.Fatalf("job %q never resolved", id)
	return nil, nil
}

const validSubmitBody = `{"session_state": {"iteration": 2, "history": [], "parameters": {}}}`

func TestGetQuestionFlow(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubCompleter{completion: markup.CanonicalExample})
	defer srv.Close()

	id := submitSession(t, srv, validSubmitBody)
	resp, body := pollResult(t, srv, id)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("result status = %d, body = %s", resp.StatusCode, body)
	}

	var out domain.Outcome
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode outcome: %v", err)
	}
	if out.Iteration != 3 || !out.HasQuestion() {
		t.Errorf("outcome = %+v", out)
	}
	if len(out.Options) != markup.OptionCount || len(out.Images) != markup.OptionCount {
		t.Errorf("options/images = %d/%d", len(out.Options), len(out.Images))
	}

	// A second poll must 404: the result was consumed.
	resp2, err := http.Post(srv.URL+"/api/get_result?sessionId="+id, "application/json", nil)
	if err != nil {
		t.Fatalf("repeat poll: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusNotFound {
		t.Errorf("repeat poll status = %d, want 404", resp2.StatusCode)
	}
}

func TestGetQuestionRejectsBadBodies(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubCompleter{})
	defer srv.Close()

	tests := []struct {
		name     string
		body     string
		wantCode string
	}{
		{"malformed json", `{not json`, domain.CodeInvalidSessionState},
		{"missing state", `{}`, domain.CodeSessionStateRequired},
		{"negative iteration", `{"session_state": {"iteration": -2, "history": []}}`, domain.CodeInvalidIteration},
		{"missing history", `{"session_state": {"iteration": 1}}`, domain.CodeInvalidSessionState},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(srv.URL+"/api/get_question", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatalf("POST: %v", err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
			var out struct {
				Error string `json:"error"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if out.Error != tt.wantCode {
				t.Errorf("error code = %q, want %q", out.Error, tt.wantCode)
			}
		})
	}
}

func TestGetResultRequiresSessionID(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubCompleter{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/get_result", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
	var out struct {
		Error string `json:"error"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != domain.CodeMissingSessionID {
		t.Errorf("error code = %q, want %s", out.Error, domain.CodeMissingSessionID)
	}
}

func TestGetResultUnknownSession(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubCompleter{})
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/get_result?sessionId=deadbeef", "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestGetResultWhileProcessing(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	defer close(block)
	srv := newTestServer(&stubCompleter{completion: markup.CanonicalExample, block: block})
	defer srv.Close()

	id := submitSession(t, srv, validSubmitBody)

	resp, err := http.Post(srv.URL+"/api/get_result?sessionId="+id, "application/json", nil)
	if err != nil {
		t.Fatalf("POST: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Status    string `json:"status"`
		ElapsedMs *int64 `json:"elapsedMs"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Status != "processing" || out.ElapsedMs == nil {
		t.Errorf("processing response = %+v", out)
	}
}

func TestGetResultSurfacesPipelineFailure(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubCompleter{
		err: domain.NewError(domain.CodeLLMAPIError, "upstream rejected the request"),
	})
	defer srv.Close()

	id := submitSession(t, srv, validSubmitBody)
	resp, body := pollResult(t, srv, id)
	if resp.StatusCode != http.StatusBadGateway {
		t.Fatalf("status = %d, want 502 (body %s)", resp.StatusCode, body)
	}
	var out struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if out.Error != domain.CodeLLMAPIError {
		t.Errorf("error code = %q, want %s", out.Error, domain.CodeLLMAPIError)
	}
}

func TestStatusEndpoint(t *testing.T) {
	t.Parallel()
	block := make(chan struct{})
	defer close(block)
	srv := newTestServer(&stubCompleter{completion: markup.CanonicalExample, block: block})
	defer srv.Close()

	id := submitSession(t, srv, validSubmitBody)

	resp, err := http.Get(srv.URL + "/api/status?sessionId=" + id)
	if err != nil {
		t.Fatalf("GET /api/status: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var out struct {
		Processing bool `json:"processing"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !out.Processing {
		t.Error("expected processing=true while the pipeline is blocked")
	}

	// Status must not consume the job.
	resp2, err := http.Get(srv.URL + "/api/status?sessionId=" + id)
	if err != nil {
		t.Fatalf("second GET /api/status: %v", err)
	}
	defer resp2.Body.Close()
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("second status = %d, want 200", resp2.StatusCode)
	}
}

func TestStatusRequiresSessionID(t *testing.T) {
	t.Parallel()
	srv := newTestServer(&stubCompleter{})
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/api/status")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}
