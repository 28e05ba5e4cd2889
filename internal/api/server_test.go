package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/emporda/minairo/internal/chat"
	"github.com/emporda/minairo/internal/log"
	"github.com/emporda/minairo/internal/session"
)

// stubResponder returns a fixed reply or error for every turn.
type stubResponder struct {
	reply chat.Reply
	err   error

	gotConversationID string
	gotMessage        string
}

func (s *stubResponder) Respond(_ context.Context, conversationID, message string) (*chat.Reply, error) {
	s.gotConversationID = conversationID
	s.gotMessage = message
	if s.err != nil {
		return nil, s.err
	}
	reply := s.reply
	return &reply, nil
}

func newTestServer(t *testing.T, responder Responder) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Responder: responder,
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}
	return srv
}

func TestNewServerValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewServer(ServerConfig{Logger: log.NewNop()}); err == nil {
		t.Error("NewServer() without Responder: want error, got nil")
	}
	if _, err := NewServer(ServerConfig{Responder: &stubResponder{}}); err == nil {
		t.Error("NewServer() without Logger: want error, got nil")
	}
}

func TestChatHandlerSuccess(t *testing.T) {
	t.Parallel()

	responder := &stubResponder{reply: chat.Reply{
		ConversationID: "conv-1",
		Response:       "Bon dia! How can I help?",
		Language:       "en",
		Sentiment:      0.5,
	}}
	srv := newTestServer(t, responder)

	body := `{"conversation_id":"conv-1","message":"hello"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d; body: %s", rec.Code, http.StatusOK, rec.Body)
	}
	if got := rec.Header().Get("Content-Type"); got != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", got)
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("X-Request-ID header missing")
	}

	var resp chatResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decoding response: %v", err)
	}
	want := chatResponse{
		ConversationID: "conv-1",
		Response:       "Bon dia! How can I help?",
		Language:       "en",
		Sentiment:      0.5,
	}
	if diff := cmp.Diff(want, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}

	if responder.gotConversationID != "conv-1" || responder.gotMessage != "hello" {
		t.Errorf("responder got (%q, %q), want (conv-1, hello)",
			responder.gotConversationID, responder.gotMessage)
	}
}

func TestChatHandlerErrorMapping(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{
			name:       "invalid input",
			err:        chat.ErrInvalidInput,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "invalid conversation id",
			err:        session.ErrInvalidID,
			wantStatus: http.StatusBadRequest,
			wantCode:   "invalid_input",
		},
		{
			name:       "session not found",
			err:        session.ErrNotFound,
			wantStatus: http.StatusNotFound,
			wantCode:   "session_not_found",
		},
		{
			name:       "session busy",
			err:        session.ErrBusy,
			wantStatus: http.StatusTooManyRequests,
			wantCode:   "session_busy",
		},
		{
			name:       "sentinel message without wrapping stays internal",
			err:        errors.New("lock wait: " + session.ErrBusy.Error()),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
		{
			name:       "unknown error",
			err:        errors.New("boom"),
			wantStatus: http.StatusInternalServerError,
			wantCode:   "internal_error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, &stubResponder{err: tt.err})

			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
				strings.NewReader(`{"message":"hi"}`))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			var envelope errorEnvelope
			if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
				t.Fatalf("decoding error envelope: %v", err)
			}
			if envelope.Error.Code != tt.wantCode {
				t.Errorf("error code = %q, want %q", envelope.Error.Code, tt.wantCode)
			}
			if envelope.Error.Message == "" {
				t.Error("error message is empty")
			}
		})
	}
}

func TestChatHandlerBadBody(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{name: "empty body", body: "", wantStatus: http.StatusBadRequest},
		{name: "malformed JSON", body: "{not json", wantStatus: http.StatusBadRequest},
		{name: "oversized body", body: `{"message":"` + strings.Repeat("a", maxRequestBody) + `"}`, wantStatus: http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			srv := newTestServer(t, &stubResponder{})
			req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			srv.Handler().ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d; body: %s", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestChatHandlerMethodNotAllowed(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, &stubResponder{})
	req := httptest.NewRequest(http.MethodGet, "/api/v1/chat", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()

	t.Run("healthz", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &stubResponder{})
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})

	t.Run("readyz not ready", func(t *testing.T) {
		t.Parallel()

		srv, err := NewServer(ServerConfig{
			Responder: &stubResponder{},
			Ready:     func() bool { return false },
			Logger:    log.NewNop(),
		})
		if err != nil {
			t.Fatalf("NewServer() error = %v", err)
		}

		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusServiceUnavailable)
		}
	})

	t.Run("readyz default ready", func(t *testing.T) {
		t.Parallel()

		srv := newTestServer(t, &stubResponder{})
		req := httptest.NewRequest(http.MethodGet, "/readyz", nil)
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("status = %d, want %d", rec.Code, http.StatusOK)
		}
	})
}

// panicResponder forces the recovery middleware path.
type panicResponder struct{}

func (panicResponder) Respond(context.Context, string, string) (*chat.Reply, error) {
	panic("handler exploded")
}

func TestRecoveryMiddleware(t *testing.T) {
	t.Parallel()

	srv := newTestServer(t, panicResponder{})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/chat",
		strings.NewReader(`{"message":"hi"}`))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}
	var envelope errorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decoding error envelope: %v", err)
	}
	if envelope.Error.Code != "internal_error" {
		t.Errorf("error code = %q, want internal_error", envelope.Error.Code)
	}
}

func TestRateLimitMiddleware(t *testing.T) {
	t.Parallel()

	srv, err := NewServer(ServerConfig{
		Responder: &stubResponder{reply: chat.Reply{Response: "ok"}},
		RateLimit: 0.001, // effectively no refill during the test
		RateBurst: 2,
		Logger:    log.NewNop(),
	})
	if err != nil {
		t.Fatalf("NewServer() error = %v", err)
	}

	statuses := make([]int, 0, 3)
	for range 3 {
		req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
		req.RemoteAddr = "192.0.2.1:1234"
		rec := httptest.NewRecorder()
		srv.Handler().ServeHTTP(rec, req)
		statuses = append(statuses, rec.Code)
	}

	want := []int{http.StatusOK, http.StatusOK, http.StatusTooManyRequests}
	if diff := cmp.Diff(want, statuses); diff != "" {
		t.Errorf("statuses mismatch (-want +got):\n%s", diff)
	}

	// A different client has its own bucket.
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.RemoteAddr = "192.0.2.2:1234"
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Errorf("second client status = %d, want %d", rec.Code, http.StatusOK)
	}
}

func TestRateLimiterAllow(t *testing.T) {
	t.Parallel()

	rl := newRateLimiter(0.001, 1)
	if !rl.allow("10.0.0.1") {
		t.Error("first call should be allowed")
	}
	if rl.allow("10.0.0.1") {
		t.Error("second call within burst=1 should be denied")
	}
	if !rl.allow("10.0.0.2") {
		t.Error("different IP should have its own bucket")
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:8080", "192.0.2.1"},
		{"[2001:db8::1]:8080", "2001:db8::1"},
		{"unparseable", "unparseable"},
	}
	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
