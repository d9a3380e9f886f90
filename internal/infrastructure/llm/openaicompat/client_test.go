package openaicompat

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/albertai/studyset/internal/core/domain"
	"github.com/albertai/studyset/internal/infrastructure/resilience"
)

func testExecutor(attempts int, attemptTimeout time.Duration) *resilience.Executor {
	return resilience.NewExecutor(resilience.Config{
		MaxAttempts:    attempts,
		AttemptTimeout: attemptTimeout,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     2 * time.Millisecond,
		Multiplier:     2,
		BreakerEnabled: false,
	})
}

func newTestClient(t *testing.T, baseURL string, cfg Config, executor *resilience.Executor) *Client {
	t.Helper()
	cfg.BaseURL = baseURL
	if cfg.Model == "" {
		cfg.Model = "gpt-4o"
	}
	client, err := New(cfg, executor)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return client
}

func TestCompleteSendsChatRequest(t *testing.T) {
	var captured chatRequest
	var auth, path string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		auth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL+"/", Config{APIKey: "secret"}, testExecutor(1, 0))
	content, err := client.Complete(context.Background(), "system text", "user text")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if content != "[]" {
		t.Fatalf("unexpected content %q", content)
	}
	if path != "/chat/completions" {
		t.Fatalf("unexpected path %s", path)
	}
	if auth != "Bearer secret" {
		t.Fatalf("unexpected authorization header %q", auth)
	}
	if captured.Model != "gpt-4o" || captured.Temperature != DefaultTemperature || captured.MaxTokens != DefaultMaxTokens {
		t.Fatalf("unexpected request body %+v", captured)
	}
	if len(captured.Messages) != 2 || captured.Messages[0].Role != "system" || captured.Messages[0].Content != "system text" ||
		captured.Messages[1].Role != "user" || captured.Messages[1].Content != "user text" {
		t.Fatalf("unexpected messages %+v", captured.Messages)
	}
}

func TestCompleteSendsZeroTemperature(t *testing.T) {
	var body map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"[]"}}]}`))
	}))
	defer server.Close()

	zero := 0.0
	client := newTestClient(t, server.URL, Config{Temperature: &zero}, testExecutor(1, 0))
	if _, err := client.Complete(context.Background(), "system", "user"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if got, ok := body["temperature"].(float64); !ok || got != 0 {
		t.Fatalf("expected temperature 0 on the wire, got %v", body["temperature"])
	}
}

func TestCompleteUsesCustomKeyHeader(t *testing.T) {
	var apiKey, auth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		apiKey = r.Header.Get("api-key")
		auth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"ok"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Config{APIKey: "k1", APIKeyHeader: "api-key"}, testExecutor(1, 0))
	if _, err := client.Complete(context.Background(), "s", "u"); err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if apiKey != "k1" || auth != "" {
		t.Fatalf("expected api-key header only, got api-key=%q authorization=%q", apiKey, auth)
	}
}

func TestCompleteRetriesServerErrorsThenFails(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "model overloaded", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Config{}, testExecutor(3, 0))
	_, err := client.Complete(context.Background(), "s", "u")
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if !strings.Contains(err.Error(), "model overloaded") || !strings.Contains(err.Error(), "503") {
		t.Fatalf("expected status and body in error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("expected 3 attempts, got %d", calls.Load())
	}
}

func TestCompleteRecoversAfterTransientError(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"choices":[{"message":{"content":"[1]"}}]}`))
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Config{}, testExecutor(3, 0))
	content, err := client.Complete(context.Background(), "s", "u")
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if content != "[1]" || calls.Load() != 2 {
		t.Fatalf("expected success on second attempt, got %q after %d calls", content, calls.Load())
	}
}

func TestCompleteDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, `{"error":"bad key"}`, http.StatusUnauthorized)
	}))
	defer server.Close()

	client := newTestClient(t, server.URL, Config{}, testExecutor(3, 0))
	_, err := client.Complete(context.Background(), "s", "u")
	if !domain.IsKind(err, domain.ErrUpstream) {
		t.Fatalf("expected ErrUpstream, got %v", err)
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt, got %d", calls.Load())
	}
}

func TestCompleteEmptyResponse(t *testing.T) {
	bodies := []string{
		`{"choices":[]}`,
		`{"choices":[{"message":{"content":"   "}}]}`,
	}
	for _, body := range bodies {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(body))
		}))
		client := newTestClient(t, server.URL, Config{}, testExecutor(3, 0))
		_, err := client.Complete(context.Background(), "s", "u")
		server.Close()
		if !domain.IsKind(err, domain.ErrEmptyResponse) {
			t.Fatalf("body %s: expected ErrEmptyResponse, got %v", body, err)
		}
	}
}

func TestCompleteAttemptTimeoutIsTransportFailure(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	client := newTestClient(t, server.URL, Config{}, testExecutor(2, 20*time.Millisecond))
	_, err := client.Complete(context.Background(), "s", "u")
	if !domain.IsKind(err, domain.ErrTransportFailure) {
		t.Fatalf("expected ErrTransportFailure, got %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected the timed out attempt to be retried, got %d calls", calls.Load())
	}
}

func TestCompleteUnreachableEndpoint(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	addr := server.URL
	server.Close()

	client := newTestClient(t, addr, Config{}, testExecutor(2, 0))
	_, err := client.Complete(context.Background(), "s", "u")
	if !domain.IsKind(err, domain.ErrTransportFailure) {
		t.Fatalf("expected ErrTransportFailure, got %v", err)
	}
	if domain.KindOf(err) != "transport_failure" {
		t.Fatalf("unexpected kind %s", domain.KindOf(err))
	}
}

func TestNewRequiresEndpointAndModel(t *testing.T) {
	if _, err := New(Config{Model: "m"}, nil); err == nil {
		t.Fatalf("expected error for missing base url")
	}
	if _, err := New(Config{BaseURL: "http://localhost:1"}, nil); err == nil {
		t.Fatalf("expected error for missing model")
	}
}
