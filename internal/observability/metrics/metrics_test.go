package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/albertai/studyset/internal/core/domain"
)

func scrape(t *testing.T, m *HTTPServerMetrics) string {
	t.Helper()
	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics handler status %d", rec.Code)
	}
	return rec.Body.String()
}

func TestMiddlewareRecordsNormalizedPath(t *testing.T) {
	m := NewHTTPServerMetrics("studyset-api")
	handler := m.Middleware("studyset-api", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/v1/classes/42/study-sets", nil))

	body := scrape(t, m)
	want := `studyset_http_requests_total{method="POST",path="/v1/classes/{classID}/study-sets",service="studyset-api",status="201"} 1`
	if !strings.Contains(body, want) {
		t.Fatalf("expected %s in:\n%s", want, body)
	}
}

func TestNormalizePath(t *testing.T) {
	cases := map[string]string{
		"/healthz":                       "/healthz",
		"/v1/classes/7":                  "/v1/classes/{classID}",
		"/v1/classes/7/items":            "/v1/classes/{classID}/items",
		"/v1/classes/7/study-sets/topic": "/v1/classes/{classID}/study-sets/topic",
	}
	for in, want := range cases {
		if got := normalizePath(in); got != want {
			t.Fatalf("normalizePath(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestPipelineMetricsShareRegistry(t *testing.T) {
	m := NewHTTPServerMetrics("studyset-api")
	pipeline := NewPipelineMetrics("studyset-api", m.Registerer())

	pipeline.ObserveRun("partial", 3*time.Second)
	pipeline.ObserveOutcome(domain.ContentFlashcard, domain.PartiallyRejected(28, []domain.Rejection{{Index: 1}, {Index: 2}}))
	pipeline.ObserveOutcome(domain.ContentTrueFalse, domain.Failed(domain.WrapError(domain.ErrUpstream, "op", errors.New("503")), nil))
	pipeline.ObserveRetry("llm.chat_completion:http://llm/chat/completions", 1, nil)

	body := scrape(t, m)
	for _, want := range []string{
		`studyset_pipeline_runs_total{service="studyset-api",summary="partial"} 1`,
		`studyset_pipeline_items_total{content_type="flashcard",disposition="accepted",service="studyset-api"} 28`,
		`studyset_pipeline_items_total{content_type="flashcard",disposition="rejected",service="studyset-api"} 2`,
		`studyset_pipeline_outcomes_total{content_type="true_false",kind="upstream_error",service="studyset-api",status="failed"} 1`,
		`studyset_pipeline_retries_total{operation="llm.chat_completion",service="studyset-api"} 1`,
	} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected %s in:\n%s", want, body)
		}
	}
}
