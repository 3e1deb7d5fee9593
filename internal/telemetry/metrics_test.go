package telemetry

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveToolCall(t *testing.T) {
	m := NewMetrics()
	m.ObserveToolCall("read_project", "success", 200*time.Millisecond)
	m.ObserveToolCall("read_project", "success", 3*time.Second)
	m.ObserveToolCall("read_project", "failure", time.Millisecond)

	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("read_project", "success")); got != 2 {
		t.Fatalf("success calls = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.toolCalls.WithLabelValues("read_project", "failure")); got != 1 {
		t.Fatalf("failure calls = %v, want 1", got)
	}
	if n := testutil.CollectAndCount(m.toolDuration); n != 1 {
		t.Fatalf("duration series = %d, want 1", n)
	}
}

func TestAPIErrorsAndRetries(t *testing.T) {
	m := NewMetrics()
	m.IncAPIError("/projects/read", 500)
	m.IncAPIError("/projects/read", 500)
	m.IncAPIRetry("/projects/read")

	if got := testutil.ToFloat64(m.apiErrors.WithLabelValues("/projects/read", "500")); got != 2 {
		t.Fatalf("api errors = %v, want 2", got)
	}
	if got := testutil.ToFloat64(m.apiRetries.WithLabelValues("/projects/read")); got != 1 {
		t.Fatalf("api retries = %v, want 1", got)
	}
}

func TestHandlerRendersPrometheusText(t *testing.T) {
	m := NewMetrics()
	m.IncToolCall("read_account", "success")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)

	want := `quantmcp_tool_calls_total{outcome="success",tool="read_account"} 1`
	if !strings.Contains(string(body), want) {
		t.Fatalf("metrics output missing %q:\n%s", want, body)
	}
}
