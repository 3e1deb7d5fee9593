package qc

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/telemetry"
)

func init() {
	backoffBase = time.Millisecond
}

func newTestClient(url string, opts ...Option) *Client {
	base := []Option{
		WithBaseURL(url),
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithMetrics(telemetry.NewMetrics()),
	}
	c := NewClient("42", "secret", append(base, opts...)...)
	c.now = func() time.Time { return time.Unix(1700000000, 0) }
	return c
}

func TestPostSignsRequest(t *testing.T) {
	var gotUser, gotPass, gotTimestamp string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/projects/read" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotUser, gotPass, _ = r.BasicAuth()
		gotTimestamp = r.Header.Get("Timestamp")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"success":true,"projects":[]}`))
	}))
	defer srv.Close()

	out, err := newTestClient(srv.URL).Post(context.Background(), "/projects/read", map[string]any{"projectId": 7})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if m, ok := out.(map[string]any); !ok || m["success"] != true {
		t.Fatalf("unexpected response: %#v", out)
	}

	sum := sha256.Sum256([]byte("secret:1700000000"))
	if gotUser != "42" || gotPass != hex.EncodeToString(sum[:]) {
		t.Fatalf("basic auth = %q/%q", gotUser, gotPass)
	}
	if gotTimestamp != "1700000000" {
		t.Fatalf("Timestamp = %q", gotTimestamp)
	}
	if gotBody["projectId"] != float64(7) {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestPostHTTPErrorDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{name: "message", body: `{"message":"bad token"}`, want: "HTTP 401: bad token"},
		{name: "errors list", body: `{"errors":["a","b"]}`, want: "HTTP 401: a; b"},
		{name: "empty message falls through", body: `{"message":"","details":"nope"}`, want: "HTTP 401: nope"},
		{name: "plain text", body: `denied`, want: "HTTP 401: denied"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := newTestClient(srv.URL).Post(context.Background(), "/account/read", nil)
			var apiErr *APIError
			if !errors.As(err, &apiErr) {
				t.Fatalf("want *APIError, got %T %v", err, err)
			}
			if err.Error() != tt.want {
				t.Fatalf("error = %q, want %q", err.Error(), tt.want)
			}
			if got := core.MapError(err).Code; got != core.CodeAPIHTTP {
				t.Fatalf("mapped code = %q", got)
			}
		})
	}
}

func TestPostUnsuccessfulBodyIsAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"success":false,"errors":["Project not found"]}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL).Post(context.Background(), "/projects/read", nil)
	if err == nil || err.Error() != "HTTP 200: Project not found" {
		t.Fatalf("err = %v", err)
	}
}

func TestPostRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	ctx := WithRetry(context.Background(), RetryAll)
	if _, err := newTestClient(srv.URL, WithMaxAttempts(3)).Post(ctx, "/backtests/read", nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if calls != 3 {
		t.Fatalf("calls = %d, want 3", calls)
	}
}

func TestPostSendsMutationOnceOnServerError(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, WithMaxAttempts(3)).Post(context.Background(), "/live/commands/liquidate", map[string]any{"projectId": 7})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusBadGateway {
		t.Fatalf("want 502 APIError, got %T %v", err, err)
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPostRetriesThrottledMutation(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	ctx := WithRetry(context.Background(), RetryThrottled)
	if _, err := newTestClient(srv.URL, WithMaxAttempts(3)).Post(ctx, "/live/create", nil); err != nil {
		t.Fatalf("Post: %v", err)
	}
	if calls != 2 {
		t.Fatalf("calls = %d, want 2", calls)
	}
}

func TestRetryFromDefaultsToThrottled(t *testing.T) {
	if got := RetryFrom(context.Background()); got != RetryThrottled {
		t.Fatalf("RetryFrom = %v, want throttled", got)
	}
	if got := RetryFrom(WithRetry(context.Background(), RetryAll)); got != RetryAll {
		t.Fatalf("RetryFrom = %v, want all", got)
	}
}

func TestPostDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadRequest)
	}))
	defer srv.Close()

	if _, err := newTestClient(srv.URL).Post(context.Background(), "/compile/create", nil); err == nil {
		t.Fatal("expected error")
	}
	if calls != 1 {
		t.Fatalf("calls = %d, want 1", calls)
	}
}

func TestPostTransportFailureIsRequestError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	_, err := newTestClient(url, WithMaxAttempts(1)).Post(context.Background(), "/account/read", nil)
	var reqErr *RequestError
	if !errors.As(err, &reqErr) {
		t.Fatalf("want *RequestError, got %T %v", err, err)
	}
	if got := core.MapError(err).Code; got != core.CodeAPIRequest {
		t.Fatalf("mapped code = %q", got)
	}
}

func TestRetryAfterDuration(t *testing.T) {
	resp := &http.Response{Header: http.Header{"Retry-After": []string{"3"}}}
	if got := retryAfterDuration(resp); got != 3*time.Second {
		t.Fatalf("retryAfterDuration = %v", got)
	}
	resp.Header.Set("Retry-After", "-1")
	if got := retryAfterDuration(resp); got != 0 {
		t.Fatalf("retryAfterDuration = %v", got)
	}
}

func TestReleaseFeedLatest(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{body: `{"results":[{"name":"latest"},{"name":"1.4.2"}]}`, want: "1.4.2"},
		{body: `{"results":[{"name":"latest"}]}`, want: "latest"},
		{body: `{"results":[]}`, want: ""},
	}
	for _, tt := range tests {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(tt.body))
		}))
		feed := &ReleaseFeed{URL: srv.URL, HTTPClient: srv.Client()}
		got, err := feed.Latest(context.Background())
		srv.Close()
		if err != nil {
			t.Fatalf("Latest: %v", err)
		}
		if got != tt.want {
			t.Fatalf("Latest = %q, want %q", got, tt.want)
		}
	}
}

func TestUploadSendsMultipartForm(t *testing.T) {
	var gotOrg, gotKey, gotFile string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("ParseMultipartForm: %v", err)
		}
		gotOrg = r.FormValue("organizationId")
		gotKey = r.FormValue("key")
		f, _, err := r.FormFile("objectData")
		if err != nil {
			t.Errorf("FormFile: %v", err)
		} else {
			raw, _ := io.ReadAll(f)
			gotFile = string(raw)
		}
		if r.Header.Get("Timestamp") == "" {
			t.Errorf("missing Timestamp header")
		}
		_, _ = w.Write([]byte(`{"success":true}`))
	}))
	defer srv.Close()

	fields := map[string]string{"organizationId": "org", "key": "a/b.txt"}
	if _, err := newTestClient(srv.URL).Upload(context.Background(), "/object/set", fields, "objectData", []byte("hello")); err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if gotOrg != "org" || gotKey != "a/b.txt" || gotFile != "hello" {
		t.Fatalf("form = %q %q %q", gotOrg, gotKey, gotFile)
	}
}
