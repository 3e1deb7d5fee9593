package qc

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"mime/multipart"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/telemetry"
)

const DefaultBaseURL = "https://www.quantconnect.com/api/v2"

// Client posts JSON to the platform REST API with timestamped token auth.
type Client struct {
	baseURL     string
	userID      string
	apiToken    string
	httpClient  *http.Client
	maxAttempts int
	logger      *slog.Logger
	metrics     *telemetry.Metrics
	now         func() time.Time
}

type Option func(*Client)

func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

func WithHTTPClient(hc *http.Client) Option { return func(c *Client) { c.httpClient = hc } }

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.httpClient.Timeout = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxAttempts = n
		}
	}
}

func WithLogger(l *slog.Logger) Option { return func(c *Client) { c.logger = l } }

func WithMetrics(m *telemetry.Metrics) Option { return func(c *Client) { c.metrics = m } }

func NewClient(userID, apiToken string, opts ...Option) *Client {
	c := &Client{
		baseURL:     DefaultBaseURL,
		userID:      userID,
		apiToken:    apiToken,
		httpClient:  &http.Client{Timeout: 30 * time.Second},
		maxAttempts: 3,
		logger:      slog.Default(),
		metrics:     telemetry.Default(),
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-success answer from the platform, either an HTTP error
// status or a 2xx body with "success": false.
type APIError struct {
	Endpoint   string
	StatusCode int
	Detail     string
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Detail)
}

func (e *APIError) ErrorCode() string { return core.CodeAPIHTTP }

// RequestError means no usable HTTP response was received.
type RequestError struct {
	Endpoint string
	Err      error
}

func (e *RequestError) Error() string {
	return fmt.Sprintf("request %s: %v", e.Endpoint, e.Err)
}

func (e *RequestError) Unwrap() error { return e.Err }

func (e *RequestError) ErrorCode() string { return core.CodeAPIRequest }

// Retry selects which failures a request may be sent again after.
type Retry int

const (
	// RetryThrottled re-sends only after 429, which the platform answers
	// before doing any work.
	RetryThrottled Retry = iota
	// RetryAll also re-sends after 5xx answers and transport failures. Use
	// it only for reads and idempotent writes.
	RetryAll
)

func (r Retry) String() string {
	if r == RetryAll {
		return "all"
	}
	return "throttled"
}

type retryKey struct{}

// WithRetry sets the retry policy for requests made with ctx.
func WithRetry(ctx context.Context, r Retry) context.Context {
	return context.WithValue(ctx, retryKey{}, r)
}

// RetryFrom returns the policy set by WithRetry, or RetryThrottled.
func RetryFrom(ctx context.Context) Retry {
	r, _ := ctx.Value(retryKey{}).(Retry)
	return r
}

// Post sends payload to endpoint and returns the decoded JSON response.
// 429 answers are retried with backoff; 5xx answers and transport failures
// only when ctx carries RetryAll.
func (c *Client) Post(ctx context.Context, endpoint string, payload map[string]any) (any, error) {
	if payload == nil {
		payload = map[string]any{}
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s payload: %w", endpoint, err)
	}
	return c.send(ctx, endpoint, body, "application/json")
}

// Upload posts a multipart form carrying fields and one file part named
// fileField. Retries follow the same rules as Post.
func (c *Client) Upload(ctx context.Context, endpoint string, fields map[string]string, fileField string, data []byte) (any, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if err := w.WriteField(name, fields[name]); err != nil {
			return nil, fmt.Errorf("write %s field %s: %w", endpoint, name, err)
		}
	}
	part, err := w.CreateFormFile(fileField, fileField)
	if err != nil {
		return nil, fmt.Errorf("create %s file part: %w", endpoint, err)
	}
	if _, err := part.Write(data); err != nil {
		return nil, fmt.Errorf("write %s file part: %w", endpoint, err)
	}
	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("close %s form: %w", endpoint, err)
	}
	return c.send(ctx, endpoint, buf.Bytes(), w.FormDataContentType())
}

func (c *Client) send(ctx context.Context, endpoint string, body []byte, contentType string) (any, error) {
	policy := RetryFrom(ctx)
	var lastErr error
	for attempt := 1; attempt <= c.maxAttempts; attempt++ {
		resp, err := c.do(ctx, endpoint, body, contentType)
		if err != nil {
			lastErr = &RequestError{Endpoint: endpoint, Err: err}
			if attempt < c.maxAttempts && policy == RetryAll && isRetryableError(err) {
				c.metrics.IncAPIRetry(endpoint)
				if !sleepWithBackoff(ctx, attempt, 0) {
					return nil, &RequestError{Endpoint: endpoint, Err: ctx.Err()}
				}
				continue
			}
			return nil, lastErr
		}

		raw, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			lastErr = &RequestError{Endpoint: endpoint, Err: fmt.Errorf("read body: %w", readErr)}
		} else if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return decodeResponse(endpoint, resp.StatusCode, raw)
		} else {
			c.metrics.IncAPIError(endpoint, resp.StatusCode)
			lastErr = newAPIError(endpoint, resp.StatusCode, raw)
		}

		if attempt < c.maxAttempts && isRetryableStatus(resp.StatusCode, policy) {
			c.metrics.IncAPIRetry(endpoint)
			c.logger.Debug("retrying platform request", "endpoint", endpoint, "status", resp.StatusCode, "attempt", attempt, "retry", policy.String())
			if !sleepWithBackoff(ctx, attempt, retryAfterDuration(resp)) {
				return nil, &RequestError{Endpoint: endpoint, Err: ctx.Err()}
			}
			continue
		}
		return nil, lastErr
	}

	if lastErr == nil {
		lastErr = fmt.Errorf("post %s failed", endpoint)
	}
	return nil, lastErr
}

func (c *Client) do(ctx context.Context, endpoint string, body []byte, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	timestamp := strconv.FormatInt(c.now().Unix(), 10)
	req.SetBasicAuth(c.userID, c.passwordHash(timestamp))
	req.Header.Set("Timestamp", timestamp)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Content-Type", contentType)
	return c.httpClient.Do(req)
}

// passwordHash is hex(sha256("<token>:<timestamp>")), the platform's
// per-request credential.
func (c *Client) passwordHash(timestamp string) string {
	sum := sha256.Sum256([]byte(c.apiToken + ":" + timestamp))
	return hex.EncodeToString(sum[:])
}

func decodeResponse(endpoint string, status int, raw []byte) (any, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return map[string]any{}, nil
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("decode %s response: %w", endpoint, err)
	}
	if m, ok := out.(map[string]any); ok {
		if success, present := m["success"].(bool); present && !success {
			return nil, &APIError{Endpoint: endpoint, StatusCode: status, Detail: extractDetail(m, string(raw)), Body: string(raw)}
		}
	}
	return out, nil
}

func newAPIError(endpoint string, status int, raw []byte) *APIError {
	var payload map[string]any
	_ = json.Unmarshal(raw, &payload)
	return &APIError{Endpoint: endpoint, StatusCode: status, Detail: extractDetail(payload, string(raw)), Body: string(raw)}
}

// extractDetail picks the first non-empty message/error/errors/details
// entry; lists are joined with "; ".
func extractDetail(payload map[string]any, fallback string) string {
	for _, key := range []string{"message", "error", "errors", "details"} {
		switch v := payload[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case []any:
			if len(v) > 0 {
				parts := make([]string, len(v))
				for i, item := range v {
					parts[i] = fmt.Sprint(item)
				}
				return strings.Join(parts, "; ")
			}
		}
	}
	if fallback != "" {
		return fallback
	}
	return "request failed"
}

func isRetryableStatus(code int, policy Retry) bool {
	if code == http.StatusTooManyRequests {
		return true
	}
	return policy == RetryAll && code >= 500 && code <= 599
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, context.Canceled) && !errors.Is(err, context.DeadlineExceeded)
}

func retryAfterDuration(resp *http.Response) time.Duration {
	if resp == nil {
		return 0
	}
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		d := time.Until(t)
		if d > 0 {
			return d
		}
	}
	return 0
}

var backoffBase = 250 * time.Millisecond

func sleepWithBackoff(ctx context.Context, attempt int, retryAfter time.Duration) bool {
	max := 5 * time.Second
	backoff := backoffBase * time.Duration(1<<(attempt-1))
	if backoff > max {
		backoff = max
	}
	jitter := time.Duration(rand.Int63n(int64(backoffBase)/4 + 1))
	wait := backoff + jitter
	if retryAfter > wait {
		wait = retryAfter
	}

	t := time.NewTimer(wait)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
