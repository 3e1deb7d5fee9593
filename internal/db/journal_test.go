package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/tool"
)

type memoryStore struct {
	calls []*ToolCall
	err   error
}

func (m *memoryStore) InsertToolCall(_ context.Context, tc *ToolCall) error {
	if m.err != nil {
		return m.err
	}
	m.calls = append(m.calls, tc)
	return nil
}

func TestJournalRecordsSuccess(t *testing.T) {
	store := &memoryStore{}
	j := &Journal{store: store}
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.FixedZone("X", 3600))
	id := uuid.NewString()

	err := j.RecordCall(context.Background(), tool.CallRecord{
		CallID:    id,
		TraceID:   "trace-1",
		ToolName:  "read_project",
		Arguments: map[string]any{"projectId": int64(7), "missing": nil},
		Result:    core.Success(map[string]any{"name": "alpha"}),
		Duration:  1500 * time.Millisecond,
		At:        at,
	})
	if err != nil {
		t.Fatalf("RecordCall: %v", err)
	}
	if len(store.calls) != 1 {
		t.Fatalf("want 1 stored call, got %d", len(store.calls))
	}
	tc := store.calls[0]
	if tc.ToolCallID != id || tc.TraceID != "trace-1" || tc.Status != StatusOK {
		t.Fatalf("unexpected record: %+v", tc)
	}
	if tc.ErrorMessage != nil || tc.ErrorCode != "" {
		t.Fatalf("success must not carry an error: %+v", tc)
	}
	if tc.DurationMS != 1500 {
		t.Fatalf("duration_ms = %d", tc.DurationMS)
	}
	if !tc.CreatedAt.Equal(at) || tc.CreatedAt.Location() != time.UTC {
		t.Fatalf("created_at = %v", tc.CreatedAt)
	}
	if strings.Contains(string(tc.Request), "null") {
		t.Fatalf("request should be sanitized: %s", tc.Request)
	}

	sum := sha256.Sum256(append(append([]byte{}, tc.Request...), tc.Response...))
	if tc.EvidenceHash != hex.EncodeToString(sum[:]) {
		t.Fatal("evidence hash must cover request and response")
	}
}

func TestJournalStatuses(t *testing.T) {
	tests := []struct {
		name       string
		rec        tool.CallRecord
		wantStatus string
		wantCode   string
		wantMsg    string
	}{
		{
			name:       "envelope failure",
			rec:        tool.CallRecord{ToolName: "read_backtest", Result: core.Failure(core.CodeValidation, "projectId: Field required", "")},
			wantStatus: StatusFail,
			wantCode:   core.CodeValidation,
			wantMsg:    "projectId: Field required",
		},
		{
			name:       "raw error",
			rec:        tool.CallRecord{ToolName: "read_backtest", Err: "tool not allowed"},
			wantStatus: StatusError,
			wantMsg:    "tool not allowed",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tc, err := newToolCall(tt.rec)
			if err != nil {
				t.Fatalf("newToolCall: %v", err)
			}
			if tc.Status != tt.wantStatus || tc.ErrorCode != tt.wantCode {
				t.Fatalf("status/code = %s/%s", tc.Status, tc.ErrorCode)
			}
			if tc.ErrorMessage == nil || *tc.ErrorMessage != tt.wantMsg {
				t.Fatalf("error_message = %v", tc.ErrorMessage)
			}
			if _, err := uuid.Parse(tc.ToolCallID); err != nil {
				t.Fatalf("missing call id must be replaced by a uuid, got %q", tc.ToolCallID)
			}
		})
	}
}

func TestJournalPropagatesStoreError(t *testing.T) {
	j := &Journal{store: &memoryStore{err: errors.New("connection reset")}}
	err := j.RecordCall(context.Background(), tool.CallRecord{ToolName: "x", Result: core.Success(nil)})
	if err == nil || !strings.Contains(err.Error(), "connection reset") {
		t.Fatalf("want store error, got %v", err)
	}
}

func TestToolCallFilterValidate(t *testing.T) {
	after := time.Date(2026, 2, 25, 2, 0, 0, 0, time.UTC)
	before := time.Date(2026, 2, 25, 1, 0, 0, 0, time.UTC)
	tests := []struct {
		name    string
		filter  ToolCallFilter
		wantErr bool
	}{
		{name: "empty", filter: ToolCallFilter{}},
		{name: "status ok", filter: ToolCallFilter{Status: StatusOK}},
		{name: "invalid status", filter: ToolCallFilter{Status: "partial"}, wantErr: true},
		{name: "inverted range", filter: ToolCallFilter{CreatedAfter: &after, CreatedBefore: &before}, wantErr: true},
		{name: "negative limit", filter: ToolCallFilter{Limit: -1}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.filter.Validate(); (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestToolCallFilterQuery(t *testing.T) {
	after := time.Date(2026, 2, 25, 0, 0, 0, 0, time.UTC)
	q, args := ToolCallFilter{ToolName: "read_project", Status: StatusFail, CreatedAfter: &after, Limit: 1000}.listQuery()

	if !strings.Contains(q, "WHERE tool_name = $1 AND status = $2 AND created_at >= $3") {
		t.Fatalf("unexpected where clause: %s", q)
	}
	if !strings.HasSuffix(q, "ORDER BY created_at DESC LIMIT $4") {
		t.Fatalf("unexpected tail: %s", q)
	}
	if len(args) != 4 || args[3] != maxListLimit {
		t.Fatalf("args = %v", args)
	}

	q, args = ToolCallFilter{}.listQuery()
	if strings.Contains(q, "WHERE") || len(args) != 1 || args[0] != defaultListLimit {
		t.Fatalf("empty filter: %s %v", q, args)
	}
}

func TestMigrationsAreOrdered(t *testing.T) {
	names, err := Migrations()
	if err != nil {
		t.Fatalf("Migrations: %v", err)
	}
	if len(names) == 0 || names[0] != "0001_tool_calls.sql" {
		t.Fatalf("unexpected migrations: %v", names)
	}
}

func TestJournalRoundTripPostgres(t *testing.T) {
	databaseURL := os.Getenv("QUANTMCP_TEST_DATABASE_URL")
	if databaseURL == "" {
		t.Skip("QUANTMCP_TEST_DATABASE_URL not set")
	}

	ctx := context.Background()
	database, err := New(databaseURL)
	if err != nil {
		t.Fatalf("db connect: %v", err)
	}
	defer database.Close()

	trace := uuid.NewString()
	j := NewJournal(database)
	id := uuid.NewString()
	if err := j.RecordCall(ctx, tool.CallRecord{
		CallID:    id,
		TraceID:   trace,
		ToolName:  "read_account",
		Arguments: map[string]any{},
		Result:    core.Success(map[string]any{"balance": 10.5}),
		At:        time.Now(),
	}); err != nil {
		t.Fatalf("record: %v", err)
	}

	got, err := database.GetToolCall(ctx, id)
	if err != nil || got == nil {
		t.Fatalf("get: %v %v", got, err)
	}
	var resp core.ToolResult
	if err := json.Unmarshal(got.Response, &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Success || resp.Data["balance"] != 10.5 {
		t.Fatalf("unexpected response: %+v", resp)
	}

	list, err := database.ListToolCalls(ctx, ToolCallFilter{TraceID: trace})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ToolCallID != id {
		t.Fatalf("unexpected list: %+v", list)
	}
}
