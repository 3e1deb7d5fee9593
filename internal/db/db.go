// Package db provides PostgreSQL persistence for the tool-call journal.
package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// DB wraps the underlying *sql.DB and provides typed query methods.
type DB struct {
	conn *sql.DB
}

// New opens a PostgreSQL connection, verifies connectivity and applies
// pending migrations.
func New(databaseURL string) (*DB, error) {
	conn, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("db open: %w", err)
	}
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxLifetime(5 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := ApplyMigrations(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("db migrate: %w", err)
	}
	return &DB{conn: conn}, nil
}

// Close closes the database connection pool.
func (d *DB) Close() error {
	return d.conn.Close()
}

// Conn returns the underlying *sql.DB.
func (d *DB) Conn() *sql.DB {
	return d.conn
}

// Tool call statuses.
const (
	StatusOK    = "ok"
	StatusFail  = "fail"
	StatusError = "error"
)

// ToolCall is one journaled tool invocation.
type ToolCall struct {
	ToolCallID   string          `json:"tool_call_id"`
	TraceID      string          `json:"trace_id"`
	ToolName     string          `json:"tool_name"`
	Status       string          `json:"status"`
	ErrorCode    string          `json:"error_code"`
	ErrorMessage *string         `json:"error_message,omitempty"`
	Request      json.RawMessage `json:"request"`
	Response     json.RawMessage `json:"response"`
	EvidenceHash string          `json:"evidence_hash"`
	DurationMS   int64           `json:"duration_ms"`
	CreatedAt    time.Time       `json:"created_at"`
}

const toolCallColumns = `tool_call_id, trace_id, tool_name, status, error_code, error_message, request, response, evidence_hash, duration_ms, created_at`

// InsertToolCall creates a new tool call record.
func (d *DB) InsertToolCall(ctx context.Context, tc *ToolCall) error {
	_, err := d.conn.ExecContext(ctx,
		`INSERT INTO tool_calls (`+toolCallColumns+`)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		tc.ToolCallID, tc.TraceID, tc.ToolName, tc.Status, tc.ErrorCode, tc.ErrorMessage,
		[]byte(tc.Request), []byte(tc.Response), tc.EvidenceHash, tc.DurationMS, tc.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert tool_call: %w", err)
	}
	return nil
}

// GetToolCall retrieves a tool call by ID. It returns nil, nil when absent.
func (d *DB) GetToolCall(ctx context.Context, toolCallID string) (*ToolCall, error) {
	row := d.conn.QueryRowContext(ctx,
		`SELECT `+toolCallColumns+` FROM tool_calls WHERE tool_call_id = $1`, toolCallID,
	)
	tc, err := scanToolCall(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get tool_call: %w", err)
	}
	return tc, nil
}

// ToolCallFilter narrows ListToolCalls. Zero fields do not filter.
type ToolCallFilter struct {
	ToolName      string
	Status        string
	TraceID       string
	CreatedAfter  *time.Time
	CreatedBefore *time.Time
	Limit         int
}

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// Validate rejects unknown statuses and inverted time ranges.
func (f ToolCallFilter) Validate() error {
	switch f.Status {
	case "", StatusOK, StatusFail, StatusError:
	default:
		return fmt.Errorf("invalid status %q (valid: ok, fail, error)", f.Status)
	}
	if f.CreatedAfter != nil && f.CreatedBefore != nil && f.CreatedAfter.After(*f.CreatedBefore) {
		return errors.New("created_after must not be later than created_before")
	}
	if f.Limit < 0 {
		return errors.New("limit must not be negative")
	}
	return nil
}

// listQuery builds the SELECT for f, most recent first.
func (f ToolCallFilter) listQuery() (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.ToolName != "" {
		add("tool_name = $%d", f.ToolName)
	}
	if f.Status != "" {
		add("status = $%d", f.Status)
	}
	if f.TraceID != "" {
		add("trace_id = $%d", f.TraceID)
	}
	if f.CreatedAfter != nil {
		add("created_at >= $%d", *f.CreatedAfter)
	}
	if f.CreatedBefore != nil {
		add("created_at <= $%d", *f.CreatedBefore)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	q := `SELECT ` + toolCallColumns + ` FROM tool_calls`
	if len(where) > 0 {
		q += ` WHERE ` + strings.Join(where, " AND ")
	}
	args = append(args, limit)
	q += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d`, len(args))
	return q, args
}

// ListToolCalls returns journaled calls matching f, most recent first.
func (d *DB) ListToolCalls(ctx context.Context, f ToolCallFilter) ([]*ToolCall, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	q, args := f.listQuery()
	rows, err := d.conn.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list tool_calls: %w", err)
	}
	defer rows.Close()

	out := make([]*ToolCall, 0)
	for rows.Next() {
		tc, err := scanToolCall(rows)
		if err != nil {
			return nil, fmt.Errorf("scan tool_call: %w", err)
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanToolCall(s scanner) (*ToolCall, error) {
	tc := &ToolCall{}
	var (
		errMsg        sql.NullString
		request, resp []byte
	)
	if err := s.Scan(&tc.ToolCallID, &tc.TraceID, &tc.ToolName, &tc.Status, &tc.ErrorCode, &errMsg,
		&request, &resp, &tc.EvidenceHash, &tc.DurationMS, &tc.CreatedAt); err != nil {
		return nil, err
	}
	if errMsg.Valid {
		s := errMsg.String
		tc.ErrorMessage = &s
	}
	tc.Request = json.RawMessage(request)
	tc.Response = json.RawMessage(resp)
	return tc, nil
}
