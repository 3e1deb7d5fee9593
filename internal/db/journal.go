package db

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/quantmcp/quantmcp/internal/core"
	"github.com/quantmcp/quantmcp/internal/tool"
)

type toolCallInserter interface {
	InsertToolCall(ctx context.Context, tc *ToolCall) error
}

// Journal records every tool invocation with its sanitized request, its
// envelope and a SHA-256 evidence hash over both.
type Journal struct {
	store toolCallInserter
}

// NewJournal wires the journal to its store.
func NewJournal(database *DB) *Journal {
	return &Journal{store: database}
}

// RecordCall implements tool.Recorder.
func (j *Journal) RecordCall(ctx context.Context, rec tool.CallRecord) error {
	tc, err := newToolCall(rec)
	if err != nil {
		return err
	}
	return j.store.InsertToolCall(ctx, tc)
}

func newToolCall(rec tool.CallRecord) (*ToolCall, error) {
	reqJSON, err := json.Marshal(core.Sanitize(rec.Arguments))
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}
	respJSON, err := json.Marshal(rec.Result)
	if err != nil {
		return nil, fmt.Errorf("marshal response: %w", err)
	}

	id := rec.CallID
	if _, err := uuid.Parse(id); err != nil {
		id = uuid.NewString()
	}

	tc := &ToolCall{
		ToolCallID:   id,
		TraceID:      rec.TraceID,
		ToolName:     rec.ToolName,
		Status:       StatusOK,
		ErrorCode:    rec.Result.Error.Code,
		Request:      reqJSON,
		Response:     respJSON,
		EvidenceHash: EvidenceHash(reqJSON, respJSON),
		DurationMS:   rec.Duration.Milliseconds(),
		CreatedAt:    rec.At.UTC(),
	}
	switch {
	case rec.Err != "":
		tc.Status = StatusError
		msg := rec.Err
		tc.ErrorMessage = &msg
	case !rec.Result.Success:
		tc.Status = StatusFail
		msg := rec.Result.Error.Message
		tc.ErrorMessage = &msg
	}
	return tc, nil
}

// EvidenceHash is hex(sha256(request || response)).
func EvidenceHash(request, response []byte) string {
	h := sha256.New()
	h.Write(request)
	h.Write(response)
	return hex.EncodeToString(h.Sum(nil))
}
