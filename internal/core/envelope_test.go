package core

import (
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"
)

type backtestSummary struct {
	Name    string    `json:"name"`
	Created time.Time `json:"created"`
	Note    *string   `json:"note"`
}

func TestSuccessSanitizesValues(t *testing.T) {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	res := Success(map[string]any{
		"created":  created,
		"equity":   big.NewFloat(1.5),
		"ratio":    big.NewRat(1, 4),
		"volume":   json.Number("42"),
		"missing":  nil,
		"tags":     map[string]struct{}{"b": {}, "a": {}},
		"ids":      []int{1, 2},
		"raw":      []byte("hi"),
		"summary":  backtestSummary{Name: "bt"},
		"byNumber": map[int]string{7: "seven"},
		"nested":   map[string]any{"inner": []any{nil, created}},
	})

	if !res.Success || !res.Valid() {
		t.Fatalf("unexpected envelope: %+v", res)
	}
	if got := res.Data["created"]; got != "2024-01-02T03:04:05Z" {
		t.Fatalf("created = %v", got)
	}
	if got := res.Data["equity"]; got != 1.5 {
		t.Fatalf("equity = %v", got)
	}
	if got := res.Data["ratio"]; got != 0.25 {
		t.Fatalf("ratio = %v", got)
	}
	if got := res.Data["volume"]; got != float64(42) {
		t.Fatalf("volume = %v", got)
	}
	if got := res.Data["missing"]; got != "" {
		t.Fatalf("missing = %#v, want empty string", got)
	}
	tags, _ := res.Data["tags"].([]any)
	if len(tags) != 2 || tags[0] != "a" || tags[1] != "b" {
		t.Fatalf("tags = %v", res.Data["tags"])
	}
	if got := res.Data["raw"]; got != "aGk=" {
		t.Fatalf("raw = %v", got)
	}
	byNumber, _ := res.Data["byNumber"].(map[string]any)
	if byNumber["7"] != "seven" {
		t.Fatalf("byNumber = %v", res.Data["byNumber"])
	}
	summary, _ := res.Data["summary"].(map[string]any)
	if summary["note"] != "" {
		t.Fatalf("summary.note = %#v", summary["note"])
	}

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if strings.Contains(string(raw), "null") {
		t.Fatalf("serialized envelope contains null: %s", raw)
	}
}

func TestSuccessWithEmptyDataKeepsInvariant(t *testing.T) {
	for _, data := range []map[string]any{nil, {}} {
		res := Success(data)
		if !res.Valid() {
			t.Fatalf("Success(%v) violates invariant: %+v", data, res)
		}
		if res.Data[EmptyResultKey] != "" {
			t.Fatalf("Data = %v", res.Data)
		}
	}
}

func TestFailureShape(t *testing.T) {
	res := Failure(CodeValidation, "projectId: Field required", "Provide values for required fields: projectId")
	if res.Success {
		t.Fatal("Success = true on failure")
	}
	if len(res.Data) != 0 || res.Data == nil {
		t.Fatalf("Data = %#v, want empty non-nil map", res.Data)
	}
	if !res.Valid() {
		t.Fatalf("failure violates invariant: %+v", res)
	}

	raw, _ := json.Marshal(res)
	want := `{"success":false,"error":{"code":"validation-error","message":"projectId: Field required","hint":"Provide values for required fields: projectId"},"data":{}}`
	if string(raw) != want {
		t.Fatalf("json = %s\nwant %s", raw, want)
	}
}

func TestFailureWithEmptyCode(t *testing.T) {
	res := Failure("", "oops", "")
	if res.Error.Code != CodeInternal {
		t.Fatalf("Code = %q, want %q", res.Error.Code, CodeInternal)
	}
	if !res.Valid() {
		t.Fatalf("failure violates invariant: %+v", res)
	}
}

func TestSuccessErrorFieldsAreEmptyStrings(t *testing.T) {
	raw, _ := json.Marshal(Success(map[string]any{"projectId": 1}))
	want := `{"success":true,"error":{"code":"","message":"","hint":""},"data":{"projectId":1}}`
	if string(raw) != want {
		t.Fatalf("json = %s\nwant %s", raw, want)
	}
}

func TestMergeLaterWins(t *testing.T) {
	got := Merge(map[string]any{"a": 1, "b": 1}, nil, map[string]any{"b": 2})
	if got["a"] != 1 || got["b"] != 2 || len(got) != 2 {
		t.Fatalf("Merge = %v", got)
	}
}

func TestSuccessDateDecimalMissing(t *testing.T) {
	amt, _ := new(big.Float).SetString("12.75")
	res := Success(map[string]any{
		"when":    time.Date(2023, 6, 30, 0, 0, 0, 0, time.UTC),
		"amt":     amt,
		"missing": nil,
	})

	want := map[string]any{"when": "2023-06-30T00:00:00Z", "amt": 12.75, "missing": ""}
	if len(res.Data) != len(want) {
		t.Fatalf("Data = %v, want %v", res.Data, want)
	}
	for k, v := range want {
		if res.Data[k] != v {
			t.Fatalf("Data[%q] = %#v, want %#v", k, res.Data[k], v)
		}
	}
	raw, _ := json.Marshal(res)
	if strings.Contains(string(raw), "null") {
		t.Fatalf("serialized envelope contains null: %s", raw)
	}
}
