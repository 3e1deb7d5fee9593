package core

import "testing"

func TestPolicyCheckTool(t *testing.T) {
	p := NewPolicy("read_project,create_compile")

	if err := p.CheckTool("read_project"); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
	if err := p.CheckTool("create_compile"); err != nil {
		t.Fatalf("expected allowed, got %v", err)
	}
	if err := p.CheckTool("delete_project"); err == nil {
		t.Fatal("expected denied for unlisted tool")
	}
}

func TestPolicyEmptyAllowlistAllowsAll(t *testing.T) {
	p := NewPolicy("")

	if p.Restricted() {
		t.Fatal("empty allowlist must not restrict")
	}
	if err := p.CheckTool("any_tool"); err != nil {
		t.Fatalf("expected allowed when allowlist is empty, got %v", err)
	}

	var nilPolicy *Policy
	if err := nilPolicy.CheckTool("any_tool"); err != nil {
		t.Fatalf("nil policy should allow, got %v", err)
	}
}

func TestPolicyCSVWhitespace(t *testing.T) {
	p := NewPolicy(" tool_b , tool_a ,, ")

	if err := p.CheckTool("tool_b"); err != nil {
		t.Fatalf("expected allowed after trimming, got %v", err)
	}
	got := p.Allowed()
	if len(got) != 2 || got[0] != "tool_a" || got[1] != "tool_b" {
		t.Fatalf("Allowed() = %v, want [tool_a tool_b]", got)
	}
}
