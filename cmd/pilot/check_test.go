package main

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
)

func TestRunCheck_Blocked(t *testing.T) {
	var buf strings.Builder
	err := runCheck(&buf, &CheckCmd{Command: "rm -rf /"})
	if !errors.Is(err, errReported) {
		t.Fatalf("expected errReported for blocked command, got %v", err)
	}

	out := buf.String()
	if !strings.Contains(out, "BLOCKED") || !strings.Contains(out, "PG001") {
		t.Errorf("unexpected output: %q", out)
	}
}

func TestRunCheck_RequiresApproval(t *testing.T) {
	var buf strings.Builder
	if err := runCheck(&buf, &CheckCmd{Command: "rm build/cache.txt"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "REQUIRES APPROVAL") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestRunCheck_AutoApproved(t *testing.T) {
	var buf strings.Builder
	if err := runCheck(&buf, &CheckCmd{Command: "ls -la"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "AUTO-APPROVED") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}

func TestRunCheck_JSON(t *testing.T) {
	var buf strings.Builder
	err := runCheck(&buf, &CheckCmd{Command: "rm -rf /", JSON: true})
	if !errors.Is(err, errReported) {
		t.Fatalf("expected errReported, got %v", err)
	}

	var res checkResult
	if err := json.Unmarshal([]byte(buf.String()), &res); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if res.Classification != "blocked" {
		t.Errorf("classification = %q", res.Classification)
	}
	if res.RuleID != "PG001" {
		t.Errorf("rule_id = %q", res.RuleID)
	}
}

func TestRunCheck_OptionsNeverUnblock(t *testing.T) {
	var buf strings.Builder
	err := runCheck(&buf, &CheckCmd{Command: "rm -rf /", AutoApprove: true, AllowDangerous: true})
	if !errors.Is(err, errReported) {
		t.Fatal("rule match must stay blocked regardless of options")
	}
}

func TestRunCheck_AutoApproveWidens(t *testing.T) {
	var buf strings.Builder
	if err := runCheck(&buf, &CheckCmd{Command: "rm build/cache.txt", AutoApprove: true}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "AUTO-APPROVED") {
		t.Errorf("unexpected output: %q", buf.String())
	}
}
