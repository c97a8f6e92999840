package main

import (
	"strings"
	"testing"
	"time"
)

func TestShortID(t *testing.T) {
	tests := []struct{ in, want string }{
		{"0123456789abcdef", "01234567"},
		{"abc", "abc"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := shortID(tt.in); got != tt.want {
			t.Errorf("shortID(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestListRuns_Table(t *testing.T) {
	dir := t.TempDir()
	cfgPath, _ := writeIndexedRun(t, dir, "only-run", time.Now().UTC())

	var buf strings.Builder
	if err := listRuns(&buf, &RunsCmd{Config: cfgPath, Limit: 10}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, "RUN") {
		t.Errorf("missing table header in %q", out)
	}
	if !strings.Contains(out, "only-run") {
		t.Errorf("missing run row in %q", out)
	}
	if !strings.Contains(out, "completed") {
		t.Errorf("missing result in %q", out)
	}
}

func TestListRuns_JSON(t *testing.T) {
	dir := t.TempDir()
	cfgPath, trailPath := writeIndexedRun(t, dir, "json-run", time.Now().UTC())

	var buf strings.Builder
	if err := listRuns(&buf, &RunsCmd{Config: cfgPath, Limit: 10, JSON: true}); err != nil {
		t.Fatal(err)
	}

	out := buf.String()
	if !strings.Contains(out, `"json-run"`) {
		t.Errorf("missing run ID in %q", out)
	}
	if !strings.Contains(out, trailPath) {
		t.Errorf("missing trail path in %q", out)
	}
}
