package replay

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vinayprograms/pilot/internal/audit"
)

func intPtr(v int) *int { return &v }

func sampleTrail() *audit.TrailData {
	base := time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC)
	return &audit.TrailData{
		Header: audit.Header{
			RunID:     "run-sample",
			StartedAt: base,
			PlanSteps: 3,
		},
		Records: []audit.Record{
			{
				Seq: 1, Timestamp: base, RunID: "run-sample", StepID: "s1",
				Command: "ls -la", Status: "success",
				Stdout: "total 0\n", ExitCode: intPtr(0), DurationMs: 12,
			},
			{
				Seq: 2, Timestamp: base.Add(1 * time.Second), RunID: "run-sample", StepID: "s2",
				Command: "rm -rf /", Status: "blocked",
				Message: "recursive deletion rooted at /",
				Verdict: &audit.Verdict{Classification: "blocked", RuleID: "PG001", Reason: "recursive deletion rooted at /"},
			},
			{
				Seq: 3, Timestamp: base.Add(2 * time.Second), RunID: "run-sample", StepID: "s3",
				Command: "make build", Status: "error",
				Stderr: "no rule to make target", ExitCode: intPtr(2), DurationMs: 800,
			},
			{
				Seq: 4, Timestamp: base.Add(3 * time.Second), RunID: "run-sample", StepID: "s3",
				Status: "success", Message: "message: nothing left to do",
			},
		},
		Footer: &audit.Footer{
			CompletedAt: base.Add(4 * time.Second),
			Records:     4,
			Result:      "exhausted",
		},
	}
}

func TestReplay_Timeline(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 0)

	if err := r.Replay(sampleTrail()); err != nil {
		t.Fatalf("replay error: %v", err)
	}
	out := buf.String()

	for _, want := range []string{
		"run-sample",
		"TIMELINE",
		"EXEC", "ls -la",
		"BLOCKED", "rm -rf /", "PG001",
		"FAIL", "make build", "no rule to make target",
		"NOTE", "nothing left to do",
		"FAILED:", "exhausted",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q", want)
		}
	}
}

func TestReplay_StepTransitions(t *testing.T) {
	var buf strings.Builder
	r := New(&buf, 0)

	if err := r.Replay(sampleTrail()); err != nil {
		t.Fatalf("replay error: %v", err)
	}
	out := buf.String()

	for _, step := range []string{"step s1", "step s2", "step s3"} {
		if !strings.Contains(out, step) {
			t.Errorf("output missing transition %q", step)
		}
	}
	// s3 appears on two records but transitions only once
	if strings.Count(out, "step s3") != 1 {
		t.Errorf("step s3 marker repeated:\n%s", out)
	}
}

func TestReplay_InProgressTrail(t *testing.T) {
	data := sampleTrail()
	data.Footer = nil

	var buf strings.Builder
	if err := New(&buf, 0).Replay(data); err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if !strings.Contains(buf.String(), "IN PROGRESS") {
		t.Error("in-progress trail not marked")
	}
}

func TestReplay_VerboseShowsStdout(t *testing.T) {
	var quiet, verbose strings.Builder

	if err := New(&quiet, 0).Replay(sampleTrail()); err != nil {
		t.Fatalf("replay error: %v", err)
	}
	if err := New(&verbose, 1).Replay(sampleTrail()); err != nil {
		t.Fatalf("replay error: %v", err)
	}

	if strings.Contains(quiet.String(), "total 0") {
		t.Error("stdout shown without -v")
	}
	if !strings.Contains(verbose.String(), "total 0") {
		t.Error("stdout missing with -v")
	}
}

func TestReplayFile_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.jsonl")

	trail, err := audit.NewTrail(path, audit.Header{RunID: "file-run", StartedAt: time.Now().UTC(), PlanSteps: 1})
	if err != nil {
		t.Fatalf("new trail: %v", err)
	}
	trail.Emit(audit.Record{RunID: "file-run", StepID: "s1", Command: "true", Status: "success"})
	if err := trail.CloseWithFooter("completed"); err != nil {
		t.Fatalf("close: %v", err)
	}

	var buf strings.Builder
	if err := New(&buf, 0).ReplayFile(path); err != nil {
		t.Fatalf("replay file: %v", err)
	}
	out := buf.String()

	if !strings.Contains(out, "file-run") {
		t.Error("run ID missing from output")
	}
	if !strings.Contains(out, "COMPLETED") {
		t.Error("completed result missing from output")
	}
}

func TestComputeStats(t *testing.T) {
	stats := ComputeStats(sampleTrail())

	if stats.Commands != 3 {
		t.Errorf("commands = %d, want 3", stats.Commands)
	}
	if stats.Succeeded != 1 || stats.Failed != 1 || stats.Blocked != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.Notes != 1 {
		t.Errorf("notes = %d, want 1", stats.Notes)
	}
	// 12ms + 800ms executed across two spawned commands
	if stats.ExecTotalMs != 812 {
		t.Errorf("execTotal = %d, want 812", stats.ExecTotalMs)
	}
	if stats.ExecAvgMs != 406 {
		t.Errorf("execAvg = %d, want 406", stats.ExecAvgMs)
	}
	if stats.SlowestCommand != "make build" {
		t.Errorf("slowest = %q", stats.SlowestCommand)
	}
	if stats.TotalDurationMs != 3000 {
		t.Errorf("totalDuration = %d, want 3000", stats.TotalDurationMs)
	}
}

func TestComputeStats_EmptyTrail(t *testing.T) {
	stats := ComputeStats(&audit.TrailData{})
	if stats.Commands != 0 || stats.TotalDurationMs != 0 {
		t.Errorf("stats = %+v", stats)
	}
}
