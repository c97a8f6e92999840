package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/config"
	"github.com/vinayprograms/pilot/internal/engine"
	"github.com/vinayprograms/pilot/internal/logging"
	"github.com/vinayprograms/pilot/internal/oracle"
)

func TestApplyRunOverrides(t *testing.T) {
	cfg := config.Default()
	applyRunOverrides(cfg, &RunCmd{DryRun: true, MaxIterations: 5, TimeoutMs: 1500})

	if !cfg.Run.DryRun {
		t.Error("expected dry-run override")
	}
	if cfg.Run.MaxIterations != 5 {
		t.Errorf("max iterations = %d, want 5", cfg.Run.MaxIterations)
	}
	if cfg.Run.TimeoutMs != 1500 {
		t.Errorf("timeout = %d, want 1500", cfg.Run.TimeoutMs)
	}
	if cfg.Run.AutoApprove {
		t.Error("auto-approve must stay off without a flag")
	}
}

func TestApplyRunOverrides_AbsentFlagsKeepConfig(t *testing.T) {
	cfg := config.Default()
	cfg.Run.DryRun = true
	cfg.Run.MaxIterations = 12

	applyRunOverrides(cfg, &RunCmd{})

	if !cfg.Run.DryRun {
		t.Error("absent flag must not clear a config value")
	}
	if cfg.Run.MaxIterations != 12 {
		t.Errorf("max iterations = %d, want 12", cfg.Run.MaxIterations)
	}
}

func TestBuildSinks_TrailLifecycle(t *testing.T) {
	cfg := config.Default()
	cfg.Audit.Dir = t.TempDir()
	cfg.Audit.NATSURL = ""

	trail, sink, closeSinks, err := buildSinks(cfg, "run-lifecycle", 2, false, logging.New())
	if err != nil {
		t.Fatal(err)
	}

	rec := audit.Record{RunID: "run-lifecycle", StepID: "s1", Command: "ls", Status: "success"}
	if err := sink.Emit(rec); err != nil {
		t.Fatalf("Emit: %v", err)
	}
	closeSinks("completed")

	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		t.Fatalf("LoadTrail: %v", err)
	}
	if data.Footer == nil || data.Footer.Result != "completed" {
		t.Errorf("footer = %+v", data.Footer)
	}
	if len(data.Records) != 1 {
		t.Errorf("records = %d, want 1", len(data.Records))
	}
	if data.Header.PlanSteps != 2 {
		t.Errorf("plan steps = %d, want 2", data.Header.PlanSteps)
	}
}

func TestIndexRun(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Default()
	cfg.Audit.Dir = filepath.Join(dir, "runs")
	cfg.Audit.DB = filepath.Join(dir, "index.db")
	cfg.Audit.NATSURL = ""

	log := logging.New()
	trail, _, closeSinks, err := buildSinks(cfg, "run-indexed", 1, false, log)
	if err != nil {
		t.Fatal(err)
	}
	closeSinks("completed")
	indexRun(cfg, trail, log)

	store, err := audit.NewSQLiteStore(cfg.Audit.DB)
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	path, err := store.Lookup("run-indexed")
	if err != nil {
		t.Fatalf("indexed run not found: %v", err)
	}
	if path != trail.Path() {
		t.Errorf("trail path = %q, want %q", path, trail.Path())
	}
}

func TestBuildProvider_RequiresModel(t *testing.T) {
	cfg := config.Default()
	_, err := buildProvider(cfg, &RunCmd{})
	if err == nil || !strings.Contains(err.Error(), "model") {
		t.Errorf("expected model configuration error, got %v", err)
	}
}

func TestLoadPlan_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	os.WriteFile(path, []byte("steps:\n  - first\n  - second\n"), 0644)

	p, err := loadPlan(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(p.Steps) != 2 {
		t.Errorf("steps = %d, want 2", len(p.Steps))
	}
}

func TestPrintSummary(t *testing.T) {
	var sb strings.Builder
	printSummary(&sb, &engine.Summary{
		RunID:            "0123456789abcdef",
		State:            engine.StateCompleted,
		Success:          true,
		CompletedSteps:   []string{"a", "b"},
		FailureCount:     1,
		RecoveryAttempts: 1,
		Iterations:       2,
		SuccessRate:      1.0,
		DurationMs:       1500,
		Verification:     &oracle.Verification{Passed: false, Issues: []string{"output missing"}},
	})

	out := sb.String()
	for _, want := range []string{"COMPLETED", "01234567", "2 completed (100%)", "1 recoveries", "output missing"} {
		if !strings.Contains(out, want) {
			t.Errorf("summary missing %q:\n%s", want, out)
		}
	}
}
