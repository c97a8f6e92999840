// Package system contains end-to-end tests that wire the real oracle
// parser, policy gate, vault, runner, and audit trail together and run
// whole plans through the engine.
package system

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/config"
	"github.com/vinayprograms/pilot/internal/credentials"
	"github.com/vinayprograms/pilot/internal/engine"
	"github.com/vinayprograms/pilot/internal/logging"
	"github.com/vinayprograms/pilot/internal/oracle"
	"github.com/vinayprograms/pilot/internal/plan"
	"github.com/vinayprograms/pilot/internal/runner"
)

func quietLogger() *logging.Logger {
	log := logging.New()
	log.SetOutput(io.Discard)
	return log
}

// commandAction is the JSON reply shape the oracle parser expects for a
// command decision.
func commandAction(cmd string) string {
	return fmt.Sprintf(`{"kind":"command","command":%q}`, cmd)
}

// buildStack wires the full execution stack around a scripted provider:
// real oracle on top of the mock transport, real runner, one shared
// trail sink.
func buildStack(t *testing.T, provider *oracle.MockProvider, planSteps int, cfg engine.Config) (*engine.Engine, *audit.Trail) {
	t.Helper()

	log := quietLogger()
	trailPath := filepath.Join(t.TempDir(), cfg.RunID+".jsonl")
	trail, err := audit.NewTrail(trailPath, audit.Header{
		RunID:     cfg.RunID,
		PlanSteps: planSteps,
		DryRun:    cfg.DryRun,
	})
	if err != nil {
		t.Fatalf("failed to create trail: %v", err)
	}
	t.Cleanup(func() { trail.Close() })

	run := runner.New(runner.Config{Dir: t.TempDir()}, trail, log)

	eng, err := engine.New(engine.Deps{
		Decider: oracle.New(provider, log),
		Runner:  run,
		Sink:    trail,
		Logger:  log,
	}, cfg)
	if err != nil {
		t.Fatalf("failed to create engine: %v", err)
	}
	return eng, trail
}

// TestSystem_PlanCompletesToTrail runs a three-step plan to completion
// and checks the summary and the persisted trail agree.
func TestSystem_PlanCompletesToTrail(t *testing.T) {
	provider := oracle.NewMockProvider()
	provider.EnqueueContent(commandAction("echo one"))
	provider.EnqueueContent(commandAction("echo two"))
	provider.EnqueueContent(commandAction("echo three"))

	p, err := plan.Parse([]byte(`goal: emit three markers
steps:
  - emit the first marker
  - emit the second marker
  - emit the third marker
`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	eng, trail := buildStack(t, provider, len(p.Steps), engine.Config{RunID: "sys-complete"})
	sum, err := eng.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !sum.Success {
		t.Errorf("expected success, got state %s", sum.State)
	}
	if len(sum.CompletedSteps) != 3 {
		t.Errorf("expected 3 completed steps, got %d", len(sum.CompletedSteps))
	}
	if sum.FailureCount != 0 {
		t.Errorf("expected no failures, got %d", sum.FailureCount)
	}
	if sum.Iterations != 3 {
		t.Errorf("expected 3 iterations, got %d", sum.Iterations)
	}
	if sum.SuccessRate != 1.0 {
		t.Errorf("expected success rate 1.0, got %f", sum.SuccessRate)
	}

	if err := trail.CloseWithFooter(sum.State); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		t.Fatalf("load trail failed: %v", err)
	}
	if data.Header.RunID != "sys-complete" || data.Header.PlanSteps != 3 {
		t.Errorf("unexpected header: %+v", data.Header)
	}
	if len(data.Records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(data.Records))
	}
	for i, rec := range data.Records {
		if rec.Status != runner.StatusSuccess {
			t.Errorf("record %d: status %s", i, rec.Status)
		}
	}
	if !strings.Contains(data.Records[0].Stdout, "one") {
		t.Errorf("first record stdout = %q", data.Records[0].Stdout)
	}
	if data.Footer == nil || data.Footer.Result != engine.StateCompleted {
		t.Errorf("unexpected footer: %+v", data.Footer)
	}
}

// TestSystem_SecretNeverReachesTrail feeds a command that both carries
// and prints a secret, then scans the raw trail bytes for it.
func TestSystem_SecretNeverReachesTrail(t *testing.T) {
	provider := oracle.NewMockProvider()
	provider.EnqueueContent(commandAction("export DB_PASSWORD=hunter2; echo $DB_PASSWORD"))

	p, err := plan.Parse([]byte("steps:\n  - configure the database password\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	eng, trail := buildStack(t, provider, 1, engine.Config{RunID: "sys-secret"})
	sum, err := eng.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if !sum.Success {
		t.Fatalf("expected success, got state %s", sum.State)
	}
	if err := trail.CloseWithFooter(sum.State); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	raw, err := os.ReadFile(trail.Path())
	if err != nil {
		t.Fatalf("read trail failed: %v", err)
	}
	if strings.Contains(string(raw), "hunter2") {
		t.Fatal("secret value leaked into the trail file")
	}

	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		t.Fatalf("load trail failed: %v", err)
	}
	rec := data.Records[0]
	if !strings.Contains(rec.Command, "{{PASSWORD_1}}") {
		t.Errorf("command not redacted: %q", rec.Command)
	}
	// The process echoed the restored value; output must be re-masked.
	if !strings.Contains(rec.Stdout, "{{PASSWORD_1}}") {
		t.Errorf("stdout not masked: %q", rec.Stdout)
	}
}

// TestSystem_BlockedCommandAudited sends a rule-matching command and
// checks it is refused without execution, recorded with the verdict,
// and recovered from.
func TestSystem_BlockedCommandAudited(t *testing.T) {
	provider := oracle.NewMockProvider()
	provider.EnqueueContent(commandAction("rm -rf /"))
	provider.EnqueueContent(commandAction("echo safe alternative"))

	p, err := plan.Parse([]byte("steps:\n  - clean the workspace\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	eng, trail := buildStack(t, provider, 1, engine.Config{RunID: "sys-blocked"})
	sum, err := eng.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !sum.Success {
		t.Errorf("expected recovery to succeed, got state %s", sum.State)
	}
	if sum.FailureCount != 1 {
		t.Errorf("expected 1 failure, got %d", sum.FailureCount)
	}
	if sum.RecoveryAttempts != 1 {
		t.Errorf("expected 1 recovery attempt, got %d", sum.RecoveryAttempts)
	}

	if err := trail.CloseWithFooter(sum.State); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		t.Fatalf("load trail failed: %v", err)
	}
	if len(data.Records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(data.Records))
	}

	blocked := data.Records[0]
	if blocked.Status != runner.StatusBlocked {
		t.Errorf("first record status = %s", blocked.Status)
	}
	if blocked.Verdict == nil || blocked.Verdict.RuleID != "PG001" {
		t.Errorf("expected PG001 verdict, got %+v", blocked.Verdict)
	}
	if blocked.Stdout != "" {
		t.Errorf("blocked command must not execute, stdout = %q", blocked.Stdout)
	}
	if data.Records[1].Status != runner.StatusSuccess {
		t.Errorf("second record status = %s", data.Records[1].Status)
	}
}

// TestSystem_ApprovalWithheldWhenNonInteractive runs a mutating command
// with no approver configured; the engine must refuse it rather than
// execute unapproved.
func TestSystem_ApprovalWithheldWhenNonInteractive(t *testing.T) {
	provider := oracle.NewMockProvider()
	provider.EnqueueContent(commandAction("mkdir artifacts"))
	provider.EnqueueContent(`{"kind":"message","text":"cannot mutate the workspace without approval"}`)

	p, err := plan.Parse([]byte("steps:\n  - create the artifacts directory\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	eng, trail := buildStack(t, provider, 1, engine.Config{RunID: "sys-denied"})
	sum, err := eng.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if sum.FailureCount != 1 {
		t.Errorf("expected 1 failure, got %d", sum.FailureCount)
	}

	if err := trail.CloseWithFooter(sum.State); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		t.Fatalf("load trail failed: %v", err)
	}
	denied := data.Records[0]
	if denied.Status != runner.StatusDenied {
		t.Errorf("first record status = %s", denied.Status)
	}
	if denied.Verdict == nil || denied.Verdict.Classification != "requires-approval" {
		t.Errorf("unexpected verdict: %+v", denied.Verdict)
	}
}

// TestSystem_ReassessmentReplacesTail drives the engine to the
// consecutive-failure threshold and checks the revised plan executes.
func TestSystem_ReassessmentReplacesTail(t *testing.T) {
	provider := oracle.NewMockProvider()
	provider.EnqueueContent(commandAction("false"))
	provider.EnqueueContent(`{"steps":["print a recovery marker"]}`)
	provider.EnqueueContent(commandAction("echo recovered"))

	p, err := plan.Parse([]byte("goal: produce a marker\nsteps:\n  - run the failing probe\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	eng, _ := buildStack(t, provider, 1, engine.Config{
		RunID:                  "sys-reassess",
		MaxConsecutiveFailures: 1,
	})
	sum, err := eng.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !sum.Success {
		t.Errorf("expected success after reassessment, got state %s", sum.State)
	}
	if sum.Reassessments != 1 {
		t.Errorf("expected 1 reassessment, got %d", sum.Reassessments)
	}
	if sum.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", sum.Iterations)
	}
	if len(sum.CompletedSteps) != 1 || sum.CompletedSteps[0] != "print a recovery marker" {
		t.Errorf("unexpected completed steps: %v", sum.CompletedSteps)
	}
	if sum.SuccessRate != 1.0 {
		t.Errorf("success rate should use the revised plan length, got %f", sum.SuccessRate)
	}
}

// TestSystem_ExhaustionProducesSummary lets every attempt fail until the
// iteration ceiling and checks the summary is still complete.
func TestSystem_ExhaustionProducesSummary(t *testing.T) {
	provider := oracle.NewMockProvider()
	// Two iterations, each a primary attempt plus one recovery retry.
	for i := 0; i < 4; i++ {
		provider.EnqueueContent(commandAction("false"))
	}

	p, err := plan.Parse([]byte("steps:\n  - run the failing probe\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	eng, trail := buildStack(t, provider, 1, engine.Config{
		RunID:                  "sys-exhausted",
		MaxIterations:          2,
		MaxConsecutiveFailures: 5,
	})
	sum, err := eng.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if sum.Success {
		t.Error("expected failure on exhaustion")
	}
	if !sum.ReachedMaxIterations {
		t.Error("expected ReachedMaxIterations")
	}
	if sum.Iterations != 2 {
		t.Errorf("expected 2 iterations, got %d", sum.Iterations)
	}
	if sum.SuccessRate != 0 {
		t.Errorf("expected success rate 0, got %f", sum.SuccessRate)
	}

	if err := trail.CloseWithFooter(sum.State); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		t.Fatalf("load trail failed: %v", err)
	}
	if data.Footer == nil || data.Footer.Result != engine.StateExhausted {
		t.Errorf("unexpected footer: %+v", data.Footer)
	}
}

// TestSystem_DryRunWalksWholePlan previews a plan including a mutating
// command; nothing executes, everything is recorded.
func TestSystem_DryRunWalksWholePlan(t *testing.T) {
	provider := oracle.NewMockProvider()
	provider.EnqueueContent(commandAction("mkdir artifacts"))
	provider.EnqueueContent(commandAction("echo done"))

	p, err := plan.Parse([]byte("steps:\n  - create the artifacts directory\n  - report completion\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	eng, trail := buildStack(t, provider, 2, engine.Config{RunID: "sys-dry", DryRun: true})
	sum, err := eng.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !sum.Success {
		t.Errorf("expected dry run to succeed, got state %s", sum.State)
	}
	if len(sum.CompletedSteps) != 2 {
		t.Errorf("expected 2 completed steps, got %d", len(sum.CompletedSteps))
	}

	if err := trail.CloseWithFooter(sum.State); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		t.Fatalf("load trail failed: %v", err)
	}
	if !data.Header.DryRun {
		t.Error("header should mark the run as dry")
	}
	for i, rec := range data.Records {
		if rec.Status != runner.StatusDryRun {
			t.Errorf("record %d: status %s", i, rec.Status)
		}
		if rec.Stdout != "" {
			t.Errorf("record %d: dry run produced output %q", i, rec.Stdout)
		}
	}
}

// TestSystem_MalformedPlanAborts checks nothing runs and nothing is
// recorded for a plan with no steps.
func TestSystem_MalformedPlanAborts(t *testing.T) {
	provider := oracle.NewMockProvider()

	eng, trail := buildStack(t, provider, 0, engine.Config{RunID: "sys-malformed"})
	_, err := eng.Run(context.Background(), &plan.Plan{Goal: "nothing"})
	if !errors.Is(err, plan.ErrMalformed) {
		t.Fatalf("expected ErrMalformed, got %v", err)
	}

	if err := trail.CloseWithFooter(engine.StateAborted); err != nil {
		t.Fatalf("close failed: %v", err)
	}
	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		t.Fatalf("load trail failed: %v", err)
	}
	if len(data.Records) != 0 {
		t.Errorf("expected no records, got %d", len(data.Records))
	}
	if len(provider.Requests()) != 0 {
		t.Errorf("oracle should not be consulted for a malformed plan")
	}
}

// TestSystem_VerificationAdvisory runs with verification enabled and
// checks the structured judgment lands in the summary.
func TestSystem_VerificationAdvisory(t *testing.T) {
	provider := oracle.NewMockProvider()
	provider.EnqueueContent(commandAction("echo done"))
	provider.EnqueueContent(`{"passed":true,"issues":[]}`)

	p, err := plan.Parse([]byte("goal: emit a marker\nsteps:\n  - emit the marker\n"))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	eng, _ := buildStack(t, provider, 1, engine.Config{RunID: "sys-verify", Verify: true})
	sum, err := eng.Run(context.Background(), p)
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}

	if !sum.Success {
		t.Fatalf("expected success, got state %s", sum.State)
	}
	if sum.Verification == nil || !sum.Verification.Passed {
		t.Errorf("expected a passing verification, got %+v", sum.Verification)
	}
}

// TestSystem_ConfigValidation loads good and bad config files the way
// the CLI does.
func TestSystem_ConfigValidation(t *testing.T) {
	dir := t.TempDir()

	bad := filepath.Join(dir, "bad.toml")
	os.WriteFile(bad, []byte("[run]\nmax_iterations = 0\n"), 0644)
	if _, err := config.LoadFile(bad); err == nil || !strings.Contains(err.Error(), "must be > 0") {
		t.Errorf("expected validation error, got %v", err)
	}

	good := filepath.Join(dir, "good.toml")
	os.WriteFile(good, []byte("[run]\nmax_iterations = 7\n\n[oracle]\nmodel = \"claude-sonnet-4-20250514\"\n"), 0644)
	cfg, err := config.LoadFile(good)
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if cfg.Run.MaxIterations != 7 {
		t.Errorf("override lost: %d", cfg.Run.MaxIterations)
	}
	if cfg.Run.MaxConsecutiveFailures != 3 {
		t.Errorf("default lost: %d", cfg.Run.MaxConsecutiveFailures)
	}
	if cfg.Oracle.Model != "claude-sonnet-4-20250514" {
		t.Errorf("model lost: %s", cfg.Oracle.Model)
	}
}

// TestSystem_CredentialsLoading exercises the credentials file the way
// main's init does: load, apply, environment wins.
func TestSystem_CredentialsLoading(t *testing.T) {
	tmpDir := t.TempDir()
	origDir, _ := os.Getwd()
	os.Chdir(tmpDir)
	defer os.Chdir(origDir)

	os.WriteFile("credentials.toml", []byte("[groq]\napi_key = \"from-file\"\n"), 0600)
	os.Unsetenv("GROQ_API_KEY")
	defer os.Unsetenv("GROQ_API_KEY")

	creds, path, err := credentials.Load()
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if creds == nil || path != "credentials.toml" {
		t.Fatalf("credentials not found in current directory, path=%q", path)
	}

	creds.Apply()
	if got := os.Getenv("GROQ_API_KEY"); got != "from-file" {
		t.Errorf("GROQ_API_KEY = %q, want from-file", got)
	}
	if env := config.DefaultAPIKeyEnv("groq"); env != "GROQ_API_KEY" {
		t.Errorf("unexpected env mapping: %s", env)
	}
}
