package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/config"
	"github.com/vinayprograms/pilot/internal/engine"
	"github.com/vinayprograms/pilot/internal/logging"
	"github.com/vinayprograms/pilot/internal/oracle"
	"github.com/vinayprograms/pilot/internal/plan"
	"github.com/vinayprograms/pilot/internal/runner"
	"github.com/vinayprograms/pilot/internal/telemetry"
)

// runPlan loads the plan, assembles the engine with its collaborators,
// drives the run, and prints the summary as JSON on stdout.
func runPlan(ctx context.Context, cmd *RunCmd) error {
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		return err
	}
	applyRunOverrides(cfg, cmd)
	if err := cfg.Validate(); err != nil {
		return err
	}

	p, err := loadPlan(cmd.Plan)
	if err != nil {
		return err
	}

	log := logging.New()

	if cfg.Telemetry.Enabled {
		exp, err := telemetry.NewExporter(ctx, telemetry.ExporterConfig{
			Endpoint:       cfg.Telemetry.Endpoint,
			Protocol:       cfg.Telemetry.Protocol,
			Insecure:       cfg.Telemetry.Insecure,
			Headers:        cfg.Telemetry.Headers,
			ServiceVersion: version,
		})
		if err != nil {
			return fmt.Errorf("telemetry: %w", err)
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = exp.Close(shutdownCtx)
		}()
	}

	provider, err := buildProvider(cfg, cmd)
	if err != nil {
		return err
	}

	runID := uuid.New().String()

	// The runner and the engine must share one sink: the runner records
	// executed commands, the engine records refusals and planner notes,
	// and the trail needs both.
	trail, sink, closeSinks, err := buildSinks(cfg, runID, len(p.Steps), cfg.Run.DryRun, log)
	if err != nil {
		return err
	}

	deps := engine.Deps{
		Decider: oracle.New(provider, log),
		Runner:  runner.New(runner.Config{Dir: expandHome(cfg.Pilot.Workspace)}, sink, log),
		Sink:    sink,
		Logger:  log,
	}
	if !cmd.Quiet {
		deps.Events = &consoleEvents{out: os.Stderr}
	}
	if isTerminal(os.Stdin) && isTerminal(os.Stderr) {
		deps.Approver = promptApprover(os.Stdin, os.Stderr)
	}

	eng, err := engine.New(deps, engine.Config{
		MaxIterations:          cfg.Run.MaxIterations,
		MaxConsecutiveFailures: cfg.Run.MaxConsecutiveFailures,
		CommandTimeout:         cfg.CommandTimeout(),
		DryRun:                 cfg.Run.DryRun,
		AutoApprove:            cfg.Run.AutoApprove,
		AllowDangerous:         cfg.Run.AllowDangerous,
		Verify:                 cfg.Run.Verify,
		RunID:                  runID,
	})
	if err != nil {
		closeSinks(engine.StateAborted)
		return err
	}

	if !cmd.Quiet {
		fmt.Fprintf(os.Stderr, "Running plan: %s (run: %s)\n\n", cmd.Plan, runID[:8])
	}

	summary, err := eng.Run(ctx, p)
	if err != nil {
		closeSinks(engine.StateAborted)
		return err
	}

	closeSinks(summary.State)
	indexRun(cfg, trail, log)

	if cmd.Output == "json" {
		out, _ := json.MarshalIndent(summary, "", "  ")
		fmt.Println(string(out))
	} else {
		printSummary(os.Stdout, summary)
	}

	if !summary.Success {
		// The summary already tells the story; just exit nonzero.
		return errReported
	}
	return nil
}

// loadPlan reads the plan from a file, or from stdin when the argument
// is "-".
func loadPlan(arg string) (*plan.Plan, error) {
	if arg != "-" {
		return plan.Load(arg)
	}
	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		return nil, fmt.Errorf("failed to read plan from stdin: %w", err)
	}
	return plan.Parse(data)
}

// printSummary renders the run outcome for humans. The JSON form is the
// machine surface; this is the one people read.
func printSummary(w io.Writer, sum *engine.Summary) {
	verdict := failStyle.Render("FAILED")
	if sum.Success {
		verdict = okStyle.Render("COMPLETED")
	} else if sum.ReachedMaxIterations {
		verdict = failStyle.Render("EXHAUSTED")
	}

	fmt.Fprintf(w, "\n%s  run %s\n", verdict, faintStyle.Render(shortRunID(sum.RunID)))
	fmt.Fprintf(w, "  steps:      %d completed (%.0f%%)\n", len(sum.CompletedSteps), sum.SuccessRate*100)
	fmt.Fprintf(w, "  iterations: %d\n", sum.Iterations)
	if sum.FailureCount > 0 {
		fmt.Fprintf(w, "  failures:   %d (%d recoveries, %d reassessments)\n",
			sum.FailureCount, sum.RecoveryAttempts, sum.Reassessments)
	}
	fmt.Fprintf(w, "  duration:   %s\n", (time.Duration(sum.DurationMs) * time.Millisecond).Round(time.Millisecond))
	if sum.Verification != nil {
		if sum.Verification.Passed {
			fmt.Fprintf(w, "  verified:   %s\n", okStyle.Render("passed"))
		} else {
			fmt.Fprintf(w, "  verified:   %s\n", failStyle.Render("failed"))
			for _, issue := range sum.Verification.Issues {
				fmt.Fprintf(w, "    - %s\n", issue)
			}
		}
	}
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// applyRunOverrides layers CLI flags over the loaded configuration.
// Boolean flags only widen; absent flags leave config values alone.
func applyRunOverrides(cfg *config.Config, cmd *RunCmd) {
	if cmd.DryRun {
		cfg.Run.DryRun = true
	}
	if cmd.AutoApprove {
		cfg.Run.AutoApprove = true
	}
	if cmd.AllowDangerous {
		cfg.Run.AllowDangerous = true
	}
	if cmd.Verify {
		cfg.Run.Verify = true
	}
	if cmd.MaxIterations > 0 {
		cfg.Run.MaxIterations = cmd.MaxIterations
	}
	if cmd.TimeoutMs > 0 {
		cfg.Run.TimeoutMs = cmd.TimeoutMs
	}
}

// buildProvider creates the planner model provider from config, the
// selected capability profile, and flag overrides.
func buildProvider(cfg *config.Config, cmd *RunCmd) (oracle.Provider, error) {
	oc := cfg.GetProfile(cmd.Profile)
	if cmd.Model != "" {
		oc.Model = cmd.Model
	}
	if oc.Model == "" {
		return nil, fmt.Errorf("planner model not configured; set oracle.model in pilot.toml or pass --model")
	}

	providerName := oc.Provider
	if providerName == "" {
		providerName = oracle.InferProviderFromModel(oc.Model)
	}

	apiKey := cfg.GetProfileAPIKey(cmd.Profile)
	if apiKey == "" {
		apiKey = cfg.GetAPIKey()
	}
	if apiKey == "" {
		apiKey = os.Getenv(config.DefaultAPIKeyEnv(providerName))
	}

	return oracle.NewProvider(oracle.Config{
		Provider:  providerName,
		Model:     oc.Model,
		APIKey:    apiKey,
		BaseURL:   oc.BaseURL,
		MaxTokens: oc.MaxTokens,
		Thinking:  oracle.ThinkingConfig{Level: oracle.ThinkingLevel(oc.Thinking)},
		Retry:     parseRetryConfig(cfg.Oracle.MaxRetries, cfg.Oracle.RetryBackoff),
	})
}

// buildSinks opens the per-run trail file and the optional NATS
// broadcast. The close function finalizes the trail with the run's
// terminal state; it must run before the trail is indexed.
func buildSinks(cfg *config.Config, runID string, planSteps int, dryRun bool, log *logging.Logger) (*audit.Trail, audit.Sink, func(result string), error) {
	path := filepath.Join(expandHome(cfg.Audit.Dir), runID+".jsonl")
	trail, err := audit.NewTrail(path, audit.Header{
		RunID:     runID,
		StartedAt: time.Now().UTC(),
		PlanSteps: planSteps,
		DryRun:    dryRun,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("audit trail: %w", err)
	}

	var sink audit.Sink = trail
	var broadcast *audit.NATSSink
	if cfg.Audit.NATSURL != "" {
		broadcast, err = audit.NewNATSSink(cfg.Audit.NATSURL, cfg.Audit.NATSSubject)
		if err != nil {
			// Broadcast is best-effort; the trail file is the record.
			log.Warn("audit broadcast unavailable", map[string]interface{}{"error": err.Error()})
			broadcast = nil
		} else {
			sink = audit.NewMulti(func(err error) {
				log.Warn("audit emit failed", map[string]interface{}{"error": err.Error()})
			}, trail, broadcast)
		}
	}

	closeAll := func(result string) {
		if broadcast != nil {
			_ = broadcast.Close()
		}
		if err := trail.CloseWithFooter(result); err != nil {
			log.Warn("audit trail close failed", map[string]interface{}{"error": err.Error()})
		}
	}
	return trail, sink, closeAll, nil
}

// indexRun records the finished trail in the SQLite run index,
// best-effort. A broken index never fails a completed run.
func indexRun(cfg *config.Config, trail *audit.Trail, log *logging.Logger) {
	if cfg.Audit.DB == "" {
		return
	}
	store, err := audit.NewSQLiteStore(expandHome(cfg.Audit.DB))
	if err != nil {
		log.Warn("run index unavailable", map[string]interface{}{"error": err.Error()})
		return
	}
	defer store.Close()

	data, err := audit.LoadTrail(trail.Path())
	if err != nil {
		log.Warn("trail reload for indexing failed", map[string]interface{}{"error": err.Error()})
		return
	}
	if err := store.SaveRun(trail.Path(), data); err != nil {
		log.Warn("run indexing failed", map[string]interface{}{"error": err.Error()})
	}
}
