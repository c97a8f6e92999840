// Package main is the entry point for the pilot CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"

	"github.com/vinayprograms/pilot/internal/credentials"
	"github.com/vinayprograms/pilot/internal/plan"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// errReported marks a failure the command already printed; main exits
// nonzero without repeating it.
var errReported = errors.New("reported")

func init() {
	// Priority: credentials.toml > .env > inherited environment.
	if creds, _, err := credentials.Load(); err == nil && creds != nil {
		creds.Apply()
	}
	_ = godotenv.Load()
}

func main() {
	var cli CLI
	kctx := kong.Parse(&cli,
		kong.Name("pilot"),
		kong.Description("Runs step plans through a policy-gated, secret-redacting execution engine."),
		kong.UsageOnError(),
		kongVars(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch kctx.Command() {
	case "run <plan>":
		err = runPlan(ctx, &cli.Run)
	case "check <command>":
		err = runCheck(os.Stdout, &cli.Check)
	case "redact <text>", "redact":
		err = runRedact(os.Stdin, os.Stdout, &cli.Redact)
	case "rules":
		err = printRules(os.Stdout)
	case "runs":
		err = listRuns(os.Stdout, &cli.Runs)
	case "replay <trail>", "replay":
		err = runReplay(&cli.Replay)
	case "models":
		err = listModels(ctx, os.Stdout, &cli.Models)
	case "setup":
		err = runSetup()
	case "version":
		fmt.Printf("pilot version %s (commit: %s, built: %s)\n", version, commit, buildTime)
	default:
		err = fmt.Errorf("unknown command: %s", kctx.Command())
	}

	if err != nil {
		stop()
		if !errors.Is(err, errReported) {
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
		if errors.Is(err, plan.ErrMalformed) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
