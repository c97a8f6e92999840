package main

import (
	"testing"

	"github.com/alecthomas/kong"
)

func TestRunCmd_Parse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	kctx, err := parser.Parse([]string{"run", "plan.yaml", "--dry-run", "--max-iterations", "10"})
	if err != nil {
		t.Fatal(err)
	}

	if kctx.Command() != "run <plan>" {
		t.Errorf("command = %q", kctx.Command())
	}
	if cli.Run.Plan != "plan.yaml" {
		t.Errorf("expected plan 'plan.yaml', got %q", cli.Run.Plan)
	}
	if !cli.Run.DryRun {
		t.Error("expected dry-run to be true")
	}
	if cli.Run.MaxIterations != 10 {
		t.Errorf("expected max-iterations=10, got %d", cli.Run.MaxIterations)
	}
}

func TestRunCmd_Defaults(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := parser.Parse([]string{"run", "plan.yaml"}); err != nil {
		t.Fatal(err)
	}

	if cli.Run.DryRun || cli.Run.AutoApprove || cli.Run.AllowDangerous || cli.Run.Verify {
		t.Error("boolean flags must default to false")
	}
	if cli.Run.MaxIterations != 0 {
		t.Errorf("expected no max-iterations override, got %d", cli.Run.MaxIterations)
	}
}

func TestCheckCmd_Parse(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	kctx, err := parser.Parse([]string{"check", "rm -rf /", "--json"})
	if err != nil {
		t.Fatal(err)
	}

	if kctx.Command() != "check <command>" {
		t.Errorf("command = %q", kctx.Command())
	}
	if cli.Check.Command != "rm -rf /" {
		t.Errorf("expected command 'rm -rf /', got %q", cli.Check.Command)
	}
	if !cli.Check.JSON {
		t.Error("expected json to be true")
	}
}

func TestRunsCmd_LimitDefault(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli)
	if err != nil {
		t.Fatal(err)
	}

	if _, err := parser.Parse([]string{"runs"}); err != nil {
		t.Fatal(err)
	}

	if cli.Runs.Limit != 20 {
		t.Errorf("expected default limit 20, got %d", cli.Runs.Limit)
	}
}
