// Package main defines the CLI structure using kong.
package main

import "github.com/alecthomas/kong"

// CLI defines the command-line interface.
type CLI struct {
	Run     RunCmd     `cmd:"" help:"Run a plan through the engine"`
	Check   CheckCmd   `cmd:"" help:"Classify a command without executing it"`
	Redact  RedactCmd  `cmd:"" help:"Redact secrets from text"`
	Rules   RulesCmd   `cmd:"" help:"Show the destructive-command rule table"`
	Runs    RunsCmd    `cmd:"" help:"List indexed runs"`
	Replay  ReplayCmd  `cmd:"" help:"Replay an audit trail"`
	Models  ModelsCmd  `cmd:"" help:"List known planner models"`
	Setup   SetupCmd   `cmd:"" help:"Interactive setup wizard"`
	Version VersionCmd `cmd:"" help:"Show version information"`
}

// RunCmd executes a plan file.
type RunCmd struct {
	Plan           string `arg:"" help:"Plan file (YAML or JSON), or - for stdin"`
	Config         string `help:"Config file path"`
	Profile        string `help:"Capability profile for the planner model"`
	Model          string `help:"Override the planner model"`
	DryRun         bool   `help:"Preview commands without executing anything"`
	AutoApprove    bool   `help:"Approve risky commands without prompting"`
	AllowDangerous bool   `help:"Treat dangerous commands as pre-approved (rule matches stay blocked)"`
	Verify         bool   `help:"Ask the model to judge the outcome after completion"`
	MaxIterations  int    `help:"Override run.max_iterations"`
	TimeoutMs      int    `help:"Override run.timeout_ms"`
	Output         string `help:"Summary format" enum:"text,json" default:"text"`
	Quiet          bool   `short:"q" help:"Suppress progress output"`
}

// CheckCmd classifies a single command against the policy gate.
type CheckCmd struct {
	Command        string `arg:"" help:"Command to classify (quote it)"`
	AutoApprove    bool   `help:"Evaluate with auto-approve enabled"`
	AllowDangerous bool   `help:"Evaluate with allow-dangerous enabled"`
	JSON           bool   `help:"Emit the verdict as JSON"`
}

// RedactCmd runs text through the secret detectors.
type RedactCmd struct {
	Text string `arg:"" optional:"" help:"Text to redact (reads stdin when omitted)"`
}

// RulesCmd prints the destructive rule table.
type RulesCmd struct{}

// RunsCmd lists indexed runs from the audit database.
type RunsCmd struct {
	Config string `help:"Config file path"`
	Limit  int    `short:"n" default:"20" help:"Maximum runs to list"`
	JSON   bool   `help:"Emit JSON instead of a table"`
}

// ReplayCmd replays one or more audit trails.
type ReplayCmd struct {
	Trail   string `arg:"" optional:"" help:"Trail file, glob, or run ID prefix (defaults to the last run)"`
	Verbose int    `short:"v" type:"counter" help:"Verbosity level (-v, -vv)"`
	NoPager bool   `help:"Disable pager for output"`
	Follow  bool   `short:"f" help:"Follow an in-progress trail live"`
	Stats   bool   `help:"Print aggregate statistics instead of the timeline"`
	Config  string `help:"Config file path"`
}

// ModelsCmd lists models from the catwalk catalog.
type ModelsCmd struct {
	Provider string `help:"Limit the listing to one provider"`
	JSON     bool   `help:"Emit JSON instead of a table"`
}

// SetupCmd launches the interactive setup wizard.
type SetupCmd struct{}

// VersionCmd shows version information.
type VersionCmd struct{}

// kongVars returns variables for kong (version info).
func kongVars() kong.Vars {
	return kong.Vars{
		"version": version,
	}
}
