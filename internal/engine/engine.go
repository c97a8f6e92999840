// Package engine drives a plan to completion. It owns the resilient
// iteration loop: each cycle consults the Oracle for the next action,
// routes commands through the secret vault and the policy gate, executes
// via the runner, and folds every failure into retry, recovery, and
// reassessment machinery. Oracle and runner failures are never fatal;
// only a structurally invalid plan aborts a run before it starts.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/logging"
	"github.com/vinayprograms/pilot/internal/oracle"
	"github.com/vinayprograms/pilot/internal/plan"
	"github.com/vinayprograms/pilot/internal/policy"
	"github.com/vinayprograms/pilot/internal/runner"
	"github.com/vinayprograms/pilot/internal/telemetry"
	"github.com/vinayprograms/pilot/internal/vault"
)

// Per-step states.
const (
	StepPending   = "pending"
	StepExecuting = "executing"
	StepSuccess   = "success"
	StepFailed    = "failed"
)

// Terminal run states.
const (
	StateCompleted = "completed"
	StateExhausted = "exhausted"
	StateAborted   = "aborted"
)

// Step is one unit of the mutable plan, tracked across attempts and
// reassessments. Descriptions and commands are stored in redacted form.
type Step struct {
	ID          string `json:"id"`
	Description string `json:"description"`
	Command     string `json:"command,omitempty"`
	Status      string `json:"status"`
	Attempts    int    `json:"attempts"`
}

// Failure records one failed attempt.
type Failure struct {
	StepID    string    `json:"step_id"`
	Step      string    `json:"step"`
	Status    string    `json:"status"`
	Detail    string    `json:"detail"`
	Iteration int       `json:"iteration"`
	Timestamp time.Time `json:"timestamp"`
}

// Summary is the complete outcome of a run. It is always produced, even
// on exhaustion or cancellation; callers decide whether partial
// completion is acceptable.
type Summary struct {
	RunID                string               `json:"run_id"`
	State                string               `json:"state"`
	Success              bool                 `json:"success"`
	CompletedSteps       []string             `json:"completed_steps"`
	FailureCount         int                  `json:"failure_count"`
	Failures             []Failure            `json:"failures,omitempty"`
	RecoveryAttempts     int                  `json:"recovery_attempts"`
	Reassessments        int                  `json:"reassessments"`
	Iterations           int                  `json:"iterations"`
	SuccessRate          float64              `json:"success_rate"`
	ReachedMaxIterations bool                 `json:"reached_max_iterations"`
	Verification         *oracle.Verification `json:"verification,omitempty"`
	DurationMs           int64                `json:"duration_ms"`
}

// Config bounds one run.
type Config struct {
	MaxIterations          int
	MaxConsecutiveFailures int
	CommandTimeout         time.Duration
	DryRun                 bool
	AutoApprove            bool
	AllowDangerous         bool
	Verify                 bool

	// RunID tags the run's records and summary. Empty generates one, so
	// only callers that need the ID up front (trail file naming) set it.
	RunID string
}

func (c *Config) applyDefaults() {
	if c.MaxIterations <= 0 {
		c.MaxIterations = 50
	}
	if c.MaxConsecutiveFailures <= 0 {
		c.MaxConsecutiveFailures = 3
	}
	if c.CommandTimeout <= 0 {
		c.CommandTimeout = 60 * time.Second
	}
}

// Decider is the Oracle boundary. Real runs use oracle.Oracle; tests
// inject deterministic stand-ins.
type Decider interface {
	NextAction(ctx context.Context, sc oracle.StepContext) (*oracle.Action, error)
	Recover(ctx context.Context, sc oracle.StepContext, failure string) (*oracle.Action, error)
	Reassess(ctx context.Context, goal string, remaining, failures []string) ([]string, error)
	Verify(ctx context.Context, goal string, transcript []string) (*oracle.Verification, error)
}

// CommandRunner executes one command and reports its result.
type CommandRunner interface {
	Run(ctx context.Context, command string, opts runner.Options) runner.Result
}

// Approver decides commands the gate marks requires-approval. The
// command is in redacted form. A nil Approver withholds all approvals.
type Approver func(ctx context.Context, command string, verdict policy.Verdict) bool

// Deps are the engine's collaborators. Decider and Runner are required;
// the rest default sensibly.
type Deps struct {
	Decider  Decider
	Runner   CommandRunner
	Gate     *policy.Gate
	Vault    *vault.Vault
	Sink     audit.Sink
	Logger   *logging.Logger
	Events   Events
	Approver Approver
}

// Engine runs plans.
type Engine struct {
	decider Decider
	runner  CommandRunner
	gate    *policy.Gate
	vault   *vault.Vault
	sink    audit.Sink
	log     *logging.Logger
	events  Events
	approve Approver
	cfg     Config
}

// New creates an engine.
func New(deps Deps, cfg Config) (*Engine, error) {
	if deps.Decider == nil {
		return nil, fmt.Errorf("engine requires a decider")
	}
	if deps.Runner == nil {
		return nil, fmt.Errorf("engine requires a runner")
	}
	if deps.Gate == nil {
		deps.Gate = policy.NewGate()
	}
	if deps.Vault == nil {
		deps.Vault = vault.New()
	}
	if deps.Sink == nil {
		deps.Sink = audit.Discard{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.New()
	}
	if deps.Events == nil {
		deps.Events = NoopEvents{}
	}
	cfg.applyDefaults()

	return &Engine{
		decider: deps.Decider,
		runner:  deps.Runner,
		gate:    deps.Gate,
		vault:   deps.Vault,
		sink:    deps.Sink,
		log:     deps.Logger.WithComponent("engine"),
		events:  deps.Events,
		approve: deps.Approver,
		cfg:     cfg,
	}, nil
}

// runState is the execution context for one run. It is owned exclusively
// by the loop between suspension points and needs no locking.
type runState struct {
	runID      string
	goal       string
	steps      []Step
	cursor     int
	nextID     int
	iterations int

	consecutiveFailures int
	completed           []string
	failures            []Failure
	recoveryAttempts    int
	reassessments       int

	// transcript accumulates one redacted line per completed step for
	// Oracle context and post-run verification.
	transcript []string

	log *logging.Logger
}

// Run drives the plan to a terminal state and returns the summary. The
// only error return is a structurally invalid plan; every other problem
// is folded into the summary.
func (e *Engine) Run(ctx context.Context, p *plan.Plan) (*Summary, error) {
	if p == nil || len(p.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps to run", plan.ErrMalformed)
	}

	start := time.Now()
	st := &runState{runID: e.cfg.RunID}
	if st.runID == "" {
		st.runID = uuid.New().String()
	}
	st.log = e.log.WithRunID(st.runID)

	// Plan text may carry credentials the author pasted in; fold them
	// into the session vault before anything is logged or sent out.
	st.goal, _ = e.vault.Redact(p.Goal)
	for _, desc := range p.Steps {
		red, _ := e.vault.Redact(desc)
		st.nextID++
		st.steps = append(st.steps, Step{
			ID:          fmt.Sprintf("s%d", st.nextID),
			Description: red,
			Status:      StepPending,
		})
	}
	if n := e.vault.Mapping().Len(); n > 0 {
		st.log.RedactionApplied(n)
	}

	ctx, span := telemetry.GetTracer().StartSpan(ctx, "engine.run")
	defer span.End()
	span.SetAttributes(
		attribute.String("run.id", st.runID),
		attribute.Int("plan.steps", len(st.steps)),
		attribute.Bool("run.dry_run", e.cfg.DryRun),
	)

	st.log.RunStart(st.runID, len(st.steps))

	state := StateExhausted
	reachedMax := false

	for {
		// Cancellation is cooperative and checked between iterations;
		// a command already in flight is bounded by its own timeout.
		if ctx.Err() != nil {
			st.log.Warn("run cancelled", map[string]interface{}{"iterations": st.iterations})
			state = StateAborted
			break
		}
		if st.cursor >= len(st.steps) {
			state = StateCompleted
			break
		}
		if st.iterations >= e.cfg.MaxIterations {
			state = StateExhausted
			reachedMax = true
			break
		}
		st.iterations++
		e.iterate(ctx, st)
	}

	summary := e.summarize(st, state, reachedMax, start)

	if e.cfg.Verify && state == StateCompleted {
		if v, err := e.decider.Verify(ctx, st.goal, st.transcript); err != nil {
			st.log.OracleError("verification", err)
		} else {
			summary.Verification = v
		}
	}

	span.SetAttributes(
		attribute.String("run.state", state),
		attribute.Int("run.iterations", st.iterations),
		attribute.Int("run.failures", len(st.failures)),
	)
	st.log.RunComplete(st.runID, time.Since(start), state)

	return summary, nil
}

func (e *Engine) summarize(st *runState, state string, reachedMax bool, start time.Time) *Summary {
	rate := 0.0
	if len(st.steps) > 0 {
		rate = float64(len(st.completed)) / float64(len(st.steps))
	}
	completed := make([]string, len(st.completed))
	copy(completed, st.completed)

	return &Summary{
		RunID:                st.runID,
		State:                state,
		Success:              state == StateCompleted,
		CompletedSteps:       completed,
		FailureCount:         len(st.failures),
		Failures:             append([]Failure(nil), st.failures...),
		RecoveryAttempts:     st.recoveryAttempts,
		Reassessments:        st.reassessments,
		Iterations:           st.iterations,
		SuccessRate:          rate,
		ReachedMaxIterations: reachedMax,
		DurationMs:           time.Since(start).Milliseconds(),
	}
}
