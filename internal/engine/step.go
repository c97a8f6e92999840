package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"

	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/oracle"
	"github.com/vinayprograms/pilot/internal/policy"
	"github.com/vinayprograms/pilot/internal/runner"
	"github.com/vinayprograms/pilot/internal/telemetry"
	"github.com/vinayprograms/pilot/internal/vault"
)

const (
	// contextWindowSteps bounds how much history each Oracle prompt sees.
	contextWindowSteps    = 10
	contextWindowFailures = 5

	// outputSnippetLen bounds command output carried into Oracle context.
	outputSnippetLen = 400
)

// outcome is the result of one attempt at the current step.
type outcome struct {
	success bool
	status  string
	detail  string
}

// iterate runs one loop cycle: a primary attempt at the cursor step,
// then at most one recovery attempt, then reassessment when the
// consecutive-failure threshold is reached.
func (e *Engine) iterate(ctx context.Context, st *runState) {
	idx := st.cursor
	step := &st.steps[idx]
	stepStart := time.Now()

	ctx, span := telemetry.GetTracer().StartSpan(ctx, "engine.step")
	defer span.End()
	span.SetAttributes(
		attribute.String("step.id", step.ID),
		attribute.Int("step.index", idx),
	)

	st.log.StepStart(step.ID, step.Description)
	e.events.StepStart(idx, len(st.steps), step.Description)

	out := e.attempt(ctx, st, step)
	if out.success {
		e.completeStep(st, step, out)
		st.log.StepComplete(step.ID, out.status, time.Since(stepStart))
		e.events.StepEnd(idx, len(st.steps), out.status, out.detail)
		span.SetAttributes(attribute.String("step.status", out.status))
		return
	}

	e.failStep(st, step, out)
	e.events.StepEnd(idx, len(st.steps), out.status, out.detail)

	if st.consecutiveFailures >= e.cfg.MaxConsecutiveFailures {
		e.reassess(ctx, st)
		span.SetAttributes(attribute.String("step.status", StepFailed))
		return
	}

	// One recovery consultation, one retry of the same step. The cursor
	// never moves here.
	st.recoveryAttempts++
	st.log.RecoveryAttempt(step.ID, st.consecutiveFailures)
	e.events.Recovery(idx, out.detail)

	action, err := e.decider.Recover(ctx, e.stepContext(st, step), out.detail)
	if err != nil {
		// A failed recovery consultation exhausts this attempt; the loop
		// simply moves to the next cycle.
		st.log.OracleError("recovery", err)
		span.SetAttributes(attribute.String("step.status", StepFailed))
		return
	}

	out = e.perform(ctx, st, step, action)
	if out.success {
		e.completeStep(st, step, out)
		st.log.StepComplete(step.ID, out.status, time.Since(stepStart))
		e.events.StepEnd(idx, len(st.steps), out.status, out.detail)
		span.SetAttributes(attribute.String("step.status", out.status))
		return
	}

	e.failStep(st, step, out)
	e.events.StepEnd(idx, len(st.steps), out.status, out.detail)
	span.SetAttributes(attribute.String("step.status", StepFailed))

	if st.consecutiveFailures >= e.cfg.MaxConsecutiveFailures {
		e.reassess(ctx, st)
	}
}

// attempt asks the Oracle for the step's action and performs it.
func (e *Engine) attempt(ctx context.Context, st *runState, step *Step) outcome {
	step.Status = StepExecuting

	action, err := e.decider.NextAction(ctx, e.stepContext(st, step))
	if err != nil {
		st.log.OracleError("step", err)
		return outcome{status: runner.StatusError, detail: "oracle: " + err.Error()}
	}
	return e.perform(ctx, st, step, action)
}

// perform executes one action for the step.
func (e *Engine) perform(ctx context.Context, st *runState, step *Step, action *oracle.Action) outcome {
	step.Attempts++

	switch action.Kind {
	case oracle.ActionCommand:
		return e.performCommand(ctx, st, step, action)
	case oracle.ActionCode:
		e.emitNote(st, step, "code", action.Code)
		return outcome{success: true, status: runner.StatusSuccess, detail: "produced code"}
	case oracle.ActionMessage:
		e.emitNote(st, step, "message", action.Text)
		return outcome{success: true, status: runner.StatusSuccess, detail: action.Text}
	default:
		// Deciders constructed from parsed Oracle output never produce
		// this; injected test doubles might.
		return outcome{status: runner.StatusError, detail: fmt.Sprintf("unrecognized action kind %q", action.Kind)}
	}
}

// performCommand routes a command action through vault, gate, and runner.
func (e *Engine) performCommand(ctx context.Context, st *runState, step *Step, action *oracle.Action) outcome {
	// The Oracle may mint fresh secret material (new passwords, keys).
	// Fold its command through the session vault so the tracked form is
	// always redacted.
	command, _ := e.vault.Redact(action.Command)
	step.Command = command

	// Classification must see the restored text, otherwise a destructive
	// command could hide inside a secret value. The restored form goes no
	// further than this call.
	restored, _ := vault.Substitute(command, e.vault.Mapping())
	verdict := e.gate.Classify(restored, policy.Options{
		AutoApprove:    e.cfg.AutoApprove,
		AllowDangerous: e.cfg.AllowDangerous,
	})

	st.log.PolicyVerdict(step.ID, verdict.Classification.String(), verdictRuleID(verdict), verdict.Reason)

	switch verdict.Classification {
	case policy.Blocked:
		e.emitRefusal(st, step, command, verdict, runner.StatusBlocked)
		return outcome{status: runner.StatusBlocked, detail: "blocked by policy: " + verdict.Reason}
	case policy.RequiresApproval:
		if !e.approved(ctx, command, verdict) {
			e.emitRefusal(st, step, command, verdict, runner.StatusDenied)
			return outcome{status: runner.StatusDenied, detail: "approval withheld: " + verdict.Reason}
		}
	}

	res := e.runner.Run(ctx, command, runner.Options{
		Timeout: e.cfg.CommandTimeout,
		DryRun:  e.cfg.DryRun,
		RunID:   st.runID,
		StepID:  step.ID,
		Mapping: e.vault.Mapping(),
		Verdict: auditVerdict(verdict),
	})

	switch res.Status {
	case runner.StatusSuccess:
		return outcome{success: true, status: res.Status, detail: resultDetail(command, res)}
	case runner.StatusDryRun:
		// Simulated execution still advances the plan.
		return outcome{success: true, status: res.Status, detail: "would run: " + command}
	default:
		return outcome{status: res.Status, detail: resultDetail(command, res)}
	}
}

// approved resolves a requires-approval verdict. Dry runs approve
// implicitly so a preview can walk the whole plan without prompting.
func (e *Engine) approved(ctx context.Context, command string, verdict policy.Verdict) bool {
	if e.cfg.DryRun {
		return true
	}
	if e.approve == nil {
		return false
	}
	return e.approve(ctx, command, verdict)
}

// completeStep advances the cursor after a successful attempt.
func (e *Engine) completeStep(st *runState, step *Step, out outcome) {
	step.Status = StepSuccess
	st.consecutiveFailures = 0
	st.completed = append(st.completed, step.Description)
	st.transcript = append(st.transcript, fmt.Sprintf("%s (%s): %s", step.ID, out.status, step.Description))
	st.cursor++
}

// failStep records a failed attempt. The cursor stays put.
func (e *Engine) failStep(st *runState, step *Step, out outcome) {
	step.Status = StepFailed
	st.consecutiveFailures++
	st.failures = append(st.failures, Failure{
		StepID:    step.ID,
		Step:      step.Description,
		Status:    out.status,
		Detail:    out.detail,
		Iteration: st.iterations,
		Timestamp: time.Now().UTC(),
	})
}

// reassess replaces the unexecuted plan tail with the Oracle's revision.
// The failure counter resets and the reassessment counts regardless of
// whether the Oracle's reply is usable; a bad reply keeps the tail.
func (e *Engine) reassess(ctx context.Context, st *runState) {
	st.reassessments++
	st.consecutiveFailures = 0

	remaining := make([]string, 0, len(st.steps)-st.cursor)
	for _, s := range st.steps[st.cursor:] {
		remaining = append(remaining, s.Description)
	}

	st.log.ReassessmentTriggered(len(remaining), len(st.failures))
	e.events.Reassess(st.reassessments, len(remaining))

	revised, err := e.decider.Reassess(ctx, st.goal, remaining, failureHistory(st))
	if err != nil {
		st.log.OracleError("reassessment", err)
		return
	}

	steps := append([]Step(nil), st.steps[:st.cursor]...)
	for _, desc := range revised {
		red, _ := e.vault.Redact(desc)
		st.nextID++
		steps = append(steps, Step{
			ID:          fmt.Sprintf("s%d", st.nextID),
			Description: red,
			Status:      StepPending,
		})
	}
	st.steps = steps
}

// stepContext assembles the redacted context window for an Oracle call.
func (e *Engine) stepContext(st *runState, step *Step) oracle.StepContext {
	return oracle.StepContext{
		Goal:      st.goal,
		Step:      step.Description,
		Completed: tailStrings(st.transcript, contextWindowSteps),
		Failures:  tailStrings(failureHistory(st), contextWindowFailures),
	}
}

// failureHistory renders failures as redacted one-liners.
func failureHistory(st *runState) []string {
	out := make([]string, 0, len(st.failures))
	for _, f := range st.failures {
		out = append(out, fmt.Sprintf("%s (%s): %s", f.StepID, f.Status, f.Detail))
	}
	return out
}

func tailStrings(s []string, n int) []string {
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}

// resultDetail summarizes a runner result for context and failure
// records. Output is already masked by the runner.
func resultDetail(command string, res runner.Result) string {
	var sb strings.Builder
	sb.WriteString(command)
	if res.ExitCode != nil && *res.ExitCode != 0 {
		sb.WriteString(fmt.Sprintf(" (exit %d)", *res.ExitCode))
	} else if res.Status != runner.StatusSuccess {
		sb.WriteString(" (" + res.Status + ")")
	}
	if sn := snippet(res.Stderr); sn != "" {
		sb.WriteString(": " + sn)
	} else if sn := snippet(res.Stdout); sn != "" && res.Status != runner.StatusSuccess {
		sb.WriteString(": " + sn)
	}
	return sb.String()
}

func snippet(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > outputSnippetLen {
		s = s[:outputSnippetLen] + "..."
	}
	return s
}

// emitNote records a non-command action on the audit trail.
func (e *Engine) emitNote(st *runState, step *Step, kind, content string) {
	st.transcript = append(st.transcript, fmt.Sprintf("%s (%s): %s", step.ID, kind, snippet(content)))
	e.emit(st, audit.Record{
		RunID:   st.runID,
		StepID:  step.ID,
		Status:  runner.StatusSuccess,
		Message: kind + ": " + content,
	})
}

// emitRefusal records a blocked or denied command. The runner is never
// consulted for these, so the engine writes the record itself.
func (e *Engine) emitRefusal(st *runState, step *Step, command string, verdict policy.Verdict, status string) {
	e.emit(st, audit.Record{
		RunID:   st.runID,
		StepID:  step.ID,
		Command: command,
		Status:  status,
		Message: verdict.Reason,
		Verdict: auditVerdict(verdict),
	})
}

func (e *Engine) emit(st *runState, rec audit.Record) {
	if err := e.sink.Emit(rec); err != nil {
		st.log.Warn("audit emit failed", map[string]interface{}{
			"step":  rec.StepID,
			"error": err.Error(),
		})
	}
}

func auditVerdict(v policy.Verdict) *audit.Verdict {
	av := &audit.Verdict{
		Classification: v.Classification.String(),
		Reason:         v.Reason,
	}
	if v.Rule != nil {
		av.RuleID = v.Rule.ID
	}
	return av
}

func verdictRuleID(v policy.Verdict) string {
	if v.Rule == nil {
		return ""
	}
	return v.Rule.ID
}
