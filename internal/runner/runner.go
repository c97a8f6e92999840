// Package runner executes shell commands on behalf of the engine. It is
// the only package that ever sees restored secret values: commands
// arrive in redacted form, substitution happens immediately before the
// process is spawned, and everything recorded afterwards (logs, audit
// records, results) carries the redacted text.
package runner

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"github.com/vinayprograms/pilot/internal/audit"
	"github.com/vinayprograms/pilot/internal/logging"
	"github.com/vinayprograms/pilot/internal/vault"
)

// Result status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusBlocked = "blocked"
	StatusDenied  = "denied"
	StatusDryRun  = "dry-run"
	StatusTimeout = "timeout"
)

const (
	// DefaultTimeout bounds command execution when the caller does not
	// set one.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxOutputBytes caps each captured stream.
	DefaultMaxOutputBytes = 1 << 20

	// killGrace is how long to wait for Wait to return after the process
	// group has been killed.
	killGrace = 500 * time.Millisecond
)

// execCommandContext is swapped out by tests to observe (or suppress)
// process creation.
var execCommandContext = exec.CommandContext

// Result is the outcome of a single Run call.
type Result struct {
	Status     string `json:"status"`
	Stdout     string `json:"stdout,omitempty"`
	Stderr     string `json:"stderr,omitempty"`
	ExitCode   *int   `json:"exit_code,omitempty"`
	DurationMs int64  `json:"duration_ms"`

	// Unresolved counts placeholder tokens the session mapping could not
	// restore. The command still runs with those tokens left in place.
	Unresolved int `json:"unresolved,omitempty"`
}

// Options control one Run call.
type Options struct {
	// Timeout is the wall-clock limit. Zero means DefaultTimeout.
	Timeout time.Duration

	// DryRun records the command without spawning any process.
	DryRun bool

	// RunID and StepID tag the audit record.
	RunID  string
	StepID string

	// Mapping restores redacted tokens before the process is spawned.
	// Nil means the command runs exactly as given.
	Mapping *vault.Mapping

	// Verdict is the policy decision that admitted this command. It is
	// attached to the audit record; the runner never re-evaluates it.
	Verdict *audit.Verdict
}

// Config holds runner construction parameters.
type Config struct {
	// Shell is the interpreter binary. Empty means bash when available,
	// /bin/sh otherwise.
	Shell string

	// Dir is the working directory for spawned commands. Empty inherits
	// the process working directory.
	Dir string

	// MaxOutputBytes caps each captured stream. Zero means
	// DefaultMaxOutputBytes.
	MaxOutputBytes int
}

// Runner executes commands and hands every result to the audit sink
// before returning it.
type Runner struct {
	shell string
	dir   string
	max   int
	sink  audit.Sink
	log   *logging.Logger
}

// New creates a runner. A nil sink discards audit records.
func New(cfg Config, sink audit.Sink, log *logging.Logger) *Runner {
	shell := cfg.Shell
	if shell == "" {
		shell = detectShell()
	}
	max := cfg.MaxOutputBytes
	if max <= 0 {
		max = DefaultMaxOutputBytes
	}
	if sink == nil {
		sink = audit.Discard{}
	}
	if log == nil {
		log = logging.New()
	}
	return &Runner{shell: shell, dir: cfg.Dir, max: max, sink: sink, log: log}
}

// detectShell prefers bash for its pipefail and process substitution
// support, falling back to POSIX sh.
func detectShell() string {
	if path, err := exec.LookPath("bash"); err == nil {
		return path
	}
	return "/bin/sh"
}

// Run executes command and returns its result. The command must already
// be in redacted form; the runner substitutes secrets internally right
// before spawning so restored values exist only inside this call. In
// dry-run mode no substitution happens and no process is created.
func (r *Runner) Run(ctx context.Context, command string, opts Options) Result {
	start := time.Now()
	r.log.CommandStart(opts.StepID, command)

	if opts.DryRun {
		res := Result{Status: StatusDryRun, DurationMs: time.Since(start).Milliseconds()}
		r.record(command, opts, res)
		return res
	}

	resolved, unresolved := vault.Substitute(command, opts.Mapping)
	if unresolved > 0 {
		r.log.UnresolvedTokens(opts.StepID, unresolved)
	}

	res := r.execute(ctx, resolved, opts)
	res.Unresolved = unresolved
	res.DurationMs = time.Since(start).Milliseconds()

	// A command may print a restored secret (echo "$TOKEN" and friends).
	// Re-mask output so those values never reach results, logs, or the
	// audit trail.
	if opts.Mapping != nil {
		res.Stdout = opts.Mapping.Mask(res.Stdout)
		res.Stderr = opts.Mapping.Mask(res.Stderr)
	}

	code := -1
	if res.ExitCode != nil {
		code = *res.ExitCode
	}
	r.log.CommandResult(opts.StepID, res.Status, code, time.Since(start))
	r.record(command, opts, res)
	return res
}

// execute spawns the command and enforces the wall-clock timeout. The
// resolved command string never escapes this method.
func (r *Runner) execute(ctx context.Context, resolved string, opts Options) Result {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	cmd := execCommandContext(ctx, r.shell, "-c", resolved)
	cmd.Dir = r.dir
	// Own process group so a timeout kill reaches the whole child tree.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	stdout := newCappedBuffer(r.max)
	stderr := newCappedBuffer(r.max)
	cmd.Stdout = stdout
	cmd.Stderr = stderr

	if err := cmd.Start(); err != nil {
		return Result{Status: StatusError, Stderr: fmt.Sprintf("failed to start command: %v", err)}
	}

	waitDone := make(chan error, 1)
	go func() { waitDone <- cmd.Wait() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	var waitErr error
	timedOut := false
	cancelled := false

	select {
	case waitErr = <-waitDone:
	case <-timer.C:
		timedOut = true
		killGroup(cmd)
		waitErr = drainWait(waitDone)
	case <-ctx.Done():
		cancelled = true
		killGroup(cmd)
		waitErr = drainWait(waitDone)
	}

	res := Result{Stdout: stdout.String(), Stderr: stderr.String()}

	switch {
	case timedOut:
		res.Status = StatusTimeout
		if res.Stderr != "" {
			res.Stderr += "\n"
		}
		res.Stderr += fmt.Sprintf("command killed after %s timeout", timeout)
	case cancelled:
		res.Status = StatusError
		if res.Stderr != "" {
			res.Stderr += "\n"
		}
		res.Stderr += fmt.Sprintf("command cancelled: %v", ctx.Err())
	case waitErr == nil:
		code := 0
		res.Status = StatusSuccess
		res.ExitCode = &code
	default:
		res.Status = StatusError
		if exitErr, ok := waitErr.(*exec.ExitError); ok {
			code := exitErr.ExitCode()
			res.ExitCode = &code
		} else {
			if res.Stderr != "" {
				res.Stderr += "\n"
			}
			res.Stderr += fmt.Sprintf("command execution error: %v", waitErr)
		}
	}
	return res
}

// killGroup force-kills the command's whole process group, falling back
// to killing the direct child when the group signal fails.
func killGroup(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	if err := syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL); err != nil {
		_ = cmd.Process.Kill()
	}
}

// drainWait collects the Wait result after a kill, giving up after a
// grace period so a wedged descendant holding the output pipes cannot
// hang the run.
func drainWait(waitDone <-chan error) error {
	select {
	case err := <-waitDone:
		return err
	case <-time.After(killGrace):
		return nil
	}
}

// record hands the result to the audit sink. The command stored is the
// redacted input, never the resolved form.
func (r *Runner) record(command string, opts Options, res Result) {
	rec := audit.Record{
		RunID:      opts.RunID,
		StepID:     opts.StepID,
		Command:    command,
		Status:     res.Status,
		Stdout:     res.Stdout,
		Stderr:     res.Stderr,
		ExitCode:   res.ExitCode,
		DurationMs: res.DurationMs,
		Verdict:    opts.Verdict,
	}
	if err := r.sink.Emit(rec); err != nil {
		r.log.Warn("audit emit failed", map[string]interface{}{
			"step":  opts.StepID,
			"error": err.Error(),
		})
	}
}

// cappedBuffer collects stream output up to a byte limit. Writes past
// the cap are accepted and dropped so the child never blocks on a full
// pipe.
type cappedBuffer struct {
	mu        sync.Mutex
	buf       bytes.Buffer
	max       int
	truncated bool
}

func newCappedBuffer(max int) *cappedBuffer {
	return &cappedBuffer{max: max}
}

func (c *cappedBuffer) Write(p []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	remaining := c.max - c.buf.Len()
	if remaining <= 0 {
		c.truncated = true
		return len(p), nil
	}
	if len(p) > remaining {
		c.buf.Write(p[:remaining])
		c.truncated = true
		return len(p), nil
	}
	c.buf.Write(p)
	return len(p), nil
}

func (c *cappedBuffer) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.buf.String()
	if c.truncated {
		s += "\n[output truncated]"
	}
	return s
}
