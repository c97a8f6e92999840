// Package logging provides structured, standards-compliant logging.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"
)

// Level represents log severity.
type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

// Logger provides structured logging to stderr.
type Logger struct {
	mu        sync.Mutex
	output    io.Writer
	minLevel  Level
	component string
	runID     string
}

// levelPriority maps levels to numeric priority for filtering.
var levelPriority = map[Level]int{
	LevelDebug: 0,
	LevelInfo:  1,
	LevelWarn:  2,
	LevelError: 3,
}

// New creates a new Logger.
func New() *Logger {
	return &Logger{
		output:   os.Stderr,
		minLevel: LevelInfo,
	}
}

// WithComponent returns a new logger with the given component name.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: component,
		runID:     l.runID,
	}
}

// WithRunID returns a new logger tagged with the given run ID.
func (l *Logger) WithRunID(runID string) *Logger {
	return &Logger{
		output:    l.output,
		minLevel:  l.minLevel,
		component: l.component,
		runID:     runID,
	}
}

// SetLevel sets the minimum log level.
func (l *Logger) SetLevel(level Level) {
	l.minLevel = level
}

// SetOutput sets the output writer (default: stderr).
func (l *Logger) SetOutput(w io.Writer) {
	l.output = w
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string, fields ...map[string]interface{}) {
	l.log(LevelDebug, msg, fields...)
}

// Info logs an info message.
func (l *Logger) Info(msg string, fields ...map[string]interface{}) {
	l.log(LevelInfo, msg, fields...)
}

// Warn logs a warning message.
func (l *Logger) Warn(msg string, fields ...map[string]interface{}) {
	l.log(LevelWarn, msg, fields...)
}

// Error logs an error message.
func (l *Logger) Error(msg string, fields ...map[string]interface{}) {
	l.log(LevelError, msg, fields...)
}

// formatFields formats a map of fields as key=value pairs.
func formatFields(fields map[string]interface{}) string {
	if len(fields) == 0 {
		return ""
	}
	var parts []string
	for k, v := range fields {
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return " " + strings.Join(parts, " ")
}

// log writes a log entry in traditional format: LEVEL TIMESTAMP [component] message key=value ...
func (l *Logger) log(level Level, msg string, fields ...map[string]interface{}) {
	if levelPriority[level] < levelPriority[l.minLevel] {
		return
	}

	timestamp := time.Now().UTC().Format("2006-01-02T15:04:05.000Z")

	var fieldStr string
	if len(fields) > 0 && fields[0] != nil {
		fieldStr = formatFields(fields[0])
	}
	if l.runID != "" {
		fieldStr += " run=" + l.runID
	}

	var line string
	if l.component != "" {
		line = fmt.Sprintf("%-5s %s [%s] %s%s\n", level, timestamp, l.component, msg, fieldStr)
	} else {
		line = fmt.Sprintf("%-5s %s %s%s\n", level, timestamp, msg, fieldStr)
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	l.output.Write([]byte(line))
}

// RunStart logs the start of a plan run.
func (l *Logger) RunStart(runID string, steps int) {
	l.Info("run_start", map[string]interface{}{
		"run_id": runID,
		"steps":  steps,
	})
}

// RunComplete logs the completion of a plan run.
func (l *Logger) RunComplete(runID string, duration time.Duration, state string) {
	l.Info("run_complete", map[string]interface{}{
		"run_id":   runID,
		"duration": duration.String(),
		"state":    state,
	})
}

// StepStart logs the start of a step.
func (l *Logger) StepStart(stepID, description string) {
	l.Info("step_start", map[string]interface{}{
		"step":        stepID,
		"description": description,
	})
}

// StepComplete logs the outcome of a step.
func (l *Logger) StepComplete(stepID, status string, duration time.Duration) {
	l.Info("step_complete", map[string]interface{}{
		"step":     stepID,
		"status":   status,
		"duration": duration.String(),
	})
}

// CommandStart logs a command about to execute. The command must already
// be in redacted form; raw secret values never reach the log.
func (l *Logger) CommandStart(stepID, redactedCommand string) {
	l.Info("command_start", map[string]interface{}{
		"step":    stepID,
		"command": redactedCommand,
	})
}

// CommandResult logs a command outcome.
func (l *Logger) CommandResult(stepID, status string, exitCode int, duration time.Duration) {
	fields := map[string]interface{}{
		"step":     stepID,
		"status":   status,
		"exit":     exitCode,
		"duration": duration.String(),
	}
	if status == "error" || status == "timeout" {
		l.Warn("command_result", fields)
	} else {
		l.Debug("command_result", fields)
	}
}

// RedactionApplied logs how many secrets were masked before an Oracle exchange.
func (l *Logger) RedactionApplied(count int) {
	if count == 0 {
		return
	}
	l.Debug("redaction_applied", map[string]interface{}{
		"secrets": count,
	})
}

// UnresolvedTokens logs placeholder tokens that had no mapping at
// substitution time. Reported, never fatal.
func (l *Logger) UnresolvedTokens(stepID string, count int) {
	l.Warn("unresolved_tokens", map[string]interface{}{
		"step":  stepID,
		"count": count,
	})
}

// PolicyVerdict logs a gate decision for a command (redacted form).
func (l *Logger) PolicyVerdict(stepID, classification, ruleID, reason string) {
	fields := map[string]interface{}{
		"step":           stepID,
		"classification": classification,
		"security":       true,
	}
	if ruleID != "" {
		fields["rule"] = ruleID
	}
	if reason != "" {
		fields["reason"] = reason
	}
	if classification == "blocked" {
		l.Warn("policy_verdict", fields)
	} else {
		l.Debug("policy_verdict", fields)
	}
}

// SecurityWarning logs a security-related warning.
func (l *Logger) SecurityWarning(msg string, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["security"] = true
	l.Warn(msg, fields)
}

// RecoveryAttempt logs a single-step recovery request to the Oracle.
func (l *Logger) RecoveryAttempt(stepID string, consecutiveFailures int) {
	l.Info("recovery_attempt", map[string]interface{}{
		"step":                 stepID,
		"consecutive_failures": consecutiveFailures,
	})
}

// ReassessmentTriggered logs a plan reassessment.
func (l *Logger) ReassessmentTriggered(remaining, failures int) {
	l.Info("reassessment", map[string]interface{}{
		"remaining_steps": remaining,
		"failures":        failures,
	})
}

// OracleError logs a transport or parse failure from the Oracle. The loop
// degrades gracefully; this is forensic breadcrumb only.
func (l *Logger) OracleError(phase string, err error) {
	l.Warn("oracle_error", map[string]interface{}{
		"phase": phase,
		"error": err.Error(),
	})
}
