// Package audit records every command attempt. One record per attempt,
// always in redacted form: restored secret values must never appear in
// any record.
package audit

import (
	"time"
)

// Verdict is the policy decision attached to a record.
type Verdict struct {
	Classification string `json:"classification"`
	RuleID         string `json:"rule_id,omitempty"`
	Reason         string `json:"reason,omitempty"`
}

// Record is one command attempt. Commands are stored exactly as the
// Oracle saw them, placeholders included.
type Record struct {
	Seq        int64     `json:"seq"`
	Timestamp  time.Time `json:"timestamp"`
	RunID      string    `json:"run_id"`
	StepID     string    `json:"step_id,omitempty"`
	Command    string    `json:"command"`
	Status     string    `json:"status"`
	Stdout     string    `json:"stdout,omitempty"`
	Stderr     string    `json:"stderr,omitempty"`
	Message    string    `json:"message,omitempty"`
	Verdict    *Verdict  `json:"verdict,omitempty"`
	ExitCode   *int      `json:"exit_code,omitempty"`
	DurationMs int64     `json:"duration_ms,omitempty"`
}

// Sink receives audit records. Implementations must be safe to call
// from the single engine goroutine; none may block the run on failure.
type Sink interface {
	Emit(rec Record) error
	Close() error
}

// Multi fans out to several sinks. Emit errors from one sink never
// prevent delivery to the others and never fail the run.
type Multi struct {
	sinks  []Sink
	onErr  func(error)
}

// NewMulti creates a fan-out sink. onErr receives individual sink
// failures; nil means they are discarded.
func NewMulti(onErr func(error), sinks ...Sink) *Multi {
	return &Multi{sinks: sinks, onErr: onErr}
}

// Emit delivers the record to every sink.
func (m *Multi) Emit(rec Record) error {
	for _, s := range m.sinks {
		if err := s.Emit(rec); err != nil && m.onErr != nil {
			m.onErr(err)
		}
	}
	return nil
}

// Close closes every sink, returning the first error.
func (m *Multi) Close() error {
	var first error
	for _, s := range m.sinks {
		if err := s.Close(); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Discard is a no-op sink for runs that do not persist an audit trail.
type Discard struct{}

func (Discard) Emit(Record) error { return nil }
func (Discard) Close() error      { return nil }
