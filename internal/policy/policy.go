// Package policy classifies commands before execution. A versioned rule
// table catches catastrophic commands outright; everything else is
// sorted into approval tiers by mutation, network, and privilege
// heuristics.
package policy

import (
	"strings"
)

// unknownStr is the string representation for unknown enum values.
const unknownStr = "unknown"

// Classification is the gate's decision for a command.
type Classification int

const (
	// Blocked indicates the command matched a destructive rule and must
	// not execute. It is the zero value, so an uninitialized verdict
	// defaults to the safest decision.
	Blocked Classification = iota

	// RequiresApproval indicates the command mutates state, touches the
	// network, or escalates privilege and needs an approval.
	RequiresApproval

	// AutoApproved indicates the command is read-only or pre-approved.
	AutoApproved
)

// String returns the string representation of a Classification.
func (c Classification) String() string {
	switch c {
	case Blocked:
		return "blocked"
	case RequiresApproval:
		return "requires-approval"
	case AutoApproved:
		return "auto-approved"
	default:
		return unknownStr
	}
}

// Verdict holds the outcome of command classification. Verdicts are
// computed fresh on every call and never cached.
type Verdict struct {
	Classification Classification

	// Rule is the destructive rule that matched, nil unless Blocked.
	Rule *Rule

	// Reason is a human-readable explanation of the decision.
	Reason string
}

// Options widen the approval tier. Neither flag can override a Blocked
// verdict.
type Options struct {
	AutoApprove    bool
	AllowDangerous bool
}

// Gate evaluates commands against the destructive rule table and the
// approval heuristics.
type Gate struct {
	rules []Rule
}

// NewGate creates a gate with the current ruleset.
func NewGate() *Gate {
	return &Gate{rules: destructiveRules}
}

// Rules returns the destructive rule table.
func (g *Gate) Rules() []Rule {
	out := make([]Rule, len(g.rules))
	copy(out, g.rules)
	return out
}

// Classify returns a verdict for a command. Rules are evaluated in
// table order; the first match decides and is absolute.
func (g *Gate) Classify(command string, opts Options) Verdict {
	trimmed := strings.TrimSpace(command)

	for i := range g.rules {
		r := &g.rules[i]
		if r.Pattern.MatchString(trimmed) {
			return Verdict{
				Classification: Blocked,
				Rule:           r,
				Reason:         r.Description,
			}
		}
	}

	if reason, risky := riskReason(trimmed); risky {
		if opts.AutoApprove || opts.AllowDangerous {
			return Verdict{
				Classification: AutoApproved,
				Reason:         reason + " (pre-approved)",
			}
		}
		return Verdict{
			Classification: RequiresApproval,
			Reason:         reason,
		}
	}

	return Verdict{
		Classification: AutoApproved,
		Reason:         "read-only command",
	}
}

// riskReason reports why a command needs approval, in precedence order:
// privilege escalation, then mutation, then network access.
func riskReason(command string) (string, bool) {
	if privilegeRe.MatchString(command) {
		return "privilege escalation", true
	}
	if mutationRe.MatchString(command) {
		return "mutates system state", true
	}
	if networkRe.MatchString(command) {
		return "network access", true
	}
	return "", false
}
