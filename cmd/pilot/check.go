package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/vinayprograms/pilot/internal/policy"
)

// checkResult is the JSON form of a verdict.
type checkResult struct {
	Command        string `json:"command"`
	Classification string `json:"classification"`
	RuleID         string `json:"rule_id,omitempty"`
	Reason         string `json:"reason"`
}

// runCheck classifies a single command and prints the verdict. Blocked
// commands exit nonzero so shell scripts can gate on the result.
func runCheck(w io.Writer, cmd *CheckCmd) error {
	verdict := policy.NewGate().Classify(cmd.Command, policy.Options{
		AutoApprove:    cmd.AutoApprove,
		AllowDangerous: cmd.AllowDangerous,
	})

	if cmd.JSON {
		res := checkResult{
			Command:        cmd.Command,
			Classification: verdict.Classification.String(),
			Reason:         verdict.Reason,
		}
		if verdict.Rule != nil {
			res.RuleID = verdict.Rule.ID
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return err
		}
	} else {
		fmt.Fprintln(w, formatVerdict(verdict))
	}

	if verdict.Classification == policy.Blocked {
		return errReported
	}
	return nil
}

// formatVerdict renders a one-line human-readable verdict.
func formatVerdict(v policy.Verdict) string {
	switch v.Classification {
	case policy.Blocked:
		id := ""
		if v.Rule != nil {
			id = " [" + v.Rule.ID + "]"
		}
		return fmt.Sprintf("%s%s: %s", failStyle.Render("BLOCKED"), id, v.Reason)
	case policy.RequiresApproval:
		return fmt.Sprintf("%s: %s", cautionStyle.Render("REQUIRES APPROVAL"), v.Reason)
	default:
		return fmt.Sprintf("%s: %s", okStyle.Render("AUTO-APPROVED"), v.Reason)
	}
}
