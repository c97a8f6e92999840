package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/vinayprograms/pilot/internal/policy"
)

// printRules writes the destructive rule table in evaluation order.
func printRules(w io.Writer) error {
	fmt.Fprintf(w, "ruleset %s\n\n", policy.RulesetVersion)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSEVERITY\tDESCRIPTION")
	for _, r := range policy.NewGate().Rules() {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.ID, r.Severity, r.Description)
	}
	return tw.Flush()
}
