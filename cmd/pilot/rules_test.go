package main

import (
	"strings"
	"testing"
)

func TestPrintRules(t *testing.T) {
	var buf strings.Builder
	if err := printRules(&buf); err != nil {
		t.Fatal(err)
	}
	out := buf.String()

	for _, id := range []string{"PG001", "PG002", "PG003", "PG004", "PG005", "PG006"} {
		if !strings.Contains(out, id) {
			t.Errorf("rule table missing %s", id)
		}
	}
	if !strings.Contains(out, "ruleset v1") {
		t.Errorf("missing ruleset version in %q", out)
	}
}
