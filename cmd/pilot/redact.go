package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/vinayprograms/pilot/internal/vault"
)

// runRedact reads text from the argument or stdin, replaces detected
// secrets with placeholder tokens, and writes the redacted form to
// stdout. Tokens and types go to stderr; values never leave the vault.
func runRedact(in io.Reader, w io.Writer, cmd *RedactCmd) error {
	text := cmd.Text
	if text == "" {
		data, err := io.ReadAll(in)
		if err != nil {
			return fmt.Errorf("failed to read stdin: %w", err)
		}
		text = string(data)
	}

	redacted, mapping := vault.New().Redact(text)
	fmt.Fprintln(w, strings.TrimRight(redacted, "\n"))

	if entries := mapping.Entries(); len(entries) > 0 {
		tokens := make([]string, len(entries))
		for i, e := range entries {
			tokens[i] = e.Token
		}
		fmt.Fprintf(os.Stderr, "redacted %d secret(s): %s\n", len(entries), strings.Join(tokens, " "))
	}
	return nil
}
