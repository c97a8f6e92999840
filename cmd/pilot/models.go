package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/vinayprograms/pilot/internal/oracle"
)

// listModels prints the model catalog, optionally limited to one
// provider. The catalog is fetched remotely, so the call is bounded.
func listModels(ctx context.Context, w io.Writer, cmd *ModelsCmd) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	models, err := oracle.NewCatalog().List(ctx)
	if err != nil {
		return err
	}

	if cmd.Provider != "" {
		filtered := models[:0]
		for _, m := range models {
			if m.Provider == cmd.Provider {
				filtered = append(filtered, m)
			}
		}
		models = filtered
	}

	if cmd.JSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(models)
	}

	if len(models) == 0 {
		fmt.Fprintln(w, "no models found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "PROVIDER\tMODEL\tCONTEXT\tIN $/1M\tOUT $/1M\tREASONING")
	for _, m := range models {
		reasoning := ""
		if m.CanReason {
			reasoning = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%.2f\t%.2f\t%s\n",
			m.Provider, m.ID, m.ContextWindow, m.CostPer1MIn, m.CostPer1MOut, reasoning)
	}
	return tw.Flush()
}
