package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/vinayprograms/pilot/internal/audit"
)

// runRow is the JSON form of one indexed run.
type runRow struct {
	ID          string     `json:"id"`
	TrailPath   string     `json:"trail_path"`
	StartedAt   time.Time  `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Result      string     `json:"result"`
	PlanSteps   int        `json:"plan_steps"`
	Records     int64      `json:"records"`
}

// listRuns prints indexed runs, newest first.
func listRuns(w io.Writer, cmd *RunsCmd) error {
	cfg, err := loadConfig(cmd.Config)
	if err != nil {
		return err
	}
	if cfg.Audit.DB == "" {
		return fmt.Errorf("run index disabled (audit.db is empty)")
	}

	store, err := audit.NewSQLiteStore(expandHome(cfg.Audit.DB))
	if err != nil {
		return err
	}
	defer store.Close()

	runs, err := store.ListRuns(cmd.Limit)
	if err != nil {
		return err
	}

	if cmd.JSON {
		rows := make([]runRow, 0, len(runs))
		for _, r := range runs {
			rows = append(rows, runRow{
				ID:          r.ID,
				TrailPath:   r.TrailPath,
				StartedAt:   r.StartedAt,
				CompletedAt: r.CompletedAt,
				Result:      r.Result,
				PlanSteps:   r.PlanSteps,
				Records:     r.Records,
			})
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(rows)
	}

	if len(runs) == 0 {
		fmt.Fprintln(w, "no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tRESULT\tSTEPS\tRECORDS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n",
			shortID(r.ID),
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Result,
			r.PlanSteps,
			r.Records)
	}
	return tw.Flush()
}

// shortID truncates a run ID for table display. The full ID is in the
// JSON output and any unique prefix resolves in replay.
func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
