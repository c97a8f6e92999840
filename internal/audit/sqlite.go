package audit

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteStore indexes completed runs so they can be listed and looked
// up by ID without scanning trail files.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) the index database.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &SQLiteStore{db: db}
	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		trail_path TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		completed_at DATETIME,
		result TEXT,
		plan_steps INTEGER NOT NULL,
		records INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS records (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		step_id TEXT,
		command TEXT NOT NULL,
		status TEXT NOT NULL,
		exit_code INTEGER,
		duration_ms INTEGER,
		verdict TEXT,
		rule_id TEXT,
		timestamp DATETIME NOT NULL,
		FOREIGN KEY (run_id) REFERENCES runs(id)
	);

	CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

// RunInfo is one indexed run.
type RunInfo struct {
	ID          string
	TrailPath   string
	StartedAt   time.Time
	CompletedAt *time.Time
	Result      string
	PlanSteps   int
	Records     int64
}

// SaveRun indexes a completed trail. Re-saving a run replaces its
// records wholesale.
func (s *SQLiteStore) SaveRun(trailPath string, data *TrailData) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var completedAt *time.Time
	result := "interrupted"
	var records int64
	if data.Footer != nil {
		completedAt = &data.Footer.CompletedAt
		result = data.Footer.Result
		records = data.Footer.Records
	} else {
		records = int64(len(data.Records))
	}

	_, err = tx.Exec(`
		INSERT INTO runs (id, trail_path, started_at, completed_at, result, plan_steps, records)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			trail_path = excluded.trail_path,
			completed_at = excluded.completed_at,
			result = excluded.result,
			records = excluded.records
	`, data.Header.RunID, trailPath, data.Header.StartedAt, completedAt, result,
		data.Header.PlanSteps, records)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}

	if _, err := tx.Exec("DELETE FROM records WHERE run_id = ?", data.Header.RunID); err != nil {
		return fmt.Errorf("failed to delete records: %w", err)
	}

	for _, rec := range data.Records {
		var verdict, ruleID string
		if rec.Verdict != nil {
			verdict = rec.Verdict.Classification
			ruleID = rec.Verdict.RuleID
		}
		var exitCode interface{}
		if rec.ExitCode != nil {
			exitCode = *rec.ExitCode
		}
		_, err = tx.Exec(`
			INSERT INTO records (run_id, seq, step_id, command, status, exit_code, duration_ms, verdict, rule_id, timestamp)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, data.Header.RunID, rec.Seq, rec.StepID, rec.Command, rec.Status,
			exitCode, rec.DurationMs, verdict, ruleID, rec.Timestamp)
		if err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}
	}

	return tx.Commit()
}

// Lookup returns the trail path for a run ID. A unique ID prefix
// resolves too, so the short IDs shown in console output work here.
func (s *SQLiteStore) Lookup(runID string) (string, error) {
	row := s.db.QueryRow("SELECT trail_path FROM runs WHERE id = ?", runID)
	var path string
	err := row.Scan(&path)
	if err == nil {
		return path, nil
	}
	if err != sql.ErrNoRows {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}

	rows, err := s.db.Query("SELECT trail_path FROM runs WHERE id LIKE ? || '%' LIMIT 2", runID)
	if err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}
	defer rows.Close()

	var matches []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return "", fmt.Errorf("failed to look up run: %w", err)
		}
		matches = append(matches, p)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("failed to look up run: %w", err)
	}

	switch len(matches) {
	case 0:
		return "", fmt.Errorf("run not found: %s", runID)
	case 1:
		return matches[0], nil
	default:
		return "", fmt.Errorf("run ID prefix %q is ambiguous", runID)
	}
}

// LastRun returns the most recently started run.
func (s *SQLiteStore) LastRun() (*RunInfo, error) {
	rows, err := s.listQuery(1)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no runs recorded")
	}
	return &rows[0], nil
}

// ListRuns returns up to limit runs, newest first.
func (s *SQLiteStore) ListRuns(limit int) ([]RunInfo, error) {
	return s.listQuery(limit)
}

func (s *SQLiteStore) listQuery(limit int) ([]RunInfo, error) {
	rows, err := s.db.Query(`
		SELECT id, trail_path, started_at, completed_at, result, plan_steps, records
		FROM runs ORDER BY started_at DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []RunInfo
	for rows.Next() {
		var info RunInfo
		var completedAt sql.NullTime
		var result sql.NullString
		if err := rows.Scan(&info.ID, &info.TrailPath, &info.StartedAt,
			&completedAt, &result, &info.PlanSteps, &info.Records); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		if completedAt.Valid {
			info.CompletedAt = &completedAt.Time
		}
		if result.Valid {
			info.Result = result.String
		}
		out = append(out, info)
	}
	return out, rows.Err()
}
