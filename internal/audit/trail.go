package audit

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"
)

// JSONL record types for the trail format.
const (
	recordTypeHeader = "header"
	recordTypeRecord = "record"
	recordTypeFooter = "footer"
)

// FormatVersion identifies the trail file format.
const FormatVersion = "1"

// Header opens a trail file.
type Header struct {
	RunID     string    `json:"run_id"`
	StartedAt time.Time `json:"started_at"`
	PlanSteps int       `json:"plan_steps"`
	DryRun    bool      `json:"dry_run,omitempty"`
	Version   string    `json:"version"`
}

// Footer closes a trail file.
type Footer struct {
	CompletedAt time.Time `json:"completed_at"`
	Records     int64     `json:"records"`
	Result      string    `json:"result"`
}

// jsonlLine is one line of a trail file, discriminated by _type.
type jsonlLine struct {
	Type   string  `json:"_type"`
	Header *Header `json:"header,omitempty"`
	Record *Record `json:"record,omitempty"`
	Footer *Footer `json:"footer,omitempty"`
}

// Trail is an append-only JSONL sink, one file per run. Every Emit is
// flushed so a live replay can follow an in-progress run.
type Trail struct {
	mu   sync.Mutex
	file *os.File
	path string
	seq  atomic.Int64
}

// NewTrail creates the trail file, parent directories included, and
// writes the header line.
func NewTrail(path string, h Header) (*Trail, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create trail directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create trail file: %w", err)
	}
	if h.Version == "" {
		h.Version = FormatVersion
	}

	t := &Trail{file: f, path: path}
	if err := t.writeLine(jsonlLine{Type: recordTypeHeader, Header: &h}); err != nil {
		f.Close()
		return nil, err
	}
	return t, nil
}

// Path returns the trail file path.
func (t *Trail) Path() string {
	return t.path
}

// Emit appends one record line and flushes it to disk.
func (t *Trail) Emit(rec Record) error {
	rec.Seq = t.seq.Add(1)
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	return t.writeLine(jsonlLine{Type: recordTypeRecord, Record: &rec})
}

// CloseWithFooter writes the footer line and closes the file.
func (t *Trail) CloseWithFooter(result string) error {
	footer := Footer{
		CompletedAt: time.Now().UTC(),
		Records:     t.seq.Load(),
		Result:      result,
	}
	if err := t.writeLine(jsonlLine{Type: recordTypeFooter, Footer: &footer}); err != nil {
		t.file.Close()
		return err
	}
	return t.file.Close()
}

// Close closes without a footer; the trail reads as an in-progress run.
func (t *Trail) Close() error {
	return t.file.Close()
}

func (t *Trail) writeLine(line jsonlLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return fmt.Errorf("failed to marshal trail line: %w", err)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := t.file.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write trail line: %w", err)
	}
	return t.file.Sync()
}

// TrailData is a fully loaded trail. Footer is nil for an in-progress
// or interrupted run.
type TrailData struct {
	Header  Header
	Records []Record
	Footer  *Footer
}

// LoadTrail reads a JSONL trail file. Unknown line types are skipped so
// newer writers stay readable.
func LoadTrail(path string) (*TrailData, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open trail: %w", err)
	}
	defer f.Close()

	data := &TrailData{}
	sawHeader := false

	// bufio.Reader instead of Scanner: record lines can exceed the
	// default scanner token limit when a command dumps a lot of output.
	reader := bufio.NewReader(f)
	for {
		text, err := reader.ReadString('\n')
		if len(text) > 0 {
			var line jsonlLine
			if jsonErr := json.Unmarshal([]byte(text), &line); jsonErr == nil {
				switch line.Type {
				case recordTypeHeader:
					if line.Header != nil {
						data.Header = *line.Header
						sawHeader = true
					}
				case recordTypeRecord:
					if line.Record != nil {
						data.Records = append(data.Records, *line.Record)
					}
				case recordTypeFooter:
					data.Footer = line.Footer
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read trail: %w", err)
		}
	}

	if !sawHeader {
		return nil, fmt.Errorf("not a trail file: %s", path)
	}
	return data, nil
}
