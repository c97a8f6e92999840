package logging

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestLogger_Levels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelInfo)

	// Debug should be filtered
	logger.Debug("debug message")
	if buf.Len() > 0 {
		t.Error("debug message should be filtered at INFO level")
	}

	// Info should pass
	logger.Info("info message")
	if buf.Len() == 0 {
		t.Error("info message should be logged")
	}

	line := buf.String()
	if !strings.HasPrefix(line, "INFO ") {
		t.Errorf("expected line to start with INFO, got %q", line)
	}
	if !strings.Contains(line, "info message") {
		t.Errorf("expected message in line, got %q", line)
	}
}

func TestLogger_WithComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithComponent("engine")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "[engine]") {
		t.Errorf("expected component tag in line, got %q", buf.String())
	}
}

func TestLogger_WithRunID(t *testing.T) {
	var buf bytes.Buffer
	logger := New().WithRunID("run-123")
	logger.SetOutput(&buf)

	logger.Info("test message")

	if !strings.Contains(buf.String(), "run=run-123") {
		t.Errorf("expected run field in line, got %q", buf.String())
	}
}

func TestLogger_Fields(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.Info("command_start", map[string]interface{}{
		"step": "s1",
	})

	if !strings.Contains(buf.String(), "step=s1") {
		t.Errorf("expected field in line, got %q", buf.String())
	}
}

func TestLogger_PolicyVerdictBlockedIsWarn(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.PolicyVerdict("s1", "blocked", "PG001", "recursive root deletion")

	line := buf.String()
	if !strings.HasPrefix(line, "WARN ") {
		t.Errorf("blocked verdict should be WARN level, got %q", line)
	}
	if !strings.Contains(line, "rule=PG001") {
		t.Errorf("expected rule field, got %q", line)
	}
	if !strings.Contains(line, "security=true") {
		t.Errorf("expected security=true field, got %q", line)
	}
}

func TestLogger_SecurityWarning(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.SecurityWarning("audit sink unavailable", nil)

	line := buf.String()
	if !strings.HasPrefix(line, "WARN ") {
		t.Error("security warning should be WARN level")
	}
	if !strings.Contains(line, "security=true") {
		t.Error("security warning should have security=true field")
	}
}

func TestLogger_RedactionAppliedSkipsZero(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.RedactionApplied(0)
	if buf.Len() > 0 {
		t.Error("zero redactions should not be logged")
	}

	logger.RedactionApplied(2)
	if !strings.Contains(buf.String(), "secrets=2") {
		t.Errorf("expected secret count, got %q", buf.String())
	}
}

func TestLogger_CommandResultLevels(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)
	logger.SetLevel(LevelDebug)

	logger.CommandResult("s1", "success", 0, 10*time.Millisecond)
	if !strings.HasPrefix(buf.String(), "DEBUG") {
		t.Errorf("success result should be DEBUG, got %q", buf.String())
	}

	buf.Reset()
	logger.CommandResult("s1", "timeout", -1, time.Second)
	if !strings.HasPrefix(buf.String(), "WARN ") {
		t.Errorf("timeout result should be WARN, got %q", buf.String())
	}
}

func TestLogger_OracleError(t *testing.T) {
	var buf bytes.Buffer
	logger := New()
	logger.SetOutput(&buf)

	logger.OracleError("recovery", errors.New("connection reset"))

	line := buf.String()
	if !strings.Contains(line, "phase=recovery") {
		t.Errorf("expected phase field, got %q", line)
	}
	if !strings.Contains(line, "connection reset") {
		t.Errorf("expected error text, got %q", line)
	}
}
