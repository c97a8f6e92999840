package plan

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func TestParse_BareList(t *testing.T) {
	input := []byte("- check disk space\n- compress old logs\n- verify free space\n")

	p, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(p.Steps) != 3 {
		t.Fatalf("steps = %v", p.Steps)
	}
	if p.Steps[1] != "compress old logs" {
		t.Errorf("step 2 = %q", p.Steps[1])
	}
}

func TestParse_DocumentWithMixedSteps(t *testing.T) {
	input := []byte(`goal: rotate the logs
steps:
  - check disk space
  - description: compress old logs
    parallel: true
  - description: verify free space
`)

	p, err := Parse(input)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if p.Goal != "rotate the logs" {
		t.Errorf("goal = %q", p.Goal)
	}
	want := []string{"check disk space", "compress old logs", "verify free space"}
	if len(p.Steps) != len(want) {
		t.Fatalf("steps = %v", p.Steps)
	}
	for i := range want {
		if p.Steps[i] != want[i] {
			t.Errorf("step %d = %q, want %q", i+1, p.Steps[i], want[i])
		}
	}
}

func TestLoad_JSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.json")
	content := `{"goal": "deploy", "steps": ["build the image", {"description": "push the image"}]}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if p.Goal != "deploy" || len(p.Steps) != 2 || p.Steps[1] != "push the image" {
		t.Errorf("plan = %+v", p)
	}
}

func TestLoad_YAMLFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plan.yaml")
	if err := os.WriteFile(path, []byte("- only step\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(p.Steps) != 1 || p.Steps[0] != "only step" {
		t.Errorf("plan = %+v", p)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error")
	}
}

func TestParse_Malformed(t *testing.T) {
	cases := []struct {
		name  string
		input string
	}{
		{"empty input", ""},
		{"empty steps", "steps: []\n"},
		{"blank step", "- first\n- '   '\n"},
		{"record without description", "steps:\n  - parallel: true\n"},
		{"scalar document", "just a sentence"},
		{"numeric step", "- 42\n"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.input))
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, ErrMalformed) {
				t.Errorf("error %v is not ErrMalformed", err)
			}
		})
	}
}

func TestFromSteps(t *testing.T) {
	p, err := FromSteps("tidy up", []string{"list files", "remove temp files"})
	if err != nil {
		t.Fatalf("FromSteps: %v", err)
	}
	if p.Goal != "tidy up" || len(p.Steps) != 2 {
		t.Errorf("plan = %+v", p)
	}

	if _, err := FromSteps("", nil); !errors.Is(err, ErrMalformed) {
		t.Errorf("empty step list should be malformed, got %v", err)
	}
}
