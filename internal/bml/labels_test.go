package bml

import (
	"os"
	"path/filepath"
	"testing"
)

func writeLabelFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "labels.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoadLabelDefs(t *testing.T) {
	path := writeLabelFile(t, `
labels:
  - name: status-build
    color: "123456"
    description: Building
  - name: team-infra
    description: Infra team
  - name: status-plan
`)
	defs, err := LoadLabelDefs(path)
	if err != nil {
		t.Fatalf("LoadLabelDefs: %v", err)
	}
	if len(defs) != 3 {
		t.Fatalf("got %d defs, want 3", len(defs))
	}
	if defs[0].Color != "123456" {
		t.Errorf("explicit color overridden: %q", defs[0].Color)
	}
	if defs[1].Color != "cccccc" {
		t.Errorf("unknown label should default to gray, got %q", defs[1].Color)
	}
	if defs[2].Color != statusColors[StatusPlan] {
		t.Errorf("status-plan should inherit the built-in color, got %q", defs[2].Color)
	}
}

func TestLoadLabelDefsErrors(t *testing.T) {
	if _, err := LoadLabelDefs(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("missing file should error")
	}

	empty := writeLabelFile(t, "labels: []\n")
	if _, err := LoadLabelDefs(empty); err == nil {
		t.Error("empty label list should error")
	}

	unnamed := writeLabelFile(t, "labels:\n  - color: \"ff0000\"\n")
	if _, err := LoadLabelDefs(unnamed); err == nil {
		t.Error("unnamed label should error")
	}
}
