package store

import (
	"path/filepath"
	"testing"
)

func TestLoadReferenceSeedFile(t *testing.T) {
	seed, err := LoadReferenceSeed(filepath.Join("..", "..", "db", "seed", "reference.yaml"))
	if err != nil {
		t.Fatalf("load seed: %v", err)
	}
	if len(seed.CaseTypes) == 0 || len(seed.Statuses) == 0 || len(seed.Tags) == 0 {
		t.Fatalf("expected every reference table to be seeded, got %+v", seed)
	}

	closed := 0
	for _, status := range seed.Statuses {
		if status.Closed {
			closed++
		}
	}
	if closed == 0 {
		t.Fatal("expected at least one closed status")
	}
}

func TestParseReferenceSeedRejectsUnnamedEntries(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "case type", raw: "caseTypes:\n  - description: no name\n"},
		{name: "status", raw: "statuses:\n  - color: '#000000'\n"},
		{name: "tag", raw: "tags:\n  - name: ''\n"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseReferenceSeed([]byte(tc.raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestParseReferenceSeedRejectsMalformedYAML(t *testing.T) {
	if _, err := ParseReferenceSeed([]byte("caseTypes: [")); err == nil {
		t.Fatal("expected parse error")
	}
}
