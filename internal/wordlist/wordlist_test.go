package wordlist

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_Embedded(t *testing.T) {
	words, err := Load("")
	if err != nil {
		t.Fatalf("Load embedded: %v", err)
	}
	if len(words) == 0 {
		t.Fatalf("embedded corpus is empty")
	}
	for _, w := range words {
		if !Valid(w) {
			t.Fatalf("embedded corpus has invalid word %q", w)
		}
	}
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(path, []byte("plant\nSPEED\n\n# comment\ncrane\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	words, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(words) != 3 {
		t.Fatalf("got %d words want 3: %v", len(words), words)
	}
	if words[0] != "PLANT" {
		t.Fatalf("words must be uppercased, got %q", words[0])
	}
}

func TestLoad_RejectsBadEntries(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "words.txt")
	if err := os.WriteFile(path, []byte("plant\ntoolong\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatalf("expected error for malformed corpus entry")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	if _, err := Load("/nonexistent/words.txt"); err == nil {
		t.Fatalf("expected error for missing corpus")
	}
}

func TestValid(t *testing.T) {
	cases := []struct {
		s  string
		ok bool
	}{
		{"PLANT", true},
		{"SPEED", true},
		{"plant", false},
		{"PLAN", false},
		{"PLANTS", false},
		{"PLAN1", false},
		{"PL AN", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := Valid(tc.s); got != tc.ok {
			t.Fatalf("Valid(%q)=%v want %v", tc.s, got, tc.ok)
		}
	}
}
