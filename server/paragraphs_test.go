package server

import (
	"os"
	"path/filepath"
	"testing"
)

func TestProgressScore(t *testing.T) {
	cases := []struct {
		name      string
		paragraph string
		buffer    string
		want      float64
	}{
		{"empty buffer", "abcd", "", 0},
		{"half correct", "abcd", "ab", 50},
		{"complete", "abcd", "abcd", 100},
		{"mismatch stops the prefix", "abcd", "abXd", 50},
		{"wrong from the start", "abcd", "zbcd", 0},
		{"overshoot is capped", "абвг", "абвгд", 100},
		{"unicode counts runes", "абвг", "аб", 50},
		{"empty paragraph", "", "anything", 0},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := progressScore(tc.paragraph, tc.buffer)
			if got != tc.want {
				t.Errorf("progressScore(%q, %q) = %.1f, want %.1f",
					tc.paragraph, tc.buffer, got, tc.want)
			}
		})
	}
}

func TestValidatePack(t *testing.T) {
	cases := []struct {
		name    string
		pack    Pack
		wantErr bool
	}{
		{"valid", Pack{Name: "ok", Paragraphs: []string{"some text"}}, false},
		{"missing name", Pack{Paragraphs: []string{"some text"}}, true},
		{"blank name", Pack{Name: "   ", Paragraphs: []string{"some text"}}, true},
		{"no paragraphs", Pack{Name: "empty"}, true},
		{"blank paragraph", Pack{Name: "holey", Paragraphs: []string{"ok", "  "}}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := ValidatePack(&tc.pack)
			if tc.wantErr && err == nil {
				t.Error("Expected a validation error, got nil")
			}
			if !tc.wantErr && err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
		})
	}
}

func TestNewParagraphSourceFallsBackToDefault(t *testing.T) {
	source, err := NewParagraphSource("")
	if err != nil {
		t.Fatalf("NewParagraphSource failed: %v", err)
	}

	packs := source.Packs()
	if len(packs) != 1 || packs[0] != "classic" {
		t.Errorf("Expected the embedded classic pack, got %v", packs)
	}
	if source.Pick() == "" {
		t.Error("Pick returned an empty paragraph")
	}
}

func TestNewParagraphSourceMissingDir(t *testing.T) {
	source, err := NewParagraphSource(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("missing directory should not be an error, got %v", err)
	}
	if len(source.Packs()) != 1 {
		t.Errorf("Expected default pack fallback, got %v", source.Packs())
	}
}

func TestNewParagraphSourceLoadsAndSkips(t *testing.T) {
	dir := t.TempDir()

	good := `{"name":"good","paragraphs":["a perfectly serviceable paragraph"]}`
	if err := os.WriteFile(filepath.Join(dir, "good.json"), []byte(good), 0o644); err != nil {
		t.Fatal(err)
	}
	// Structurally broken packs are skipped, not fatal.
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte(`{"name":""}`), 0o644); err != nil {
		t.Fatal(err)
	}
	// Non-JSON files are ignored.
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("hi"), 0o644); err != nil {
		t.Fatal(err)
	}

	source, err := NewParagraphSource(dir)
	if err != nil {
		t.Fatalf("NewParagraphSource failed: %v", err)
	}

	packs := source.Packs()
	if len(packs) != 1 || packs[0] != "good" {
		t.Errorf("Expected only the good pack, got %v", packs)
	}
	if got := source.Pick(); got != "a perfectly serviceable paragraph" {
		t.Errorf("Unexpected paragraph %q", got)
	}
}
