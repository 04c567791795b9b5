package rules

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefault_HeadingPatterns(t *testing.T) {
	r := Default()
	tests := []struct {
		text string
		want string
	}{
		{"1. Introduction", "numbered"},
		{"2 Methods", "numbered"},
		{"1.2 Results", "numbered_2"},
		{"1.2.3. Details", "numbered_3"},
		{"IV. Discussion", "roman"},
		{"B Appendix", "letter_upper"},
		{"a. first item", "letter_lower"},
		{"Chapter 3", "chapter"},
		{"Section 12 Scope", "section"},
		{"Plain sentence here", ""},
		{"1.5 is a number", "numbered_2"},
	}
	for _, tt := range tests {
		p, ok := r.MatchHeading(tt.text)
		if tt.want == "" {
			if ok {
				t.Errorf("%q: expected no match, got %q", tt.text, p.Name)
			}
			continue
		}
		if !ok {
			t.Errorf("%q: expected match %q, got none", tt.text, tt.want)
			continue
		}
		if p.Name != tt.want {
			t.Errorf("%q: expected %q, got %q", tt.text, tt.want, p.Name)
		}
	}
}

func TestDefault_SectionPrefix(t *testing.T) {
	r := Default()
	for _, s := range []string{"INTRODUCTION", "abstract", "3. Results", "References and notes", "chapter one"} {
		if !r.Sections.Prefix.Match(s) {
			t.Errorf("expected %q to match the section prefix", s)
		}
	}
	for _, s := range []string{"Overview", "The introduction", "3.5 million"} {
		if r.Sections.Prefix.Match(s) {
			t.Errorf("expected %q not to match the section prefix", s)
		}
	}
}

func TestLoad_Overrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heuristics.yaml")
	yml := `
thresholds:
  h1_size: 1.8
heading_patterns:
  - name: part
    expr: '^Part\s+\d+'
    meaning: Part N
outline:
  max_entries: 20
`
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Thresholds.H1Size != 1.8 {
		t.Errorf("expected h1_size 1.8, got %v", r.Thresholds.H1Size)
	}
	if r.Thresholds.H2Size != 1.2 {
		t.Errorf("expected default h2_size 1.2, got %v", r.Thresholds.H2Size)
	}
	if len(r.HeadingPatterns) != 1 {
		t.Fatalf("expected pattern list replaced, got %d patterns", len(r.HeadingPatterns))
	}
	if _, ok := r.MatchHeading("Part 2 Design"); !ok {
		t.Error("expected override pattern to match")
	}
	if r.Outline.MaxEntries != 20 {
		t.Errorf("expected max_entries 20, got %d", r.Outline.MaxEntries)
	}
	if !r.Sections.Prefix.Match("Abstract") {
		t.Error("expected default section prefix to survive override")
	}
}

func TestLoad_InvalidPattern(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	yml := "heading_patterns:\n  - name: broken\n    expr: '^(unclosed'\n"
	if err := os.WriteFile(path, []byte(yml), 0o644); err != nil {
		t.Fatal(err)
	}
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "broken") {
		t.Fatalf("expected error naming the broken pattern, got %v", err)
	}
}

func TestLoad_InvalidThreshold(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("thresholds:\n  h3_size: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); err == nil {
		t.Fatal("expected error for zero threshold")
	}
}
