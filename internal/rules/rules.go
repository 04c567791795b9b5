// Package rules holds the typographic heuristics shared by the structure
// analyzer and the section segmenter: heading patterns, font-size
// multipliers and length limits. Defaults can be overridden from YAML.
package rules

import (
	"fmt"
	"os"
	"regexp"

	"gopkg.in/yaml.v3"
)

// Pattern is a named heading pattern.
type Pattern struct {
	Name    string `yaml:"name"`
	Expr    string `yaml:"expr"`
	Meaning string `yaml:"meaning"`

	re *regexp.Regexp
}

// Match reports whether s matches the compiled pattern.
func (p *Pattern) Match(s string) bool {
	return p.re != nil && p.re.MatchString(s)
}

// Thresholds are font-size multipliers relative to the document base size.
type Thresholds struct {
	H1Size     float64 `yaml:"h1_size"`
	H1BoldSize float64 `yaml:"h1_bold_size"`
	H2Size     float64 `yaml:"h2_size"`
	H3Size     float64 `yaml:"h3_size"`
}

// TitleRules drive the page-1 title heuristic.
type TitleRules struct {
	RegionFraction  float64 `yaml:"region_fraction"`   // top share of page 1 searched
	MinCandidateLen int     `yaml:"min_candidate_len"` // span text must be longer
	MinLen          int     `yaml:"min_len"`           // cleaned title must be longer
}

// OutlineRules bound the outline and the font-analysis fallback.
type OutlineRules struct {
	MaxEntries    int     `yaml:"max_entries"`
	MinTOCEntries int     `yaml:"min_toc_entries"`
	MaxDepth      int     `yaml:"max_depth"`
	MinLineLen    int     `yaml:"min_line_len"`
	MaxLineLen    int     `yaml:"max_line_len"`
	MinHeadingLen int     `yaml:"min_heading_len"`
	MaxHeadingLen int     `yaml:"max_heading_len"`
	FontBucket    float64 `yaml:"font_bucket"`
}

// SectionRules drive block-level heading detection in the segmenter.
type SectionRules struct {
	Prefix        Pattern `yaml:"prefix"`
	BoldMaxLen    int     `yaml:"bold_max_len"`
	MinFontSize   float64 `yaml:"min_font_size"`
	MinContentLen int     `yaml:"min_content_len"`
	MaxTitleLen   int     `yaml:"max_title_len"`
}

// Rules is the full heuristics table.
type Rules struct {
	HeadingPatterns []Pattern    `yaml:"heading_patterns"`
	Thresholds      Thresholds   `yaml:"thresholds"`
	Title           TitleRules   `yaml:"title"`
	Outline         OutlineRules `yaml:"outline"`
	Sections        SectionRules `yaml:"sections"`
}

// Default returns the compiled built-in heuristics.
func Default() *Rules {
	r := defaults()
	if err := r.Compile(); err != nil {
		panic(err)
	}
	return r
}

func defaults() *Rules {
	return &Rules{
		HeadingPatterns: []Pattern{
			{Name: "numbered", Expr: `^(\d+\.?\s+)`, Meaning: "top-level numbered heading (1. / 1 )"},
			{Name: "numbered_2", Expr: `^(\d+\.\d+\.?\s+)`, Meaning: "second-level numbered heading (1.1)"},
			{Name: "numbered_3", Expr: `^(\d+\.\d+\.\d+\.?\s+)`, Meaning: "third-level numbered heading (1.1.1)"},
			{Name: "roman", Expr: `^([IVX]+\.?\s+)`, Meaning: "roman numeral marker"},
			{Name: "letter_upper", Expr: `^([A-Z]\.?\s+)`, Meaning: "upper-case letter marker"},
			{Name: "letter_lower", Expr: `^([a-z]\.?\s+)`, Meaning: "lower-case letter marker"},
			{Name: "chapter", Expr: `^(Chapter\s+\d+)`, Meaning: "Chapter N"},
			{Name: "section", Expr: `^(Section\s+\d+)`, Meaning: "Section N"},
		},
		Thresholds: Thresholds{
			H1Size:     1.4,
			H1BoldSize: 1.1,
			H2Size:     1.2,
			H3Size:     1.1,
		},
		Title: TitleRules{
			RegionFraction:  0.4,
			MinCandidateLen: 5,
			MinLen:          3,
		},
		Outline: OutlineRules{
			MaxEntries:    50,
			MinTOCEntries: 3,
			MaxDepth:      3,
			MinLineLen:    2,
			MaxLineLen:    200,
			MinHeadingLen: 2,
			MaxHeadingLen: 150,
			FontBucket:    0.5,
		},
		Sections: SectionRules{
			Prefix: Pattern{
				Name:    "section_prefix",
				Expr:    `(?i)^(\d+\.?\s+|Chapter|Section|Introduction|Conclusion|Abstract|References)`,
				Meaning: "numeric marker or canonical section word",
			},
			BoldMaxLen:    100,
			MinFontSize:   14,
			MinContentLen: 50,
			MaxTitleLen:   100,
		},
	}
}

// Load reads a YAML override file on top of the defaults. Lists replace
// the default lists wholesale; scalar fields left out keep their default.
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	r := defaults()
	if err := yaml.Unmarshal(data, r); err != nil {
		return nil, fmt.Errorf("parse heuristics %s: %w", path, err)
	}
	if err := r.Compile(); err != nil {
		return nil, fmt.Errorf("heuristics %s: %w", path, err)
	}
	return r, nil
}

// Compile validates the table and compiles every pattern.
func (r *Rules) Compile() error {
	for i := range r.HeadingPatterns {
		p := &r.HeadingPatterns[i]
		re, err := regexp.Compile(p.Expr)
		if err != nil {
			return fmt.Errorf("heading pattern %q: %w", p.Name, err)
		}
		p.re = re
	}
	re, err := regexp.Compile(r.Sections.Prefix.Expr)
	if err != nil {
		return fmt.Errorf("section prefix: %w", err)
	}
	r.Sections.Prefix.re = re

	t := r.Thresholds
	if t.H1Size <= 0 || t.H1BoldSize <= 0 || t.H2Size <= 0 || t.H3Size <= 0 {
		return fmt.Errorf("thresholds must be positive: %+v", t)
	}
	if r.Outline.FontBucket <= 0 {
		return fmt.Errorf("outline.font_bucket must be positive")
	}
	if r.Outline.MaxEntries <= 0 {
		return fmt.Errorf("outline.max_entries must be positive")
	}
	if r.Outline.MaxDepth <= 0 {
		return fmt.Errorf("outline.max_depth must be positive")
	}
	if r.Title.RegionFraction <= 0 || r.Title.RegionFraction > 1 {
		return fmt.Errorf("title.region_fraction must be in (0, 1]")
	}
	return nil
}

// MatchHeading returns the first heading pattern matching text.
func (r *Rules) MatchHeading(text string) (Pattern, bool) {
	for _, p := range r.HeadingPatterns {
		if p.Match(text) {
			return p, true
		}
	}
	return Pattern{}, false
}
