// Package segment splits a laid-out document into titled sections using
// block-level heading detection.
package segment

import (
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docsift/internal/layout"
	"github.com/dgallion1/docsift/internal/rules"
)

// UntitledSection names sections flushed before any heading was seen.
const UntitledSection = "Untitled Section"

// Section is a contiguous run of content under one heading.
type Section struct {
	Document     string `json:"document"`
	PageNumber   int    `json:"page_number"`
	SectionTitle string `json:"section_title"`
	Content      string `json:"content"`
}

// Segmenter groups blocks into sections.
type Segmenter struct {
	rules *rules.Rules
}

func New(r *rules.Rules) *Segmenter {
	if r == nil {
		r = rules.Default()
	}
	return &Segmenter{rules: r}
}

// Segment returns the sections of doc in reading order. Sections whose
// trimmed content is not longer than the configured minimum are dropped.
func (s *Segmenter) Segment(doc *layout.Document) []Section {
	acc := newAccumulator(doc.Name, &s.rules.Sections)

	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			text := strings.TrimSpace(b.Text())
			if text == "" {
				continue
			}
			size, bold, _ := b.Style()
			if s.IsHeading(text, size, bold) {
				acc.heading(text, p.Number)
			} else {
				acc.body(text)
			}
		}
	}
	acc.flush()

	return acc.sections
}

// IsHeading classifies a block: short and bold, a canonical section
// prefix, or set above the minimum heading font size.
func (s *Segmenter) IsHeading(text string, size float64, bold bool) bool {
	sr := &s.rules.Sections
	text = strings.TrimSpace(text)
	return (bold && utf8.RuneCountInString(text) < sr.BoldMaxLen) ||
		sr.Prefix.Match(text) ||
		size > sr.MinFontSize
}

type state int

const (
	awaitingTitle state = iota // no title and no content yet
	accumulating
)

// accumulator is the per-document current-section state machine.
type accumulator struct {
	rules    *rules.SectionRules
	document string

	state   state
	title   string
	page    int
	content strings.Builder

	sections []Section
}

func newAccumulator(document string, r *rules.SectionRules) *accumulator {
	return &accumulator{rules: r, document: document, page: 1}
}

func (a *accumulator) heading(text string, page int) {
	switch {
	case strings.TrimSpace(a.content.String()) != "":
		a.flush()
		a.title = truncate(text, a.rules.MaxTitleLen)
		a.page = page
		a.state = accumulating
	case a.state == awaitingTitle:
		a.title = truncate(text, a.rules.MaxTitleLen)
		a.page = page
		a.state = accumulating
	default:
		// A second heading before any content is kept as content.
		a.body(text)
	}
}

func (a *accumulator) body(text string) {
	a.content.WriteString(text)
	a.content.WriteString("\n\n")
	a.state = accumulating
}

// flush emits the current section when it carries enough content and
// clears the content buffer. Title and page are replaced by the caller.
func (a *accumulator) flush() {
	content := strings.TrimSpace(a.content.String())
	a.content.Reset()
	if utf8.RuneCountInString(content) <= a.rules.MinContentLen {
		return
	}
	title := a.title
	if title == "" {
		title = UntitledSection
	}
	a.sections = append(a.sections, Section{
		Document:     a.document,
		PageNumber:   a.page,
		SectionTitle: title,
		Content:      content,
	})
}

func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
