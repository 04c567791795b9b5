// Package outline derives a document title and a leveled heading outline
// from layout spans, preferring embedded metadata and falling back to
// typographic analysis.
package outline

import (
	"math"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/dgallion1/docsift/internal/layout"
	"github.com/dgallion1/docsift/internal/rules"
)

// UnknownTitle is returned when no title can be resolved.
const UnknownTitle = "Unknown Document"

// Level is an outline depth.
type Level string

const (
	H1 Level = "H1"
	H2 Level = "H2"
	H3 Level = "H3"
)

// Entry is one outline heading.
type Entry struct {
	Level Level  `json:"level"`
	Text  string `json:"text"`
	Page  int    `json:"page"`
}

// Result is the structure of one document.
type Result struct {
	Title   string  `json:"title"`
	Outline []Entry `json:"outline"`
}

// Unknown is the result for a document that could not be decoded.
func Unknown() Result {
	return Result{Title: UnknownTitle, Outline: []Entry{}}
}

// Analyzer resolves titles and outlines using a heuristics table.
type Analyzer struct {
	rules *rules.Rules
}

func NewAnalyzer(r *rules.Rules) *Analyzer {
	if r == nil {
		r = rules.Default()
	}
	return &Analyzer{rules: r}
}

// Analyze returns the title and outline of doc.
func (a *Analyzer) Analyze(doc *layout.Document) Result {
	return Result{
		Title:   a.Title(doc),
		Outline: a.Outline(doc),
	}
}

// Title resolves the document title: the metadata title when long enough,
// else the largest, topmost span in the upper region of page 1.
func (a *Analyzer) Title(doc *layout.Document) string {
	tr := a.rules.Title

	if meta := strings.TrimSpace(doc.Title); runeLen(meta) > tr.MinLen {
		return meta
	}
	if len(doc.Pages) == 0 {
		return UnknownTitle
	}

	page := doc.Pages[0]
	limit := page.Height * tr.RegionFraction

	type candidate struct {
		text string
		size float64
		y    float64
	}
	var candidates []candidate
	for _, s := range page.Spans() {
		text := strings.TrimSpace(s.Text)
		if s.BBox.Y0 < limit && runeLen(text) > tr.MinCandidateLen {
			candidates = append(candidates, candidate{text: text, size: s.FontSize, y: s.BBox.Y0})
		}
	}
	if len(candidates) == 0 {
		return UnknownTitle
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].size != candidates[j].size {
			return candidates[i].size > candidates[j].size
		}
		return candidates[i].y < candidates[j].y
	})

	title := strings.TrimFunc(candidates[0].text, notAlnum)
	if runeLen(title) > tr.MinLen {
		return title
	}
	return UnknownTitle
}

// Outline maps the embedded TOC when it has enough entries, otherwise
// classifies lines by font analysis. The result never exceeds the
// configured maximum.
func (a *Analyzer) Outline(doc *layout.Document) []Entry {
	or := a.rules.Outline

	entries := make([]Entry, 0, min(len(doc.TOC), or.MaxEntries))
	for _, t := range doc.TOC {
		if len(entries) == or.MaxEntries {
			break
		}
		depth := max(1, min(t.Depth, or.MaxDepth))
		entries = append(entries, Entry{
			Level: levelForDepth(depth),
			Text:  strings.TrimSpace(t.Title),
			Page:  t.Page,
		})
	}

	if len(entries) < or.MinTOCEntries {
		entries = a.fontAnalysis(doc)
	}
	if len(entries) > or.MaxEntries {
		entries = entries[:or.MaxEntries]
	}
	return entries
}

func levelForDepth(depth int) Level {
	switch depth {
	case 1:
		return H1
	case 2:
		return H2
	default:
		return H3
	}
}

type textLine struct {
	text string
	size float64
	bold bool
	page int
}

// fontAnalysis classifies every line against the document base font size.
func (a *Analyzer) fontAnalysis(doc *layout.Document) []Entry {
	or := a.rules.Outline
	th := a.rules.Thresholds

	var lines []textLine
	var sizes []float64
	for _, p := range doc.Pages {
		for _, b := range p.Blocks {
			for _, l := range b.Lines {
				text := l.Text()
				if runeLen(text) <= or.MinLineLen {
					continue
				}
				size, bold, ok := l.Style()
				if !ok {
					continue
				}
				lines = append(lines, textLine{text: text, size: size, bold: bold, page: p.Number})
				sizes = append(sizes, size)
			}
		}
	}

	headings := []Entry{}
	if len(lines) == 0 {
		return headings
	}
	base := modeSize(sizes, or.FontBucket)

	for _, l := range lines {
		if runeLen(l.text) > or.MaxLineLen {
			continue
		}
		_, pattern := a.rules.MatchHeading(l.text)

		var level Level
		switch {
		case l.size >= base*th.H1Size || (l.bold && l.size >= base*th.H1BoldSize):
			level = H1
		case l.size >= base*th.H2Size || (l.bold && pattern):
			level = H2
		case l.size >= base*th.H3Size || pattern:
			level = H3
		default:
			continue
		}

		clean := cleanHeading(l.text)
		if n := runeLen(clean); n > or.MinHeadingLen && n < or.MaxHeadingLen {
			headings = append(headings, Entry{Level: level, Text: clean, Page: l.page})
		}
	}

	return dedupe(headings)
}

// modeSize returns the most frequent font size after rounding to bucket.
// Ties go to the larger size.
func modeSize(sizes []float64, bucket float64) float64 {
	counts := make(map[float64]int)
	for _, s := range sizes {
		counts[math.Round(s/bucket)*bucket]++
	}
	var best float64
	bestCount := 0
	for size, n := range counts {
		if n > bestCount || (n == bestCount && size > best) {
			best, bestCount = size, n
		}
	}
	return best
}

// cleanHeading strips leading non-alphanumerics and trailing periods.
func cleanHeading(s string) string {
	s = strings.TrimLeftFunc(s, notAlnum)
	s = strings.TrimRight(s, ".")
	return strings.TrimSpace(s)
}

// dedupe drops repeated (lowercased text, page) pairs and orders by page.
func dedupe(entries []Entry) []Entry {
	type key struct {
		text string
		page int
	}
	seen := make(map[key]bool, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		k := key{strings.ToLower(e.Text), e.Page}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, e)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Page < out[j].Page })
	return out
}

func notAlnum(r rune) bool {
	return !unicode.IsLetter(r) && !unicode.IsDigit(r)
}

func runeLen(s string) int {
	return utf8.RuneCountInString(s)
}
