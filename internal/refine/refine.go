// Package refine picks the paragraph of each top section that best matches
// the query, reusing the model fitted during ranking.
package refine

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/dgallion1/docsift/internal/rank"
	"github.com/dgallion1/docsift/internal/vsm"
)

const (
	minParagraphLen = 100
	pseudoParaLen   = 500
	snippetLen      = 300
	ellipsis        = "..."
)

// Subsection is the refined excerpt of one ranked section.
type Subsection struct {
	Document     string `json:"document"`
	SectionTitle string `json:"section_title"`
	RefinedText  string `json:"refined_text"`
	PageNumber   int    `json:"page_number"`
}

// Refiner produces one subsection per section, up to limit sections.
type Refiner struct {
	limit int
	log   *slog.Logger
}

func New(limit int, log *slog.Logger) *Refiner {
	if log == nil {
		log = slog.Default()
	}
	return &Refiner{limit: limit, log: log}
}

// Refine never drops a section: scoring problems fall back to the first
// paragraph. A nil model always takes the fallback.
func (r *Refiner) Refine(sections []rank.Ranked, query string, model *vsm.Model) []Subsection {
	n := min(len(sections), r.limit)
	out := make([]Subsection, 0, n)
	for _, s := range sections[:n] {
		paras := Paragraphs(s.Content)
		best := 0
		if model != nil {
			if idx, err := bestParagraph(paras, query, model); err != nil {
				r.log.Warn("refine.fallback", "document", s.Document, "section", s.SectionTitle, "error", err)
			} else {
				best = idx
			}
		}
		out = append(out, Subsection{
			Document:     s.Document,
			SectionTitle: s.SectionTitle,
			RefinedText:  Snippet(paras[best]),
			PageNumber:   s.PageNumber,
		})
	}
	return out
}

// Paragraphs splits content on blank lines and keeps trimmed paragraphs
// longer than 100 characters. When none qualify the first 500 characters
// of content stand in as one paragraph.
func Paragraphs(content string) []string {
	var paras []string
	for _, p := range strings.Split(content, "\n\n") {
		p = strings.TrimSpace(p)
		if utf8.RuneCountInString(p) > minParagraphLen {
			paras = append(paras, p)
		}
	}
	if len(paras) == 0 {
		paras = []string{prefix(content, pseudoParaLen)}
	}
	return paras
}

// Snippet truncates s to 300 characters plus an ellipsis.
func Snippet(s string) string {
	if utf8.RuneCountInString(s) > snippetLen {
		return prefix(s, snippetLen) + ellipsis
	}
	return s
}

func bestParagraph(paras []string, query string, model *vsm.Model) (int, error) {
	vecs, err := model.Transform(append(append([]string{}, paras...), query))
	if err != nil {
		return 0, err
	}
	q := vecs.RawRowView(len(paras))
	best, bestScore := 0, vsm.Cosine(q, vecs.RawRowView(0))
	for i := 1; i < len(paras); i++ {
		if score := vsm.Cosine(q, vecs.RawRowView(i)); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, nil
}

func prefix(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
