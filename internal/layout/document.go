package layout

import "strings"

// BBox is a rectangle in page space with y growing downward from the top edge.
type BBox struct {
	X0, Y0, X1, Y1 float64
}

// Span is a run of text with uniform font and style within a line.
type Span struct {
	Text     string
	FontSize float64
	Bold     bool
	BBox     BBox
	Page     int
}

// Line is an ordered run of spans sharing a baseline.
type Line struct {
	Spans []Span
}

// Text joins the trimmed, non-empty span texts with single spaces.
func (l Line) Text() string {
	parts := make([]string, 0, len(l.Spans))
	for _, s := range l.Spans {
		if t := strings.TrimSpace(s.Text); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, " ")
}

// Style returns the average font size and bold flag over the line's
// non-empty spans. ok is false when the line carries no text.
func (l Line) Style() (size float64, bold bool, ok bool) {
	var sum float64
	n := 0
	for _, s := range l.Spans {
		if strings.TrimSpace(s.Text) == "" {
			continue
		}
		sum += s.FontSize
		n++
		if s.Bold {
			bold = true
		}
	}
	if n == 0 {
		return 0, false, false
	}
	return sum / float64(n), bold, true
}

// Block is a maximal run of adjacent lines, roughly a paragraph.
type Block struct {
	Lines []Line
}

// Text joins the non-empty line texts with newlines.
func (b Block) Text() string {
	parts := make([]string, 0, len(b.Lines))
	for _, l := range b.Lines {
		if t := l.Text(); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// Style returns the average font size over every non-empty span in the
// block and whether any of them is bold.
func (b Block) Style() (size float64, bold bool, ok bool) {
	var sum float64
	n := 0
	for _, l := range b.Lines {
		for _, s := range l.Spans {
			if strings.TrimSpace(s.Text) == "" {
				continue
			}
			sum += s.FontSize
			n++
			if s.Bold {
				bold = true
			}
		}
	}
	if n == 0 {
		return 0, false, false
	}
	return sum / float64(n), bold, true
}

// Page holds the blocks of one page, numbered from 1.
type Page struct {
	Number int
	Width  float64
	Height float64
	Blocks []Block
}

// Spans returns every span on the page in reading order.
func (p Page) Spans() []Span {
	var out []Span
	for _, b := range p.Blocks {
		for _, l := range b.Lines {
			out = append(out, l.Spans...)
		}
	}
	return out
}

// TOCEntry is one embedded table-of-contents entry. Depth starts at 1.
type TOCEntry struct {
	Depth int
	Title string
	Page  int
}

// Document is the full layout of one input file.
type Document struct {
	Name  string
	Title string // embedded metadata title, may be empty
	TOC   []TOCEntry
	Pages []Page
}
