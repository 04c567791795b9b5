package layout

import "strings"

// Virtual page geometry and type scale for sources without native layout.
const (
	flowPageWidth  = 612.0
	flowPageHeight = 792.0
	flowMargin     = 72.0
	bodySize       = 11.0
)

// headingSize maps a markup heading level (1-6) to a point size.
func headingSize(level int) float64 {
	switch level {
	case 1:
		return 24
	case 2:
		return 18
	case 3:
		return 15
	case 4:
		return 13
	case 5, 6:
		return 12
	}
	return bodySize
}

// run is a styled text fragment before layout.
type run struct {
	text string
	size float64
	bold bool
}

// flow lays blocks out top to bottom on virtual pages so that markup
// documents expose the same page/block/line/span shape as PDFs.
type flow struct {
	pages []Page
	y     float64
}

// add lays out one block. Each element of lines is one line of runs.
func (f *flow) add(lines [][]run) {
	lines = trimEmptyLines(lines)
	if len(lines) == 0 {
		return
	}

	height := 0.0
	for _, l := range lines {
		height += lineHeight(l)
	}
	if len(f.pages) == 0 || (f.y+height > flowPageHeight-flowMargin && f.y > flowMargin) {
		f.pages = append(f.pages, Page{
			Number: len(f.pages) + 1,
			Width:  flowPageWidth,
			Height: flowPageHeight,
		})
		f.y = flowMargin
	}
	page := &f.pages[len(f.pages)-1]

	var block Block
	maxSize := 0.0
	for _, l := range lines {
		lh := lineHeight(l)
		x := flowMargin
		var line Line
		for _, r := range l {
			w := float64(len([]rune(r.text))) * r.size * 0.5
			line.Spans = append(line.Spans, Span{
				Text:     r.text,
				FontSize: r.size,
				Bold:     r.bold,
				Page:     page.Number,
				BBox:     BBox{X0: x, Y0: f.y, X1: x + w, Y1: f.y + r.size},
			})
			x += w
			if r.size > maxSize {
				maxSize = r.size
			}
		}
		block.Lines = append(block.Lines, line)
		f.y += lh
	}
	page.Blocks = append(page.Blocks, block)
	f.y += maxSize * 0.5
}

// addText adds a single-style paragraph, splitting it on newlines.
func (f *flow) addText(text string, size float64, bold bool) {
	var lines [][]run
	for _, l := range strings.Split(text, "\n") {
		lines = append(lines, []run{{text: l, size: size, bold: bold}})
	}
	f.add(lines)
}

func (f *flow) document(name, title string) *Document {
	return &Document{Name: name, Title: title, Pages: f.pages}
}

func lineHeight(l []run) float64 {
	size := bodySize
	for _, r := range l {
		if r.size > size {
			size = r.size
		}
	}
	return size * 1.2
}

func trimEmptyLines(lines [][]run) [][]run {
	var out [][]run
	for _, l := range lines {
		var kept []run
		for _, r := range l {
			if strings.TrimSpace(r.text) != "" {
				kept = append(kept, r)
			}
		}
		if len(kept) > 0 {
			out = append(out, kept)
		}
	}
	return out
}
