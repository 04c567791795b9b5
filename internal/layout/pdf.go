package layout

import (
	"bytes"
	"fmt"
	"io"
	"math"
	"strings"

	pdflib "github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

// PDFExtractor lays out PDF files from their glyph stream. Glyph positions,
// fonts and page boxes come from ledongthuc/pdf; the outline tree comes from
// pdfcpu because it resolves bookmark destinations to page numbers.
type PDFExtractor struct{}

func (p *PDFExtractor) Extract(r io.Reader, name string) (doc *Document, err error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read pdf: %w", err)
	}

	// The decoder panics on some malformed content streams.
	defer func() {
		if rec := recover(); rec != nil {
			doc = nil
			err = &ParseError{Name: name, Err: fmt.Errorf("pdf decoder: %v", rec)}
		}
	}()

	reader, err := pdflib.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, &ParseError{Name: name, Err: err}
	}

	doc = &Document{
		Name:  name,
		Title: reader.Trailer().Key("Info").Key("Title").Text(),
	}

	for i := 1; i <= reader.NumPage(); i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		box := mediaBox(page)
		g := &glyphGrouper{page: i, top: box.Y1}
		for _, t := range page.Content().Text {
			g.add(t)
		}
		doc.Pages = append(doc.Pages, Page{
			Number: i,
			Width:  box.X1 - box.X0,
			Height: box.Y1 - box.Y0,
			Blocks: g.finish(),
		})
	}

	doc.TOC = readBookmarks(data)
	return doc, nil
}

// mediaBox walks the page tree for an inherited MediaBox, defaulting to US Letter.
func mediaBox(p pdflib.Page) BBox {
	for v := p.V; !v.IsNull(); v = v.Key("Parent") {
		box := v.Key("MediaBox")
		if box.Kind() != pdflib.Array || box.Len() != 4 {
			continue
		}
		b := BBox{
			X0: box.Index(0).Float64(),
			Y0: box.Index(1).Float64(),
			X1: box.Index(2).Float64(),
			Y1: box.Index(3).Float64(),
		}
		if b.X1 > b.X0 && b.Y1 > b.Y0 {
			return b
		}
	}
	return BBox{X1: 612, Y1: 792}
}

// readBookmarks flattens the document outline depth-first. Any failure,
// including a document without outlines, yields no TOC.
func readBookmarks(data []byte) (toc []TOCEntry) {
	defer func() {
		if recover() != nil {
			toc = nil
		}
	}()

	bms, err := api.Bookmarks(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil
	}

	var walk func([]pdfcpu.Bookmark, int)
	walk = func(bs []pdfcpu.Bookmark, depth int) {
		for _, b := range bs {
			toc = append(toc, TOCEntry{Depth: depth, Title: b.Title, Page: b.PageFrom})
			walk(b.Kids, depth+1)
		}
	}
	walk(bms, 1)
	return toc
}

// IsBold reports whether a PDF font name denotes a bold face.
func IsBold(font string) bool {
	f := strings.ToLower(font)
	for _, marker := range []string{"bold", "black", "heavy", "semibold", "demi"} {
		if strings.Contains(f, marker) {
			return true
		}
	}
	return strings.HasSuffix(f, ",b")
}

// glyphGrouper merges per-glyph text into spans, spans into lines and
// lines into blocks, following the content stream order.
//
// A glyph joins the current line when its baseline is within half a font
// size. A new span starts on a font or size change. A horizontal gap wider
// than 0.3 em inserts a space. Lines separate into blocks on a vertical gap
// over 1.5 line heights, on upward movement, or on a change in size or weight.
type glyphGrouper struct {
	page int
	top  float64

	blocks []Block
	lines  []Line
	spans  []Span

	text     strings.Builder
	span     Span
	inSpan   bool
	font     string
	endX     float64
	baseline float64
	lineSize float64

	prevBaseline float64
	prevSize     float64
	prevBold     bool
	hasPrev      bool
}

func (g *glyphGrouper) add(t pdflib.Text) {
	if t.S == "" {
		return
	}
	size := t.FontSize
	if size <= 0 {
		size = 1
	}

	if g.inSpan || len(g.spans) > 0 {
		tol := math.Max(size, g.lineSize) * 0.5
		if math.Abs(t.Y-g.baseline) > tol {
			g.endLine()
		}
	}
	if g.inSpan && (t.Font != g.font || math.Abs(size-g.span.FontSize) > 0.1) {
		g.endSpan()
	}

	if !g.inSpan {
		if len(g.spans) == 0 {
			g.baseline = t.Y
			g.lineSize = size
		}
		g.span = Span{
			FontSize: size,
			Bold:     IsBold(t.Font),
			Page:     g.page,
			BBox: BBox{
				X0: t.X,
				Y0: g.top - (t.Y + size),
				X1: t.X + t.W,
				Y1: g.top - t.Y,
			},
		}
		g.font = t.Font
		g.inSpan = true
	} else if t.X-g.endX > size*0.3 {
		if s := g.text.String(); s != "" && !strings.HasSuffix(s, " ") && !strings.HasPrefix(t.S, " ") {
			g.text.WriteByte(' ')
		}
	}

	g.text.WriteString(t.S)
	g.endX = t.X + t.W
	if g.endX > g.span.BBox.X1 {
		g.span.BBox.X1 = g.endX
	}
}

func (g *glyphGrouper) endSpan() {
	if !g.inSpan {
		return
	}
	g.span.Text = g.text.String()
	g.text.Reset()
	g.inSpan = false
	if strings.TrimSpace(g.span.Text) != "" {
		g.spans = append(g.spans, g.span)
	}
}

func (g *glyphGrouper) endLine() {
	g.endSpan()
	if len(g.spans) == 0 {
		return
	}
	line := Line{Spans: g.spans}
	g.spans = nil

	size, bold, _ := line.Style()
	if g.hasPrev {
		gap := g.prevBaseline - g.baseline
		lineHeight := math.Max(size, g.prevSize)
		if gap > 1.5*lineHeight || gap < -0.5*lineHeight ||
			math.Abs(size-g.prevSize) > 0.5 || bold != g.prevBold {
			g.endBlock()
		}
	}
	g.lines = append(g.lines, line)
	g.prevBaseline = g.baseline
	g.prevSize = size
	g.prevBold = bold
	g.hasPrev = true
}

func (g *glyphGrouper) endBlock() {
	if len(g.lines) == 0 {
		return
	}
	g.blocks = append(g.blocks, Block{Lines: g.lines})
	g.lines = nil
}

func (g *glyphGrouper) finish() []Block {
	g.endLine()
	g.endBlock()
	return g.blocks
}
