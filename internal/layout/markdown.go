package layout

import (
	"io"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// MarkdownExtractor lays out Markdown files using goldmark. Headings become
// bold blocks on the heading type scale; strong emphasis becomes bold runs.
type MarkdownExtractor struct{}

func (m *MarkdownExtractor) Extract(r io.Reader, name string) (*Document, error) {
	src, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}

	doc := goldmark.New().Parser().Parse(text.NewReader(src))

	f := &flow{}
	mdBlocks(f, doc, src)
	return f.document(name, ""), nil
}

func mdBlocks(f *flow, parent ast.Node, src []byte) {
	for n := parent.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			lb := &lineBuilder{}
			mdInlines(lb, node, src, headingSize(node.Level), true)
			f.add(lb.done())
		case *ast.Paragraph, *ast.TextBlock:
			lb := &lineBuilder{}
			mdInlines(lb, node, src, bodySize, false)
			f.add(lb.done())
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			var lines [][]run
			segs := node.Lines()
			for i := 0; i < segs.Len(); i++ {
				seg := segs.At(i)
				lines = append(lines, []run{{text: string(seg.Value(src)), size: bodySize}})
			}
			f.add(lines)
		case *ast.List, *ast.ListItem, *ast.Blockquote:
			mdBlocks(f, node, src)
		}
	}
}

func mdInlines(lb *lineBuilder, n ast.Node, src []byte, size float64, bold bool) {
	for c := n.FirstChild(); c != nil; c = c.NextSibling() {
		switch node := c.(type) {
		case *ast.Text:
			lb.write(string(node.Segment.Value(src)), size, bold)
			if node.SoftLineBreak() || node.HardLineBreak() {
				lb.newline()
			}
		case *ast.String:
			lb.write(string(node.Value), size, bold)
		case *ast.AutoLink:
			lb.write(string(node.Label(src)), size, bold)
		case *ast.Emphasis:
			mdInlines(lb, node, src, size, bold || node.Level >= 2)
		default:
			mdInlines(lb, node, src, size, bold)
		}
	}
}

// lineBuilder collects runs into lines, merging adjacent runs of equal style.
type lineBuilder struct {
	lines [][]run
	cur   []run
}

func (b *lineBuilder) write(s string, size float64, bold bool) {
	if s == "" {
		return
	}
	if n := len(b.cur); n > 0 && b.cur[n-1].size == size && b.cur[n-1].bold == bold {
		b.cur[n-1].text += s
		return
	}
	b.cur = append(b.cur, run{text: s, size: size, bold: bold})
}

func (b *lineBuilder) newline() {
	b.lines = append(b.lines, b.cur)
	b.cur = nil
}

func (b *lineBuilder) done() [][]run {
	if len(b.cur) > 0 {
		b.newline()
	}
	return b.lines
}
