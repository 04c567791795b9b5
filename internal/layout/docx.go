package layout

import (
	"bytes"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fumiama/go-docx"
)

// DOCXExtractor lays out .docx files. Heading styles map to the heading
// type scale; run-level bold and size (w:sz, half-points) are kept.
type DOCXExtractor struct{}

func (d *DOCXExtractor) Extract(r io.Reader, name string) (*Document, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read docx: %w", err)
	}

	doc, err := docx.Parse(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("parse docx: %w", err)
	}

	f := &flow{}
	for _, item := range doc.Document.Body.Items {
		para, ok := item.(*docx.Paragraph)
		if !ok {
			continue
		}

		size, bold := bodySize, false
		if level := docxHeadingLevel(para); level > 0 {
			size, bold = headingSize(level), true
		}

		lb := &lineBuilder{}
		for _, child := range para.Children {
			run, ok := child.(*docx.Run)
			if !ok {
				continue
			}
			runSize, runBold := size, bold
			if rp := run.RunProperties; rp != nil {
				if rp.Bold != nil {
					runBold = true
				}
				if rp.Size != nil {
					if hp, err := strconv.ParseFloat(rp.Size.Val, 64); err == nil && hp > 0 {
						runSize = hp / 2
					}
				}
			}
			for _, rc := range run.Children {
				switch t := rc.(type) {
				case *docx.Text:
					lb.write(t.Text, runSize, runBold)
				case *docx.BarterRabbet:
					lb.newline()
				}
			}
		}
		f.add(lb.done())
	}

	return f.document(name, ""), nil
}

func docxHeadingLevel(para *docx.Paragraph) int {
	if para.Properties == nil || para.Properties.Style == nil {
		return 0
	}
	style := strings.ToLower(strings.ReplaceAll(para.Properties.Style.Val, " ", ""))
	if style == "title" {
		return 1
	}
	if lvl, ok := strings.CutPrefix(style, "heading"); ok {
		if n, err := strconv.Atoi(lvl); err == nil && n >= 1 && n <= 6 {
			return n
		}
	}
	return 0
}
