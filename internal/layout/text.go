package layout

import (
	"bufio"
	"io"
	"strings"
)

// TextExtractor lays out plain text. Blank lines separate blocks and every
// line is set in the body size, so only the textual heading patterns apply.
type TextExtractor struct{}

func (t *TextExtractor) Extract(r io.Reader, name string) (*Document, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	f := &flow{}
	var current strings.Builder

	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			if current.Len() > 0 {
				f.addText(current.String(), bodySize, false)
				current.Reset()
			}
			continue
		}
		if current.Len() > 0 {
			current.WriteString("\n")
		}
		current.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	if current.Len() > 0 {
		f.addText(current.String(), bodySize, false)
	}

	return f.document(name, ""), nil
}
