package layout

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// Extractor converts raw document bytes into page/block/line/span layout.
type Extractor interface {
	Extract(r io.Reader, name string) (*Document, error)
}

// ErrMissingInput is returned by ExtractFile when the referenced file does not exist.
var ErrMissingInput = errors.New("input document not found")

// ParseError reports a document that could not be decoded.
type ParseError struct {
	Name string
	Err  error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %v", e.Name, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// SupportedExtensions lists file extensions this service can lay out.
var SupportedExtensions = map[string]bool{
	".pdf":      true,
	".md":       true,
	".markdown": true,
	".html":     true,
	".htm":      true,
	".docx":     true,
	".txt":      true,
}

// ForFile returns the extractor for a filename.
func ForFile(filename string) (Extractor, error) {
	ext := strings.ToLower(filepath.Ext(filename))
	switch ext {
	case ".pdf":
		return &PDFExtractor{}, nil
	case ".md", ".markdown":
		return &MarkdownExtractor{}, nil
	case ".html", ".htm":
		return &HTMLExtractor{}, nil
	case ".docx":
		return &DOCXExtractor{}, nil
	case ".txt":
		return &TextExtractor{}, nil
	default:
		return nil, fmt.Errorf("unsupported file extension: %s", ext)
	}
}

// IsSupportedExtension checks if a file extension is supported.
func IsSupportedExtension(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return SupportedExtensions[ext]
}

// Extract lays out data using the extractor matching name. Every decoding
// problem, including an unsupported extension, comes back as *ParseError.
func Extract(data []byte, name string) (*Document, error) {
	ex, err := ForFile(name)
	if err != nil {
		return nil, &ParseError{Name: name, Err: err}
	}
	doc, err := ex.Extract(bytes.NewReader(data), name)
	if err != nil {
		var pe *ParseError
		if errors.As(err, &pe) {
			return nil, err
		}
		return nil, &ParseError{Name: name, Err: err}
	}
	if doc.Name == "" {
		doc.Name = name
	}
	return doc, nil
}

// ExtractFile reads path from disk and lays it out. A missing file yields
// an error wrapping ErrMissingInput.
func ExtractFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrMissingInput, path)
		}
		return nil, &ParseError{Name: filepath.Base(path), Err: err}
	}
	return Extract(data, filepath.Base(path))
}
