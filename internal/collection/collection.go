// Package collection reads persona analysis requests: a persona, a task and
// the documents to analyze, validated against an embedded JSON Schema.
package collection

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/dgallion1/docsift/internal/pipeline"
)

// DefaultName is the descriptor file looked up when no name is given.
const DefaultName = "collection.json"

const schemaURL = "collection.schema.json"

//go:embed schema.json
var schemaJSON []byte

var compiled = sync.OnceValues(func() (*jsonschema.Schema, error) {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource(schemaURL, bytes.NewReader(schemaJSON)); err != nil {
		return nil, fmt.Errorf("add schema: %w", err)
	}
	return compiler.Compile(schemaURL)
})

type Persona struct {
	Role string `json:"role"`
}

type Task struct {
	Task string `json:"task"`
}

// Document names one input. Content carries the raw bytes when the
// document travels inline (base64 in JSON).
type Document struct {
	Filename string `json:"filename"`
	Title    string `json:"title,omitempty"`
	Content  []byte `json:"content,omitempty"`
}

// UnmarshalJSON accepts either a bare filename or an object.
func (d *Document) UnmarshalJSON(b []byte) error {
	var name string
	if err := json.Unmarshal(b, &name); err == nil {
		*d = Document{Filename: name}
		return nil
	}
	type plain Document
	var p plain
	if err := json.Unmarshal(b, &p); err != nil {
		return err
	}
	*d = Document(p)
	return nil
}

// Collection is a validated persona analysis request.
type Collection struct {
	Persona     Persona    `json:"persona"`
	JobToBeDone Task       `json:"job_to_be_done"`
	Documents   []Document `json:"documents"`
}

// Parse validates data against the collection schema and decodes it.
func Parse(data []byte) (*Collection, error) {
	schema, err := compiled()
	if err != nil {
		return nil, fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("unmarshal collection: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return nil, fmt.Errorf("collection does not match schema: %w", err)
	}

	var c Collection
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("decode collection: %w", err)
	}
	return &c, nil
}

// Load reads and parses dir/name, defaulting name to DefaultName.
func Load(dir, name string) (*Collection, error) {
	if name == "" {
		name = DefaultName
	}
	data, err := os.ReadFile(filepath.Join(dir, name))
	if err != nil {
		return nil, fmt.Errorf("read collection: %w", err)
	}
	return Parse(data)
}

// Inputs converts the documents into pipeline inputs. Inline documents keep
// their bytes; the others resolve relative to dir.
func (c *Collection) Inputs(dir string) []pipeline.Input {
	out := make([]pipeline.Input, 0, len(c.Documents))
	for _, d := range c.Documents {
		in := pipeline.Input{Name: d.Filename}
		if d.Content != nil {
			in.Data = d.Content
		} else {
			in.Path = filepath.Join(dir, d.Filename)
		}
		out = append(out, in)
	}
	return out
}

// Request builds the pipeline request for this collection.
func (c *Collection) Request(dir string) pipeline.PersonaRequest {
	return pipeline.PersonaRequest{
		Documents:   c.Inputs(dir),
		Persona:     c.Persona.Role,
		JobToBeDone: c.JobToBeDone.Task,
	}
}

// Inline reports whether every document carries its content.
func (c *Collection) Inline() bool {
	for _, d := range c.Documents {
		if d.Content == nil {
			return false
		}
	}
	return true
}
