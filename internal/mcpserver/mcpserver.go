// Package mcpserver exposes structure and persona analysis as MCP tools for
// agents that work on local files.
package mcpserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/dgallion1/docsift/internal/pipeline"
)

// Implementation identifies the server to MCP clients.
var Implementation = &mcp.Implementation{Name: "docsift", Version: "1.0.0"}

// New returns an MCP server with the docsift tools registered.
func New(svc *pipeline.Service) *mcp.Server {
	srv := mcp.NewServer(Implementation, nil)
	Register(srv, svc)
	return srv
}

// Register adds the docsift tools to srv.
func Register(srv *mcp.Server, svc *pipeline.Service) {
	registerStructureTool(srv, svc)
	registerPersonaTool(srv, svc)
}

// Serve runs the tools over stdio until ctx ends or the client disconnects.
func Serve(ctx context.Context, svc *pipeline.Service) error {
	return New(svc).Run(ctx, &mcp.StdioTransport{})
}

func inputSchema(properties map[string]any, required []string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": properties,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

type structureReq struct {
	Path string `json:"path"`
}

func registerStructureTool(srv *mcp.Server, svc *pipeline.Service) {
	tool := &mcp.Tool{
		Name:        "docsift_structure",
		Description: "Extract the title and H1-H3 outline of a document file (pdf, docx, md, txt, html).",
		InputSchema: inputSchema(map[string]any{
			"path": map[string]any{"type": "string", "description": "File path to analyze"},
		}, []string{"path"}),
	}

	srv.AddTool(tool, handler(func(_ context.Context, raw json.RawMessage) (any, error) {
		var r structureReq
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if r.Path == "" {
			return nil, errors.New("path is required")
		}
		return svc.Structure(pipeline.Input{Name: filepath.Base(r.Path), Path: r.Path}), nil
	}))
}

type personaReq struct {
	Paths       []string `json:"paths"`
	Persona     string   `json:"persona"`
	JobToBeDone string   `json:"job_to_be_done"`
}

func registerPersonaTool(srv *mcp.Server, svc *pipeline.Service) {
	tool := &mcp.Tool{
		Name:        "docsift_persona",
		Description: "Rank the sections of a document collection by relevance to a persona and task, with refined excerpts.",
		InputSchema: inputSchema(map[string]any{
			"paths": map[string]any{
				"type":        "array",
				"items":       map[string]any{"type": "string"},
				"description": "Document file paths",
			},
			"persona":        map[string]any{"type": "string", "description": "Who is reading"},
			"job_to_be_done": map[string]any{"type": "string", "description": "What they need to accomplish"},
		}, []string{"paths", "persona", "job_to_be_done"}),
	}

	srv.AddTool(tool, handler(func(ctx context.Context, raw json.RawMessage) (any, error) {
		var r personaReq
		if err := json.Unmarshal(raw, &r); err != nil {
			return nil, fmt.Errorf("invalid arguments: %w", err)
		}
		if len(r.Paths) == 0 || r.Persona == "" || r.JobToBeDone == "" {
			return nil, errors.New("paths, persona and job_to_be_done are required")
		}
		inputs := make([]pipeline.Input, len(r.Paths))
		for i, p := range r.Paths {
			inputs[i] = pipeline.Input{Name: filepath.Base(p), Path: p}
		}
		return svc.Persona(ctx, pipeline.PersonaRequest{
			Documents:   inputs,
			Persona:     r.Persona,
			JobToBeDone: r.JobToBeDone,
		})
	}))
}

// handler adapts an endpoint to an MCP tool handler. Endpoint errors become
// tool errors and results are returned as JSON text.
func handler(endpoint func(context.Context, json.RawMessage) (any, error)) mcp.ToolHandler {
	return func(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		resp, err := endpoint(ctx, req.Params.Arguments)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(err)
			return &res, nil
		}
		data, err := json.Marshal(resp)
		if err != nil {
			var res mcp.CallToolResult
			res.SetError(fmt.Errorf("marshal: %w", err))
			return &res, nil
		}
		return &mcp.CallToolResult{
			Content: []mcp.Content{&mcp.TextContent{Text: string(data)}},
		}, nil
	}
}
