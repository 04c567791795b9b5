package main

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/dgallion1/docsift/internal/config"
	"github.com/dgallion1/docsift/internal/pipeline"
)

const guideMD = `# Solar Power

Solar panels convert sunlight into electricity for rooftops and homes across the region.

# Wind Energy

Wind turbines generate electricity from coastal breezes and steady offshore winds.
`

func testApp(stdout *bytes.Buffer) *app {
	cfg := config.Config{
		MaxConcurrentExtract: 2,
		TopSections:          15,
		RefinePool:           20,
		TopSubsections:       10,
		LatentComponents:     100,
		MaxFeatures:          5000,
		RandomSeed:           42,
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &app{
		cfg:    cfg,
		svc:    pipeline.NewService(cfg, nil, nil, log),
		log:    log,
		stdout: stdout,
		stderr: io.Discard,
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestStructureBatch(t *testing.T) {
	in, out := t.TempDir(), filepath.Join(t.TempDir(), "out")
	writeFile(t, filepath.Join(in, "guide.md"), guideMD)
	writeFile(t, filepath.Join(in, "notes.csv"), "a,b")

	a := testApp(&bytes.Buffer{})
	if err := a.run(context.Background(), "structure", []string{"-in", in, "-out", out}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	entries, err := os.ReadDir(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "guide.json" {
		t.Fatalf("expected only guide.json, got %v", entries)
	}
	data, _ := os.ReadFile(filepath.Join(out, "guide.json"))
	var res struct {
		Title   string            `json:"title"`
		Outline []json.RawMessage `json:"outline"`
	}
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Outline == nil {
		t.Error("expected outline array")
	}
}

func TestStructureSingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.pdf")
	writeFile(t, path, "not a pdf")

	var stdout bytes.Buffer
	a := testApp(&stdout)
	if err := a.run(context.Background(), "structure", []string{path}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res struct {
		Title string `json:"title"`
	}
	json.Unmarshal(stdout.Bytes(), &res)
	if res.Title != "Unknown Document" {
		t.Errorf("expected unknown title, got %q", res.Title)
	}
}

func TestPersonaCollection(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "guide.md"), guideMD)
	writeFile(t, filepath.Join(dir, "collection.json"),
		`{"persona":{"role":"Installer"},"job_to_be_done":{"task":"pick panels"},"documents":[{"filename":"guide.md","title":"Guide"}]}`)
	out := filepath.Join(dir, "result.json")
	xlsx := filepath.Join(dir, "result.xlsx")

	a := testApp(&bytes.Buffer{})
	if err := a.run(context.Background(), "persona", []string{"-in", dir, "-out", out, "-xlsx", xlsx}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var res pipeline.PersonaResult
	if err := json.Unmarshal(data, &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if res.Metadata.Persona != "Installer" || len(res.ExtractedSections) != 2 {
		t.Errorf("unexpected result %+v", res.Metadata)
	}
	if info, err := os.Stat(xlsx); err != nil || info.Size() == 0 {
		t.Errorf("expected xlsx file, got %v", err)
	}
}

func TestPersonaAdHoc(t *testing.T) {
	path := filepath.Join(t.TempDir(), "guide.md")
	writeFile(t, path, guideMD)

	var stdout bytes.Buffer
	a := testApp(&stdout)
	args := []string{"-persona", "Installer", "-job", "pick panels", path}
	if err := a.run(context.Background(), "persona", args); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	var res pipeline.PersonaResult
	if err := json.Unmarshal(stdout.Bytes(), &res); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(res.Metadata.InputDocuments) != 1 || res.Metadata.InputDocuments[0] != "guide.md" {
		t.Errorf("unexpected documents %v", res.Metadata.InputDocuments)
	}
}

func TestRunErrors(t *testing.T) {
	a := testApp(&bytes.Buffer{})
	tests := []struct {
		cmd  string
		args []string
	}{
		{"unknown", nil},
		{"structure", nil},
		{"structure", []string{"-in", t.TempDir()}},
		{"persona", []string{"-persona", "p"}},
		{"persona", []string{"-in", t.TempDir()}},
	}
	for _, tt := range tests {
		if err := a.run(context.Background(), tt.cmd, tt.args); err == nil {
			t.Errorf("%s %v: expected error", tt.cmd, tt.args)
		}
	}
}
