// Command docsift runs structure and persona analyses from the command line
// and serves them to MCP clients over stdio.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/dgallion1/docsift/internal/collection"
	"github.com/dgallion1/docsift/internal/config"
	"github.com/dgallion1/docsift/internal/export"
	"github.com/dgallion1/docsift/internal/layout"
	"github.com/dgallion1/docsift/internal/mcpserver"
	"github.com/dgallion1/docsift/internal/pipeline"
	"github.com/dgallion1/docsift/internal/rules"
)

const usage = `usage:
  docsift structure -in DIR -out DIR
  docsift structure FILE
  docsift persona -in DIR [-collection collection.json] -out FILE [-xlsx FILE]
  docsift persona -persona P -job J FILE...
  docsift mcp
`

var (
	okColor   = color.New(color.FgGreen, color.Bold).SprintFunc()
	warnColor = color.New(color.FgYellow).SprintFunc()
	errColor  = color.New(color.FgRed, color.Bold).SprintFunc()
)

// app carries what every subcommand needs.
type app struct {
	cfg    config.Config
	svc    *pipeline.Service
	log    *slog.Logger
	stdout io.Writer
	stderr io.Writer
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(os.Stdout, os.Stderr)
	if err != nil {
		fmt.Fprintln(os.Stderr, errColor("error:"), err)
		os.Exit(1)
	}
	if err := a.run(ctx, os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, errColor("error:"), err)
		os.Exit(1)
	}
}

func newApp(stdout, stderr io.Writer) (*app, error) {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: cfg.LogLevel}))

	heuristics := rules.Default()
	if cfg.HeuristicsFile != "" {
		r, err := rules.Load(cfg.HeuristicsFile)
		if err != nil {
			return nil, err
		}
		heuristics = r
	}
	return &app{
		cfg:    cfg,
		svc:    pipeline.NewService(cfg, heuristics, nil, log),
		log:    log,
		stdout: stdout,
		stderr: stderr,
	}, nil
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "structure":
		return a.structure(args)
	case "persona":
		return a.persona(ctx, args)
	case "mcp":
		return mcpserver.Serve(ctx, a.svc)
	case "help", "-h", "--help":
		fmt.Fprint(a.stdout, usage)
		return nil
	default:
		return fmt.Errorf("unknown command %q\n%s", cmd, usage)
	}
}

func (a *app) structure(args []string) error {
	fs := flag.NewFlagSet("structure", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	in := fs.String("in", "", "input directory")
	out := fs.String("out", "", "output directory")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *in == "" {
		if fs.NArg() != 1 {
			return errors.New("structure needs -in/-out or exactly one FILE")
		}
		path := fs.Arg(0)
		res := a.svc.Structure(pipeline.Input{Name: filepath.Base(path), Path: path})
		return writeIndented(a.stdout, res)
	}
	if *out == "" {
		return errors.New("-out is required with -in")
	}
	return a.structureBatch(*in, *out)
}

// structureBatch writes one <name>.json per supported file in dir.
func (a *app) structureBatch(dir, outDir string) error {
	files, err := supportedFiles(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	for _, name := range files {
		start := time.Now()
		res := a.svc.Structure(pipeline.Input{Name: name, Path: filepath.Join(dir, name)})
		target := filepath.Join(outDir, strings.TrimSuffix(name, filepath.Ext(name))+".json")
		if err := writeJSONFile(target, res); err != nil {
			return err
		}
		fmt.Fprintf(a.stderr, "%s %s -> %s (%d headings, %s)\n",
			okColor("ok"), name, filepath.Base(target), len(res.Outline), time.Since(start).Round(time.Millisecond))
	}
	if len(files) == 0 {
		fmt.Fprintln(a.stderr, warnColor("no supported files in"), dir)
	}
	return nil
}

func (a *app) persona(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("persona", flag.ContinueOnError)
	fs.SetOutput(a.stderr)
	in := fs.String("in", "", "collection directory")
	name := fs.String("collection", collection.DefaultName, "collection descriptor inside -in")
	out := fs.String("out", "", "output JSON file (stdout when empty)")
	xlsx := fs.String("xlsx", "", "also write an XLSX workbook")
	persona := fs.String("persona", "", "persona role for ad hoc runs")
	job := fs.String("job", "", "job to be done for ad hoc runs")
	if err := fs.Parse(args); err != nil {
		return err
	}

	var req pipeline.PersonaRequest
	switch {
	case *in != "":
		c, err := collection.Load(*in, *name)
		if err != nil {
			return err
		}
		req = c.Request(*in)
	case *persona != "" && *job != "" && fs.NArg() > 0:
		for _, path := range fs.Args() {
			req.Documents = append(req.Documents, pipeline.Input{Name: filepath.Base(path), Path: path})
		}
		req.Persona, req.JobToBeDone = *persona, *job
	default:
		return errors.New("persona needs -in DIR or -persona, -job and at least one FILE")
	}

	start := time.Now()
	res, err := a.svc.Persona(ctx, req)
	if err != nil {
		return err
	}

	if *out == "" {
		if err := writeIndented(a.stdout, res); err != nil {
			return err
		}
	} else if err := writeJSONFile(*out, res); err != nil {
		return err
	}

	if *xlsx != "" {
		data, err := export.New(a.log).PersonaXLSX(res)
		if err != nil {
			return err
		}
		if err := os.WriteFile(*xlsx, data, 0o644); err != nil {
			return fmt.Errorf("write xlsx: %w", err)
		}
	}

	fmt.Fprintf(a.stderr, "%s %d documents, %d sections, %d subsections (%s)\n",
		okColor("ok"), len(req.Documents), len(res.ExtractedSections), len(res.SubsectionAnalysis),
		time.Since(start).Round(time.Millisecond))
	return nil
}

// supportedFiles lists the supported files directly inside dir, sorted.
func supportedFiles(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("read input dir: %w", err)
	}
	var names []string
	for _, e := range entries {
		if e.IsDir() || !layout.IsSupportedExtension(e.Name()) {
			continue
		}
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return names, nil
}

func writeIndented(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := writeIndented(f, v); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}
