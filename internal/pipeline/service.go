package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgallion1/docsift/internal/config"
	"github.com/dgallion1/docsift/internal/layout"
	"github.com/dgallion1/docsift/internal/outline"
	"github.com/dgallion1/docsift/internal/rank"
	"github.com/dgallion1/docsift/internal/refine"
	"github.com/dgallion1/docsift/internal/rules"
	"github.com/dgallion1/docsift/internal/segment"
	"github.com/dgallion1/docsift/internal/stats"
	"github.com/dgallion1/docsift/internal/vsm"
)

// Input is one document of a request: either in-memory bytes or a path on
// disk. Name is what the result reports.
type Input struct {
	Name string
	Data []byte
	Path string
}

// Metadata echoes the request in a persona result.
type Metadata struct {
	InputDocuments      []string `json:"input_documents"`
	Persona             string   `json:"persona"`
	JobToBeDone         string   `json:"job_to_be_done"`
	ProcessingTimestamp string   `json:"processing_timestamp"`
}

// PersonaResult is the ranked, refined view of a document collection.
type PersonaResult struct {
	Metadata           Metadata            `json:"metadata"`
	ExtractedSections  []rank.Ranked       `json:"extracted_sections"`
	SubsectionAnalysis []refine.Subsection `json:"subsection_analysis"`
}

// PersonaRequest describes one persona analysis. OnPhase, when set, is
// called as the analysis enters each phase.
type PersonaRequest struct {
	Documents   []Input
	Persona     string
	JobToBeDone string
	OnPhase     func(JobStatus)
}

// Service runs structure and persona analyses. It holds no per-request
// state and is safe for concurrent use.
type Service struct {
	analyzer  *outline.Analyzer
	segmenter *segment.Segmenter
	ranker    *rank.Ranker
	refiner   *refine.Refiner
	latency   *stats.Latency
	log       *slog.Logger

	topSections int
	refinePool  int
	maxExtract  int

	now func() time.Time
}

func NewService(cfg config.Config, r *rules.Rules, latency *stats.Latency, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	if latency == nil {
		latency = stats.NewLatency(time.Hour)
	}
	vcfg := vsm.DefaultConfig()
	vcfg.Components = cfg.LatentComponents
	vcfg.MaxFeatures = cfg.MaxFeatures
	vcfg.Seed = cfg.RandomSeed

	return &Service{
		analyzer:    outline.NewAnalyzer(r),
		segmenter:   segment.New(r),
		ranker:      rank.New(vcfg, log),
		refiner:     refine.New(cfg.TopSubsections, log),
		latency:     latency,
		log:         log,
		topSections: cfg.TopSections,
		refinePool:  cfg.RefinePool,
		maxExtract:  max(1, cfg.MaxConcurrentExtract),
		now:         time.Now,
	}
}

// Latency returns the per-operation latency windows.
func (s *Service) Latency() *stats.Latency {
	return s.latency
}

// Structure returns the title and outline of one document. Documents that
// cannot be read or decoded yield the unknown result.
func (s *Service) Structure(in Input) outline.Result {
	defer s.latency.Observe("structure", time.Now())

	doc, err := s.load(in)
	if err != nil {
		s.log.Warn("structure.skip", "document", in.Name, "error", err)
		return outline.Unknown()
	}
	res := s.analyzer.Analyze(doc)
	s.log.Info("structure.ok", "document", in.Name, "title", res.Title, "headings", len(res.Outline))
	return res
}

// Persona ranks the sections of every readable document against the
// persona query. Unreadable documents are skipped. The only error is the
// context's, when it ends before the analysis completes.
func (s *Service) Persona(ctx context.Context, req PersonaRequest) (*PersonaResult, error) {
	phase := func(st JobStatus) {
		if req.OnPhase != nil {
			req.OnPhase(st)
		}
	}

	names := make([]string, len(req.Documents))
	for i, in := range req.Documents {
		names[i] = in.Name
	}
	res := &PersonaResult{
		Metadata: Metadata{
			InputDocuments:      names,
			Persona:             req.Persona,
			JobToBeDone:         req.JobToBeDone,
			ProcessingTimestamp: s.now().Format(time.RFC3339),
		},
		ExtractedSections:  []rank.Ranked{},
		SubsectionAnalysis: []refine.Subsection{},
	}

	phase(StatusExtracting)
	start := time.Now()
	sections, err := s.sections(ctx, req.Documents)
	if err != nil {
		return nil, err
	}
	s.latency.Observe("extract", start)
	if len(sections) == 0 {
		s.log.Warn("persona.no_sections", "documents", len(req.Documents))
		return res, nil
	}

	phase(StatusRanking)
	start = time.Now()
	query := rank.Query(req.Persona, req.JobToBeDone)
	ranked, model := s.ranker.Rank(sections, query)
	s.latency.Observe("rank", start)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	phase(StatusRefining)
	start = time.Now()
	pool := ranked[:min(len(ranked), s.refinePool)]
	res.SubsectionAnalysis = s.refiner.Refine(pool, query, model)
	s.latency.Observe("refine", start)

	res.ExtractedSections = ranked[:min(len(ranked), s.topSections)]
	s.log.Info("persona.ok",
		"documents", len(req.Documents),
		"sections", len(sections),
		"extracted", len(res.ExtractedSections),
		"subsections", len(res.SubsectionAnalysis),
		"fallback", model == nil,
	)
	return res, nil
}

// sections lays out and segments documents with bounded concurrency. The
// result is concatenated in input order.
func (s *Service) sections(ctx context.Context, inputs []Input) ([]segment.Section, error) {
	perDoc := make([][]segment.Section, len(inputs))
	sem := make(chan struct{}, s.maxExtract)
	done := make(chan struct{}, len(inputs))

	for i, in := range inputs {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
			for range i {
				<-done
			}
			return nil, ctx.Err()
		}
		go func() {
			defer func() {
				<-sem
				done <- struct{}{}
			}()
			doc, err := s.load(in)
			if err != nil {
				s.log.Warn("persona.skip", "document", in.Name, "error", err)
				return
			}
			perDoc[i] = s.segmenter.Segment(doc)
		}()
	}
	for range inputs {
		<-done
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var all []segment.Section
	for _, secs := range perDoc {
		all = append(all, secs...)
	}
	return all, nil
}

func (s *Service) load(in Input) (*layout.Document, error) {
	var doc *layout.Document
	var err error
	switch {
	case in.Path != "":
		doc, err = layout.ExtractFile(in.Path)
	case in.Data != nil:
		doc, err = layout.Extract(in.Data, in.Name)
	default:
		err = fmt.Errorf("%w: %s", layout.ErrMissingInput, in.Name)
	}
	if err != nil {
		return nil, err
	}
	if in.Name != "" {
		doc.Name = in.Name
	}
	return doc, nil
}
