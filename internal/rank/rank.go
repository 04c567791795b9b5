// Package rank orders sections by latent-space similarity to a persona query.
package rank

import (
	"log/slog"
	"sort"

	"github.com/dgallion1/docsift/internal/segment"
	"github.com/dgallion1/docsift/internal/vsm"
)

// Ranked is a section annotated with its dense importance rank.
type Ranked struct {
	segment.Section
	ImportanceRank int     `json:"importance_rank"`
	Score          float64 `json:"-"`
}

// Query joins a persona role and task into the ranking query.
func Query(persona, job string) string {
	return persona + " " + job
}

// Ranker fits a fresh model per call.
type Ranker struct {
	cfg vsm.Config
	log *slog.Logger
}

func New(cfg vsm.Config, log *slog.Logger) *Ranker {
	if log == nil {
		log = slog.Default()
	}
	return &Ranker{cfg: cfg, log: log}
}

// Rank returns all sections ordered by descending similarity to query with
// ranks 1..N. The fitted model is returned for reuse by the refiner. When
// the model cannot be fit the sections keep extraction order and the
// returned model is nil.
func (r *Ranker) Rank(sections []segment.Section, query string) ([]Ranked, *vsm.Model) {
	ranked := make([]Ranked, len(sections))
	for i, s := range sections {
		ranked[i] = Ranked{Section: s, ImportanceRank: i + 1}
	}
	if len(sections) == 0 {
		return ranked, nil
	}

	corpus := make([]string, 0, len(sections)+1)
	for _, s := range sections {
		corpus = append(corpus, s.SectionTitle+" "+s.Content)
	}
	corpus = append(corpus, query)

	model, err := vsm.Fit(corpus, r.cfg)
	if err != nil {
		r.log.Warn("rank.fallback", "sections", len(sections), "error", err)
		return ranked, nil
	}
	vecs, err := model.Transform(corpus)
	if err != nil {
		r.log.Warn("rank.fallback", "sections", len(sections), "error", err)
		return ranked, nil
	}

	q := vecs.RawRowView(len(sections))
	for i := range ranked {
		ranked[i].Score = vsm.Cosine(q, vecs.RawRowView(i))
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].Score > ranked[j].Score })
	for i := range ranked {
		ranked[i].ImportanceRank = i + 1
	}

	r.log.Debug("rank.ok", "sections", len(sections), "top_score", ranked[0].Score)
	return ranked, model
}
