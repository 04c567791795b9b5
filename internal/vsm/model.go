// Package vsm fits a per-request vector space model: tf-idf weighting over
// unigrams and bigrams followed by a seeded randomized truncated SVD.
// Models are values; nothing is cached between fits.
package vsm

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

var (
	ErrEmptyCorpus     = errors.New("vsm: empty corpus")
	ErrEmptyVocabulary = errors.New("vsm: no terms remain after pruning")
	ErrTooFewTerms     = errors.New("vsm: more components than terms")
	ErrReduction       = errors.New("vsm: dimensionality reduction failed")
)

// Config controls weighting and reduction.
type Config struct {
	MaxFeatures int     // vocabulary cap, by corpus frequency
	MaxDF       float64 // drop terms in more than this fraction of documents
	MinDF       int
	Components  int
	Oversamples int
	PowerIters  int
	Seed        uint64
}

func DefaultConfig() Config {
	return Config{
		MaxFeatures: 5000,
		MaxDF:       0.95,
		MinDF:       1,
		Components:  100,
		Oversamples: 10,
		PowerIters:  5,
		Seed:        42,
	}
}

// Model is a fitted weighting and projection.
type Model struct {
	index      map[string]int
	terms      []string
	idf        []float64
	components *mat.Dense // f×r
}

// Fit builds a model over corpus. It returns one of the package errors when
// the corpus cannot support the configured reduction.
func Fit(corpus []string, cfg Config) (m *Model, err error) {
	if len(corpus) == 0 {
		return nil, ErrEmptyCorpus
	}
	if cfg.Components <= 0 {
		return nil, fmt.Errorf("%w: components must be positive", ErrReduction)
	}

	docs := make([][]string, len(corpus))
	for i, text := range corpus {
		docs[i] = analyze(text)
	}
	terms, idf, err := vocabulary(docs, cfg)
	if err != nil {
		return nil, err
	}
	if cfg.Components > len(terms) {
		return nil, fmt.Errorf("%w: %d components, %d terms", ErrTooFewTerms, cfg.Components, len(terms))
	}

	index := make(map[string]int, len(terms))
	for i, t := range terms {
		index[t] = i
	}

	defer func() {
		if r := recover(); r != nil {
			m, err = nil, fmt.Errorf("%w: %v", ErrReduction, r)
		}
	}()
	comp, err := randomizedSVD(weigh(docs, index, idf), cfg)
	if err != nil {
		return nil, err
	}
	return &Model{index: index, terms: terms, idf: idf, components: comp}, nil
}

// Dims returns the vocabulary size and the latent dimension.
func (m *Model) Dims() (terms, latent int) {
	return m.components.Dims()
}

// Terms returns the vocabulary in column order.
func (m *Model) Terms() []string {
	return m.terms
}

// Transform projects texts into the latent space, one row per text.
func (m *Model) Transform(texts []string) (*mat.Dense, error) {
	if len(texts) == 0 {
		return nil, ErrEmptyCorpus
	}
	docs := make([][]string, len(texts))
	for i, text := range texts {
		docs[i] = analyze(text)
	}
	var out mat.Dense
	out.Mul(weigh(docs, m.index, m.idf), m.components)
	return &out, nil
}

// Cosine returns the cosine similarity of a and b, or 0 when either is zero.
func Cosine(a, b []float64) float64 {
	na, nb := floats.Norm(a, 2), floats.Norm(b, 2)
	if na == 0 || nb == 0 {
		return 0
	}
	return floats.Dot(a, b) / (na * nb)
}
