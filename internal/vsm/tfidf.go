package vsm

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// vocabulary builds the pruned, alphabetically ordered term list and the
// smoothed idf for each kept term.
func vocabulary(docs [][]string, cfg Config) ([]string, []float64, error) {
	n := len(docs)
	df := make(map[string]int)
	tf := make(map[string]int)
	for _, terms := range docs {
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			tf[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	if len(df) == 0 {
		return nil, nil, ErrEmptyVocabulary
	}

	maxDocs := cfg.MaxDF * float64(n)
	terms := make([]string, 0, len(df))
	for t, d := range df {
		if float64(d) > maxDocs || d < cfg.MinDF {
			continue
		}
		terms = append(terms, t)
	}
	if len(terms) == 0 {
		return nil, nil, ErrEmptyVocabulary
	}

	if cfg.MaxFeatures > 0 && len(terms) > cfg.MaxFeatures {
		sort.Slice(terms, func(i, j int) bool {
			if tf[terms[i]] != tf[terms[j]] {
				return tf[terms[i]] > tf[terms[j]]
			}
			return terms[i] < terms[j]
		})
		terms = terms[:cfg.MaxFeatures]
	}
	sort.Strings(terms)

	idf := make([]float64, len(terms))
	for i, t := range terms {
		idf[i] = math.Log(float64(1+n)/float64(1+df[t])) + 1
	}
	return terms, idf, nil
}

// weigh returns the l2-normalized tf-idf matrix of docs, one row per doc.
// Terms outside the vocabulary are ignored.
func weigh(docs [][]string, index map[string]int, idf []float64) *mat.Dense {
	x := mat.NewDense(len(docs), len(idf), nil)
	row := make([]float64, len(idf))
	for i, terms := range docs {
		clear(row)
		for _, t := range terms {
			if j, ok := index[t]; ok {
				row[j]++
			}
		}
		floats.Mul(row, idf)
		if norm := floats.Norm(row, 2); norm > 0 {
			floats.Scale(1/norm, row)
		}
		x.SetRow(i, row)
	}
	return x
}
