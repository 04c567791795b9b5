package vsm

import (
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/mat"
)

// randomizedSVD returns the top right singular vectors of x as the columns
// of an f×r matrix, r <= k. The range of x is sketched with a seeded
// Gaussian test matrix and refined by power iterations.
func randomizedSVD(x *mat.Dense, cfg Config) (*mat.Dense, error) {
	n, f := x.Dims()
	l := cfg.Components + cfg.Oversamples

	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed))
	g := mat.NewDense(f, l, nil)
	for i := 0; i < f; i++ {
		for j := 0; j < l; j++ {
			g.Set(i, j, rng.NormFloat64())
		}
	}

	var y mat.Dense
	y.Mul(x, g)
	q, err := orth(&y)
	if err != nil {
		return nil, err
	}
	for it := 0; it < cfg.PowerIters; it++ {
		var z mat.Dense
		z.Mul(x.T(), q)
		zq, err := orth(&z)
		if err != nil {
			return nil, err
		}
		var w mat.Dense
		w.Mul(x, zq)
		if q, err = orth(&w); err != nil {
			return nil, err
		}
	}

	var b mat.Dense
	b.Mul(q.T(), x)
	var svd mat.SVD
	if !svd.Factorize(&b, mat.SVDThin) {
		return nil, ErrReduction
	}
	var v mat.Dense
	svd.VTo(&v)

	r := min(cfg.Components, len(svd.Values(nil)), n)
	comp := mat.DenseCopyOf(v.Slice(0, f, 0, r))
	flipSigns(comp)
	return comp, nil
}

// orth returns an orthonormal basis for the column space of a.
func orth(a mat.Matrix) (*mat.Dense, error) {
	var svd mat.SVD
	if !svd.Factorize(a, mat.SVDThinU) {
		return nil, ErrReduction
	}
	var u mat.Dense
	svd.UTo(&u)
	return &u, nil
}

// flipSigns makes the largest-magnitude entry of every column positive so
// that components are stable across runs.
func flipSigns(v *mat.Dense) {
	rows, cols := v.Dims()
	for j := 0; j < cols; j++ {
		best, sign := 0.0, 1.0
		for i := 0; i < rows; i++ {
			if a := math.Abs(v.At(i, j)); a > best {
				best, sign = a, math.Copysign(1, v.At(i, j))
			}
		}
		if sign < 0 {
			for i := 0; i < rows; i++ {
				v.Set(i, j, -v.At(i, j))
			}
		}
	}
}
