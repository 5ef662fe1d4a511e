// Package gaussgamma implements an algebra of non-normalized joint
// Gaussian-Gamma densities over a latent vector x and a positive scale s,
// the working representation for inference that marginalizes an unknown
// precision scale jointly with a linear-Gaussian state (e.g. Student-t
// process filtering).
//
// A GaussianGamma is stored in scaled information form,
//
//	GaussianGamma(x, s) = alpha * log(s)
//	                      + s * (-0.5 * xᵀ P x + xᵀ info_vec - beta)
//	                      + log_normalizer,
//
// where alpha and beta are reparameterized from the marginal Gamma
// family of s by
//
//	alpha = Gamma.alpha + 0.5 * dim - 1
//	beta  = Gamma.beta + 0.5 * info_vecᵀ P⁻¹ info_vec.
//
// The information form (info_vec = P @ mean) keeps contractions fast and
// stable and stays well defined when the precision P is rank deficient
// and no covariance exists. The family is closed under multiplication of
// densities (Add, in log space), conditioning on observed suffixes,
// partial marginalization, and full integration over x, which collapses
// to a plain Gamma over s.
//
// Every value is immutable; every operation returns a new instance.
package gaussgamma

import (
	"fmt"
	"math"

	"github.com/ieee0824/gaussgamma-go/tensor"
)

// GaussianGamma is a non-normalized joint density over (x, s) in scaled
// information form. InfoVec has trailing event dimension n, Precision
// trailing (n, n); the remaining leading axes of all five fields are
// batch axes and broadcast against each other. Values are immutable.
type GaussianGamma struct {
	LogNormalizer *tensor.Array
	InfoVec       *tensor.Array
	Precision     *tensor.Array
	Alpha         *tensor.Array
	Beta          *tensor.Array

	batchShape tensor.Shape
}

// New creates a GaussianGamma after checking the shape contract: InfoVec
// has rank >= 1, Precision rank >= 2 with square trailing axes matching
// InfoVec's event dimension, and the five fields' batch prefixes
// broadcast to a common batch shape.
func New(logNormalizer, infoVec, precision, alpha, beta *tensor.Array) (*GaussianGamma, error) {
	if infoVec.Rank() < 1 {
		return nil, fmt.Errorf("info vector must have at least 1 dimension, got shape %v", infoVec.Shape())
	}
	if precision.Rank() < 2 {
		return nil, fmt.Errorf("precision must have at least 2 dimensions, got shape %v", precision.Shape())
	}
	n := infoVec.Dim(-1)
	if precision.Dim(-1) != n || precision.Dim(-2) != n {
		return nil, fmt.Errorf("precision trailing shape %v does not match event dimension %d", precision.Shape(), n)
	}
	ivShape := infoVec.Shape()
	pShape := precision.Shape()
	batch, err := tensor.BroadcastShape(
		logNormalizer.Shape(),
		ivShape[:len(ivShape)-1],
		pShape[:len(pShape)-2],
		alpha.Shape(),
		beta.Shape(),
	)
	if err != nil {
		return nil, fmt.Errorf("gaussian-gamma parameters: %w", err)
	}
	return &GaussianGamma{
		LogNormalizer: logNormalizer,
		InfoVec:       infoVec,
		Precision:     precision,
		Alpha:         alpha,
		Beta:          beta,
		batchShape:    batch,
	}, nil
}

// Dim returns the event dimension n.
func (g *GaussianGamma) Dim() int {
	return g.InfoVec.Dim(-1)
}

// BatchShape returns the broadcast batch shape of the five fields.
func (g *GaussianGamma) BatchShape() tensor.Shape {
	return g.batchShape.Clone()
}

// Expand broadcasts every field to the given batch shape, keeping the
// event dimensions.
func (g *GaussianGamma) Expand(batch tensor.Shape) (*GaussianGamma, error) {
	n := g.Dim()
	ln, err := g.LogNormalizer.BroadcastTo(batch)
	if err != nil {
		return nil, err
	}
	info, err := g.InfoVec.BroadcastTo(append(batch.Clone(), n))
	if err != nil {
		return nil, err
	}
	prec, err := g.Precision.BroadcastTo(append(batch.Clone(), n, n))
	if err != nil {
		return nil, err
	}
	alpha, err := g.Alpha.BroadcastTo(batch)
	if err != nil {
		return nil, err
	}
	beta, err := g.Beta.BroadcastTo(batch)
	if err != nil {
		return nil, err
	}
	return New(ln, info, prec, alpha, beta)
}

// Reshape rearranges the batch axes into the given batch shape, keeping
// the event dimensions. The new batch shape must address the same number
// of batch elements.
func (g *GaussianGamma) Reshape(batch tensor.Shape) (*GaussianGamma, error) {
	e, err := g.Expand(g.batchShape)
	if err != nil {
		return nil, err
	}
	n := g.Dim()
	ln, err := e.LogNormalizer.Reshape(batch)
	if err != nil {
		return nil, err
	}
	info, err := e.InfoVec.Reshape(append(batch.Clone(), n))
	if err != nil {
		return nil, err
	}
	prec, err := e.Precision.Reshape(append(batch.Clone(), n, n))
	if err != nil {
		return nil, err
	}
	alpha, err := e.Alpha.Reshape(batch)
	if err != nil {
		return nil, err
	}
	beta, err := e.Beta.Reshape(batch)
	if err != nil {
		return nil, err
	}
	return New(ln, info, prec, alpha, beta)
}

// Index selects by integer index along a leading run of batch axes,
// leaving the event dimensions intact.
func (g *GaussianGamma) Index(ix ...int) (*GaussianGamma, error) {
	if len(ix) > len(g.batchShape) {
		return nil, fmt.Errorf("index rank %d exceeds batch rank %d", len(ix), len(g.batchShape))
	}
	e, err := g.Expand(g.batchShape)
	if err != nil {
		return nil, err
	}
	ln, err := e.LogNormalizer.Index(ix...)
	if err != nil {
		return nil, err
	}
	info, err := e.InfoVec.Index(ix...)
	if err != nil {
		return nil, err
	}
	prec, err := e.Precision.Index(ix...)
	if err != nil {
		return nil, err
	}
	alpha, err := e.Alpha.Index(ix...)
	if err != nil {
		return nil, err
	}
	beta, err := e.Beta.Index(ix...)
	if err != nil {
		return nil, err
	}
	return New(ln, info, prec, alpha, beta)
}

// Cat concatenates GaussianGammas along one batch axis. All parts must
// share the same event dimension; a negative dim counts from the end of
// the batch shape.
func Cat(parts []*GaussianGamma, dim int) (*GaussianGamma, error) {
	if len(parts) == 0 {
		return nil, fmt.Errorf("cat of no densities")
	}
	n := parts[0].Dim()
	rank := len(parts[0].batchShape)
	if dim < 0 {
		dim += rank
	}
	if dim < 0 || dim >= rank {
		return nil, fmt.Errorf("cat axis %d out of range for batch rank %d", dim, rank)
	}
	lns := make([]*tensor.Array, len(parts))
	infos := make([]*tensor.Array, len(parts))
	precs := make([]*tensor.Array, len(parts))
	alphas := make([]*tensor.Array, len(parts))
	betas := make([]*tensor.Array, len(parts))
	for i, p := range parts {
		if p.Dim() != n {
			return nil, fmt.Errorf("cat event dimension mismatch: %d vs %d", n, p.Dim())
		}
		e, err := p.Expand(p.batchShape)
		if err != nil {
			return nil, err
		}
		lns[i] = e.LogNormalizer
		infos[i] = e.InfoVec
		precs[i] = e.Precision
		alphas[i] = e.Alpha
		betas[i] = e.Beta
	}
	ln, err := tensor.Cat(lns, dim)
	if err != nil {
		return nil, err
	}
	info, err := tensor.Cat(infos, dim)
	if err != nil {
		return nil, err
	}
	prec, err := tensor.Cat(precs, dim)
	if err != nil {
		return nil, err
	}
	alpha, err := tensor.Cat(alphas, dim)
	if err != nil {
		return nil, err
	}
	beta, err := tensor.Cat(betas, dim)
	if err != nil {
		return nil, err
	}
	return New(ln, info, prec, alpha, beta)
}

// EventPad zero-pads the event dimension by left entries before and
// right entries after. Alpha, Beta and LogNormalizer are untouched: the
// reparameterized form is independent of padding with zero information
// and zero precision.
func (g *GaussianGamma) EventPad(left, right int) (*GaussianGamma, error) {
	info, err := g.InfoVec.PadAxis(-1, left, right)
	if err != nil {
		return nil, err
	}
	prec, err := g.Precision.PadAxis(-1, left, right)
	if err != nil {
		return nil, err
	}
	prec, err = prec.PadAxis(-2, left, right)
	if err != nil {
		return nil, err
	}
	return New(g.LogNormalizer, info, prec, g.Alpha, g.Beta)
}

// EventPermute relabels the event coordinates by the given permutation
// of {0, ..., n-1}, applied to the info vector and to both precision
// axes.
func (g *GaussianGamma) EventPermute(perm []int) (*GaussianGamma, error) {
	n := g.Dim()
	if len(perm) != n {
		return nil, fmt.Errorf("permutation length %d does not match event dimension %d", len(perm), n)
	}
	seen := make([]bool, n)
	for _, p := range perm {
		if p < 0 || p >= n || seen[p] {
			return nil, fmt.Errorf("invalid permutation %v of %d event coordinates", perm, n)
		}
		seen[p] = true
	}
	info, err := g.InfoVec.SelectAxis(-1, perm)
	if err != nil {
		return nil, err
	}
	prec, err := g.Precision.SelectAxis(-1, perm)
	if err != nil {
		return nil, err
	}
	prec, err = prec.SelectAxis(-2, perm)
	if err != nil {
		return nil, err
	}
	return New(g.LogNormalizer, info, prec, g.Alpha, g.Beta)
}

// Add multiplies two densities pointwise in log space by summing all
// five fields. The event dimensions must match; batch shapes broadcast.
func (g *GaussianGamma) Add(other *GaussianGamma) (*GaussianGamma, error) {
	if g.Dim() != other.Dim() {
		return nil, fmt.Errorf("event dimension mismatch: %d vs %d", g.Dim(), other.Dim())
	}
	ln, err := g.LogNormalizer.Add(other.LogNormalizer)
	if err != nil {
		return nil, err
	}
	info, err := g.InfoVec.Add(other.InfoVec)
	if err != nil {
		return nil, err
	}
	prec, err := g.Precision.Add(other.Precision)
	if err != nil {
		return nil, err
	}
	alpha, err := g.Alpha.Add(other.Alpha)
	if err != nil {
		return nil, err
	}
	beta, err := g.Beta.Add(other.Beta)
	if err != nil {
		return nil, err
	}
	return New(ln, info, prec, alpha, beta)
}

// LogDensity evaluates the non-normalized log density at state value
// (trailing dimension n) and scale s:
//
//	alpha * log(s) + s * (-0.5 * valueᵀ P value + valueᵀ info_vec - beta) + log_normalizer
//
// With n == 0 this reduces exactly to the equivalent Gamma log density.
// This is mainly used for testing.
func (g *GaussianGamma) LogDensity(value, s *tensor.Array) (*tensor.Array, error) {
	if value.Rank() < 1 {
		return nil, fmt.Errorf("value must have at least 1 dimension, got shape %v", value.Shape())
	}
	n := g.Dim()
	if value.Dim(-1) != n {
		return nil, fmt.Errorf("value trailing dimension %d does not match event dimension %d", value.Dim(-1), n)
	}
	if n == 0 {
		t, err := g.Alpha.Mul(s.Log())
		if err != nil {
			return nil, err
		}
		bs, err := g.Beta.Mul(s)
		if err != nil {
			return nil, err
		}
		t, err = t.Sub(bs)
		if err != nil {
			return nil, err
		}
		t, err = t.Add(g.LogNormalizer)
		if err != nil {
			return nil, err
		}
		vShape := value.Shape()
		batch, err := tensor.BroadcastShape(t.Shape(), vShape[:len(vShape)-1])
		if err != nil {
			return nil, err
		}
		return t.BroadcastTo(batch)
	}
	r, err := tensor.MatVec(g.Precision, value)
	if err != nil {
		return nil, err
	}
	r, err = r.Scale(-0.5).Add(g.InfoVec)
	if err != nil {
		return nil, err
	}
	q, err := value.Mul(r)
	if err != nil {
		return nil, err
	}
	t, err := g.Alpha.Mul(s.Log())
	if err != nil {
		return nil, err
	}
	qb, err := q.SumLast().Sub(g.Beta)
	if err != nil {
		return nil, err
	}
	qb, err = qb.Mul(s)
	if err != nil {
		return nil, err
	}
	t, err = t.Add(qb)
	if err != nil {
		return nil, err
	}
	return t.Add(g.LogNormalizer)
}

// block returns the [r0:r1, c0:c1] block of the trailing two axes.
func block(a *tensor.Array, r0, r1, c0, c1 int) (*tensor.Array, error) {
	b, err := a.SliceAxis(-2, r0, r1)
	if err != nil {
		return nil, err
	}
	return b.SliceAxis(-1, c0, c1)
}

// Condition fixes a trailing suffix of the event vector to the observed
// value, returning the density of the remaining prefix with the suffix's
// own density contribution included, so that
//
//	g.LogDensity(concat(left, right), s) == g.Condition(right).LogDensity(left, s)
func (g *GaussianGamma) Condition(value *tensor.Array) (*GaussianGamma, error) {
	if value.Rank() < 1 {
		return nil, fmt.Errorf("value must have at least 1 dimension, got shape %v", value.Shape())
	}
	n := g.Dim()
	k := value.Dim(-1)
	if k > n {
		return nil, fmt.Errorf("conditioning on %d values exceeds event dimension %d", k, n)
	}
	na := n - k
	infoA, err := g.InfoVec.SliceAxis(-1, 0, na)
	if err != nil {
		return nil, err
	}
	infoB, err := g.InfoVec.SliceAxis(-1, na, n)
	if err != nil {
		return nil, err
	}
	pAA, err := block(g.Precision, 0, na, 0, na)
	if err != nil {
		return nil, err
	}
	pAB, err := block(g.Precision, 0, na, na, n)
	if err != nil {
		return nil, err
	}
	pBB, err := block(g.Precision, na, n, na, n)
	if err != nil {
		return nil, err
	}

	pv, err := tensor.MatVec(pAB, value)
	if err != nil {
		return nil, err
	}
	info, err := infoA.Sub(pv)
	if err != nil {
		return nil, err
	}

	// Collapsing the fixed suffix's terms of the s-coefficient into beta:
	// beta' = beta + 0.5 * valueᵀ P_bb value - valueᵀ info_b
	bv, err := tensor.MatVec(pBB, value)
	if err != nil {
		return nil, err
	}
	quad, err := value.Mul(bv)
	if err != nil {
		return nil, err
	}
	lin, err := value.Mul(infoB)
	if err != nil {
		return nil, err
	}
	beta, err := g.Beta.Add(quad.SumLast().Scale(0.5))
	if err != nil {
		return nil, err
	}
	beta, err = beta.Sub(lin.SumLast())
	if err != nil {
		return nil, err
	}
	return New(g.LogNormalizer, info, pAA, g.Alpha, beta)
}

// Marginalize integrates out a block of left leading or right trailing
// event coordinates at fixed s, via a Cholesky-based Schur complement of
// the marginalized block. Marginalizing both sides at once is not
// supported. The identities
//
//	g.Marginalize(n, 0).EventLogSumExp() == g.EventLogSumExp()
//	g.Condition(x).EventLogSumExp().LogDensity(s) == g.Marginalize(g.Dim()-k, 0).LogDensity(x, s)
//
// hold for any split; alpha and beta absorb the block's dimension shift
// and information quadratic form just as in EventLogSumExp.
func (g *GaussianGamma) Marginalize(left, right int) (*GaussianGamma, error) {
	if left < 0 || right < 0 {
		return nil, fmt.Errorf("negative marginalization block (%d, %d)", left, right)
	}
	if left == 0 && right == 0 {
		return g, nil
	}
	if left > 0 && right > 0 {
		return nil, fmt.Errorf("marginalizing both sides at once is not supported")
	}
	n := g.Dim()
	nb := left + right
	if nb > n {
		return nil, fmt.Errorf("marginalizing %d coordinates exceeds event dimension %d", nb, n)
	}
	// a is the kept block, b the marginalized block.
	a0, a1, b0, b1 := left, n-right, 0, left
	if right > 0 {
		b0, b1 = n-right, n
	}

	pAA, err := block(g.Precision, a0, a1, a0, a1)
	if err != nil {
		return nil, err
	}
	pBA, err := block(g.Precision, b0, b1, a0, a1)
	if err != nil {
		return nil, err
	}
	pBB, err := block(g.Precision, b0, b1, b0, b1)
	if err != nil {
		return nil, err
	}
	lB, err := tensor.Cholesky(pBB)
	if err != nil {
		return nil, fmt.Errorf("marginalized block: %w", err)
	}
	x, err := tensor.TriSolveMat(lB, pBA)
	if err != nil {
		return nil, err
	}
	schur, err := tensor.Gram(x)
	if err != nil {
		return nil, err
	}
	prec, err := pAA.Sub(schur)
	if err != nil {
		return nil, err
	}

	infoA, err := g.InfoVec.SliceAxis(-1, a0, a1)
	if err != nil {
		return nil, err
	}
	infoB, err := g.InfoVec.SliceAxis(-1, b0, b1)
	if err != nil {
		return nil, err
	}
	wB, err := tensor.TriSolveVec(lB, infoB)
	if err != nil {
		return nil, err
	}
	xv, err := tensor.MatVec(x.TransposeLast2(), wB)
	if err != nil {
		return nil, err
	}
	info, err := infoA.Sub(xv)
	if err != nil {
		return nil, err
	}

	diag, err := lB.Diagonal()
	if err != nil {
		return nil, err
	}
	ln, err := g.LogNormalizer.Sub(diag.Log().SumLast())
	if err != nil {
		return nil, err
	}
	ln = ln.Shift(0.5 * float64(nb) * math.Log(2*math.Pi))
	alpha := g.Alpha.Shift(-0.5 * float64(nb))
	beta, err := g.Beta.Sub(wB.Square().SumLast().Scale(0.5))
	if err != nil {
		return nil, err
	}
	return New(ln, info, prec, alpha, beta)
}

// EventLogSumExp integrates out the entire event vector analytically at
// fixed s, collapsing to a plain Gamma over s. The precision matrix must
// be positive definite.
func (g *GaussianGamma) EventLogSumExp() (*Gamma, error) {
	n := g.Dim()
	if n == 0 {
		return NewGamma(g.LogNormalizer, g.Alpha.Shift(1), g.Beta)
	}
	l, err := tensor.Cholesky(g.Precision)
	if err != nil {
		return nil, err
	}
	w, err := tensor.TriSolveVec(l, g.InfoVec)
	if err != nil {
		return nil, err
	}
	// Viewing the density as a Gaussian with precision s*P and info
	// vector s*info_vec, the Gaussian integral over x leaves
	//	(alpha - 0.5 n) log(s) - s (beta - 0.5 uᵀu) + 0.5 n log(2π) - Σ log diag L
	// and the plain Gamma parameterization adds 1 back to the shape.
	alpha := g.Alpha.Shift(1 - 0.5*float64(n))
	beta, err := g.Beta.Sub(w.Square().SumLast().Scale(0.5))
	if err != nil {
		return nil, err
	}
	diag, err := l.Diagonal()
	if err != nil {
		return nil, err
	}
	ln, err := g.LogNormalizer.Sub(diag.Log().SumLast())
	if err != nil {
		return nil, err
	}
	return NewGamma(ln.Shift(0.5*float64(n)*math.Log(2*math.Pi)), alpha, beta)
}
