package gaussgamma

import (
	"fmt"

	"github.com/ieee0824/gaussgamma-go/tensor"
)

// Gamma is a non-normalized Gamma density over a positive scale s,
// parameterized by shape Alpha and rate Beta, with a LogNormalizer
// carried through contractions. Values are immutable.
type Gamma struct {
	LogNormalizer *tensor.Array
	Alpha         *tensor.Array
	Beta          *tensor.Array
}

// NewGamma creates a Gamma after checking that the three parameter
// arrays broadcast to a common batch shape.
func NewGamma(logNormalizer, alpha, beta *tensor.Array) (*Gamma, error) {
	if _, err := tensor.BroadcastShape(logNormalizer.Shape(), alpha.Shape(), beta.Shape()); err != nil {
		return nil, fmt.Errorf("gamma parameters: %w", err)
	}
	return &Gamma{LogNormalizer: logNormalizer, Alpha: alpha, Beta: beta}, nil
}

// LogDensity evaluates the non-normalized log density at scale s:
//
//	log_normalizer + (alpha - 1) * log(s) - beta * s
//
// s must be positive and broadcastable against the batch shape. This is
// mainly used for testing.
func (g *Gamma) LogDensity(s *tensor.Array) (*tensor.Array, error) {
	t, err := g.Alpha.Shift(-1).Mul(s.Log())
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
	return t.Add(g.LogNormalizer)
}

// LogSumExp integrates the scale s out over (0, inf) analytically:
//
//	log_normalizer + lgamma(alpha) - alpha * log(beta)
//
// The integral converges only for alpha > 0 and beta > 0; non-positive
// parameters propagate non-finite values.
func (g *Gamma) LogSumExp() (*tensor.Array, error) {
	t, err := g.LogNormalizer.Add(g.Alpha.Lgamma())
	if err != nil {
		return nil, err
	}
	al, err := g.Alpha.Mul(g.Beta.Log())
	if err != nil {
		return nil, err
	}
	return t.Sub(al)
}
