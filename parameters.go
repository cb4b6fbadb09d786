package fsrs

import (
	"fmt"
	"math"
)

// NumWeights is the number of tunable weights in a parameter set.
const NumWeights = 19

// Parameters is the tunable configuration of the engine.
//
// W[i] holds weight w(i+1): W[0] is w1 and W[10] is the decay constant w11.
// Only w1–w4, w11 and w17 take part in scheduling; the remaining weights are
// carried so a stored parameter row round-trips unchanged.
type Parameters struct {
	W                [NumWeights]float64 `json:"w" yaml:"w"`
	DesiredRetention float64             `json:"desired_retention" yaml:"desired_retention"`
}

// DefaultParameters returns the parameter set created on first use.
func DefaultParameters() Parameters {
	return Parameters{
		W: [NumWeights]float64{
			0.40, 1.86, 4.93, 0.94, // w1..w4   stability growth (new, learning, review, relearning)
			0.86, 0.01, 1.49, 0.04, // w5..w8
			0.36, 0.86, 0.20, 2.50, // w9..w12  w11 = decay rate
			0.14, 0.94, 0.16, 0.10, // w13..w16
			0.29, 0.34, 3.73, // w17..w19 w17 = difficulty step
		},
		DesiredRetention: 0.95,
	}
}

// Weight returns w(n) using the 1-based numbering of the formulas.
func (p Parameters) Weight(n int) float64 {
	return p.W[n-1]
}

// Validate checks the set once at load time. Every weight must be finite
// and non-negative, w11 must lie in (0, 1) or (1, ∞) so that ln(w11) is a
// usable divisor, and DesiredRetention must lie in (0, 1).
func (p Parameters) Validate() error {
	for i, w := range p.W {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: w%d = %v is not finite", ErrInvalidParameters, i+1, w)
		}
		if w < 0 {
			return fmt.Errorf("%w: w%d = %f is negative", ErrInvalidParameters, i+1, w)
		}
	}
	if w11 := p.Weight(11); w11 <= 0 || w11 == 1 {
		return fmt.Errorf("%w: w11 = %f, must be in (0, 1) or (1, inf)", ErrInvalidParameters, w11)
	}
	dr := p.DesiredRetention
	if math.IsNaN(dr) || dr <= 0 || dr >= 1 {
		return fmt.Errorf("%w: desired retention %f out of range (0, 1)", ErrInvalidParameters, dr)
	}
	return nil
}
