package optimizer

import "math"

const (
	adamBeta1 = 0.9
	adamBeta2 = 0.999
	adamEps   = 1e-8
)

// bound is the closed range a trainable weight must stay in.
type bound struct {
	lower, upper float64
}

func (b bound) clamp(x float64) float64 {
	return math.Max(b.lower, math.Min(x, b.upper))
}

func (b bound) span() float64 {
	return b.upper - b.lower
}

// adam is Adam with bias correction, projected onto the bounds of the
// trainable weights. The learning rate is a fraction of each weight's span,
// so a rate of 0.04 moves w11 by at most about 0.04 of [0.01, 0.99] per
// step. The rate decays along a cosine from lr to zero over totalSteps:
//
//	lr_t = 0.5 · lr · (1 + cos(π · t / T))
//	w[i] = clamp_i(w[i] - lr_t · span_i · m̂[i] / (√v̂[i] + ε))
//
// A weight pushed onto a bound drops its first moment so it can leave the
// bound as soon as the gradient turns.
type adam struct {
	lr         float64
	totalSteps int
	bounds     []bound
	m, v       []float64
	t          int
}

// newAdam returns an optimizer for len(bounds) weights. totalSteps below
// one is treated as one.
func newAdam(lr float64, totalSteps int, bounds []bound) *adam {
	return &adam{
		lr:         lr,
		totalSteps: max(totalSteps, 1),
		bounds:     bounds,
		m:          make([]float64, len(bounds)),
		v:          make([]float64, len(bounds)),
	}
}

// rate is the learning rate the next step will use. It stays at zero once
// the schedule has run out.
func (a *adam) rate() float64 {
	t := min(a.t, a.totalSteps)
	return 0.5 * a.lr * (1 + math.Cos(math.Pi*float64(t)/float64(a.totalSteps)))
}

// step updates w in place from grads. Zero or NaN gradients leave their
// weight and moments untouched.
func (a *adam) step(w, grads []float64) {
	lr := a.rate()
	a.t++
	c1 := 1 - math.Pow(adamBeta1, float64(a.t))
	c2 := 1 - math.Pow(adamBeta2, float64(a.t))

	for i, g := range grads {
		if g == 0 || math.IsNaN(g) {
			continue
		}
		a.m[i] = adamBeta1*a.m[i] + (1-adamBeta1)*g
		a.v[i] = adamBeta2*a.v[i] + (1-adamBeta2)*g*g

		b := a.bounds[i]
		next := w[i] - lr*b.span()*(a.m[i]/c1)/(math.Sqrt(a.v[i]/c2)+adamEps)
		w[i] = b.clamp(next)
		if w[i] != next {
			a.m[i] = 0
		}
	}
}
