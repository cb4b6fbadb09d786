package fsrs

import "math"

const (
	// MaxInterval is the longest interval ever scheduled, in days.
	MaxInterval = 180
	// MinInterval is the shortest interval ever scheduled, in days.
	MinInterval = 1

	// MinStability is the stability floor and the value a failed early
	// review resets to.
	MinStability = 0.1
	// MinDifficulty and MaxDifficulty bound difficulty after every update.
	MinDifficulty = 1.0
	MaxDifficulty = 10.0
	// InitialDifficulty is the difficulty of a card that was never reviewed.
	InitialDifficulty = 5.0

	// lapseRetention is the fraction of stability kept after a lapse.
	lapseRetention = 0.36

	// graduateInterval is scheduled when Learning or Relearning recovers.
	graduateInterval = 3
)

// Rating thresholds of the early states.
const (
	learningPass   Rating = 5 // New/Learning success, Relearning stability recovery
	relearningPass Rating = 6 // Relearning interval recovery
)

// Review-state multipliers, indexed by rating band.
var (
	intervalModifier = [...]float64{bandLapse: 0, bandHard: 0.5, bandGood: 1.0, bandEasy: 1.5, bandPerfect: 2.0}
	stabilityFactor  = [...]float64{bandLapse: 0, bandHard: 0.6, bandGood: 1.0, bandEasy: 1.2, bandPerfect: 1.5}
)

// algo holds a parameter set and the constants derived from it.
type algo struct {
	p Parameters
	// intervalScale = ln(desiredRetention) / ln(w11)
	intervalScale float64
	// lnDecay = ln(w11)
	lnDecay float64
}

// newAlgo precomputes the interval scale. p must already be validated.
func newAlgo(p Parameters) algo {
	lnDecay := math.Log(p.Weight(11))
	return algo{
		p:             p,
		intervalScale: math.Log(p.DesiredRetention) / lnDecay,
		lnDecay:       lnDecay,
	}
}

// nextDifficulty computes D' = clamp(D + w17 * (5.5 - G), 1, 10).
func (a *algo) nextDifficulty(difficulty float64, r Rating) float64 {
	delta := a.p.Weight(17) * (MidRating - float64(r))
	return clampD(difficulty + delta)
}

// nextInterval computes the next interval in days from the state before the
// review. Review successes use I = round(S * ln(R_d) / ln(w11) * modifier).
// The result is clamped to [MinInterval, MaxInterval].
func (a *algo) nextInterval(state State, stability float64, r Rating) int {
	ivl := float64(MinInterval)
	switch state {
	case Learning:
		if r >= learningPass {
			ivl = graduateInterval
		}
	case Review:
		if b := r.band(); b != bandLapse {
			ivl = math.Round(stability * a.intervalScale * intervalModifier[b])
		}
	case Relearning:
		if r >= relearningPass {
			ivl = graduateInterval
		}
	}
	return clampI(ivl)
}

// nextStability computes stability from the state before the review and the
// interval just scheduled. The result is floored at MinStability.
//
//	New:         w1                      (G ≥ 5)
//	Learning:    S + w2 * I / 10         (G ≥ 5)
//	Review:      S + w3 * band * I       (G ≥ 3),  S * 0.36 otherwise
//	Relearning:  S * w4                  (G ≥ 5)
//
// Any other early-state failure resets to MinStability.
func (a *algo) nextStability(state State, stability float64, r Rating, interval int) float64 {
	s := MinStability
	switch state {
	case New:
		if r >= learningPass {
			s = a.p.Weight(1)
		}
	case Learning:
		if r >= learningPass {
			s = stability + a.p.Weight(2)*float64(interval)/10
		}
	case Review:
		b := r.band()
		if b == bandLapse {
			s = stability * lapseRetention
			break
		}
		s = stability + a.p.Weight(3)*stabilityFactor[b]*float64(interval)
	case Relearning:
		if r >= learningPass {
			s = stability * a.p.Weight(4)
		}
	}
	return clampS(s)
}

// retrievability computes R(t, S) = w11^(t/S), the decay model the interval
// formula inverts: R(I, S) = R_d when I = S * ln(R_d) / ln(w11).
func (a *algo) retrievability(elapsedDays, stability float64) float64 {
	if stability <= 0 {
		return 0
	}
	r := math.Exp(a.lnDecay * math.Max(elapsedDays, 0) / stability)
	return math.Min(math.Max(r, 0), 1)
}

// clampS floors stability at MinStability. NaN input also maps to the floor.
func clampS(s float64) float64 {
	if !(s >= MinStability) {
		return MinStability
	}
	return s
}

// clampD clamps difficulty to [1, 10].
func clampD(d float64) float64 {
	return math.Min(math.Max(d, MinDifficulty), MaxDifficulty)
}

// clampI clamps an interval to [MinInterval, MaxInterval] before converting
// to whole days. NaN maps to MinInterval.
func clampI(ivl float64) int {
	if !(ivl >= MinInterval) {
		return MinInterval
	}
	if ivl > MaxInterval {
		return MaxInterval
	}
	return int(ivl)
}

// UpdateDifficulty returns the difficulty after a review with rating r.
// p must have passed Validate.
func UpdateDifficulty(difficulty float64, r Rating, p Parameters) float64 {
	a := newAlgo(p)
	return a.nextDifficulty(difficulty, r)
}

// ScheduleInterval returns the next interval in days for a card in state
// with the given stability. p must have passed Validate.
func ScheduleInterval(state State, stability float64, r Rating, p Parameters) int {
	a := newAlgo(p)
	return a.nextInterval(state, stability, r)
}

// UpdateStability returns the stability after a review with rating r that
// scheduled interval days. p must have passed Validate.
func UpdateStability(state State, stability float64, r Rating, interval int, p Parameters) float64 {
	a := newAlgo(p)
	return a.nextStability(state, stability, r, interval)
}
