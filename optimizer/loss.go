package optimizer

import (
	"math"

	"github.com/huanunited/fsrs"
)

const bceClamp = 1e-7

// Bounds of the decay weight w11 during calibration.
const (
	DecayLowerBound = 0.01
	DecayUpperBound = 0.99
)

// trainable lists the weights fitted by the optimizer as zero-based indices
// into Parameters.W, with their bounds.
var trainable = []struct {
	index int
	bound
}{
	{index: 10, bound: bound{lower: DecayLowerBound, upper: DecayUpperBound}}, // w11
}

// trainableBounds returns the bounds of the trainable weights in order.
func trainableBounds() []bound {
	b := make([]bound, len(trainable))
	for i, tr := range trainable {
		b[i] = tr.bound
	}
	return b
}

// values extracts the trainable weights of p.
func values(p fsrs.Parameters) []float64 {
	v := make([]float64, len(trainable))
	for i, tr := range trainable {
		v[i] = p.W[tr.index]
	}
	return v
}

// withValues returns p with the trainable weights replaced by v.
func withValues(p fsrs.Parameters, v []float64) fsrs.Parameters {
	for i, tr := range trainable {
		p.W[tr.index] = v[i]
	}
	return p
}

// clampValues constrains each trainable weight to its bounds.
func clampValues(v []float64) []float64 {
	for i, tr := range trainable {
		v[i] = tr.clamp(v[i])
	}
	return v
}

// bceLoss computes the binary cross-entropy loss: -[y*ln(p) + (1-y)*ln(1-p)].
// rPred is clamped to [bceClamp, 1-bceClamp] to avoid log(0).
func bceLoss(rPred, y float64) float64 {
	p := math.Max(bceClamp, math.Min(rPred, 1-bceClamp))
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}

// computeBatchLoss computes the average BCE loss over all cross-day reviews.
// It replays each card's history through a Scheduler built from params and
// predicts retrievability before every cross-day review of a card that
// already has stability. Returns 0 if no review qualifies and +Inf if params
// are invalid.
func computeBatchLoss(params fsrs.Parameters, data map[string][]review) float64 {
	s, err := fsrs.NewScheduler(fsrs.SchedulerConfig{
		Parameters: params,
		NewID:      func() string { return "" },
	})
	if err != nil {
		return math.Inf(1)
	}

	var totalLoss float64
	var count int

	// Sorted iteration keeps the floating-point sum reproducible.
	for _, cardID := range sortedCardIDs(data) {
		reviews := data[cardID]
		card := fsrs.NewCard(cardID, "", reviews[0].reviewTime)

		for _, rev := range reviews {
			if card.LastReview != nil && card.Stability > 0 && rev.elapsedDays >= 1.0 {
				rPred := s.Retrievability(card, rev.reviewTime)
				totalLoss += bceLoss(rPred, rev.label)
				count++
			}

			next, _, err := s.ReviewCard(card, rev.rating, rev.reviewTime, rev.duration)
			if err != nil {
				continue
			}
			card = next
		}
	}

	if count == 0 {
		return 0
	}
	return totalLoss / float64(count)
}

const gradEps = 1e-5

// numericalGradient computes the gradient of the batch loss w.r.t. each
// trainable weight using central differences:
// dL/dw[i] ≈ (L(w[i]+ε) - L(w[i]-ε)) / (2ε).
func numericalGradient(params fsrs.Parameters, data map[string][]review) []float64 {
	grad := make([]float64, len(trainable))
	for i, tr := range trainable {
		pPlus := params
		pPlus.W[tr.index] += gradEps
		pMinus := params
		pMinus.W[tr.index] -= gradEps

		lPlus := computeBatchLoss(pPlus, data)
		lMinus := computeBatchLoss(pMinus, data)

		grad[i] = (lPlus - lMinus) / (2 * gradEps)
	}
	return grad
}
