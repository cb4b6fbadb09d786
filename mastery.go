package fsrs

import "math"

// MasteryThreshold is the stability, in days, at which a card in Review
// counts as mastered.
const MasteryThreshold = 21.0

// Mastery reports how close a card is to being mastered. A card is solved
// once it is in Review with stability of at least MasteryThreshold and has
// been reviewed at least twice; solved cards report 100. Otherwise percent
// is stability as a share of the threshold, capped at 99.
func Mastery(c Card) (percent int, solved bool) {
	if c.State == Review && c.Stability >= MasteryThreshold && c.Reps >= 2 {
		return 100, true
	}
	p := math.Min(c.Stability/MasteryThreshold*100, 99)
	if !(p > 0) {
		return 0, false
	}
	return int(p), false
}
