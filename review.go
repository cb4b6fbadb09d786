package fsrs

import (
	"fmt"
	"math"
)

// ReviewInput is a card's memory state at the moment it is reviewed,
// together with the rating it received.
type ReviewInput struct {
	State      State   `json:"state"`
	Stability  float64 `json:"stability"`
	Difficulty float64 `json:"difficulty"`
	Rating     Rating  `json:"rating"`
}

// ReviewOutcome is the result of processing one review. The caller persists
// it and derives the due date as now + Interval days.
type ReviewOutcome struct {
	Interval   int     `json:"new_interval"` // days, in [MinInterval, MaxInterval]
	Difficulty float64 `json:"new_difficulty"`
	Stability  float64 `json:"new_stability"`
	State      State   `json:"new_state"`
	IsLapse    bool    `json:"is_lapse"`
}

// Process computes the outcome of a single review. p must have passed
// Validate; use a Scheduler to validate once and reuse the derived
// constants across calls.
//
// It returns an error wrapping ErrInvalidRating for ratings outside [1, 10]
// and ErrInvalidState for an unknown lifecycle state.
func Process(in ReviewInput, p Parameters) (ReviewOutcome, error) {
	a := newAlgo(p)
	return a.process(in)
}

// process runs the update steps in a fixed order. The interval, difficulty
// and stability steps all read the state from before the review, never the
// state produced by Transition.
func (a *algo) process(in ReviewInput) (ReviewOutcome, error) {
	if err := in.Rating.Validate(); err != nil {
		return ReviewOutcome{}, err
	}
	if !in.State.IsValid() {
		return ReviewOutcome{}, fmt.Errorf("%w: %d", ErrInvalidState, int(in.State))
	}
	if !isFinite(in.Stability) || !isFinite(in.Difficulty) {
		return ReviewOutcome{}, fmt.Errorf("%w: stability %v, difficulty %v", ErrInvalidState, in.Stability, in.Difficulty)
	}

	next, lapse := Transition(in.State, in.Rating)
	interval := a.nextInterval(in.State, in.Stability, in.Rating)
	difficulty := a.nextDifficulty(in.Difficulty, in.Rating)
	stability := a.nextStability(in.State, in.Stability, in.Rating, interval)

	return ReviewOutcome{
		Interval:   interval,
		Difficulty: difficulty,
		Stability:  stability,
		State:      next,
		IsLapse:    lapse,
	}, nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
