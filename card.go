package fsrs

import "time"

// Card is the persisted memory state of one learnable item.
type Card struct {
	ID            string     `json:"id"`
	ItemID        string     `json:"item_id"`
	State         State      `json:"state"`
	Stability     float64    `json:"stability"`
	Difficulty    float64    `json:"difficulty"`
	Reps          int        `json:"reps"`
	Lapses        int        `json:"lapses"`
	ScheduledDays int        `json:"scheduled_days"`
	Due           time.Time  `json:"due"`
	LastReview    *time.Time `json:"last_review"` // nil before first review.
}

// NewCard creates a card in the New state for the item. Due is set to now
// (immediately reviewable).
func NewCard(id, itemID string, now time.Time) Card {
	return Card{
		ID:         id,
		ItemID:     itemID,
		State:      New,
		Stability:  0,
		Difficulty: InitialDifficulty,
		Due:        now,
	}
}

// Input returns the review input for grading this card with rating r.
func (c Card) Input(r Rating) ReviewInput {
	return ReviewInput{
		State:      c.State,
		Stability:  c.Stability,
		Difficulty: c.Difficulty,
		Rating:     r,
	}
}

// Apply returns a copy of the card updated with the outcome of a review
// performed at now. The repetition counter always advances; the lapse
// counter advances only when the outcome is a lapse.
func (c Card) Apply(out ReviewOutcome, now time.Time) Card {
	next := c.clone()
	next.State = out.State
	next.Stability = out.Stability
	next.Difficulty = out.Difficulty
	next.ScheduledDays = out.Interval
	next.Reps++
	if out.IsLapse {
		next.Lapses++
	}
	next.Due = now.AddDate(0, 0, out.Interval)
	next.LastReview = &now
	return next
}

// ElapsedDays returns the whole days between the last review and now, or 0
// before the first review.
func (c Card) ElapsedDays(now time.Time) int {
	if c.LastReview == nil {
		return 0
	}
	return int(now.Sub(*c.LastReview).Hours() / 24)
}

// clone returns a deep copy of the card.
func (c Card) clone() Card {
	out := c
	if c.LastReview != nil {
		v := *c.LastReview
		out.LastReview = &v
	}
	return out
}
