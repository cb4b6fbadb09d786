package fsrs

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// SchedulerConfig configures a Scheduler.
// Zero values produce sensible defaults; see field comments.
type SchedulerConfig struct {
	Parameters Parameters    `json:"parameters"` // zero → DefaultParameters()
	NewID      func() string `json:"-"`          // nil → uuid.NewString, used for review log IDs
}

// Scheduler applies the review processor to cards using one validated
// parameter set. It holds no mutable state and is safe for concurrent use.
type Scheduler struct {
	algo  algo
	newID func() string
}

// NewScheduler creates a Scheduler from the given config.
// A zero parameter set is replaced by DefaultParameters; an invalid one
// returns an error wrapping ErrInvalidParameters.
func NewScheduler(cfg SchedulerConfig) (*Scheduler, error) {
	params := cfg.Parameters
	if params == (Parameters{}) {
		params = DefaultParameters()
	}
	if err := params.Validate(); err != nil {
		return nil, err
	}

	newID := cfg.NewID
	if newID == nil {
		newID = uuid.NewString
	}

	return &Scheduler{
		algo:  newAlgo(params),
		newID: newID,
	}, nil
}

// Parameters returns the parameter set the scheduler was built with.
func (s *Scheduler) Parameters() Parameters {
	return s.algo.p
}

// Process computes the outcome of one review. See the package-level Process.
func (s *Scheduler) Process(in ReviewInput) (ReviewOutcome, error) {
	return s.algo.process(in)
}

// ReviewCard grades the card with rating at now and returns the updated card
// with its review log. elapsed is the time the learner spent answering and
// may be zero. The input card is not mutated, and nothing is returned but
// the error when the rating is invalid.
func (s *Scheduler) ReviewCard(card Card, rating Rating, now time.Time, elapsed time.Duration) (Card, ReviewLog, error) {
	out, err := s.algo.process(card.Input(rating))
	if err != nil {
		return Card{}, ReviewLog{}, err
	}

	next := card.Apply(out, now)

	log := ReviewLog{
		ID:                  s.newID(),
		CardID:              card.ID,
		Rating:              rating,
		StateBefore:         card.State,
		StateAfter:          out.State,
		ScheduledDaysBefore: card.ScheduledDays,
		ScheduledDaysAfter:  out.Interval,
		ElapsedDays:         card.ElapsedDays(now),
		Duration:            elapsed,
		IsLapse:             out.IsLapse,
		ReviewedAt:          now,
	}

	return next, log, nil
}

// PreviewCard returns the result of reviewing the card with each possible rating.
func (s *Scheduler) PreviewCard(card Card, now time.Time) map[Rating]Card {
	result := make(map[Rating]Card, MaxRating)
	for _, r := range Ratings() {
		out, err := s.algo.process(card.Input(r))
		if err != nil {
			continue
		}
		result[r] = card.Apply(out, now)
	}
	return result
}

// RescheduleCard replays the given review logs, in order, to rebuild the
// card's scheduling state. Returns ErrCardIDMismatch if any log's CardID does
// not match the card's ID.
func (s *Scheduler) RescheduleCard(card Card, logs []ReviewLog) (Card, error) {
	c := card.clone()
	for _, log := range logs {
		if log.CardID != c.ID {
			return Card{}, fmt.Errorf("%w: card %s, log %s", ErrCardIDMismatch, c.ID, log.CardID)
		}
		next, _, err := s.ReviewCard(c, log.Rating, log.ReviewedAt, log.Duration)
		if err != nil {
			return Card{}, fmt.Errorf("fsrs: replay log %s: %w", log.ID, err)
		}
		c = next
	}
	return c, nil
}

// Retrievability returns the modelled probability of recall for the card at
// the given time. Returns 0 if the card has never been reviewed or has no
// stability.
func (s *Scheduler) Retrievability(card Card, now time.Time) float64 {
	if card.LastReview == nil || card.Stability <= 0 {
		return 0
	}
	elapsed := now.Sub(*card.LastReview).Hours() / 24.0
	return s.algo.retrievability(elapsed, card.Stability)
}

// MarshalJSON implements json.Marshaler.
func (s *Scheduler) MarshalJSON() ([]byte, error) {
	return json.Marshal(SchedulerConfig{Parameters: s.algo.p})
}

// UnmarshalJSON implements json.Unmarshaler.
// It rebuilds the internal precomputed state from the serialized config.
func (s *Scheduler) UnmarshalJSON(data []byte) error {
	var cfg SchedulerConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return err
	}
	rebuilt, err := NewScheduler(cfg)
	if err != nil {
		return err
	}
	*s = *rebuilt
	return nil
}
