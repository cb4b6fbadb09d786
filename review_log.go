package fsrs

import "time"

// ReviewLog records a single review event for a card.
type ReviewLog struct {
	ID                  string        `json:"id"`
	CardID              string        `json:"card_id"`
	Rating              Rating        `json:"rating"`
	StateBefore         State         `json:"state_before"`
	StateAfter          State         `json:"state_after"`
	ScheduledDaysBefore int           `json:"scheduled_days_before"`
	ScheduledDaysAfter  int           `json:"scheduled_days_after"`
	ElapsedDays         int           `json:"elapsed_days"`
	Duration            time.Duration `json:"duration,omitempty"` // time spent answering, optional.
	IsLapse             bool          `json:"is_lapse"`
	ReviewedAt          time.Time     `json:"reviewed_at"`
}
