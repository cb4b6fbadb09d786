// Package fsrs implements a spaced-repetition scheduling engine on a 1–10
// rating scale with four lifecycle states (New, Learning, Review,
// Relearning).
//
// The core is a pure function: [Process] takes a card's current memory
// state and a rating and returns the next interval, difficulty, stability
// and lifecycle state. It performs no I/O and keeps no state, so it can be
// called concurrently for different cards. A [Scheduler] wraps the same
// computation with a validated [Parameters] value and the card-level
// bookkeeping a caller normally needs (repetition and lapse counters, due
// dates, review logs).
//
// Persistence lives in the store subpackage and parameter calibration in
// the optimizer subpackage.
//
// Basic usage:
//
//	s, err := fsrs.NewScheduler(fsrs.SchedulerConfig{})
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	card := fsrs.NewCard("card-1", "problem-1", time.Now())
//	var rlog fsrs.ReviewLog
//	card, rlog, err = s.ReviewCard(card, 7, time.Now(), 0)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(card.Due, rlog.ScheduledDaysAfter)
package fsrs
