package fsrs_test

import (
	"fmt"
	"log"
	"time"

	"github.com/huanunited/fsrs"
)

func ExampleScheduler_ReviewCard() {
	s, err := fsrs.NewScheduler(fsrs.SchedulerConfig{})
	if err != nil {
		log.Fatal(err)
	}

	now := time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)
	card := fsrs.NewCard("card-1", "problem-1", now)
	var rlog fsrs.ReviewLog
	card, rlog, err = s.ReviewCard(card, 7, now, 0)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(card.State, card.Due.Format(time.DateOnly), rlog.ScheduledDaysAfter)
	// Output: Learning 2025-06-16 1
}
