package optimizer

import (
	"slices"
	"time"

	"github.com/huanunited/fsrs"
)

// recallRating is the lowest rating counted as a successful recall.
// Ratings below it are the lapse band.
const recallRating fsrs.Rating = 3

// review is an internal representation of a single review event for training.
type review struct {
	rating      fsrs.Rating
	elapsedDays float64       // days since previous review (0 for first)
	label       float64       // 0 if the rating is a lapse, 1 otherwise
	reviewTime  time.Time     // original review timestamp (for replay)
	duration    time.Duration // time spent answering, 0 if unknown
}

// formatRevlogs groups review logs by card ID and sorts each group by time.
// Each review computes elapsed_days from the previous review and a binary
// label. Logs with an out-of-range rating are dropped.
func formatRevlogs(logs []fsrs.ReviewLog) map[string][]review {
	if len(logs) == 0 {
		return nil
	}

	// Group by card ID.
	groups := make(map[string][]fsrs.ReviewLog)
	for _, log := range logs {
		if !log.Rating.IsValid() {
			continue
		}
		groups[log.CardID] = append(groups[log.CardID], log)
	}

	result := make(map[string][]review, len(groups))
	for cardID, cardLogs := range groups {
		slices.SortStableFunc(cardLogs, func(a, b fsrs.ReviewLog) int {
			return a.ReviewedAt.Compare(b.ReviewedAt)
		})

		reviews := make([]review, len(cardLogs))
		for i, log := range cardLogs {
			var elapsed float64
			if i > 0 {
				elapsed = log.ReviewedAt.Sub(cardLogs[i-1].ReviewedAt).Hours() / 24.0
			}

			label := 1.0
			if log.Rating < recallRating {
				label = 0.0
			}

			reviews[i] = review{
				rating:      log.Rating,
				elapsedDays: elapsed,
				label:       label,
				reviewTime:  log.ReviewedAt,
				duration:    log.Duration,
			}
		}
		result[cardID] = reviews
	}

	return result
}

// countCrossDayReviews counts reviews where elapsed_days >= 1 (cross-day reviews).
// The first review of each card is never cross-day (elapsed_days = 0).
func countCrossDayReviews(data map[string][]review) int {
	count := 0
	for _, reviews := range data {
		for _, r := range reviews {
			if r.elapsedDays >= 1.0 {
				count++
			}
		}
	}
	return count
}

// sortedCardIDs returns the card IDs of data in ascending order.
func sortedCardIDs(data map[string][]review) []string {
	ids := make([]string, 0, len(data))
	for id := range data {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
