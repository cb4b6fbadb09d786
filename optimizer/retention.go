package optimizer

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/huanunited/fsrs"
)

// minRetentionLogs is the smallest history ComputeOptimalRetention accepts.
const minRetentionLogs = 512

var (
	// ErrInsufficientLogs is returned when fewer than 512 review logs are provided.
	ErrInsufficientLogs = errors.New("optimizer: at least 512 review logs required for optimal retention")

	// ErrMissingDuration is returned when any review log has no Duration.
	ErrMissingDuration = errors.New("optimizer: Duration must be set on every review log for optimal retention")
)

// retentionCandidates are the desired retention values compared by
// ComputeOptimalRetention.
var retentionCandidates = []float64{0.70, 0.75, 0.80, 0.85, 0.90, 0.95}

// ratingDist holds one value per rating, indexed by the rating itself.
type ratingDist [fsrs.MaxRating + 1]float64

// reviewCosts summarises how a learner rates and how long each review takes.
// Durations are in seconds.
type reviewCosts struct {
	firstProb  ratingDist // rating distribution of first reviews
	firstSecs  ratingDist // mean duration of first reviews per rating
	recallProb ratingDist // distribution among later reviews that were recalled
	lapseProb  ratingDist // distribution among later reviews that lapsed
	secs       ratingDist // mean duration of later reviews per rating
}

// computeReviewCosts derives rating probabilities and mean durations from
// the logs. The first review of each card is counted separately from the
// rest; later reviews are split into recalls and lapses.
func computeReviewCosts(logs []fsrs.ReviewLog) reviewCosts {
	var (
		c                       reviewCosts
		firstN, recallN, lapseN float64
		firstCount, recallCount ratingDist
		lapseCount              ratingDist
		firstSum, firstDurN     ratingDist
		sum, durN               ratingDist
	)

	for _, reviews := range formatRevlogs(logs) {
		for i, rev := range reviews {
			r := rev.rating
			d := rev.duration.Seconds()
			if i == 0 {
				firstN++
				firstCount[r]++
				firstSum[r] += d
				firstDurN[r]++
				continue
			}
			sum[r] += d
			durN[r]++
			if r >= recallRating {
				recallN++
				recallCount[r]++
			} else {
				lapseN++
				lapseCount[r]++
			}
		}
	}

	for _, r := range fsrs.Ratings() {
		if firstN > 0 {
			c.firstProb[r] = firstCount[r] / firstN
		}
		if firstDurN[r] > 0 {
			c.firstSecs[r] = firstSum[r] / firstDurN[r]
		}
		if durN[r] > 0 {
			c.secs[r] = sum[r] / durN[r]
		}
	}

	// Default to uniform when a band has no data.
	for r := fsrs.MinRating; r <= fsrs.MaxRating; r++ {
		switch {
		case r >= recallRating && recallN > 0:
			c.recallProb[r] = recallCount[r] / recallN
		case r >= recallRating:
			c.recallProb[r] = 1.0 / float64(fsrs.MaxRating-recallRating+1)
		case lapseN > 0:
			c.lapseProb[r] = lapseCount[r] / lapseN
		default:
			c.lapseProb[r] = 1.0 / float64(recallRating-fsrs.MinRating)
		}
	}

	return c
}

// sample draws a rating from dist. Mass lost to rounding falls on the
// highest rating with probability.
func sample(rng *rand.Rand, dist ratingDist) fsrs.Rating {
	p := rng.Float64()
	last := fsrs.MaxRating
	var cum float64
	for r := fsrs.MinRating; r <= fsrs.MaxRating; r++ {
		if dist[r] == 0 {
			continue
		}
		last = r
		cum += dist[r]
		if p < cum {
			return r
		}
	}
	return last
}

// simulateCost runs a Monte Carlo simulation to estimate the seconds spent
// per retained card for a given desired retention. It simulates 1000 cards
// over one year, reviewing each card when it falls due.
func simulateCost(retention float64, params fsrs.Parameters, costs reviewCosts) float64 {
	const numCards = 1000

	params.DesiredRetention = retention
	s, err := fsrs.NewScheduler(fsrs.SchedulerConfig{
		Parameters: params,
		NewID:      func() string { return "" },
	})
	if err != nil {
		return math.Inf(1)
	}

	rng := rand.New(rand.NewSource(42))

	startDate := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	endDate := startDate.AddDate(1, 0, 0)

	var totalSecs float64

	for i := 0; i < numCards; i++ {
		card := fsrs.NewCard("", "", startDate)
		now := startDate
		isFirst := true

		for !now.After(endDate) {
			var rating fsrs.Rating
			var secs float64

			switch {
			case isFirst:
				rating = sample(rng, costs.firstProb)
				secs = costs.firstSecs[rating]
				isFirst = false
			case rng.Float64() < retention:
				// Recalled with probability = retention.
				rating = sample(rng, costs.recallProb)
				secs = costs.secs[rating]
			default:
				rating = sample(rng, costs.lapseProb)
				secs = costs.secs[rating]
			}

			totalSecs += secs
			next, _, err := s.ReviewCard(card, rating, now, 0)
			if err != nil {
				break
			}
			card = next
			now = card.Due
		}
	}

	return totalSecs / (retention * numCards)
}

// ComputeOptimalRetention finds the desired retention, among 0.70 to 0.95 in
// steps of 0.05, with the lowest simulated study time per retained card.
// Every log must carry a Duration.
func (o *Optimizer) ComputeOptimalRetention(ctx context.Context, params fsrs.Parameters, logs []fsrs.ReviewLog) (float64, error) {
	if len(logs) < minRetentionLogs {
		return 0, ErrInsufficientLogs
	}
	for _, log := range logs {
		if log.Duration <= 0 {
			return 0, ErrMissingDuration
		}
	}
	if params == (fsrs.Parameters{}) {
		params = fsrs.DefaultParameters()
	}
	if err := params.Validate(); err != nil {
		return 0, err
	}

	costs := computeReviewCosts(logs)

	bestRetention := retentionCandidates[0]
	bestCost := math.Inf(1)

	for _, c := range retentionCandidates {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		cost := simulateCost(c, params, costs)
		o.logger.Debug("retention candidate simulated", "retention", c, "seconds_per_card", cost)
		if cost < bestCost {
			bestCost = cost
			bestRetention = c
		}
	}

	o.logger.Info("optimal retention computed", "retention", bestRetention, "seconds_per_card", bestCost)
	return bestRetention, nil
}
