package optimizer

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huanunited/fsrs"
)

// --- computeReviewCosts ---

func TestComputeReviewCosts(t *testing.T) {
	logs := []fsrs.ReviewLog{
		// c1: first 1 (5s), then 7 (8s).
		{CardID: "c1", Rating: 1, ReviewedAt: t0, Duration: 5 * time.Second},
		{CardID: "c1", Rating: 7, ReviewedAt: t0.Add(day(1)), Duration: 8 * time.Second},
		// c2: first 7 (6s), then 4 (7s), then 2 (9s).
		{CardID: "c2", Rating: 7, ReviewedAt: t0, Duration: 6 * time.Second},
		{CardID: "c2", Rating: 4, ReviewedAt: t0.Add(day(2)), Duration: 7 * time.Second},
		{CardID: "c2", Rating: 2, ReviewedAt: t0.Add(day(5)), Duration: 9 * time.Second},
		// c3: first 10 (4s).
		{CardID: "c3", Rating: 10, ReviewedAt: t0, Duration: 4 * time.Second},
	}

	c := computeReviewCosts(logs)

	// First reviews: 1, 7, 10.
	assert.InDelta(t, 1.0/3.0, c.firstProb[1], epsilon)
	assert.InDelta(t, 1.0/3.0, c.firstProb[7], epsilon)
	assert.InDelta(t, 1.0/3.0, c.firstProb[10], epsilon)
	assert.Zero(t, c.firstProb[4])
	assert.InDelta(t, 5.0, c.firstSecs[1], epsilon)
	assert.InDelta(t, 6.0, c.firstSecs[7], epsilon)
	assert.InDelta(t, 4.0, c.firstSecs[10], epsilon)

	// Later reviews: recalled 7 and 4, lapsed 2.
	assert.InDelta(t, 0.5, c.recallProb[7], epsilon)
	assert.InDelta(t, 0.5, c.recallProb[4], epsilon)
	assert.Zero(t, c.recallProb[10])
	assert.InDelta(t, 1.0, c.lapseProb[2], epsilon)
	assert.Zero(t, c.lapseProb[1])
	assert.InDelta(t, 8.0, c.secs[7], epsilon)
	assert.InDelta(t, 7.0, c.secs[4], epsilon)
	assert.InDelta(t, 9.0, c.secs[2], epsilon)
}

func TestComputeReviewCostsFirstOnly(t *testing.T) {
	logs := []fsrs.ReviewLog{
		{CardID: "c1", Rating: 7, ReviewedAt: t0, Duration: 3 * time.Second},
		{CardID: "c2", Rating: 1, ReviewedAt: t0, Duration: 5 * time.Second},
		{CardID: "c3", Rating: 7, ReviewedAt: t0, Duration: 4 * time.Second},
		{CardID: "c4", Rating: 9, ReviewedAt: t0, Duration: 2 * time.Second},
	}

	c := computeReviewCosts(logs)

	assert.InDelta(t, 0.25, c.firstProb[1], epsilon)
	assert.InDelta(t, 0.50, c.firstProb[7], epsilon)
	assert.InDelta(t, 0.25, c.firstProb[9], epsilon)

	// No later reviews: both bands fall back to uniform.
	for r := recallRating; r <= fsrs.MaxRating; r++ {
		assert.InDelta(t, 1.0/8.0, c.recallProb[r], epsilon, "recall %d", r)
	}
	assert.InDelta(t, 0.5, c.lapseProb[1], epsilon)
	assert.InDelta(t, 0.5, c.lapseProb[2], epsilon)
}

// --- sample ---

func TestSampleFollowsDistribution(t *testing.T) {
	var dist ratingDist
	dist[3] = 0.25
	dist[8] = 0.75

	rng := rand.New(rand.NewSource(1))
	counts := map[fsrs.Rating]int{}
	const n = 20000
	for range n {
		counts[sample(rng, dist)]++
	}

	assert.Len(t, counts, 2)
	assert.InDelta(t, 0.25, float64(counts[3])/n, 0.02)
	assert.InDelta(t, 0.75, float64(counts[8])/n, 0.02)
}

func TestSampleEmptyDistribution(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	assert.Equal(t, fsrs.MaxRating, sample(rng, ratingDist{}))
}

// --- simulateCost ---

func TestSimulateCostInvalidParams(t *testing.T) {
	bad := fsrs.DefaultParameters()
	bad.W[10] = 1
	assert.True(t, math.IsInf(simulateCost(0.9, bad, testReviewCosts()), 1))
}

func TestSimulateCostReproducible(t *testing.T) {
	c := testReviewCosts()
	cost1 := simulateCost(0.9, fsrs.DefaultParameters(), c)
	cost2 := simulateCost(0.9, fsrs.DefaultParameters(), c)
	assert.Equal(t, cost1, cost2)
	assert.Greater(t, cost1, 0.0)
}

// --- ComputeOptimalRetention ---

func TestComputeOptimalRetentionInsufficientLogs(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	logs := uniformLogs(100)
	_, err := o.ComputeOptimalRetention(context.Background(), fsrs.DefaultParameters(), logs)
	assert.ErrorIs(t, err, ErrInsufficientLogs)
}

func TestComputeOptimalRetentionMissingDuration(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	logs := uniformLogs(600)
	logs[300].Duration = 0

	_, err := o.ComputeOptimalRetention(context.Background(), fsrs.DefaultParameters(), logs)
	assert.ErrorIs(t, err, ErrMissingDuration)
}

func TestComputeOptimalRetentionValid(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	logs := generateSyntheticLogs(200, 10, 0.2, 42)

	ret, err := o.ComputeOptimalRetention(context.Background(), fsrs.Parameters{}, logs)
	require.NoError(t, err)
	assert.Contains(t, retentionCandidates, ret)
}

func TestComputeOptimalRetentionContextCancel(t *testing.T) {
	o := NewOptimizer(OptimizerConfig{})
	logs := generateSyntheticLogs(200, 10, 0.2, 42)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := o.ComputeOptimalRetention(ctx, fsrs.DefaultParameters(), logs)
	assert.ErrorIs(t, err, context.Canceled)
}

// --- helpers ---

// testReviewCosts returns a plausible learner profile.
func testReviewCosts() reviewCosts {
	var c reviewCosts
	c.firstProb[1], c.firstProb[4], c.firstProb[7], c.firstProb[10] = 0.30, 0.05, 0.55, 0.10
	c.firstSecs[1], c.firstSecs[4], c.firstSecs[7], c.firstSecs[10] = 8, 6, 4, 2
	c.recallProb[4], c.recallProb[7], c.recallProb[10] = 0.10, 0.80, 0.10
	c.lapseProb[1], c.lapseProb[2] = 0.5, 0.5
	c.secs[1], c.secs[2], c.secs[4], c.secs[7], c.secs[10] = 10, 9, 7, 4, 2
	return c
}

// uniformLogs returns n single-review logs, one per card, each with a duration.
func uniformLogs(n int) []fsrs.ReviewLog {
	logs := make([]fsrs.ReviewLog, n)
	for i := range logs {
		logs[i] = fsrs.ReviewLog{
			CardID:     fmt.Sprintf("c%d", i),
			Rating:     7,
			ReviewedAt: t0,
			Duration:   time.Second,
		}
	}
	return logs
}
