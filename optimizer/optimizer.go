package optimizer

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"math/rand"

	"github.com/huanunited/fsrs"
)

var (
	// ErrEmptyLogs is returned when no review logs are provided.
	ErrEmptyLogs = errors.New("optimizer: no review logs provided")

	// ErrInsufficientData is returned when cross-day reviews are fewer than MiniBatchSize.
	ErrInsufficientData = errors.New("optimizer: insufficient cross-day reviews for optimization")
)

// OptimizerConfig configures the training process.
// Zero values are replaced with sensible defaults.
type OptimizerConfig struct {
	Epochs        int          `json:"epochs"`          // default 5
	MiniBatchSize int          `json:"mini_batch_size"` // default 512
	LearningRate  float64      `json:"learning_rate"`   // fraction of w11's range per step, default 0.04
	MaxSeqLen     int          `json:"max_seq_len"`     // default 64
	Logger        *slog.Logger `json:"-"`               // default slog.Default()
}

// Optimizer calibrates the decay weight w11 from review logs using
// mini-batch gradient descent with a bounded Adam whose learning rate
// follows a cosine decay.
type Optimizer struct {
	epochs        int
	miniBatchSize int
	learningRate  float64
	maxSeqLen     int
	logger        *slog.Logger
}

// NewOptimizer creates an Optimizer with the given config.
// Zero-valued fields receive defaults: Epochs=5, MiniBatchSize=512,
// LearningRate=0.04, MaxSeqLen=64.
func NewOptimizer(cfg OptimizerConfig) *Optimizer {
	o := &Optimizer{
		epochs:        cfg.Epochs,
		miniBatchSize: cfg.MiniBatchSize,
		learningRate:  cfg.LearningRate,
		maxSeqLen:     cfg.MaxSeqLen,
		logger:        cfg.Logger,
	}
	if o.epochs <= 0 {
		o.epochs = 5
	}
	if o.miniBatchSize <= 0 {
		o.miniBatchSize = 512
	}
	if o.learningRate <= 0 {
		o.learningRate = 0.04
	}
	if o.maxSeqLen <= 0 {
		o.maxSeqLen = 64
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}
	return o
}

// ComputeOptimalParameters fits w11 to the review logs, starting from base
// (zero → fsrs.DefaultParameters). All other weights and the desired
// retention are returned unchanged. The result never has a higher loss
// than base.
//
// Returns ErrEmptyLogs if logs is empty, or ErrInsufficientData (along with
// base) if cross-day reviews are fewer than MiniBatchSize.
// The context can be used to cancel long-running optimization; the best
// parameters found so far are returned with the context error.
func (o *Optimizer) ComputeOptimalParameters(ctx context.Context, base fsrs.Parameters, logs []fsrs.ReviewLog) (fsrs.Parameters, error) {
	if base == (fsrs.Parameters{}) {
		base = fsrs.DefaultParameters()
	}
	if err := base.Validate(); err != nil {
		return base, err
	}
	if len(logs) == 0 {
		return base, ErrEmptyLogs
	}

	data := formatRevlogs(logs)

	// Truncate each card's reviews to maxSeqLen.
	for cardID, reviews := range data {
		if len(reviews) > o.maxSeqLen {
			data[cardID] = reviews[:o.maxSeqLen]
		}
	}

	numReviews := countCrossDayReviews(data)
	if numReviews < o.miniBatchSize {
		return base, ErrInsufficientData
	}

	params := withValues(base, clampValues(values(base)))
	tMax := int(math.Ceil(float64(numReviews)/float64(o.miniBatchSize))) * o.epochs
	opt := newAdam(o.learningRate, tMax, trainableBounds())
	rng := rand.New(rand.NewSource(42))

	// Sorted card IDs for deterministic shuffle.
	cardIDs := sortedCardIDs(data)

	bestParams := base
	bestLoss := computeBatchLoss(base, data)
	initialLoss := bestLoss

	step := func(batch map[string][]review) {
		w := values(params)
		opt.step(w, numericalGradient(params, batch))
		params = withValues(params, w)
	}

	for epoch := 0; epoch < o.epochs; epoch++ {
		if err := ctx.Err(); err != nil {
			return bestParams, err
		}

		rng.Shuffle(len(cardIDs), func(i, j int) {
			cardIDs[i], cardIDs[j] = cardIDs[j], cardIDs[i]
		})

		batchData := make(map[string][]review)
		crossDayCount := 0

		for _, cardID := range cardIDs {
			reviews := data[cardID]
			batchData[cardID] = reviews

			for _, r := range reviews {
				if r.elapsedDays >= 1.0 {
					crossDayCount++
				}
			}

			if crossDayCount >= o.miniBatchSize {
				step(batchData)
				batchData = make(map[string][]review)
				crossDayCount = 0
			}
		}

		// Handle remaining reviews at end of epoch.
		if crossDayCount > 0 {
			step(batchData)
		}

		// Track best parameters by epoch loss.
		epochLoss := computeBatchLoss(params, data)
		o.logger.Debug("optimizer epoch complete",
			"epoch", epoch+1,
			"loss", epochLoss,
			"w11", params.Weight(11),
			"lr", opt.rate())
		if epochLoss < bestLoss {
			bestLoss = epochLoss
			bestParams = params
		}
	}

	o.logger.Info("optimizer finished",
		"reviews", numReviews,
		"cards", len(data),
		"w11_before", base.Weight(11),
		"w11_after", bestParams.Weight(11),
		"loss_before", initialLoss,
		"loss_after", bestLoss)

	return bestParams, nil
}

// ComputeBatchLoss computes the average BCE loss over all cross-day reviews.
// This is a convenience wrapper that preprocesses the review logs.
func (o *Optimizer) ComputeBatchLoss(params fsrs.Parameters, logs []fsrs.ReviewLog) float64 {
	data := formatRevlogs(logs)
	return computeBatchLoss(params, data)
}
