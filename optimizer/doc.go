// Package optimizer fits scheduling parameters to recorded review history.
//
// It provides two main capabilities:
//
//   - [Optimizer.ComputeOptimalParameters] calibrates the decay weight w11,
//     which drives both retrievability and interval length, using
//     mini-batch gradient descent with Adam, projected onto w11's bounds
//     and decayed along a cosine schedule. Gradients are computed via
//     numerical central differences on binary cross-entropy loss, with
//     ratings 3 and above counted as recalled.
//
//   - [Optimizer.ComputeOptimalRetention] finds the desired retention value
//     that minimizes study time per retained card via Monte Carlo simulation.
//
// # Usage
//
//	logs, err := st.AllReviewLogs(ctx)
//	opt := optimizer.NewOptimizer(optimizer.OptimizerConfig{})
//	params, err := opt.ComputeOptimalParameters(ctx, base, logs)
//	retention, err := opt.ComputeOptimalRetention(ctx, params, logs)
//
// # Data Requirements
//
// Calibration requires enough cross-day reviews (at least MiniBatchSize,
// default 512). Optimal retention additionally requires Duration to be set
// on all review logs.
package optimizer
