package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/huanunited/fsrs"
)

// globalParameters is the key of the single parameter row.
const globalParameters = "global"

// Calibration describes the stored parameter row.
type Calibration struct {
	Parameters     fsrs.Parameters
	TotalReviews   int        // review count the last calibration was fitted on
	LastCalibrated *time.Time // nil until the optimizer has run
	UpdatedAt      time.Time
}

// LoadParameters returns the global parameter set, inserting the defaults
// on first use. A stored set that fails validation is returned as an error
// wrapping fsrs.ErrInvalidParameters.
func (s *Store) LoadParameters(ctx context.Context) (fsrs.Parameters, error) {
	c, err := s.LoadCalibration(ctx)
	if err != nil {
		return fsrs.Parameters{}, err
	}
	return c.Parameters, nil
}

// LoadCalibration is LoadParameters with the calibration bookkeeping.
func (s *Store) LoadCalibration(ctx context.Context) (Calibration, error) {
	c, err := s.selectCalibration(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		now := time.Now()
		if err := s.upsertParameters(ctx, fsrs.DefaultParameters(), nil, nil, now); err != nil {
			return Calibration{}, err
		}
		s.logger.Info("created default parameters",
			"desired_retention", fsrs.DefaultParameters().DesiredRetention)
		c, err = s.selectCalibration(ctx)
	}
	if err != nil {
		return Calibration{}, fmt.Errorf("store: failed to load parameters: %w", err)
	}

	if err := c.Parameters.Validate(); err != nil {
		return Calibration{}, fmt.Errorf("store: stored parameters: %w", err)
	}
	return c, nil
}

// SaveParameters validates p and replaces the global parameter set.
func (s *Store) SaveParameters(ctx context.Context, p fsrs.Parameters) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return s.upsertParameters(ctx, p, nil, nil, time.Now())
}

// SaveCalibration stores parameters produced by the optimizer together with
// the number of reviews they were fitted on.
func (s *Store) SaveCalibration(ctx context.Context, p fsrs.Parameters, totalReviews int, at time.Time) error {
	if err := p.Validate(); err != nil {
		return err
	}
	if err := s.upsertParameters(ctx, p, &totalReviews, &at, at); err != nil {
		return err
	}
	s.logger.Info("saved calibrated parameters",
		"w11", p.Weight(11),
		"total_reviews", totalReviews)
	return nil
}

func (s *Store) selectCalibration(ctx context.Context) (Calibration, error) {
	query := s.rebind(`SELECT ` + strings.Join(weightColumns(), ", ") + `,
		desired_retention, total_reviews, last_calibrated, updated_at
		FROM fsrs_parameters WHERE id = ?`)

	var (
		c          Calibration
		calibrated sql.NullTime
	)
	dest := make([]any, 0, fsrs.NumWeights+4)
	for i := range c.Parameters.W {
		dest = append(dest, &c.Parameters.W[i])
	}
	dest = append(dest, &c.Parameters.DesiredRetention, &c.TotalReviews, &calibrated, &c.UpdatedAt)

	if err := s.db.QueryRowContext(ctx, query, globalParameters).Scan(dest...); err != nil {
		return Calibration{}, err
	}
	if calibrated.Valid {
		t := calibrated.Time.UTC()
		c.LastCalibrated = &t
	}
	c.UpdatedAt = c.UpdatedAt.UTC()
	return c, nil
}

// upsertParameters writes the global row. A nil totalReviews or calibrated
// keeps the stored value.
func (s *Store) upsertParameters(ctx context.Context, p fsrs.Parameters, totalReviews *int, calibrated *time.Time, now time.Time) error {
	cols := weightColumns()
	sets := make([]string, 0, len(cols)+1)
	for _, c := range cols {
		sets = append(sets, c+" = excluded."+c)
	}

	query := s.rebind(`INSERT INTO fsrs_parameters (id, ` + strings.Join(cols, ", ") + `,
			desired_retention, total_reviews, last_calibrated, created_at, updated_at)
		VALUES (?, ` + strings.Repeat("?, ", len(cols)) + `?, ?, ?, ?, ?)
		ON CONFLICT (id) DO UPDATE SET ` + strings.Join(sets, ", ") + `,
			desired_retention = excluded.desired_retention,
			total_reviews = CASE WHEN ? THEN excluded.total_reviews ELSE fsrs_parameters.total_reviews END,
			last_calibrated = COALESCE(excluded.last_calibrated, fsrs_parameters.last_calibrated),
			updated_at = excluded.updated_at`)

	var (
		total    int
		lastCal  sql.NullTime
		ts       = dbTime(now)
		setTotal = totalReviews != nil
	)
	if setTotal {
		total = *totalReviews
	}
	if calibrated != nil {
		lastCal = sql.NullTime{Time: dbTime(*calibrated), Valid: true}
	}

	args := make([]any, 0, len(cols)+7)
	args = append(args, globalParameters)
	for _, w := range p.W {
		args = append(args, w)
	}
	args = append(args, p.DesiredRetention, total, lastCal, ts, ts, setTotal)

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("store: failed to save parameters: %w", err)
	}
	return nil
}
