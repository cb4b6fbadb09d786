package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/huanunited/fsrs"
)

const reviewColumns = `id, card_id, rating, state_before, state_after, elapsed_days,
	duration_ms, scheduled_days_before, scheduled_days_after, is_lapse, created_at`

// CardStats summarises a card and its review history.
type CardStats struct {
	Card          fsrs.Card
	TotalReviews  int
	AverageRating float64 // 0 when the card has no reviews
	Mastery       int     // percent, see fsrs.Mastery
	Solved        bool
}

// Review grades a card at now and persists the outcome. The card update and
// the review log are written in one transaction; on PostgreSQL the card row
// is locked for its duration. An invalid rating changes nothing.
func (s *Store) Review(ctx context.Context, cardID string, rating fsrs.Rating, elapsed time.Duration, now time.Time) (fsrs.Card, fsrs.ReviewLog, error) {
	if err := rating.Validate(); err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, err
	}

	params, err := s.LoadParameters(ctx)
	if err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, err
	}
	sched, err := fsrs.NewScheduler(fsrs.SchedulerConfig{Parameters: params, NewID: s.newID})
	if err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, err
	}

	now = dbTime(now)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, fmt.Errorf("store: failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	card, err := s.getCard(ctx, tx, cardID, s.forUpdate())
	if err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, err
	}

	next, log, err := sched.ReviewCard(card, rating, now, elapsed)
	if err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, err
	}

	if err := s.updateCard(ctx, tx, next, now); err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, err
	}
	if err := s.insertReviewLog(ctx, tx, log, card.ItemID); err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, err
	}

	if err := tx.Commit(); err != nil {
		return fsrs.Card{}, fsrs.ReviewLog{}, fmt.Errorf("store: failed to commit review: %w", err)
	}

	s.logger.Debug("review persisted",
		"card_id", next.ID,
		"rating", int(rating),
		"state", next.State.String(),
		"interval_days", next.ScheduledDays,
		"stability", next.Stability,
		"lapse", log.IsLapse)

	return next, log, nil
}

func (s *Store) updateCard(ctx context.Context, tx *sql.Tx, c fsrs.Card, now time.Time) error {
	state, err := stateText(c.State)
	if err != nil {
		return err
	}

	query := s.rebind(`UPDATE fsrs_cards SET
		state = ?, stability = ?, difficulty = ?, reps = ?, lapses = ?,
		scheduled_days = ?, due = ?, last_review = ?, updated_at = ?
		WHERE id = ?`)

	_, err = tx.ExecContext(ctx, query,
		state, c.Stability, c.Difficulty, c.Reps, c.Lapses,
		c.ScheduledDays, dbTime(c.Due), nullTime(c.LastReview), now,
		c.ID)
	if err != nil {
		return fmt.Errorf("store: failed to update card: %w", err)
	}
	return nil
}

func (s *Store) insertReviewLog(ctx context.Context, tx *sql.Tx, l fsrs.ReviewLog, itemID string) error {
	before, err := stateText(l.StateBefore)
	if err != nil {
		return err
	}
	after, err := stateText(l.StateAfter)
	if err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO fsrs_reviews (` + reviewColumns + `, item_id)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	_, err = tx.ExecContext(ctx, query,
		l.ID, l.CardID, int(l.Rating), before, after, l.ElapsedDays,
		l.Duration.Milliseconds(), l.ScheduledDaysBefore, l.ScheduledDaysAfter, l.IsLapse,
		dbTime(l.ReviewedAt), itemID)
	if err != nil {
		return fmt.Errorf("store: failed to insert review log: %w", err)
	}
	return nil
}

// ReviewLogs returns the review history of one card, oldest first.
func (s *Store) ReviewLogs(ctx context.Context, cardID string) ([]fsrs.ReviewLog, error) {
	return s.queryReviewLogs(ctx, `SELECT `+reviewColumns+` FROM fsrs_reviews
		WHERE card_id = ? ORDER BY created_at, id`, cardID)
}

// AllReviewLogs returns every review log grouped by card, each card's
// history oldest first. It is the input the optimizer expects.
func (s *Store) AllReviewLogs(ctx context.Context) ([]fsrs.ReviewLog, error) {
	return s.queryReviewLogs(ctx, `SELECT `+reviewColumns+` FROM fsrs_reviews
		ORDER BY card_id, created_at, id`)
}

func (s *Store) queryReviewLogs(ctx context.Context, query string, args ...any) ([]fsrs.ReviewLog, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query review logs: %w", err)
	}
	defer rows.Close()

	var logs []fsrs.ReviewLog
	for rows.Next() {
		var (
			l             fsrs.ReviewLog
			rating        int
			before, after string
			durationMS    int64
		)
		err := rows.Scan(&l.ID, &l.CardID, &rating, &before, &after, &l.ElapsedDays,
			&durationMS, &l.ScheduledDaysBefore, &l.ScheduledDaysAfter, &l.IsLapse, &l.ReviewedAt)
		if err != nil {
			return nil, fmt.Errorf("store: failed to scan review log: %w", err)
		}
		l.Rating = fsrs.Rating(rating)
		if l.StateBefore, err = fsrs.ParseState(before); err != nil {
			return nil, fmt.Errorf("store: review %s: %w", l.ID, err)
		}
		if l.StateAfter, err = fsrs.ParseState(after); err != nil {
			return nil, fmt.Errorf("store: review %s: %w", l.ID, err)
		}
		l.Duration = time.Duration(durationMS) * time.Millisecond
		l.ReviewedAt = l.ReviewedAt.UTC()
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: failed to iterate review logs: %w", err)
	}
	return logs, nil
}

// CardStats returns the card with its review count, average rating and
// mastery.
func (s *Store) CardStats(ctx context.Context, cardID string) (CardStats, error) {
	card, err := s.GetCard(ctx, cardID)
	if err != nil {
		return CardStats{}, err
	}

	var (
		stats = CardStats{Card: card}
		avg   sql.NullFloat64
	)
	query := s.rebind(`SELECT COUNT(*), AVG(rating) FROM fsrs_reviews WHERE card_id = ?`)
	if err := s.db.QueryRowContext(ctx, query, cardID).Scan(&stats.TotalReviews, &avg); err != nil {
		return CardStats{}, fmt.Errorf("store: failed to compute card stats: %w", err)
	}
	if avg.Valid {
		stats.AverageRating = avg.Float64
	}
	stats.Mastery, stats.Solved = fsrs.Mastery(card)
	return stats, nil
}
