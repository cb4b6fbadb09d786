package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/huanunited/fsrs"
)

const cardColumns = `id, item_id, state, stability, difficulty, reps, lapses,
	scheduled_days, due, last_review`

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanCard(row rowScanner) (fsrs.Card, error) {
	var (
		c          fsrs.Card
		state      string
		lastReview sql.NullTime
	)
	err := row.Scan(&c.ID, &c.ItemID, &state, &c.Stability, &c.Difficulty,
		&c.Reps, &c.Lapses, &c.ScheduledDays, &c.Due, &lastReview)
	if err != nil {
		return fsrs.Card{}, err
	}

	c.State, err = fsrs.ParseState(state)
	if err != nil {
		return fsrs.Card{}, fmt.Errorf("store: card %s: %w", c.ID, err)
	}
	c.Due = c.Due.UTC()
	if lastReview.Valid {
		t := lastReview.Time.UTC()
		c.LastReview = &t
	}
	return c, nil
}

func stateText(s fsrs.State) (string, error) {
	b, err := s.MarshalText()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: *t, Valid: true}
}

// CreateCard inserts a new card for itemID, due at now.
func (s *Store) CreateCard(ctx context.Context, itemID string, now time.Time) (fsrs.Card, error) {
	if itemID == "" {
		return fsrs.Card{}, errors.New("store: item id is required")
	}
	now = dbTime(now)
	card := fsrs.NewCard(s.newID(), itemID, now)

	query := s.rebind(`INSERT INTO fsrs_cards (` + cardColumns + `, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)

	state, err := stateText(card.State)
	if err != nil {
		return fsrs.Card{}, err
	}
	_, err = s.db.ExecContext(ctx, query,
		card.ID, card.ItemID, state, card.Stability, card.Difficulty,
		card.Reps, card.Lapses, card.ScheduledDays, card.Due, nullTime(card.LastReview),
		now, now)
	if err != nil {
		return fsrs.Card{}, fmt.Errorf("store: failed to create card: %w", err)
	}
	return card, nil
}

// GetCard returns the card with the given ID or ErrNotFound.
func (s *Store) GetCard(ctx context.Context, id string) (fsrs.Card, error) {
	return s.getCard(ctx, s.db, id, "")
}

// queryRower is satisfied by *sql.DB and *sql.Tx.
type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *Store) getCard(ctx context.Context, q queryRower, id, suffix string) (fsrs.Card, error) {
	query := s.rebind(`SELECT ` + cardColumns + ` FROM fsrs_cards WHERE id = ?` + suffix)

	card, err := scanCard(q.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return fsrs.Card{}, fmt.Errorf("%w: card %s", ErrNotFound, id)
	}
	if err != nil {
		return fsrs.Card{}, fmt.Errorf("store: failed to get card: %w", err)
	}
	return card, nil
}

// ListCards returns every card in creation order.
func (s *Store) ListCards(ctx context.Context) ([]fsrs.Card, error) {
	return s.queryCards(ctx, `SELECT `+cardColumns+` FROM fsrs_cards ORDER BY created_at, id`)
}

// DeleteCard removes a card and its review history.
func (s *Store) DeleteCard(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, s.rebind(`DELETE FROM fsrs_cards WHERE id = ?`), id)
	if err != nil {
		return fmt.Errorf("store: failed to delete card: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: failed to delete card: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: card %s", ErrNotFound, id)
	}
	return nil
}

// NextDue returns cards due at or before now: most whole days overdue
// first, then the least stable, then the most difficult. limit <= 0
// returns all of them.
func (s *Store) NextDue(ctx context.Context, now time.Time, limit int) ([]fsrs.Card, error) {
	at := dbTime(now)
	query := `SELECT ` + cardColumns + ` FROM fsrs_cards
		WHERE due <= ?
		ORDER BY ` + s.daysOverdue() + ` DESC, stability ASC, difficulty DESC, id ASC`
	args := []any{at, at}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	return s.queryCards(ctx, query, args...)
}

func (s *Store) queryCards(ctx context.Context, query string, args ...any) ([]fsrs.Card, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, fmt.Errorf("store: failed to query cards: %w", err)
	}
	defer rows.Close()

	var cards []fsrs.Card
	for rows.Next() {
		c, err := scanCard(rows)
		if err != nil {
			return nil, err
		}
		cards = append(cards, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: failed to iterate cards: %w", err)
	}
	return cards, nil
}
