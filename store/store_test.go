package store_test

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/huanunited/fsrs"
	"github.com/huanunited/fsrs/store"
)

var t0 = time.Date(2025, 6, 15, 10, 0, 0, 0, time.UTC)

// seqIDs returns a deterministic, concurrency-safe ID generator.
func seqIDs(prefix string) func() string {
	var (
		mu sync.Mutex
		n  int
	)
	return func() string {
		mu.Lock()
		defer mu.Unlock()
		n++
		return fmt.Sprintf("%s-%03d", prefix, n)
	}
}

func newSQLiteStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(context.Background(), "sqlite", ":memory:", store.Options{NewID: seqIDs("id")})
	require.NoError(t, err, "Open sqlite")
	t.Cleanup(func() { s.Close() })
	return s
}

// newPostgresStore connects to FSRS_POSTGRES_TEST_DSN and starts from empty
// tables. Tests are skipped when the variable is unset.
func newPostgresStore(t *testing.T) *store.Store {
	t.Helper()

	dsn := os.Getenv("FSRS_POSTGRES_TEST_DSN")
	if dsn == "" {
		t.Skip("FSRS_POSTGRES_TEST_DSN not set; skipping PostgreSQL integration tests")
	}

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	_, err = db.Exec(`DROP TABLE IF EXISTS fsrs_reviews, fsrs_cards, fsrs_parameters`)
	require.NoError(t, err, "reset tables")

	s, err := store.New(context.Background(), db, store.Postgres, store.Options{NewID: seqIDs("id")})
	require.NoError(t, err, "New postgres")
	t.Cleanup(func() { s.Close() })
	return s
}

// forEachDialect runs fn against every available database.
func forEachDialect(t *testing.T, fn func(t *testing.T, s *store.Store)) {
	t.Helper()
	t.Run("sqlite", func(t *testing.T) { fn(t, newSQLiteStore(t)) })
	t.Run("postgres", func(t *testing.T) { fn(t, newPostgresStore(t)) })
}

func assertSameCard(t *testing.T, want, got fsrs.Card) {
	t.Helper()
	assert.Equal(t, want.ID, got.ID, "ID")
	assert.Equal(t, want.ItemID, got.ItemID, "ItemID")
	assert.Equal(t, want.State, got.State, "State")
	assert.InDelta(t, want.Stability, got.Stability, 1e-9, "Stability")
	assert.InDelta(t, want.Difficulty, got.Difficulty, 1e-9, "Difficulty")
	assert.Equal(t, want.Reps, got.Reps, "Reps")
	assert.Equal(t, want.Lapses, got.Lapses, "Lapses")
	assert.Equal(t, want.ScheduledDays, got.ScheduledDays, "ScheduledDays")
	assert.True(t, want.Due.Equal(got.Due), "Due: want %v, got %v", want.Due, got.Due)
	if want.LastReview == nil {
		assert.Nil(t, got.LastReview, "LastReview")
	} else {
		require.NotNil(t, got.LastReview, "LastReview")
		assert.True(t, want.LastReview.Equal(*got.LastReview), "LastReview: want %v, got %v", *want.LastReview, *got.LastReview)
	}
}

func cardIDs(cards []fsrs.Card) []string {
	ids := make([]string, len(cards))
	for i, c := range cards {
		ids[i] = c.ID
	}
	return ids
}

// --- Open ---

func TestOpenUnsupportedDriver(t *testing.T) {
	_, err := store.Open(context.Background(), "mysql", "dsn", store.Options{})
	assert.ErrorIs(t, err, store.ErrUnsupportedDriver)
}

func TestNewRequiresDB(t *testing.T) {
	_, err := store.New(context.Background(), nil, store.SQLite, store.Options{})
	assert.Error(t, err)
}

func TestSchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	_, err = store.New(ctx, db, store.SQLite, store.Options{})
	require.NoError(t, err)
	s, err := store.New(ctx, db, store.SQLite, store.Options{})
	require.NoError(t, err, "second schema creation")
	assert.Equal(t, store.SQLite, s.Dialect())
}

// --- Parameters ---

func TestLoadParametersCreatesDefaults(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		p, err := s.LoadParameters(ctx)
		require.NoError(t, err)
		assert.Equal(t, fsrs.DefaultParameters(), p)

		again, err := s.LoadParameters(ctx)
		require.NoError(t, err)
		assert.Equal(t, p, again)

		c, err := s.LoadCalibration(ctx)
		require.NoError(t, err)
		assert.Nil(t, c.LastCalibrated)
		assert.Zero(t, c.TotalReviews)
	})
}

func TestSaveParameters(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		p := fsrs.DefaultParameters()
		p.DesiredRetention = 0.9
		p.W[10] = 0.25
		require.NoError(t, s.SaveParameters(ctx, p))

		got, err := s.LoadParameters(ctx)
		require.NoError(t, err)
		assert.Equal(t, p, got)
	})
}

func TestSaveParametersRejectsInvalid(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		p := fsrs.DefaultParameters()
		p.DesiredRetention = 1.5
		err := s.SaveParameters(ctx, p)
		assert.ErrorIs(t, err, fsrs.ErrInvalidParameters)

		got, err := s.LoadParameters(ctx)
		require.NoError(t, err)
		assert.Equal(t, fsrs.DefaultParameters(), got, "invalid set must not be stored")
	})
}

func TestSaveCalibration(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		p := fsrs.DefaultParameters()
		p.W[10] = 0.3
		require.NoError(t, s.SaveCalibration(ctx, p, 42, t0))

		c, err := s.LoadCalibration(ctx)
		require.NoError(t, err)
		assert.Equal(t, p, c.Parameters)
		assert.Equal(t, 42, c.TotalReviews)
		require.NotNil(t, c.LastCalibrated)
		assert.True(t, t0.Equal(*c.LastCalibrated))

		// A plain save keeps the calibration bookkeeping.
		p.DesiredRetention = 0.9
		require.NoError(t, s.SaveParameters(ctx, p))

		c, err = s.LoadCalibration(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0.9, c.Parameters.DesiredRetention)
		assert.Equal(t, 42, c.TotalReviews)
		require.NotNil(t, c.LastCalibrated)
		assert.True(t, t0.Equal(*c.LastCalibrated))
	})
}

// --- Cards ---

func TestCreateAndGetCard(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		card, err := s.CreateCard(ctx, "problem-1", t0)
		require.NoError(t, err)
		assert.Equal(t, "id-001", card.ID)
		assert.Equal(t, fsrs.New, card.State)
		assert.Equal(t, fsrs.InitialDifficulty, card.Difficulty)
		assert.Zero(t, card.Stability)
		assert.True(t, t0.Equal(card.Due))

		got, err := s.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assertSameCard(t, card, got)
	})
}

func TestCreateCardRequiresItemID(t *testing.T) {
	s := newSQLiteStore(t)
	_, err := s.CreateCard(context.Background(), "", t0)
	assert.Error(t, err)
}

func TestGetCardNotFound(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		_, err := s.GetCard(context.Background(), "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestListCards(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		cards, err := s.ListCards(ctx)
		require.NoError(t, err)
		assert.Empty(t, cards)

		for i := range 3 {
			_, err := s.CreateCard(ctx, fmt.Sprintf("item-%d", i), t0.Add(time.Duration(i)*time.Minute))
			require.NoError(t, err)
		}

		cards, err = s.ListCards(ctx)
		require.NoError(t, err)
		assert.Equal(t, []string{"id-001", "id-002", "id-003"}, cardIDs(cards))
	})
}

func TestDeleteCard(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		card, err := s.CreateCard(ctx, "item", t0)
		require.NoError(t, err)
		_, _, err = s.Review(ctx, card.ID, 7, 0, t0)
		require.NoError(t, err)

		require.NoError(t, s.DeleteCard(ctx, card.ID))

		_, err = s.GetCard(ctx, card.ID)
		assert.ErrorIs(t, err, store.ErrNotFound)

		logs, err := s.ReviewLogs(ctx, card.ID)
		require.NoError(t, err)
		assert.Empty(t, logs, "review history is removed with the card")

		assert.ErrorIs(t, s.DeleteCard(ctx, card.ID), store.ErrNotFound)
	})
}

// --- Review ---

func TestReviewPersistsOutcome(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		card, err := s.CreateCard(ctx, "item", t0)
		require.NoError(t, err)

		want, err := fsrs.Process(card.Input(7), fsrs.DefaultParameters())
		require.NoError(t, err)

		next, log, err := s.Review(ctx, card.ID, 7, 45*time.Second, t0)
		require.NoError(t, err)

		assert.Equal(t, fsrs.Learning, next.State)
		assert.Equal(t, want.Interval, next.ScheduledDays)
		assert.InDelta(t, want.Stability, next.Stability, 1e-9)
		assert.InDelta(t, want.Difficulty, next.Difficulty, 1e-9)
		assert.Equal(t, 1, next.Reps)
		assert.Zero(t, next.Lapses)
		assert.True(t, t0.AddDate(0, 0, want.Interval).Equal(next.Due))

		got, err := s.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assertSameCard(t, next, got)

		logs, err := s.ReviewLogs(ctx, card.ID)
		require.NoError(t, err)
		require.Len(t, logs, 1)
		assert.Equal(t, log.ID, logs[0].ID)
		assert.Equal(t, card.ID, logs[0].CardID)
		assert.Equal(t, fsrs.Rating(7), logs[0].Rating)
		assert.Equal(t, fsrs.New, logs[0].StateBefore)
		assert.Equal(t, fsrs.Learning, logs[0].StateAfter)
		assert.Equal(t, want.Interval, logs[0].ScheduledDaysAfter)
		assert.Equal(t, 45*time.Second, logs[0].Duration)
		assert.False(t, logs[0].IsLapse)
		assert.True(t, t0.Equal(logs[0].ReviewedAt))
	})
}

func TestReviewCountsLapses(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		card, err := s.CreateCard(ctx, "item", t0)
		require.NoError(t, err)

		now := t0
		for _, r := range []fsrs.Rating{7, 7} {
			card, _, err = s.Review(ctx, card.ID, r, 0, now)
			require.NoError(t, err)
			now = card.Due
		}
		require.Equal(t, fsrs.Review, card.State)

		card, log, err := s.Review(ctx, card.ID, 1, 0, now)
		require.NoError(t, err)
		assert.Equal(t, fsrs.Relearning, card.State)
		assert.True(t, log.IsLapse)
		assert.Equal(t, 3, card.Reps)
		assert.Equal(t, 1, card.Lapses)
	})
}

func TestReviewInvalidRatingChangesNothing(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		card, err := s.CreateCard(ctx, "item", t0)
		require.NoError(t, err)

		for _, r := range []fsrs.Rating{0, 11} {
			_, _, err = s.Review(ctx, card.ID, r, 0, t0)
			assert.ErrorIs(t, err, fsrs.ErrInvalidRating)
		}

		got, err := s.GetCard(ctx, card.ID)
		require.NoError(t, err)
		assertSameCard(t, card, got)

		logs, err := s.ReviewLogs(ctx, card.ID)
		require.NoError(t, err)
		assert.Empty(t, logs)
	})
}

func TestReviewMissingCard(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		_, _, err := s.Review(context.Background(), "missing", 7, 0, t0)
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}

func TestReviewUsesStoredParameters(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		p := fsrs.DefaultParameters()
		p.W[0] = 0.8
		require.NoError(t, s.SaveParameters(ctx, p))

		card, err := s.CreateCard(ctx, "item", t0)
		require.NoError(t, err)

		next, _, err := s.Review(ctx, card.ID, 7, 0, t0)
		require.NoError(t, err)
		assert.InDelta(t, 0.8, next.Stability, 1e-9, "first passing review takes w1")
	})
}

func TestStoredLogsReplayToStoredCard(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		card, err := s.CreateCard(ctx, "item", t0)
		require.NoError(t, err)
		fresh := card

		now := t0
		for _, r := range []fsrs.Rating{6, 8, 2, 7, 10} {
			card, _, err = s.Review(ctx, card.ID, r, 0, now)
			require.NoError(t, err)
			now = card.Due.Add(3 * time.Hour)
		}

		logs, err := s.ReviewLogs(ctx, card.ID)
		require.NoError(t, err)
		require.Len(t, logs, 5)

		sched, err := fsrs.NewScheduler(fsrs.SchedulerConfig{})
		require.NoError(t, err)
		replayed, err := sched.RescheduleCard(fresh, logs)
		require.NoError(t, err)
		assertSameCard(t, card, replayed)
	})
}

func TestConcurrentReviewsSerialise(t *testing.T) {
	s := newSQLiteStore(t)
	ctx := context.Background()

	card, err := s.CreateCard(ctx, "item", t0)
	require.NoError(t, err)

	const n = 8
	var wg sync.WaitGroup
	for range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := s.Review(ctx, card.ID, 7, 0, t0)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	got, err := s.GetCard(ctx, card.ID)
	require.NoError(t, err)
	assert.Equal(t, n, got.Reps, "no review is lost")

	logs, err := s.ReviewLogs(ctx, card.ID)
	require.NoError(t, err)
	assert.Len(t, logs, n)
}

// --- Queries ---

func TestNextDue(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		// a: reviewed yesterday, due three hours ago with some stability.
		reviewed := t0.AddDate(0, 0, -1).Add(-3 * time.Hour)
		a, err := s.CreateCard(ctx, "a", reviewed)
		require.NoError(t, err)
		a, _, err = s.Review(ctx, a.ID, 7, 0, reviewed)
		require.NoError(t, err)
		require.True(t, t0.Add(-3*time.Hour).Equal(a.Due))

		// c: never reviewed, due two hours ago. Same whole day as a.
		c, err := s.CreateCard(ctx, "c", t0.Add(-2*time.Hour))
		require.NoError(t, err)
		old, err := s.CreateCard(ctx, "old", t0.AddDate(0, 0, -3))
		require.NoError(t, err)
		_, err = s.CreateCard(ctx, "later", t0.Add(time.Hour))
		require.NoError(t, err)

		due, err := s.NextDue(ctx, t0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{old.ID, c.ID, a.ID}, cardIDs(due),
			"most days overdue first, then lowest stability")

		due, err = s.NextDue(ctx, t0, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{old.ID, c.ID}, cardIDs(due))

		due, err = s.NextDue(ctx, t0.AddDate(0, 0, -4), 0)
		require.NoError(t, err)
		assert.Empty(t, due)
	})
}

func TestNextDueSameDayOrderedByStability(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		// Both are three whole days overdue; strong came due two hours
		// earlier but holds far more stability.
		strong, err := s.CreateCard(ctx, "strong", t0.AddDate(0, 0, -4).Add(-2*time.Hour))
		require.NoError(t, err)
		strong, _, err = s.Review(ctx, strong.ID, 7, 0, strong.Due)
		require.NoError(t, err)
		require.True(t, t0.AddDate(0, 0, -3).Add(-2*time.Hour).Equal(strong.Due))

		shaky, err := s.CreateCard(ctx, "shaky", t0.AddDate(0, 0, -3))
		require.NoError(t, err)
		require.Less(t, shaky.Stability, strong.Stability)

		due, err := s.NextDue(ctx, t0, 0)
		require.NoError(t, err)
		assert.Equal(t, []string{shaky.ID, strong.ID}, cardIDs(due))
	})
}

func TestNextDueMatchesDueCards(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		for i, r := range []fsrs.Rating{3, 9, 5, 1} {
			c, err := s.CreateCard(ctx, fmt.Sprintf("item-%d", i), t0.AddDate(0, 0, -5))
			require.NoError(t, err)
			_, _, err = s.Review(ctx, c.ID, r, 0, t0.AddDate(0, 0, -5+i))
			require.NoError(t, err)
		}

		all, err := s.ListCards(ctx)
		require.NoError(t, err)
		due, err := s.NextDue(ctx, t0, 0)
		require.NoError(t, err)
		assert.Equal(t, cardIDs(fsrs.DueCards(all, t0, 0)), cardIDs(due))
	})
}

func TestAllReviewLogs(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		a, err := s.CreateCard(ctx, "a", t0)
		require.NoError(t, err)
		b, err := s.CreateCard(ctx, "b", t0)
		require.NoError(t, err)

		_, _, err = s.Review(ctx, b.ID, 7, 0, t0)
		require.NoError(t, err)
		_, _, err = s.Review(ctx, a.ID, 4, 0, t0.Add(time.Hour))
		require.NoError(t, err)
		_, _, err = s.Review(ctx, a.ID, 8, 0, t0.AddDate(0, 0, 1))
		require.NoError(t, err)

		logs, err := s.AllReviewLogs(ctx)
		require.NoError(t, err)
		require.Len(t, logs, 3)
		assert.Equal(t, a.ID, logs[0].CardID)
		assert.Equal(t, fsrs.Rating(4), logs[0].Rating)
		assert.Equal(t, a.ID, logs[1].CardID)
		assert.Equal(t, fsrs.Rating(8), logs[1].Rating)
		assert.Equal(t, b.ID, logs[2].CardID)
	})
}

func TestCardStats(t *testing.T) {
	forEachDialect(t, func(t *testing.T, s *store.Store) {
		ctx := context.Background()

		card, err := s.CreateCard(ctx, "item", t0)
		require.NoError(t, err)

		stats, err := s.CardStats(ctx, card.ID)
		require.NoError(t, err)
		assert.Zero(t, stats.TotalReviews)
		assert.Zero(t, stats.AverageRating)
		assert.Zero(t, stats.Mastery)
		assert.False(t, stats.Solved)

		card, _, err = s.Review(ctx, card.ID, 7, 0, t0)
		require.NoError(t, err)
		card, _, err = s.Review(ctx, card.ID, 10, 0, card.Due)
		require.NoError(t, err)

		stats, err = s.CardStats(ctx, card.ID)
		require.NoError(t, err)
		assert.Equal(t, 2, stats.TotalReviews)
		assert.InDelta(t, 8.5, stats.AverageRating, 1e-9)
		assertSameCard(t, card, stats.Card)
		wantPct, wantSolved := fsrs.Mastery(card)
		assert.Equal(t, wantPct, stats.Mastery)
		assert.Equal(t, wantSolved, stats.Solved)

		_, err = s.CardStats(ctx, "missing")
		assert.ErrorIs(t, err, store.ErrNotFound)
	})
}
