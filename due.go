package fsrs

import (
	"cmp"
	"slices"
	"time"
)

// DueCards returns the cards due at now, most urgent first: the most whole
// days overdue, then the least stable, then the most difficult. Cards
// overdue by the same number of days keep their input order otherwise. A
// limit of zero or less returns every due card. The input slice is not
// modified.
func DueCards(cards []Card, now time.Time, limit int) []Card {
	due := make([]Card, 0, len(cards))
	for _, c := range cards {
		if !c.Due.After(now) {
			due = append(due, c)
		}
	}

	slices.SortStableFunc(due, func(a, b Card) int {
		return compareUrgency(a, b, now)
	})

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due
}

// DaysOverdue returns the number of whole days c has been due at now. Cards
// not yet due report zero.
func DaysOverdue(c Card, now time.Time) int {
	if !c.Due.Before(now) {
		return 0
	}
	return int(now.Sub(c.Due) / (24 * time.Hour))
}

// compareUrgency orders by whole days overdue descending, stability
// ascending, difficulty descending.
func compareUrgency(a, b Card, now time.Time) int {
	if c := cmp.Compare(DaysOverdue(b, now), DaysOverdue(a, now)); c != 0 {
		return c
	}
	if c := cmp.Compare(a.Stability, b.Stability); c != 0 {
		return c
	}
	return cmp.Compare(b.Difficulty, a.Difficulty)
}
