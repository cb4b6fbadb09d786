package store

import (
	"fmt"
	"strings"

	"github.com/huanunited/fsrs"
)

const schemaTemplate = `
CREATE TABLE IF NOT EXISTS fsrs_parameters (
	id                TEXT PRIMARY KEY,
	%s,
	desired_retention DOUBLE PRECISION NOT NULL,
	total_reviews     INTEGER NOT NULL DEFAULT 0,
	last_calibrated   {{ts}},
	created_at        {{ts}} NOT NULL,
	updated_at        {{ts}} NOT NULL
);

CREATE TABLE IF NOT EXISTS fsrs_cards (
	id             TEXT PRIMARY KEY,
	item_id        TEXT NOT NULL,
	state          TEXT NOT NULL,
	stability      DOUBLE PRECISION NOT NULL,
	difficulty     DOUBLE PRECISION NOT NULL,
	reps           INTEGER NOT NULL DEFAULT 0,
	lapses         INTEGER NOT NULL DEFAULT 0,
	scheduled_days INTEGER NOT NULL DEFAULT 0,
	due            {{ts}} NOT NULL,
	last_review    {{ts}},
	created_at     {{ts}} NOT NULL,
	updated_at     {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fsrs_cards_due ON fsrs_cards(due);
CREATE INDEX IF NOT EXISTS idx_fsrs_cards_item ON fsrs_cards(item_id);

CREATE TABLE IF NOT EXISTS fsrs_reviews (
	id                    TEXT PRIMARY KEY,
	card_id               TEXT NOT NULL REFERENCES fsrs_cards(id) ON DELETE CASCADE,
	item_id               TEXT NOT NULL,
	rating                INTEGER NOT NULL,
	state_before          TEXT NOT NULL,
	state_after           TEXT NOT NULL,
	elapsed_days          INTEGER NOT NULL DEFAULT 0,
	duration_ms           BIGINT NOT NULL DEFAULT 0,
	scheduled_days_before INTEGER NOT NULL DEFAULT 0,
	scheduled_days_after  INTEGER NOT NULL DEFAULT 0,
	is_lapse              BOOLEAN NOT NULL DEFAULT FALSE,
	created_at            {{ts}} NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fsrs_reviews_card ON fsrs_reviews(card_id, created_at);
`

// weightColumns lists w_1..w_19 in order.
func weightColumns() []string {
	cols := make([]string, fsrs.NumWeights)
	for i := range cols {
		cols[i] = fmt.Sprintf("w_%d", i+1)
	}
	return cols
}

// schema renders the DDL for a dialect. Timestamps are TIMESTAMPTZ on
// PostgreSQL; SQLite needs the TIMESTAMP declared type for the driver to
// scan values back into time.Time.
func schema(dialect Dialect) string {
	defs := make([]string, 0, fsrs.NumWeights)
	for _, c := range weightColumns() {
		defs = append(defs, c+" DOUBLE PRECISION NOT NULL")
	}

	ts := "TIMESTAMP"
	if dialect == Postgres {
		ts = "TIMESTAMPTZ"
	}

	ddl := fmt.Sprintf(schemaTemplate, strings.Join(defs, ",\n\t"))
	return strings.ReplaceAll(ddl, "{{ts}}", ts)
}
