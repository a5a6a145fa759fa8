// Package journal records the outcome of every negotiation round in SQLite,
// which is where the trades-completed count comes from.
package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/originbots/tradebot/negotiation"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

// Entry is one finished round.
type Entry struct {
	ID         uuid.UUID
	Offered    string
	OfferedQty int
	Wanted     string
	WantedQty  int
	Outcome    string
	State      string
	Reason     string
	StartedAt  time.Time
	FinishedAt time.Time
}

// FromReport converts a negotiation report.
func FromReport(r negotiation.Report) Entry {
	reason := r.Result.Reason
	if r.Result.Err != nil {
		reason += ": " + r.Result.Err.Error()
	}
	return Entry{
		ID:         r.SessionID,
		Offered:    r.Proposal.Offered,
		OfferedQty: r.Proposal.OfferedQty,
		Wanted:     r.Proposal.Wanted,
		WantedQty:  r.Proposal.WantedQty,
		Outcome:    r.Result.Outcome.String(),
		State:      r.Result.State.String(),
		Reason:     reason,
		StartedAt:  r.Started,
		FinishedAt: r.Finished,
	}
}

// Journal is the SQLite backed round log.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
func Open(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal directory: %w", err)
	}
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping journal: %w", err)
	}
	j := &Journal{db: db}
	if err := j.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return j, nil
}

func (j *Journal) initSchema() error {
	query := `
	CREATE TABLE IF NOT EXISTS rounds (
		id TEXT PRIMARY KEY,
		offered TEXT NOT NULL,
		offered_qty INTEGER NOT NULL,
		wanted TEXT NOT NULL,
		wanted_qty INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		state TEXT NOT NULL,
		reason TEXT,
		started_at INTEGER NOT NULL,
		finished_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rounds_outcome ON rounds(outcome);
	CREATE INDEX IF NOT EXISTS idx_rounds_finished ON rounds(finished_at);
	`
	if _, err := j.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close closes the database.
func (j *Journal) Close() error { return j.db.Close() }

// Ping verifies database connectivity.
func (j *Journal) Ping(ctx context.Context) error { return j.db.PingContext(ctx) }

// Record stores e. A zero ID gets a fresh one.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO rounds (id, offered, offered_qty, wanted, wanted_qty, outcome, state, reason, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID.String(), e.Offered, e.OfferedQty, e.Wanted, e.WantedQty,
		e.Outcome, e.State, e.Reason, e.StartedAt.UnixMilli(), e.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert round %s: %w", e.ID, err)
	}
	return nil
}

// Hook adapts the journal to negotiation.Deps.OnRound. Failures are logged.
func (j *Journal) Hook() func(ctx context.Context, r negotiation.Report) {
	return func(ctx context.Context, r negotiation.Report) {
		if err := j.Record(context.WithoutCancel(ctx), FromReport(r)); err != nil {
			log.Warn().Err(err).Msg("[Journal] failed to record round")
		}
	}
}

// Count returns the number of rounds with outcome, or all rounds when
// outcome is empty.
func (j *Journal) Count(ctx context.Context, outcome string) (int, error) {
	var n int
	var err error
	if outcome == "" {
		err = j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds`).Scan(&n)
	} else {
		err = j.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM rounds WHERE outcome = ?`, outcome).Scan(&n)
	}
	if err != nil {
		return 0, fmt.Errorf("count rounds: %w", err)
	}
	return n, nil
}

// Summary counts rounds per outcome.
func (j *Journal) Summary(ctx context.Context) (map[string]int, error) {
	rows, err := j.db.QueryContext(ctx, `SELECT outcome, COUNT(*) FROM rounds GROUP BY outcome`)
	if err != nil {
		return nil, fmt.Errorf("summarize rounds: %w", err)
	}
	defer rows.Close()

	out := map[string]int{}
	for rows.Next() {
		var outcome string
		var n int
		if err := rows.Scan(&outcome, &n); err != nil {
			return nil, fmt.Errorf("scan summary row: %w", err)
		}
		out[outcome] = n
	}
	return out, rows.Err()
}

// Recent returns up to n rounds, newest first.
func (j *Journal) Recent(ctx context.Context, n int) ([]Entry, error) {
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, offered, offered_qty, wanted, wanted_qty, outcome, state, reason, started_at, finished_at
		FROM rounds ORDER BY finished_at DESC, rowid DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("query rounds: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var id string
		var reason sql.NullString
		var started, finished int64
		if err := rows.Scan(&id, &e.Offered, &e.OfferedQty, &e.Wanted, &e.WantedQty,
			&e.Outcome, &e.State, &reason, &started, &finished); err != nil {
			return nil, fmt.Errorf("scan round row: %w", err)
		}
		if e.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse round id %q: %w", id, err)
		}
		e.Reason = reason.String
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		out = append(out, e)
	}
	return out, rows.Err()
}
