package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"liquiditySim/internal/ledger"
	"liquiditySim/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id          TEXT PRIMARY KEY,
	strategy        TEXT NOT NULL,
	params          TEXT NOT NULL DEFAULT '{}',
	pool_address    TEXT NOT NULL DEFAULT '',
	base_token      TEXT NOT NULL,
	quote_token     TEXT NOT NULL,
	fee_tier        TEXT NOT NULL,
	initial_base    TEXT NOT NULL,
	initial_quote   TEXT NOT NULL,
	started_at      TEXT NOT NULL,
	finished_at     TEXT,
	steps           INTEGER,
	failed_steps    INTEGER,
	action_count    INTEGER,
	final_net_value TEXT
);

CREATE TABLE IF NOT EXISTS backtest_actions (
	run_id              TEXT NOT NULL REFERENCES backtest_runs (run_id) ON DELETE CASCADE,
	seq                 INTEGER NOT NULL,
	kind                TEXT NOT NULL,
	ts                  TEXT NOT NULL,
	base_balance_after  TEXT NOT NULL,
	quote_balance_after TEXT NOT NULL,
	payload             TEXT NOT NULL,
	PRIMARY KEY (run_id, seq)
);

CREATE TABLE IF NOT EXISTS backtest_snapshots (
	run_id            TEXT NOT NULL REFERENCES backtest_runs (run_id) ON DELETE CASCADE,
	step              INTEGER NOT NULL,
	ts                TEXT NOT NULL,
	price             TEXT NOT NULL,
	base_balance      TEXT NOT NULL,
	quote_balance     TEXT NOT NULL,
	base_uncollected  TEXT NOT NULL,
	quote_uncollected TEXT NOT NULL,
	base_in_position  TEXT NOT NULL,
	quote_in_position TEXT NOT NULL,
	position_count    INTEGER NOT NULL,
	net_value         TEXT NOT NULL,
	PRIMARY KEY (run_id, step)
);
`

// Store keeps backtest results in a single SQLite file. Decimals and
// timestamps are stored as text so no precision is lost.
type Store struct {
	db *sql.DB
}

var _ storage.Sink = (*Store)(nil)

// Open opens (or creates) the database at path and applies the schema.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %q: %w", path, err)
	}
	// SQLite has a single writer; one connection also keeps ":memory:" shared.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply sqlite schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// BeginRun inserts the run row, replacing any earlier row with the same id.
func (s *Store) BeginRun(ctx context.Context, run storage.Run) error {
	params := run.Params
	if params == nil {
		params = map[string]string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("marshal run params: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO backtest_runs (
			run_id, strategy, params, pool_address, base_token, quote_token,
			fee_tier, initial_base, initial_quote, started_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id) DO UPDATE SET
			strategy   = excluded.strategy,
			params     = excluded.params,
			started_at = excluded.started_at
	`,
		run.ID.String(), run.Strategy, string(encoded), run.PoolAddress, run.BaseToken, run.QuoteToken,
		run.FeeTier.String(), run.InitialBase.String(), run.InitialQuote.String(), formatTime(run.StartedAt),
	)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// PutActionBatch upserts actions keyed by run and sequence number in one
// transaction.
func (s *Store) PutActionBatch(ctx context.Context, actions []storage.ActionRecord) error {
	if len(actions) == 0 {
		return nil
	}
	return s.inTx(ctx, "insert actions", `
		INSERT INTO backtest_actions (
			run_id, seq, kind, ts, base_balance_after, quote_balance_after, payload
		) VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, seq) DO UPDATE SET
			kind                = excluded.kind,
			ts                  = excluded.ts,
			base_balance_after  = excluded.base_balance_after,
			quote_balance_after = excluded.quote_balance_after,
			payload             = excluded.payload
	`, len(actions), func(i int) ([]any, error) {
		a := actions[i]
		payload, err := json.Marshal(a.Action)
		if err != nil {
			return nil, fmt.Errorf("marshal action %d: %w", a.Seq, err)
		}
		header := a.Action.Header()
		return []any{
			a.RunID.String(), a.Seq, string(a.Kind), formatTime(header.Timestamp),
			header.BaseBalanceAfter.Value.String(), header.QuoteBalanceAfter.Value.String(), string(payload),
		}, nil
	})
}

// PutSnapshotBatch upserts snapshots keyed by run and step in one transaction.
func (s *Store) PutSnapshotBatch(ctx context.Context, snapshots []storage.SnapshotRecord) error {
	if len(snapshots) == 0 {
		return nil
	}
	return s.inTx(ctx, "insert snapshots", `
		INSERT INTO backtest_snapshots (
			run_id, step, ts, price, base_balance, quote_balance,
			base_uncollected, quote_uncollected, base_in_position, quote_in_position,
			position_count, net_value
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(run_id, step) DO UPDATE SET
			ts                = excluded.ts,
			price             = excluded.price,
			base_balance      = excluded.base_balance,
			quote_balance     = excluded.quote_balance,
			base_uncollected  = excluded.base_uncollected,
			quote_uncollected = excluded.quote_uncollected,
			base_in_position  = excluded.base_in_position,
			quote_in_position = excluded.quote_in_position,
			position_count    = excluded.position_count,
			net_value         = excluded.net_value
	`, len(snapshots), func(i int) ([]any, error) {
		snap := snapshots[i]
		return []any{
			snap.RunID.String(), snap.Step, formatTime(snap.Timestamp), snap.Price.String(),
			snap.BaseBalance.String(), snap.QuoteBalance.String(),
			snap.BaseUncollected.String(), snap.QuoteUncollected.String(),
			snap.BaseInPosition.String(), snap.QuoteInPosition.String(),
			snap.PositionCount, snap.NetValue.String(),
		}, nil
	})
}

// EndRun records the run summary.
func (s *Store) EndRun(ctx context.Context, summary storage.RunSummary) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE backtest_runs
		SET finished_at = ?, steps = ?, failed_steps = ?, action_count = ?, final_net_value = ?
		WHERE run_id = ?
	`,
		formatTime(summary.FinishedAt), summary.Steps, summary.FailedSteps, summary.Actions,
		summary.FinalNetValue.String(), summary.RunID.String(),
	)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run %s: run not found", summary.RunID)
	}
	return nil
}

// LoadRun returns the run row for id.
func (s *Store) LoadRun(ctx context.Context, id uuid.UUID) (storage.Run, bool, error) {
	var (
		run                          storage.Run
		params, startedAt            string
		feeTier, initBase, initQuote string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT strategy, params, pool_address, base_token, quote_token,
			fee_tier, initial_base, initial_quote, started_at
		FROM backtest_runs WHERE run_id = ?
	`, id.String()).Scan(&run.Strategy, &params, &run.PoolAddress, &run.BaseToken, &run.QuoteToken,
		&feeTier, &initBase, &initQuote, &startedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return storage.Run{}, false, nil
		}
		return storage.Run{}, false, err
	}

	run.ID = id
	if err := json.Unmarshal([]byte(params), &run.Params); err != nil {
		return storage.Run{}, false, fmt.Errorf("decode run params: %w", err)
	}
	decimals, err := parseDecimals(feeTier, initBase, initQuote)
	if err != nil {
		return storage.Run{}, false, err
	}
	run.FeeTier, run.InitialBase, run.InitialQuote = decimals[0], decimals[1], decimals[2]
	if run.StartedAt, err = time.Parse(time.RFC3339Nano, startedAt); err != nil {
		return storage.Run{}, false, fmt.Errorf("decode started_at: %w", err)
	}
	return run, true, nil
}

// Snapshots returns the stored snapshots of a run ordered by step.
func (s *Store) Snapshots(ctx context.Context, id uuid.UUID) ([]storage.SnapshotRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT step, ts, price, base_balance, quote_balance, base_uncollected, quote_uncollected,
			base_in_position, quote_in_position, position_count, net_value
		FROM backtest_snapshots WHERE run_id = ? ORDER BY step
	`, id.String())
	if err != nil {
		return nil, fmt.Errorf("query snapshots: %w", err)
	}
	defer rows.Close()

	var out []storage.SnapshotRecord
	for rows.Next() {
		var (
			rec    = storage.SnapshotRecord{RunID: id}
			ts     string
			values [8]string
		)
		if err := rows.Scan(&rec.Step, &ts, &values[0], &values[1], &values[2], &values[3], &values[4],
			&values[5], &values[6], &rec.PositionCount, &values[7]); err != nil {
			return nil, fmt.Errorf("scan snapshot: %w", err)
		}
		if rec.Timestamp, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return nil, fmt.Errorf("decode snapshot time: %w", err)
		}
		d, err := parseDecimals(values[:]...)
		if err != nil {
			return nil, err
		}
		rec.Snapshot = ledger.Snapshot{
			Timestamp:        rec.Timestamp,
			Price:            d[0],
			BaseBalance:      d[1],
			QuoteBalance:     d[2],
			BaseUncollected:  d[3],
			QuoteUncollected: d[4],
			BaseInPosition:   d[5],
			QuoteInPosition:  d[6],
			PositionCount:    rec.PositionCount,
			NetValue:         d[7],
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// ActionCount returns how many actions are stored for a run.
func (s *Store) ActionCount(ctx context.Context, id uuid.UUID) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM backtest_actions WHERE run_id = ?`, id.String()).Scan(&n)
	return n, err
}

func (s *Store) inTx(ctx context.Context, op, query string, n int, args func(i int) ([]any, error)) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		values, err := args(i)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, values...); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return tx.Commit()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseDecimals(values ...string) ([]decimal.Decimal, error) {
	out := make([]decimal.Decimal, len(values))
	for i, v := range values {
		d, err := decimal.NewFromString(v)
		if err != nil {
			return nil, fmt.Errorf("decode decimal %q: %w", v, err)
		}
		out[i] = d
	}
	return out, nil
}
