package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"liquiditySim/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS backtest_runs (
	run_id UUID PRIMARY KEY,
	strategy TEXT NOT NULL,
	params JSONB NOT NULL DEFAULT '{}',
	pool_address TEXT NOT NULL DEFAULT '',
	base_token TEXT NOT NULL,
	quote_token TEXT NOT NULL,
	fee_tier NUMERIC NOT NULL,
	initial_base NUMERIC NOT NULL,
	initial_quote NUMERIC NOT NULL,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ,
	steps INTEGER,
	failed_steps INTEGER,
	action_count INTEGER,
	final_net_value NUMERIC
);
CREATE TABLE IF NOT EXISTS backtest_actions (
	run_id UUID NOT NULL REFERENCES backtest_runs (run_id) ON DELETE CASCADE,
	seq INTEGER NOT NULL,
	kind TEXT NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	base_balance_after NUMERIC NOT NULL,
	quote_balance_after NUMERIC NOT NULL,
	payload JSONB NOT NULL,
	PRIMARY KEY (run_id, seq)
);
CREATE TABLE IF NOT EXISTS backtest_snapshots (
	run_id UUID NOT NULL REFERENCES backtest_runs (run_id) ON DELETE CASCADE,
	step INTEGER NOT NULL,
	ts TIMESTAMPTZ NOT NULL,
	price NUMERIC NOT NULL,
	base_balance NUMERIC NOT NULL,
	quote_balance NUMERIC NOT NULL,
	base_uncollected NUMERIC NOT NULL,
	quote_uncollected NUMERIC NOT NULL,
	base_in_position NUMERIC NOT NULL,
	quote_in_position NUMERIC NOT NULL,
	position_count INTEGER NOT NULL,
	net_value NUMERIC NOT NULL,
	PRIMARY KEY (run_id, step)
);
`

// Store persists backtest runs, their actions and snapshots in Postgres.
type Store struct {
	pool       *pgxpool.Pool
	retries    int
	retryDelay time.Duration
}

var _ storage.Sink = (*Store)(nil)

func NewStore(ctx context.Context, dsn string, opts ...Option) (*Store, error) {
	if dsn == "" {
		return nil, fmt.Errorf("pg dsn is required")
	}
	s := &Store{retries: defaultConnectRetries, retryDelay: defaultRetryDelay}
	for _, opt := range opts {
		opt(s)
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, err
	}
	if err := withRetry(ctx, s.retries, s.retryDelay, pool.Ping); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	s.pool = pool
	return s, nil
}

// Option configures a Store.
type Option func(*Store)

// WithRetry sets how often connecting and schema setup are retried.
func WithRetry(maxRetries int, baseDelay time.Duration) Option {
	return func(s *Store) {
		s.retries = maxRetries
		s.retryDelay = baseDelay
	}
}

func (s *Store) Close() {
	if s.pool != nil {
		s.pool.Close()
	}
}

// EnsureSchema creates the result tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	err := withRetry(ctx, s.retries, s.retryDelay, func(ctx context.Context) error {
		_, err := s.pool.Exec(ctx, schema)
		return err
	})
	if err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// BeginRun inserts the run row, replacing any earlier row with the same id.
func (s *Store) BeginRun(ctx context.Context, run storage.Run) error {
	args, err := runArgs(run)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO backtest_runs (
			run_id, strategy, params, pool_address, base_token, quote_token,
			fee_tier, initial_base, initial_quote, started_at
		) VALUES ($1::uuid, $2, $3::jsonb, $4, $5, $6, $7::numeric, $8::numeric, $9::numeric, $10)
		ON CONFLICT (run_id)
		DO UPDATE SET
			strategy = EXCLUDED.strategy,
			params = EXCLUDED.params,
			started_at = EXCLUDED.started_at
	`, args...)
	if err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

// PutActionBatch upserts actions keyed by run and sequence number.
func (s *Store) PutActionBatch(ctx context.Context, actions []storage.ActionRecord) error {
	if len(actions) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, a := range actions {
		args, err := actionArgs(a)
		if err != nil {
			return err
		}
		batch.Queue(`
			INSERT INTO backtest_actions (
				run_id, seq, kind, ts, base_balance_after, quote_balance_after, payload
			) VALUES ($1::uuid, $2, $3, $4, $5::numeric, $6::numeric, $7::jsonb)
			ON CONFLICT (run_id, seq)
			DO UPDATE SET
				kind = EXCLUDED.kind,
				ts = EXCLUDED.ts,
				base_balance_after = EXCLUDED.base_balance_after,
				quote_balance_after = EXCLUDED.quote_balance_after,
				payload = EXCLUDED.payload
		`, args...)
	}
	return s.sendBatch(ctx, batch, len(actions), "insert actions")
}

// PutSnapshotBatch upserts snapshots keyed by run and step.
func (s *Store) PutSnapshotBatch(ctx context.Context, snapshots []storage.SnapshotRecord) error {
	if len(snapshots) == 0 {
		return nil
	}
	batch := &pgx.Batch{}
	for _, snap := range snapshots {
		batch.Queue(`
			INSERT INTO backtest_snapshots (
				run_id, step, ts, price, base_balance, quote_balance,
				base_uncollected, quote_uncollected, base_in_position, quote_in_position,
				position_count, net_value
			) VALUES ($1::uuid,$2,$3,$4::numeric,$5::numeric,$6::numeric,$7::numeric,$8::numeric,$9::numeric,$10::numeric,$11,$12::numeric)
			ON CONFLICT (run_id, step)
			DO UPDATE SET
				ts = EXCLUDED.ts,
				price = EXCLUDED.price,
				base_balance = EXCLUDED.base_balance,
				quote_balance = EXCLUDED.quote_balance,
				base_uncollected = EXCLUDED.base_uncollected,
				quote_uncollected = EXCLUDED.quote_uncollected,
				base_in_position = EXCLUDED.base_in_position,
				quote_in_position = EXCLUDED.quote_in_position,
				position_count = EXCLUDED.position_count,
				net_value = EXCLUDED.net_value
		`, snapshotArgs(snap)...)
	}
	return s.sendBatch(ctx, batch, len(snapshots), "insert snapshots")
}

// EndRun records the run summary.
func (s *Store) EndRun(ctx context.Context, summary storage.RunSummary) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE backtest_runs
		SET finished_at = $2, steps = $3, failed_steps = $4, action_count = $5, final_net_value = $6::numeric
		WHERE run_id = $1::uuid
	`, summaryArgs(summary)...)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("finish run %s: run not found", summary.RunID)
	}
	return nil
}

// LoadRun returns the run row for id.
func (s *Store) LoadRun(ctx context.Context, id uuid.UUID) (storage.Run, bool, error) {
	var (
		run       storage.Run
		params    []byte
		feeTier   string
		initBase  string
		initQuote string
	)
	row := s.pool.QueryRow(ctx, `
		SELECT strategy, params::text, pool_address, base_token, quote_token,
			fee_tier::text, initial_base::text, initial_quote::text, started_at
		FROM backtest_runs WHERE run_id = $1::uuid
	`, id.String())
	err := row.Scan(&run.Strategy, &params, &run.PoolAddress, &run.BaseToken, &run.QuoteToken,
		&feeTier, &initBase, &initQuote, &run.StartedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return storage.Run{}, false, nil
		}
		return storage.Run{}, false, err
	}
	run.ID = id
	if err := decodeRunColumns(&run, params, feeTier, initBase, initQuote); err != nil {
		return storage.Run{}, false, err
	}
	return run, true, nil
}

func (s *Store) sendBatch(ctx context.Context, batch *pgx.Batch, n int, op string) error {
	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < n; i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}
	return nil
}

func runArgs(run storage.Run) ([]any, error) {
	params := run.Params
	if params == nil {
		params = map[string]string{}
	}
	encoded, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal run params: %w", err)
	}
	return []any{
		run.ID.String(),
		run.Strategy,
		string(encoded),
		run.PoolAddress,
		run.BaseToken,
		run.QuoteToken,
		run.FeeTier.String(),
		run.InitialBase.String(),
		run.InitialQuote.String(),
		run.StartedAt,
	}, nil
}

func actionArgs(a storage.ActionRecord) ([]any, error) {
	payload, err := json.Marshal(a.Action)
	if err != nil {
		return nil, fmt.Errorf("marshal action %d: %w", a.Seq, err)
	}
	header := a.Action.Header()
	return []any{
		a.RunID.String(),
		a.Seq,
		string(a.Kind),
		header.Timestamp,
		header.BaseBalanceAfter.Value.String(),
		header.QuoteBalanceAfter.Value.String(),
		string(payload),
	}, nil
}

func snapshotArgs(s storage.SnapshotRecord) []any {
	return []any{
		s.RunID.String(),
		s.Step,
		s.Timestamp,
		s.Price.String(),
		s.BaseBalance.String(),
		s.QuoteBalance.String(),
		s.BaseUncollected.String(),
		s.QuoteUncollected.String(),
		s.BaseInPosition.String(),
		s.QuoteInPosition.String(),
		s.PositionCount,
		s.NetValue.String(),
	}
}

func summaryArgs(s storage.RunSummary) []any {
	return []any{
		s.RunID.String(),
		s.FinishedAt,
		s.Steps,
		s.FailedSteps,
		s.Actions,
		s.FinalNetValue.String(),
	}
}

func decodeRunColumns(run *storage.Run, params []byte, feeTier, initialBase, initialQuote string) error {
	if len(params) > 0 {
		if err := json.Unmarshal(params, &run.Params); err != nil {
			return fmt.Errorf("decode run params: %w", err)
		}
	}
	var err error
	if run.FeeTier, err = decimal.NewFromString(feeTier); err != nil {
		return fmt.Errorf("decode fee tier: %w", err)
	}
	if run.InitialBase, err = decimal.NewFromString(initialBase); err != nil {
		return fmt.Errorf("decode initial base: %w", err)
	}
	if run.InitialQuote, err = decimal.NewFromString(initialQuote); err != nil {
		return fmt.Errorf("decode initial quote: %w", err)
	}
	return nil
}
