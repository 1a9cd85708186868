package storage

import (
	"context"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"liquiditySim/internal/ledger"
	"liquiditySim/internal/model"
)

// Sink receives the output of a backtest run as it is produced.
type Sink interface {
	BeginRun(ctx context.Context, run Run) error
	PutActionBatch(ctx context.Context, actions []ActionRecord) error
	PutSnapshotBatch(ctx context.Context, snapshots []SnapshotRecord) error
	EndRun(ctx context.Context, summary RunSummary) error
}

// Run describes a backtest run.
type Run struct {
	ID           uuid.UUID         `json:"id"`
	Strategy     string            `json:"strategy"`
	Params       map[string]string `json:"params,omitempty"`
	PoolAddress  string            `json:"pool_address,omitempty"`
	BaseToken    string            `json:"base_token"`
	QuoteToken   string            `json:"quote_token"`
	FeeTier      decimal.Decimal   `json:"fee_tier"`
	InitialBase  decimal.Decimal   `json:"initial_base"`
	InitialQuote decimal.Decimal   `json:"initial_quote"`
	StartedAt    time.Time         `json:"started_at"`
}

// NewRun builds a Run with a fresh identifier for pool.
func NewRun(strategy string, params map[string]string, pool model.Pool, initialBase, initialQuote decimal.Decimal) Run {
	run := Run{
		ID:           uuid.New(),
		Strategy:     strategy,
		Params:       params,
		BaseToken:    pool.BaseToken.Name,
		QuoteToken:   pool.QuoteToken().Name,
		FeeTier:      pool.FeeTier,
		InitialBase:  initialBase,
		InitialQuote: initialQuote,
		StartedAt:    time.Now().UTC(),
	}
	if pool.Address != (common.Address{}) {
		run.PoolAddress = pool.Address.Hex()
	}
	return run
}

// RunSummary closes a run.
type RunSummary struct {
	RunID         uuid.UUID       `json:"run_id"`
	Steps         int             `json:"steps"`
	FailedSteps   int             `json:"failed_steps"`
	Actions       int             `json:"actions"`
	FinalNetValue decimal.Decimal `json:"final_net_value"`
	FinishedAt    time.Time       `json:"finished_at"`
}

// ActionRecord is one action of a run with its position in the action log.
type ActionRecord struct {
	RunID  uuid.UUID        `json:"run_id"`
	Seq    int              `json:"seq"`
	Kind   model.ActionKind `json:"kind"`
	Action model.Action     `json:"action"`
}

// NewActionRecords numbers actions starting at firstSeq.
func NewActionRecords(runID uuid.UUID, firstSeq int, actions []model.Action) []ActionRecord {
	out := make([]ActionRecord, 0, len(actions))
	for i, a := range actions {
		out = append(out, ActionRecord{RunID: runID, Seq: firstSeq + i, Kind: a.Kind(), Action: a})
	}
	return out
}

// SnapshotRecord is the account snapshot taken after one bar.
type SnapshotRecord struct {
	RunID uuid.UUID `json:"run_id"`
	Step  int       `json:"step"`
	ledger.Snapshot
}
