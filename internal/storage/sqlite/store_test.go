package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"liquiditySim/internal/ledger"
	"liquiditySim/internal/model"
	"liquiditySim/internal/storage"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testRun() storage.Run {
	return storage.Run{
		ID:           uuid.New(),
		Strategy:     "fixed_range",
		Params:       map[string]string{"lower_price": "1800"},
		BaseToken:    "usdc",
		QuoteToken:   "eth",
		FeeTier:      decimal.RequireFromString("0.05"),
		InitialBase:  decimal.NewFromInt(10000),
		InitialQuote: decimal.RequireFromString("1.5"),
		StartedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestStoreRoundTripsRun(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()

	require.NoError(t, s.BeginRun(ctx, run))
	// Beginning the same run again replaces it.
	require.NoError(t, s.BeginRun(ctx, run))

	got, ok, err := s.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.Strategy, got.Strategy)
	assert.Equal(t, run.Params, got.Params)
	assert.True(t, run.FeeTier.Equal(got.FeeTier))
	assert.True(t, run.InitialQuote.Equal(got.InitialQuote))
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	_, ok, err = s.LoadRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestStoreBatches(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	run := testRun()
	require.NoError(t, s.BeginRun(ctx, run))

	ts := run.StartedAt.Add(time.Minute)
	header := model.ActionHeader{
		Timestamp:         ts,
		BaseBalanceAfter:  model.Amount{Value: decimal.NewFromInt(9000), Unit: "usdc"},
		QuoteBalanceAfter: model.Amount{Value: decimal.NewFromInt(2), Unit: "eth"},
	}
	actions := []model.Action{
		&model.BuyAction{ActionHeader: header, Amount: model.Amount{Value: decimal.RequireFromString("0.5"), Unit: "eth"}},
		&model.CollectFeeAction{ActionHeader: header},
	}
	require.NoError(t, s.PutActionBatch(ctx, storage.NewActionRecords(run.ID, 0, actions)))
	// Re-sending the same sequence numbers updates in place.
	require.NoError(t, s.PutActionBatch(ctx, storage.NewActionRecords(run.ID, 0, actions)))
	require.NoError(t, s.PutActionBatch(ctx, nil))

	n, err := s.ActionCount(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	snaps := []storage.SnapshotRecord{
		{RunID: run.ID, Step: 1, Snapshot: ledger.Snapshot{Timestamp: ts.Add(time.Minute), Price: decimal.NewFromInt(2001), NetValue: decimal.RequireFromString("13001.5")}},
		{RunID: run.ID, Step: 0, Snapshot: ledger.Snapshot{Timestamp: ts, Price: decimal.NewFromInt(2000), PositionCount: 1, NetValue: decimal.NewFromInt(13000)}},
	}
	require.NoError(t, s.PutSnapshotBatch(ctx, snaps))

	got, err := s.Snapshots(ctx, run.ID)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, 0, got[0].Step)
	assert.Equal(t, 1, got[0].PositionCount)
	assert.True(t, got[0].Timestamp.Equal(ts))
	assert.True(t, got[1].NetValue.Equal(decimal.RequireFromString("13001.5")))

	require.NoError(t, s.EndRun(ctx, storage.RunSummary{RunID: run.ID, Steps: 2, Actions: 2, FinalNetValue: decimal.NewFromInt(13001), FinishedAt: ts}))
	assert.Error(t, s.EndRun(ctx, storage.RunSummary{RunID: uuid.New()}))
}

func TestOpenCreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.db")
	s, err := Open(path)
	require.NoError(t, err)
	require.NoError(t, s.BeginRun(context.Background(), testRun()))
	require.NoError(t, s.Close())

	s, err = Open(path)
	require.NoError(t, err)
	defer s.Close()
}
