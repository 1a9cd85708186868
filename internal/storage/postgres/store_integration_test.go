//go:build integration

package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"liquiditySim/internal/ledger"
	"liquiditySim/internal/model"
	"liquiditySim/internal/storage"
)

// setupStore starts a throwaway Postgres container and returns a store with
// the schema applied.
func setupStore(t *testing.T) *Store {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:15-alpine",
		tcpostgres.WithDatabase("lpsim"),
		tcpostgres.WithUsername("test"),
		tcpostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	require.NoError(t, err, "start postgres container")
	t.Cleanup(func() {
		if err := container.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	store, err := NewStore(ctx, dsn, WithRetry(5, 100*time.Millisecond))
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.EnsureSchema(ctx))
	return store
}

func TestStoreIntegration(t *testing.T) {
	store := setupStore(t)
	ctx := context.Background()

	run := storage.Run{
		ID:           uuid.New(),
		Strategy:     "periodic_rebalance",
		Params:       map[string]string{"interval": "1h"},
		BaseToken:    "usdc",
		QuoteToken:   "eth",
		FeeTier:      decimal.RequireFromString("0.05"),
		InitialBase:  decimal.NewFromInt(1000),
		InitialQuote: decimal.Zero,
		StartedAt:    time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
	}
	require.NoError(t, store.BeginRun(ctx, run))

	header := model.ActionHeader{Timestamp: run.StartedAt, BaseBalanceAfter: model.Amount{Value: decimal.NewFromInt(1000)}}
	actions := storage.NewActionRecords(run.ID, 0, []model.Action{&model.CollectFeeAction{ActionHeader: header}})
	require.NoError(t, store.PutActionBatch(ctx, actions))
	require.NoError(t, store.PutActionBatch(ctx, actions))

	snaps := []storage.SnapshotRecord{{RunID: run.ID, Step: 0, Snapshot: ledger.Snapshot{Timestamp: run.StartedAt, NetValue: decimal.NewFromInt(1000)}}}
	require.NoError(t, store.PutSnapshotBatch(ctx, snaps))
	require.NoError(t, store.EndRun(ctx, storage.RunSummary{RunID: run.ID, Steps: 1, Actions: 1, FinalNetValue: decimal.NewFromInt(1000), FinishedAt: run.StartedAt}))

	got, ok, err := store.LoadRun(ctx, run.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, run.Params, got.Params)
	assert.True(t, run.FeeTier.Equal(got.FeeTier))
	assert.True(t, run.StartedAt.Equal(got.StartedAt))

	_, ok, err = store.LoadRun(ctx, uuid.New())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Error(t, store.EndRun(ctx, storage.RunSummary{RunID: uuid.New()}))
}
