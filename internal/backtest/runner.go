package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquiditySim/internal/ledger"
	"liquiditySim/internal/model"
	"liquiditySim/internal/storage"
)

const defaultBatchSize = 500

// Strategy decides what to do on each bar. Init runs once before the first
// bar; OnBar runs after the market moved to the bar and before fees accrue.
type Strategy interface {
	Name() string
	Init(m *ledger.Market) error
	OnBar(m *ledger.Market, bar model.Bar) error
}

// Options configures a Runner.
type Options struct {
	// StopOnError makes a strategy error end the run instead of only
	// aborting the step.
	StopOnError bool
	// BatchSize is the number of snapshots buffered before flushing to the
	// sink.
	BatchSize int
	Sink      storage.Sink
	Run       storage.Run
	Logger    *zap.Logger
}

// Result is the outcome of a run.
type Result struct {
	Run           storage.Run
	Actions       []model.Action
	Snapshots     []ledger.Snapshot
	Steps         int
	FailedSteps   int
	FinalNetValue decimal.Decimal
}

// Runner replays bars through a strategy on one market.
type Runner struct {
	market   *ledger.Market
	strategy Strategy
	opts     Options
	logger   *zap.Logger

	pendingSnapshots []storage.SnapshotRecord
	flushedActions   int
}

func NewRunner(market *ledger.Market, strategy Strategy, opts Options) *Runner {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = defaultBatchSize
	}
	return &Runner{
		market:   market,
		strategy: strategy,
		opts:     opts,
		logger:   logger,
	}
}

// Run replays bars in order. Bars must have strictly increasing timestamps.
// On cancellation the partial result is returned with the context error.
func (r *Runner) Run(ctx context.Context, bars []model.Bar) (*Result, error) {
	if r.market == nil {
		return nil, fmt.Errorf("market is nil")
	}
	if r.strategy == nil {
		return nil, fmt.Errorf("strategy is nil")
	}
	if err := checkOrder(bars); err != nil {
		return nil, err
	}

	result := &Result{Run: r.opts.Run}
	if r.opts.Sink != nil {
		if err := r.opts.Sink.BeginRun(ctx, r.opts.Run); err != nil {
			return nil, fmt.Errorf("begin run: %w", err)
		}
	}
	if err := r.strategy.Init(r.market); err != nil {
		return nil, fmt.Errorf("init strategy %s: %w", r.strategy.Name(), err)
	}

	started := time.Now()
	var previous *model.Bar
	for i := range bars {
		if err := ctx.Err(); err != nil {
			r.finish(result)
			return result, err
		}
		bar := bars[i]

		r.market.SetStatus(bar.Status(previous))
		if err := r.strategy.OnBar(r.market, bar); err != nil {
			if r.opts.StopOnError {
				r.finish(result)
				return result, fmt.Errorf("bar %s: %w", bar.Timestamp.Format(time.RFC3339), err)
			}
			result.FailedSteps++
			r.logger.Warn("strategy step failed",
				zap.Error(err),
				zap.Time("ts", bar.Timestamp),
				zap.Int("step", i),
			)
		}
		r.market.AccrueFees()

		snapshot, err := r.market.Snapshot(bar.Price)
		if err != nil {
			r.finish(result)
			return result, fmt.Errorf("snapshot at %s: %w", bar.Timestamp.Format(time.RFC3339), err)
		}
		result.Snapshots = append(result.Snapshots, snapshot)
		result.Steps++
		previous = &bars[i]

		if r.opts.Sink != nil {
			r.pendingSnapshots = append(r.pendingSnapshots, storage.SnapshotRecord{RunID: r.opts.Run.ID, Step: i, Snapshot: snapshot})
			if len(r.pendingSnapshots) >= r.opts.BatchSize {
				if err := r.flush(ctx); err != nil {
					return result, err
				}
			}
		}
	}

	r.finish(result)
	if r.opts.Sink != nil {
		if err := r.flush(ctx); err != nil {
			return result, err
		}
		summary := storage.RunSummary{
			RunID:         r.opts.Run.ID,
			Steps:         result.Steps,
			FailedSteps:   result.FailedSteps,
			Actions:       len(result.Actions),
			FinalNetValue: result.FinalNetValue,
			FinishedAt:    time.Now().UTC(),
		}
		if err := r.opts.Sink.EndRun(ctx, summary); err != nil {
			return result, fmt.Errorf("end run: %w", err)
		}
	}

	r.logger.Info("backtest complete",
		zap.String("strategy", r.strategy.Name()),
		zap.Int("steps", result.Steps),
		zap.Int("failed_steps", result.FailedSteps),
		zap.Int("actions", len(result.Actions)),
		zap.String("net_value", result.FinalNetValue.String()),
		zap.Duration("elapsed", time.Since(started)),
	)
	return result, nil
}

func (r *Runner) finish(result *Result) {
	result.Actions = r.market.ActionLog().Actions()
	if n := len(result.Snapshots); n > 0 {
		result.FinalNetValue = result.Snapshots[n-1].NetValue
	}
}

func (r *Runner) flush(ctx context.Context) error {
	actions := r.market.ActionLog().Since(r.flushedActions)
	if err := r.opts.Sink.PutActionBatch(ctx, storage.NewActionRecords(r.opts.Run.ID, r.flushedActions, actions)); err != nil {
		return fmt.Errorf("write actions: %w", err)
	}
	r.flushedActions += len(actions)

	if err := r.opts.Sink.PutSnapshotBatch(ctx, r.pendingSnapshots); err != nil {
		return fmt.Errorf("write snapshots: %w", err)
	}
	r.pendingSnapshots = nil
	return nil
}

func checkOrder(bars []model.Bar) error {
	for i := 1; i < len(bars); i++ {
		if !bars[i].Timestamp.After(bars[i-1].Timestamp) {
			return fmt.Errorf("bars out of order at %d: %s after %s",
				i, bars[i].Timestamp.Format(time.RFC3339), bars[i-1].Timestamp.Format(time.RFC3339))
		}
	}
	return nil
}
