package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquiditySim/internal/backtest"
	"liquiditySim/internal/config"
	"liquiditySim/internal/ledger"
	"liquiditySim/internal/model"
	"liquiditySim/internal/series"
	"liquiditySim/internal/storage"
	"liquiditySim/internal/storage/postgres"
	"liquiditySim/internal/storage/sqlite"
	"liquiditySim/internal/strategy"
	"liquiditySim/internal/unimath"
)

func runBacktest(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadRun(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	pool, err := cfg.Pool.Pool()
	if err != nil {
		return fmt.Errorf("pool: %w", err)
	}
	strat, err := strategy.New(cfg.Strategy, cfg.StrategyParams)
	if err != nil {
		return err
	}

	raw, rules, err := loadFrame(cfg.Data, cfg.Format, cfg.Pool, logger)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	_, bars, err := series.Normalize(raw, cfg.Window, rules, pool, unimath.PriceConverter{Pool: pool})
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}
	bars = clipBars(bars, cfg.From, cfg.To)
	if len(bars) == 0 {
		return fmt.Errorf("no bars in range")
	}

	market := ledger.NewMarket(pool,
		ledger.WithLogger(logger),
		ledger.WithAssetOptions(ledger.WithDustTolerance(cfg.DustTolerance)),
	)
	if err := market.SetBalance(pool.BaseToken, cfg.InitialBase); err != nil {
		return err
	}
	if err := market.SetBalance(pool.QuoteToken(), cfg.InitialQuote); err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var sinks storage.Tee
	if cfg.Out != "" {
		sinks = append(sinks, storage.NewJsonlSink(cfg.Out))
	}
	if cfg.PGDSN != "" {
		store, err := postgres.NewStore(ctx, cfg.PGDSN, postgres.WithRetry(cfg.PGRetries, 0))
		if err != nil {
			return fmt.Errorf("connect postgres: %w", err)
		}
		defer store.Close()
		if err := store.EnsureSchema(ctx); err != nil {
			return err
		}
		sinks = append(sinks, store)
	}
	if cfg.SQLitePath != "" {
		store, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer store.Close()
		sinks = append(sinks, store)
	}

	run := storage.NewRun(cfg.Strategy, cfg.StrategyParams, pool, cfg.InitialBase, cfg.InitialQuote)
	opts := backtest.Options{
		StopOnError: cfg.StopOnError,
		BatchSize:   cfg.BatchSize,
		Run:         run,
		Logger:      logger,
	}
	if len(sinks) > 0 {
		opts.Sink = sinks
	}

	logger.Info("backtest start",
		zap.String("run_id", run.ID.String()),
		zap.Stringer("pool", pool),
		zap.String("strategy", cfg.Strategy),
		zap.Int("bars", len(bars)),
		zap.Time("first", bars[0].Timestamp),
		zap.Time("last", bars[len(bars)-1].Timestamp),
		zap.Duration("window", cfg.Window),
		zap.String("out", cfg.Out),
		zap.Bool("postgres", cfg.PGDSN != ""),
	)

	result, err := backtest.NewRunner(market, strat, opts).Run(ctx, bars)
	if err != nil {
		return err
	}

	initial := cfg.InitialBase.Add(cfg.InitialQuote.Mul(bars[0].Price))
	logger.Info("backtest result",
		zap.String("run_id", run.ID.String()),
		zap.String("initial_net_value", initial.String()),
		zap.String("final_net_value", result.FinalNetValue.String()),
		zap.Int("positions", market.Positions().Len()),
	)
	return nil
}

// clipBars keeps bars within [from, to]; zero bounds are open.
func clipBars(bars []model.Bar, from, to uint64) []model.Bar {
	out := make([]model.Bar, 0, len(bars))
	for _, b := range bars {
		ts := b.Timestamp.Unix()
		if from != 0 && ts < int64(from) {
			continue
		}
		if to != 0 && ts > int64(to) {
			continue
		}
		out = append(out, b)
	}
	return out
}
