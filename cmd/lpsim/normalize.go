package main

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquiditySim/internal/config"
	"liquiditySim/internal/series"
	"liquiditySim/internal/source"
	"liquiditySim/internal/storage"
	"liquiditySim/internal/unimath"
)

func runNormalize(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadNormalize(cfgFile, cmd.Flags())
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
	raw, rules, err := loadFrame(cfg.In, cfg.Format, cfg.Pool, logger)
	if err != nil {
		return fmt.Errorf("load data: %w", err)
	}
	frame, bars, err := series.Normalize(raw, cfg.Window, rules, pool, unimath.PriceConverter{Pool: pool})
	if err != nil {
		return fmt.Errorf("normalize: %w", err)
	}

	if strings.EqualFold(filepath.Ext(cfg.Out), ".csv") {
		err = source.SaveCSV(cfg.Out, frame)
	} else {
		err = storage.NewJsonlStorage(cfg.Out).PutBars(bars)
	}
	if err != nil {
		return err
	}

	logger.Info("normalize complete",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.Int("rows", raw.Len()),
		zap.Int("bars", len(bars)),
		zap.Duration("window", cfg.Window),
	)
	return nil
}
