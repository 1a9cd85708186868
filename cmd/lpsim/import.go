package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"liquiditySim/internal/config"
	"liquiditySim/internal/source"
)

func runImport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadImport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	frame, stats, err := loadSwaps(cfg.In, cfg.Format, cfg.PoolAddress, logger)
	if err != nil {
		return err
	}
	if err := source.SaveCSV(cfg.Out, frame); err != nil {
		return err
	}

	logger.Info("import complete",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("format", cfg.Format),
		zap.Int("swaps", stats.Swaps),
		zap.Int("failed", stats.Failed),
	)
	return nil
}
