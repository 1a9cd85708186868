package main

import (
	"errors"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "lpsim",
		Short:        "Uniswap V3 liquidity backtester",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			envFile, _ := cmd.Flags().GetString("env-file")
			return loadEnvFile(envFile)
		},
	}

	root.PersistentFlags().String("config", "", "config file path")
	root.PersistentFlags().String("env-file", ".env", "dotenv file with LPSIM_* variables (ignored when missing)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Run a strategy over pool data",
		RunE:  runBacktest,
	}

	runCmd.Flags().String("data", "", "input data path")
	runCmd.Flags().String("format", "csv", "input format (csv, jsonl, events, logs)")
	runCmd.Flags().String("window", "1m", "bar width (e.g. 1m, 1h)")
	runCmd.Flags().String("from", "", "first bar timestamp (unix seconds or RFC3339)")
	runCmd.Flags().String("to", "", "last bar timestamp (unix seconds or RFC3339)")
	addPoolFlags(runCmd)
	runCmd.Flags().String("strategy", "fixed_range", "strategy name")
	runCmd.Flags().StringSlice("param", nil, "strategy parameters (comma-separated key=value)")
	runCmd.Flags().String("initial-base", "0", "initial base token balance")
	runCmd.Flags().String("initial-quote", "0", "initial quote token balance")
	runCmd.Flags().String("dust-tolerance", "0.00001", "relative debit tolerance")
	runCmd.Flags().String("out", "", "output directory for runs/actions/snapshots JSONL")
	runCmd.Flags().String("pg-dsn", "", "Postgres DSN for results")
	runCmd.Flags().Int("pg-retries", 3, "connection retries for Postgres")
	runCmd.Flags().String("sqlite", "", "SQLite file for results")
	runCmd.Flags().Int("batch-size", 500, "snapshots per sink write")
	runCmd.Flags().Bool("stop-on-error", false, "abort the run on the first strategy error")
	runCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(runCmd)

	normalizeCmd := &cobra.Command{
		Use:   "normalize",
		Short: "Resample and fill raw pool data into bars",
		RunE:  runNormalize,
	}

	normalizeCmd.Flags().String("in", "", "input data path")
	normalizeCmd.Flags().String("out", "./data/bars.jsonl", "output path (.csv writes a frame, anything else JSONL bars)")
	normalizeCmd.Flags().String("format", "csv", "input format (csv, jsonl, events, logs)")
	normalizeCmd.Flags().String("window", "1m", "bar width (e.g. 1m, 1h)")
	addPoolFlags(normalizeCmd)
	normalizeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(normalizeCmd)

	importCmd := &cobra.Command{
		Use:   "import-events",
		Short: "Convert Swap events or raw pool logs into raw bar CSV",
		RunE:  runImport,
	}

	importCmd.Flags().String("in", "", "input events or logs JSONL")
	importCmd.Flags().String("format", "events", "input format (events, logs)")
	importCmd.Flags().String("out", "./data/raw.csv", "output CSV path")
	importCmd.Flags().String("pool-address", "", "keep only events from this pool")
	importCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")

	root.AddCommand(importCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPoolFlags(cmd *cobra.Command) {
	cmd.Flags().String("pool-address", "", "pool contract address")
	cmd.Flags().String("token0", "", "token0 symbol")
	cmd.Flags().Int32("token0-decimals", 18, "token0 decimals")
	cmd.Flags().String("token1", "", "token1 symbol")
	cmd.Flags().Int32("token1-decimals", 18, "token1 decimals")
	cmd.Flags().String("fee-tier", "0.3", "fee tier in percent (0.01, 0.05, 0.3, 1)")
	cmd.Flags().String("base-token", "", "token prices are quoted in (defaults to token0)")
}

func loadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
