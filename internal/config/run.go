package config

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
)

// Input formats accepted by the run and normalize commands.
const (
	FormatCSV    = "csv"
	FormatJSONL  = "jsonl"
	FormatEvents = "events"
	FormatLogs   = "logs"
)

// RunConfig holds configuration for a backtest run.
type RunConfig struct {
	Data           string
	Format         string
	Window         time.Duration
	From           uint64
	To             uint64
	Pool           PoolConfig
	Strategy       string
	StrategyParams map[string]string
	InitialBase    decimal.Decimal
	InitialQuote   decimal.Decimal
	DustTolerance  decimal.Decimal
	Out            string
	PGDSN          string
	PGRetries      int
	SQLitePath     string
	BatchSize      int
	StopOnError    bool
	LogLevel       string
}

// LoadRun merges config file, environment variables, and flags into RunConfig.
func LoadRun(cfgFile string, flags *pflag.FlagSet) (RunConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"format":         FormatCSV,
		"window":         "1m",
		"strategy":       "fixed_range",
		"initial-base":   "0",
		"initial-quote":  "0",
		"dust-tolerance": "0.00001",
		"batch-size":     500,
		"pg-retries":     3,
	})
	if err != nil {
		return RunConfig{}, err
	}

	window, err := getDuration(v, "window")
	if err != nil {
		return RunConfig{}, err
	}
	from, err := ParseTimestamp(v.GetString("from"))
	if err != nil {
		return RunConfig{}, fmt.Errorf("from: %w", err)
	}
	to, err := ParseTimestamp(v.GetString("to"))
	if err != nil {
		return RunConfig{}, fmt.Errorf("to: %w", err)
	}
	if to != 0 && to < from {
		return RunConfig{}, fmt.Errorf("to %d is before from %d", to, from)
	}

	amounts := make(map[string]decimal.Decimal, 3)
	for _, key := range []string{"initial-base", "initial-quote", "dust-tolerance"} {
		d, err := decimal.NewFromString(v.GetString(key))
		if err != nil {
			return RunConfig{}, fmt.Errorf("%s: %w", key, err)
		}
		if d.IsNegative() {
			return RunConfig{}, fmt.Errorf("%s must be non-negative", key)
		}
		amounts[key] = d
	}

	cfg := RunConfig{
		Data:           v.GetString("data"),
		Format:         v.GetString("format"),
		Window:         window,
		From:           from,
		To:             to,
		Pool:           loadPool(v),
		Strategy:       v.GetString("strategy"),
		StrategyParams: getStringMap(v, "param"),
		InitialBase:    amounts["initial-base"],
		InitialQuote:   amounts["initial-quote"],
		DustTolerance:  amounts["dust-tolerance"],
		Out:            v.GetString("out"),
		PGDSN:          v.GetString("pg-dsn"),
		PGRetries:      v.GetInt("pg-retries"),
		SQLitePath:     v.GetString("sqlite"),
		BatchSize:      v.GetInt("batch-size"),
		StopOnError:    v.GetBool("stop-on-error"),
		LogLevel:       v.GetString("log-level"),
	}
	if err := checkFormat(cfg.Format); err != nil {
		return RunConfig{}, err
	}

	return cfg, nil
}

func checkFormat(format string) error {
	switch format {
	case FormatCSV, FormatJSONL, FormatEvents, FormatLogs:
		return nil
	}
	return fmt.Errorf("unknown format %q (csv, jsonl, events, logs)", format)
}
