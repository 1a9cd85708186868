package config

import (
	"time"

	"github.com/spf13/pflag"
)

// NormalizeConfig holds configuration for the normalize command.
type NormalizeConfig struct {
	In       string
	Out      string
	Format   string
	Window   time.Duration
	Pool     PoolConfig
	LogLevel string
}

// LoadNormalize merges config file, environment variables, and flags into NormalizeConfig.
func LoadNormalize(cfgFile string, flags *pflag.FlagSet) (NormalizeConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"format": FormatCSV,
		"window": "1m",
		"out":    "./data/bars.jsonl",
	})
	if err != nil {
		return NormalizeConfig{}, err
	}

	window, err := getDuration(v, "window")
	if err != nil {
		return NormalizeConfig{}, err
	}

	cfg := NormalizeConfig{
		In:       v.GetString("in"),
		Out:      v.GetString("out"),
		Format:   v.GetString("format"),
		Window:   window,
		Pool:     loadPool(v),
		LogLevel: v.GetString("log-level"),
	}
	if err := checkFormat(cfg.Format); err != nil {
		return NormalizeConfig{}, err
	}
	return cfg, nil
}
