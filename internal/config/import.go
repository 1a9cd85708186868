package config

import (
	"fmt"

	"github.com/spf13/pflag"
)

// ImportConfig holds configuration for the import-events command.
type ImportConfig struct {
	In          string
	Format      string
	Out         string
	PoolAddress string
	LogLevel    string
}

// LoadImport merges config file, environment variables, and flags into ImportConfig.
func LoadImport(cfgFile string, flags *pflag.FlagSet) (ImportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]any{
		"out":    "./data/raw.csv",
		"format": FormatEvents,
	})
	if err != nil {
		return ImportConfig{}, err
	}

	cfg := ImportConfig{
		In:          v.GetString("in"),
		Format:      v.GetString("format"),
		Out:         v.GetString("out"),
		PoolAddress: v.GetString("pool-address"),
		LogLevel:    v.GetString("log-level"),
	}
	if cfg.Format != FormatEvents && cfg.Format != FormatLogs {
		return ImportConfig{}, fmt.Errorf("import format must be %s or %s, got %q", FormatEvents, FormatLogs, cfg.Format)
	}
	return cfg, nil
}
