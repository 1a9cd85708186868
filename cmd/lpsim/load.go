package main

import (
	"fmt"

	"go.uber.org/zap"

	"liquiditySim/internal/config"
	"liquiditySim/internal/series"
	"liquiditySim/internal/source"
)

// loadFrame reads raw rows in the given format and returns them with the
// resampling rules that fit the format.
func loadFrame(path, format string, pool config.PoolConfig, logger *zap.Logger) (*series.Frame, series.ColumnRules, error) {
	if path == "" {
		return nil, nil, fmt.Errorf("input path is required")
	}
	switch format {
	case config.FormatCSV:
		f, err := source.LoadCSV(path)
		return f, series.UniswapV3Rules(), err
	case config.FormatJSONL:
		f, err := source.LoadJSONL(path)
		return f, series.UniswapV3Rules(), err
	case config.FormatEvents, config.FormatLogs:
		f, _, err := loadSwaps(path, format, pool.Address, logger)
		return f, series.SwapEventRules(), err
	}
	return nil, nil, fmt.Errorf("unknown format %q", format)
}

// loadSwaps reads swap events, either typed or as raw pool logs.
func loadSwaps(path, format, poolAddress string, logger *zap.Logger) (*series.Frame, source.EventStats, error) {
	opts := source.EventOptions{Logger: logger}
	if poolAddress != "" {
		addr, err := config.ParseAddress(poolAddress)
		if err != nil {
			return nil, source.EventStats{}, err
		}
		opts.Pool = &addr
	}
	if format == config.FormatLogs {
		return source.LoadRawLogs(path, opts)
	}
	return source.LoadTypedEvents(path, opts)
}
