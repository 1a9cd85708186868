package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"

	"liquiditySim/internal/dex"
	"liquiditySim/internal/model"
	"liquiditySim/internal/series"
)

// LoadRawLogs reads an undecoded pool log file. See FromRawLogs.
func LoadRawLogs(path string, opts EventOptions) (*series.Frame, EventStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, EventStats{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return FromRawLogs(file, opts)
}

// FromRawLogs decodes Swap logs and turns them into raw bar rows the same way
// FromTypedEvents does. Removed (reorged) logs and other events are skipped.
func FromRawLogs(r io.Reader, opts EventOptions) (*series.Frame, EventStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	decoder, err := dex.NewSwapDecoder()
	if err != nil {
		return nil, EventStats{}, err
	}

	scanner := bufio.NewScanner(r)
	buf := make([]byte, 0, 64*1024)
	scanner.Buffer(buf, maxLineSize)

	var stats EventStats
	var swaps []swapRow
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.Total++

		var log model.RawLog
		if err := json.Unmarshal(line, &log); err != nil {
			stats.Failed++
			logger.Warn("decode log record", zap.Error(err))
			continue
		}
		if log.Removed || !decoder.CanDecode(log) || !matchesPool(log.Address, opts.Pool) {
			stats.Skipped++
			continue
		}

		data, err := decoder.Decode(log)
		if err == nil {
			var row swapRow
			row, err = swapRowFromData(data, log.Timestamp, log.BlockNumber, log.LogIndex)
			if err == nil {
				swaps = append(swaps, row)
				stats.Swaps++
				continue
			}
		}
		stats.Failed++
		logger.Warn("decode swap log", zap.Error(err), zap.String("tx", log.TxHash), zap.Uint64("log_index", log.LogIndex))
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan input: %w", err)
	}

	frame := swapFrame(swaps)
	logger.Info("logs imported",
		zap.Int("total", stats.Total),
		zap.Int("swaps", stats.Swaps),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return frame, stats, nil
}
