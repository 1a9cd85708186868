package source

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"math/big"
	"os"
	"sort"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"liquiditySim/internal/model"
	"liquiditySim/internal/series"
)

const swapEventName = "Swap"

// EventOptions controls typed event import.
type EventOptions struct {
	// Pool keeps only events emitted by this address when set.
	Pool   *common.Address
	Logger *zap.Logger
}

// EventStats counts the lines seen by an import.
type EventStats struct {
	Total   int
	Swaps   int
	Skipped int
	Failed  int
}

// LoadTypedEvents reads a decoded pool event file. See FromTypedEvents.
func LoadTypedEvents(path string, opts EventOptions) (*series.Frame, EventStats, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, EventStats{}, fmt.Errorf("open input: %w", err)
	}
	defer file.Close()
	return FromTypedEvents(file, opts)
}

// FromTypedEvents turns decoded Swap events into raw bar rows, one per swap,
// ordered by block and log index. Each swap sets every tick column to the
// post-swap tick, the net amounts to the signed pool deltas, the inflow
// amounts to the positive side and the liquidity to the in-range liquidity.
// Lines that fail to decode are logged and counted, not fatal.
func FromTypedEvents(r io.Reader, opts EventOptions) (*series.Frame, EventStats, error) {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
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

		var record model.EventRecord
		if err := json.Unmarshal(line, &record); err != nil {
			stats.Failed++
			logger.Warn("decode event record", zap.Error(err))
			continue
		}
		if record.EventName != swapEventName || !matchesPool(record.Address, opts.Pool) {
			stats.Skipped++
			continue
		}

		row, err := newSwapRow(record)
		if err != nil {
			stats.Failed++
			logger.Warn("decode swap", zap.Error(err), zap.String("tx", record.TxHash), zap.Uint64("log_index", record.LogIndex))
			continue
		}
		swaps = append(swaps, row)
		stats.Swaps++
	}
	if err := scanner.Err(); err != nil {
		return nil, stats, fmt.Errorf("scan input: %w", err)
	}

	frame := swapFrame(swaps)
	logger.Info("events imported",
		zap.Int("total", stats.Total),
		zap.Int("swaps", stats.Swaps),
		zap.Int("skipped", stats.Skipped),
		zap.Int("failed", stats.Failed),
	)
	return frame, stats, nil
}

// swapFrame orders swaps by block and log index and lays them out as raw rows.
func swapFrame(swaps []swapRow) *series.Frame {
	sort.SliceStable(swaps, func(i, j int) bool {
		if swaps[i].block != swaps[j].block {
			return swaps[i].block < swaps[j].block
		}
		return swaps[i].logIndex < swaps[j].logIndex
	})

	frame := series.NewFrame(model.RawColumns...)
	for _, s := range swaps {
		frame.AppendRow(s.ts, s.values)
	}
	return frame
}

type swapRow struct {
	ts       time.Time
	block    uint64
	logIndex uint64
	values   map[string]decimal.NullDecimal
}

func newSwapRow(record model.EventRecord) (swapRow, error) {
	var data model.SwapEventData
	if err := json.Unmarshal(record.Decoded, &data); err != nil {
		return swapRow{}, fmt.Errorf("unmarshal swap data: %w", err)
	}
	return swapRowFromData(data, record.Timestamp, record.BlockNumber, record.LogIndex)
}

func swapRowFromData(data model.SwapEventData, timestamp, block, logIndex uint64) (swapRow, error) {
	amount0, err := parseBig(data.Amount0, "amount0")
	if err != nil {
		return swapRow{}, err
	}
	amount1, err := parseBig(data.Amount1, "amount1")
	if err != nil {
		return swapRow{}, err
	}
	liquidity, err := parseBig(data.Liquidity, "liquidity")
	if err != nil {
		return swapRow{}, err
	}

	tick := decimal.NewNullDecimal(decimal.NewFromInt32(data.Tick))
	return swapRow{
		ts:       time.Unix(int64(timestamp), 0).UTC(),
		block:    block,
		logIndex: logIndex,
		values: map[string]decimal.NullDecimal{
			model.ColumnNetAmount0:       bigCell(amount0),
			model.ColumnNetAmount1:       bigCell(amount1),
			model.ColumnCloseTick:        tick,
			model.ColumnOpenTick:         tick,
			model.ColumnLowestTick:       tick,
			model.ColumnHighestTick:      tick,
			model.ColumnInAmount0:        bigCell(positive(amount0)),
			model.ColumnInAmount1:        bigCell(positive(amount1)),
			model.ColumnCurrentLiquidity: bigCell(liquidity),
		},
	}, nil
}

func parseBig(value, field string) (*big.Int, error) {
	out, ok := new(big.Int).SetString(value, 10)
	if !ok {
		return nil, fmt.Errorf("invalid %s %q", field, value)
	}
	return out, nil
}

func positive(v *big.Int) *big.Int {
	if v.Sign() > 0 {
		return v
	}
	return new(big.Int)
}

func bigCell(v *big.Int) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.NewFromBigInt(v, 0))
}

func matchesPool(address string, pool *common.Address) bool {
	if pool == nil {
		return true
	}
	if !common.IsHexAddress(address) {
		return false
	}
	return common.HexToAddress(address) == *pool
}
