package dex

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquiditySim/internal/model"
)

// SwapDecoder decodes Uniswap V3 style pool Swap logs offline.
type SwapDecoder struct {
	event abi.Event
	topic string
}

func NewSwapDecoder() (*SwapDecoder, error) {
	parsed, err := PoolABI()
	if err != nil {
		return nil, fmt.Errorf("parse pool abi: %w", err)
	}
	event, ok := parsed.Events["Swap"]
	if !ok {
		return nil, fmt.Errorf("swap event missing from abi")
	}
	return &SwapDecoder{event: event, topic: strings.ToLower(event.ID.Hex())}, nil
}

// Topic returns the Swap event signature hash.
func (d *SwapDecoder) Topic() common.Hash {
	return d.event.ID
}

// CanDecode reports whether the log is a Swap.
func (d *SwapDecoder) CanDecode(log model.RawLog) bool {
	return len(log.Topics) > 0 && strings.ToLower(log.Topics[0]) == d.topic
}

// Decode converts a Swap log into its event payload.
func (d *SwapDecoder) Decode(log model.RawLog) (model.SwapEventData, error) {
	if !d.CanDecode(log) {
		return model.SwapEventData{}, fmt.Errorf("not a swap log")
	}
	indexedTopics, err := parseIndexedTopics(d.event, log.Topics)
	if err != nil {
		return model.SwapEventData{}, err
	}

	var indexed struct {
		Sender    common.Address
		Recipient common.Address
	}
	if err := abi.ParseTopics(&indexed, indexedArguments(d.event.Inputs), indexedTopics); err != nil {
		return model.SwapEventData{}, fmt.Errorf("parse topics: %w", err)
	}

	values, err := unpackNonIndexed(d.event, log.Data)
	if err != nil {
		return model.SwapEventData{}, err
	}
	if len(values) != 5 {
		return model.SwapEventData{}, fmt.Errorf("unexpected swap values: %d", len(values))
	}

	ints := make([]*big.Int, len(values))
	for i, v := range values {
		n, ok := v.(*big.Int)
		if !ok {
			return model.SwapEventData{}, fmt.Errorf("swap value %d: unsupported type %T", i, v)
		}
		ints[i] = n
	}
	tick, err := int24FromBig(ints[4])
	if err != nil {
		return model.SwapEventData{}, err
	}

	return model.SwapEventData{
		Sender:       indexed.Sender.Hex(),
		Recipient:    indexed.Recipient.Hex(),
		Amount0:      ints[0].String(),
		Amount1:      ints[1].String(),
		SqrtPriceX96: ints[2].String(),
		Liquidity:    ints[3].String(),
		Tick:         tick,
	}, nil
}

func parseIndexedTopics(event abi.Event, topics []string) ([]common.Hash, error) {
	indexedCount := len(indexedArguments(event.Inputs))
	if len(topics) != indexedCount+1 {
		return nil, fmt.Errorf("expected %d topics, got %d", indexedCount+1, len(topics))
	}
	out := make([]common.Hash, 0, indexedCount)
	for _, topic := range topics[1:] {
		data, err := hexutil.Decode(topic)
		if err != nil {
			return nil, fmt.Errorf("invalid topic: %w", err)
		}
		if len(data) > 32 {
			return nil, fmt.Errorf("topic length %d", len(data))
		}
		out = append(out, common.BytesToHash(data))
	}
	return out, nil
}

func indexedArguments(args abi.Arguments) abi.Arguments {
	indexed := make(abi.Arguments, 0, len(args))
	for _, arg := range args {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	return indexed
}

func unpackNonIndexed(event abi.Event, dataHex string) ([]interface{}, error) {
	data, err := hexutil.Decode(dataHex)
	if err != nil {
		return nil, fmt.Errorf("invalid data: %w", err)
	}
	values, err := event.Inputs.NonIndexed().Unpack(data)
	if err != nil {
		return nil, fmt.Errorf("unpack %s: %w", event.Name, err)
	}
	return values, nil
}

func int24FromBig(value *big.Int) (int32, error) {
	lo := big.NewInt(-1 << 23)
	hi := big.NewInt((1 << 23) - 1)
	if value.Cmp(lo) < 0 || value.Cmp(hi) > 0 {
		return 0, fmt.Errorf("int24 overflow: %s", value.String())
	}
	return int32(value.Int64()), nil
}
