package dex

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"

	"liquiditySim/internal/model"
)

func buildSwapLog(t *testing.T, amount0, amount1, tick int64) model.RawLog {
	t.Helper()
	parsed, err := PoolABI()
	if err != nil {
		t.Fatalf("abi parse: %v", err)
	}
	event := parsed.Events["Swap"]
	data, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(amount0),
		big.NewInt(amount1),
		big.NewInt(123456789),
		big.NewInt(987654321),
		big.NewInt(tick),
	)
	if err != nil {
		t.Fatalf("pack swap: %v", err)
	}

	sender := common.HexToAddress("0x2222222222222222222222222222222222222222")
	recipient := common.HexToAddress("0x3333333333333333333333333333333333333333")
	return model.RawLog{
		ChainID:     1,
		BlockNumber: 12345,
		TxHash:      "0xdef",
		LogIndex:    1,
		Address:     "0x1111111111111111111111111111111111111111",
		Topics: []string{
			event.ID.Hex(),
			common.BytesToHash(sender.Bytes()).Hex(),
			common.BytesToHash(recipient.Bytes()).Hex(),
		},
		Data:      hexutil.Encode(data),
		Timestamp: 1700000000,
	}
}

func TestSwapDecoderDecode(t *testing.T) {
	decoder, err := NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	swap, err := decoder.Decode(buildSwapLog(t, -1000, 2000, -15))
	if err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.Amount0 != "-1000" || swap.Amount1 != "2000" {
		t.Fatalf("amounts mismatch: %+v", swap)
	}
	if swap.Tick != -15 {
		t.Fatalf("tick mismatch: %d", swap.Tick)
	}
	if swap.Liquidity != "987654321" || swap.SqrtPriceX96 != "123456789" {
		t.Fatalf("price fields mismatch: %+v", swap)
	}
	if swap.Sender != "0x2222222222222222222222222222222222222222" {
		t.Fatalf("sender mismatch: %s", swap.Sender)
	}
}

func TestSwapDecoderRejects(t *testing.T) {
	decoder, err := NewSwapDecoder()
	if err != nil {
		t.Fatalf("decoder: %v", err)
	}

	other := buildSwapLog(t, 1, 1, 0)
	other.Topics[0] = common.HexToHash("0x01").Hex()
	if decoder.CanDecode(other) {
		t.Fatalf("unexpected match for foreign topic")
	}
	if _, err := decoder.Decode(other); err == nil {
		t.Fatalf("expected error for foreign topic")
	}

	short := buildSwapLog(t, 1, 1, 0)
	short.Topics = short.Topics[:2]
	if _, err := decoder.Decode(short); err == nil {
		t.Fatalf("expected error for missing topic")
	}

	badData := buildSwapLog(t, 1, 1, 0)
	badData.Data = "0x1234"
	if _, err := decoder.Decode(badData); err == nil {
		t.Fatalf("expected error for truncated data")
	}
}

func TestInt24FromBig(t *testing.T) {
	if _, err := int24FromBig(big.NewInt(1 << 23)); err == nil {
		t.Fatalf("expected overflow")
	}
	v, err := int24FromBig(big.NewInt(-887272))
	if err != nil || v != -887272 {
		t.Fatalf("unexpected %d, %v", v, err)
	}
}
