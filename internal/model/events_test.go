package model

import (
	"encoding/json"
	"testing"
)

func TestSwapEventDataJSONStringFields(t *testing.T) {
	payload := SwapEventData{
		Sender:       "0x1111111111111111111111111111111111111111",
		Recipient:    "0x2222222222222222222222222222222222222222",
		Amount0:      "12345678901234567890",
		Amount1:      "-42",
		SqrtPriceX96: "79228162514264337593543950336",
		Liquidity:    "5000000000000000000",
		Tick:         10,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		t.Fatalf("marshal failed: %v", err)
	}

	var decoded map[string]interface{}
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}

	for _, key := range []string{"amount0", "amount1", "sqrt_price_x96", "liquidity"} {
		if _, ok := decoded[key].(string); !ok {
			t.Fatalf("%s should be string", key)
		}
	}
}

func TestEventRecordKeepsDecodedRaw(t *testing.T) {
	line := `{"chain_id":1,"block_number":5,"event_name":"Swap","timestamp":1700000000,` +
		`"decoded":{"amount0":"-10","amount1":"20","liquidity":"7","tick":-3},` +
		`"pool_meta":{"token0":"0xa","token1":"0xb","fee":500,"tick_spacing":10}}`

	var record EventRecord
	if err := json.Unmarshal([]byte(line), &record); err != nil {
		t.Fatalf("unmarshal failed: %v", err)
	}
	if record.PoolMeta.Fee != 500 || record.PoolMeta.TickSpacing != 10 {
		t.Fatalf("pool meta mismatch: %+v", record.PoolMeta)
	}

	var swap SwapEventData
	if err := json.Unmarshal(record.Decoded, &swap); err != nil {
		t.Fatalf("decode swap: %v", err)
	}
	if swap.Amount0 != "-10" || swap.Tick != -3 {
		t.Fatalf("swap mismatch: %+v", swap)
	}
}
