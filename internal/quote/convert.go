// ================================
// File: internal/quote/convert.go
// ================================
package quote

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

// RawAmount converts a human-readable decimal amount into raw token units,
// truncating any fraction below one raw unit. Truncation (not rounding)
// guarantees we never request more than the user specified:
// "1.2345678" at 6 decimals -> 1234567.
func RawAmount(humanAmount string, decimals uint8) (uint64, error) {
	d, err := decimal.NewFromString(humanAmount)
	if err != nil {
		return 0, fmt.Errorf("%w: amount %q is not a decimal", types.ErrInvalidIntent, humanAmount)
	}
	if d.Sign() <= 0 {
		return 0, fmt.Errorf("%w: amount must be positive", types.ErrInvalidIntent)
	}

	raw := d.Shift(int32(decimals)).Truncate(0)
	bi := raw.BigInt()
	if !bi.IsUint64() {
		return 0, fmt.Errorf("%w: amount %q overflows raw units", types.ErrInvalidIntent, humanAmount)
	}
	return bi.Uint64(), nil
}

const (
	MinSlippageBps = 10
	MaxSlippageBps = 5000
)

// ValidateIntent checks an intent locally. A failure here is synchronous and
// never reaches the network.
func ValidateIntent(intent types.TradeIntent) error {
	if _, err := RawAmount(intent.HumanAmount, intent.InputToken.Decimals); err != nil {
		return err
	}
	if intent.SlippageBps < MinSlippageBps || intent.SlippageBps > MaxSlippageBps {
		return fmt.Errorf("%w: slippage %d bps outside [%d, %d]",
			types.ErrInvalidIntent, intent.SlippageBps, MinSlippageBps, MaxSlippageBps)
	}
	if intent.InputToken.Address == intent.OutputToken.Address {
		return fmt.Errorf("%w: input and output token are the same", types.ErrInvalidIntent)
	}
	if intent.TakerAddress == "" {
		return fmt.Errorf("%w: taker address is empty", types.ErrInvalidIntent)
	}
	return nil
}
