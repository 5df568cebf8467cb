// =====================================
// File: internal/quote/convert_test.go
// =====================================
package quote

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

func TestRawAmount(t *testing.T) {
	tests := []struct {
		name     string
		amount   string
		decimals uint8
		want     uint64
		wantErr  bool
	}{
		{name: "whole amount", amount: "2", decimals: 9, want: 2_000_000_000},
		{name: "fraction truncated not rounded", amount: "1.2345678", decimals: 6, want: 1_234_567},
		{name: "exact fraction", amount: "0.5", decimals: 6, want: 500_000},
		{name: "sub raw unit truncates to zero", amount: "0.0000001", decimals: 6, want: 0},
		{name: "usdc hundred", amount: "100.25", decimals: 6, want: 100_250_000},
		{name: "not a number", amount: "abc", wantErr: true},
		{name: "empty", amount: "", wantErr: true},
		{name: "negative", amount: "-1", decimals: 6, wantErr: true},
		{name: "zero", amount: "0", decimals: 6, wantErr: true},
		{name: "overflows uint64", amount: "99999999999999999999", decimals: 9, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RawAmount(tt.amount, tt.decimals)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, types.ErrInvalidIntent)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestValidateIntent(t *testing.T) {
	valid := types.TradeIntent{
		InputToken:   types.WSOL,
		OutputToken:  types.USDC,
		HumanAmount:  "2",
		SlippageBps:  50,
		TakerAddress: "taker1111111111111111111111111111111111111111",
	}
	require.NoError(t, ValidateIntent(valid))

	tests := []struct {
		name   string
		mutate func(i *types.TradeIntent)
	}{
		{"empty amount", func(i *types.TradeIntent) { i.HumanAmount = "" }},
		{"non-numeric amount", func(i *types.TradeIntent) { i.HumanAmount = "1,5" }},
		{"zero amount", func(i *types.TradeIntent) { i.HumanAmount = "0" }},
		{"slippage below minimum", func(i *types.TradeIntent) { i.SlippageBps = MinSlippageBps - 1 }},
		{"slippage above maximum", func(i *types.TradeIntent) { i.SlippageBps = MaxSlippageBps + 1 }},
		{"same token both sides", func(i *types.TradeIntent) { i.OutputToken = i.InputToken }},
		{"missing taker", func(i *types.TradeIntent) { i.TakerAddress = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := valid
			tt.mutate(&intent)
			err := ValidateIntent(intent)
			assert.ErrorIs(t, err, types.ErrInvalidIntent)
		})
	}
}
