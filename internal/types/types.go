// ==============================
// File: internal/types/types.go
// ==============================
package types

import (
	"fmt"
	"math/big"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"
)

// TokenRef identifies a fungible token on chain. Address is the mint address
// and acts as the unique key; Decimals is the scale factor between raw
// integer amounts and human-readable amounts (human = raw / 10^Decimals).
type TokenRef struct {
	Address  string
	Symbol   string
	Name     string
	Decimals uint8
}

// Well-known mainnet mints.
var (
	WSOL = TokenRef{Address: "So11111111111111111111111111111111111111112", Symbol: "SOL", Name: "Wrapped SOL", Decimals: 9}
	USDC = TokenRef{Address: "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", Symbol: "USDC", Name: "USD Coin", Decimals: 6}
)

// TradeIntent is the user's current swap request. It is owned by the caller;
// the quote engine only reads snapshots of it.
type TradeIntent struct {
	InputToken   TokenRef
	OutputToken  TokenRef
	HumanAmount  string
	SlippageBps  int
	TakerAddress string
}

// SameTrade reports whether two intents describe the same trade. A quote is
// usable for execution only while its source intent matches the current one.
func (i TradeIntent) SameTrade(other TradeIntent) bool {
	return i.InputToken.Address == other.InputToken.Address &&
		i.OutputToken.Address == other.OutputToken.Address &&
		i.HumanAmount == other.HumanAmount &&
		i.SlippageBps == other.SlippageBps
}

func (i TradeIntent) String() string {
	return fmt.Sprintf("%s %s -> %s (%d bps)", i.HumanAmount, i.InputToken.Symbol, i.OutputToken.Symbol, i.SlippageBps)
}

// Quote is an executable order produced by the pricing provider. Immutable
// once produced; the consumed flag guards against double execution.
type Quote struct {
	Intent             TradeIntent
	OutAmountRaw       uint64
	Route              string
	PriceImpactPct     float64
	NetworkFeeLamports uint64
	UnsignedTx         []byte
	FetchedAt          time.Time

	consumed atomic.Bool
}

// Consume marks the quote as executed. It returns false if the quote was
// already consumed; a consumed quote must never reach the signer again.
func (q *Quote) Consume() bool {
	return q.consumed.CompareAndSwap(false, true)
}

// Expired reports whether the quote is older than the given lifetime.
func (q *Quote) Expired(ttl time.Duration, now time.Time) bool {
	return now.Sub(q.FetchedAt) > ttl
}

// OutAmountUI formats the raw output amount using the output token decimals,
// e.g. 180000000 with 6 decimals -> "180.000000". Exact for the full uint64
// range; float arithmetic would drift above 2^53.
func (q *Quote) OutAmountUI() string {
	d := int32(q.Intent.OutputToken.Decimals)
	return decimal.NewFromBigInt(new(big.Int).SetUint64(q.OutAmountRaw), -d).StringFixed(d)
}

// Candle is a single OHLCV bar.
type Candle struct {
	OpenTime time.Time
	Open     float64
	High     float64
	Low      float64
	Close    float64
	Volume   float64
}

// MarketSnapshot is the latest consistent view of a token's market state.
// Candles are replaced wholesale by historical fetches; Price/Change24hPct
// are updated in place by push ticks. The two feeds are only eventually
// consistent with each other.
type MarketSnapshot struct {
	Token        TokenRef
	Price        float64
	Change24hPct float64
	Candles      []Candle
	UpdatedAt    time.Time
	Stale        bool
}

// High24h returns the highest candle high, or 0 without candles.
func (s MarketSnapshot) High24h() float64 {
	high := 0.0
	for _, c := range s.Candles {
		if c.High > high {
			high = c.High
		}
	}
	return high
}

// Low24h returns the lowest candle low, or 0 without candles.
func (s MarketSnapshot) Low24h() float64 {
	if len(s.Candles) == 0 {
		return 0
	}
	low := s.Candles[0].Low
	for _, c := range s.Candles[1:] {
		if c.Low < low {
			low = c.Low
		}
	}
	return low
}

// Volume24h sums candle volume over the series.
func (s MarketSnapshot) Volume24h() float64 {
	total := 0.0
	for _, c := range s.Candles {
		total += c.Volume
	}
	return total
}

// Balance is one token holding of an account.
type Balance struct {
	Token       TokenRef
	RawAmount   uint64
	HumanAmount float64
	USDValue    float64
}

// TotalUSD sums the fiat value over a holdings list. An empty list is a
// valid empty wallet and yields 0.
func TotalUSD(balances []Balance) float64 {
	total := 0.0
	for _, b := range balances {
		total += b.USDValue
	}
	return total
}

// ExecutionResult reports a successfully broadcast swap. Failures are
// returned as typed errors alongside a zero result.
type ExecutionResult struct {
	Signature string
}
