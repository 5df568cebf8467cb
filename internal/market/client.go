// ================================
// File: internal/market/client.go
// ================================
package market

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

// HistoryClient fetches historical OHLCV candles for a token.
type HistoryClient interface {
	Candles(ctx context.Context, address, interval string, from, to time.Time) ([]types.Candle, error)
}

// SpotPricer is implemented by history clients that can also serve a current
// price without an open stream.
type SpotPricer interface {
	SpotPrice(ctx context.Context, address string) (price, change24hPct float64, err error)
}

// BirdeyeClient talks to the Birdeye public REST API.
type BirdeyeClient struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *zap.Logger
}

func NewBirdeyeClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger) *BirdeyeClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &BirdeyeClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("birdeye"),
	}
}

type ohlcvResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Items []ohlcvItem `json:"items"`
	} `json:"data"`
}

type ohlcvItem struct {
	UnixTime int64   `json:"unixTime"`
	Open     float64 `json:"o"`
	High     float64 `json:"h"`
	Low      float64 `json:"l"`
	Close    float64 `json:"c"`
	Volume   float64 `json:"v"`
}

// Candles returns the OHLCV series for [from, to] at the given granularity,
// in chronological order.
func (c *BirdeyeClient) Candles(ctx context.Context, address, interval string, from, to time.Time) ([]types.Candle, error) {
	q := url.Values{}
	q.Set("address", address)
	q.Set("type", interval)
	q.Set("time_from", strconv.FormatInt(from.Unix(), 10))
	q.Set("time_to", strconv.FormatInt(to.Unix(), 10))

	var resp ohlcvResponse
	if err := c.get(ctx, "/defi/ohlcv?"+q.Encode(), &resp); err != nil {
		return nil, err
	}
	if !resp.Success {
		return nil, fmt.Errorf("%w: ohlcv request unsuccessful", types.ErrNetwork)
	}

	candles := make([]types.Candle, 0, len(resp.Data.Items))
	for _, item := range resp.Data.Items {
		candles = append(candles, types.Candle{
			OpenTime: time.Unix(item.UnixTime, 0),
			Open:     item.Open,
			High:     item.High,
			Low:      item.Low,
			Close:    item.Close,
			Volume:   item.Volume,
		})
	}

	c.logger.Debug("candles fetched",
		zap.String("address", address),
		zap.String("interval", interval),
		zap.Int("count", len(candles)))
	return candles, nil
}

type priceResponse struct {
	Success bool `json:"success"`
	Data    struct {
		Value          float64 `json:"value"`
		PriceChange24h float64 `json:"priceChange24h"`
	} `json:"data"`
}

// SpotPrice returns the current price and 24h change without a stream.
func (c *BirdeyeClient) SpotPrice(ctx context.Context, address string) (price, change24hPct float64, err error) {
	var resp priceResponse
	if err := c.get(ctx, "/defi/price?address="+url.QueryEscape(address), &resp); err != nil {
		return 0, 0, err
	}
	if !resp.Success {
		return 0, 0, fmt.Errorf("%w: price request unsuccessful", types.ErrNetwork)
	}
	return resp.Data.Value, resp.Data.PriceChange24h, nil
}

func (c *BirdeyeClient) get(ctx context.Context, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("%w: create request: %v", types.ErrNetwork, err)
	}
	req.Header.Set("X-API-KEY", c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: market data request: %v", types.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: status %d", types.ErrRateLimited, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("%w: unexpected status %d: %s", types.ErrNetwork, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%w: decode market data response: %v", types.ErrNetwork, err)
	}
	return nil
}

var (
	_ HistoryClient = (*BirdeyeClient)(nil)
	_ SpotPricer    = (*BirdeyeClient)(nil)
)
