// ===============================
// File: internal/quote/client.go
// ===============================
package quote

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

// OrderRequest parameterises one order call to the pricing provider.
type OrderRequest struct {
	InputMint   string
	OutputMint  string
	AmountRaw   uint64
	Taker       string
	SlippageBps int
}

// OrderResponse is the provider payload for a swap order. Transaction and
// OutAmount are required; the rest is display data the provider may omit.
type OrderResponse struct {
	Transaction               string  `json:"transaction"`
	OutAmount                 string  `json:"outAmount"`
	Router                    string  `json:"router"`
	PriceImpact               float64 `json:"priceImpact"`
	PrioritizationFeeLamports uint64  `json:"prioritizationFeeLamports"`
}

// OrderClient fetches swap orders from a pricing provider.
type OrderClient interface {
	GetOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error)
}

// JupiterClient talks to the Jupiter Ultra order endpoint.
type JupiterClient struct {
	baseURL string
	client  *http.Client
	logger  *zap.Logger
}

func NewJupiterClient(baseURL string, timeout time.Duration, logger *zap.Logger) *JupiterClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &JupiterClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: timeout},
		logger:  logger.Named("jupiter"),
	}
}

// GetOrder requests an unsigned swap order. Provider backpressure maps to
// ErrRateLimited, an explicit no-route answer to ErrNoLiquidity, everything
// else transport-shaped to ErrNetwork.
func (c *JupiterClient) GetOrder(ctx context.Context, req OrderRequest) (*OrderResponse, error) {
	q := url.Values{}
	q.Set("inputMint", req.InputMint)
	q.Set("outputMint", req.OutputMint)
	q.Set("amount", strconv.FormatUint(req.AmountRaw, 10))
	q.Set("taker", req.Taker)
	q.Set("slippageBps", strconv.Itoa(req.SlippageBps))
	orderURL := c.baseURL + "/order?" + q.Encode()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, orderURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", types.ErrNetwork, err)
	}

	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: order request: %v", types.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, classifyOrderError(resp.StatusCode, body)
	}

	var order OrderResponse
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, fmt.Errorf("%w: decode order response: %v", types.ErrNetwork, err)
	}
	if order.Transaction == "" || order.OutAmount == "" {
		return nil, fmt.Errorf("%w: order response missing transaction or outAmount", types.ErrNetwork)
	}

	c.logger.Debug("order received",
		zap.String("input_mint", req.InputMint),
		zap.String("output_mint", req.OutputMint),
		zap.Uint64("amount_raw", req.AmountRaw),
		zap.String("out_amount", order.OutAmount),
		zap.String("router", order.Router))

	return &order, nil
}

func classifyOrderError(status int, body []byte) error {
	switch {
	case status == http.StatusTooManyRequests:
		return fmt.Errorf("%w: status %d", types.ErrRateLimited, status)
	case status == http.StatusBadRequest && isNoRouteBody(body):
		return fmt.Errorf("%w: %s", types.ErrNoLiquidity, strings.TrimSpace(string(body)))
	default:
		return fmt.Errorf("%w: unexpected status %d: %s", types.ErrNetwork, status, strings.TrimSpace(string(body)))
	}
}

func isNoRouteBody(body []byte) bool {
	lower := strings.ToLower(string(body))
	return strings.Contains(lower, "route") || strings.Contains(lower, "liquidity")
}
