// ===================================
// File: internal/balance/provider.go
// ===================================
package balance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

// Provider fetches token holdings per account from the Jupiter Ultra
// balances endpoint. Concurrent fetches for one address are collapsed into a
// single request; results are cached briefly and can be invalidated after an
// execution changes the account's holdings.
type Provider struct {
	baseURL  string
	client   *http.Client
	logger   *zap.Logger
	cacheTTL time.Duration

	group singleflight.Group

	mu    sync.RWMutex
	cache map[string]cacheEntry
	// epoch bumps on every Invalidate so a fetch that was already in flight
	// cannot write its pre-invalidation result back into the cache.
	epoch map[string]uint64
}

type cacheEntry struct {
	balances  []types.Balance
	fetchedAt time.Time
}

// ProviderConfig configures a balance provider.
type ProviderConfig struct {
	BaseURL  string
	Timeout  time.Duration // per-request bound, default 10s
	CacheTTL time.Duration // 0 disables caching
	Logger   *zap.Logger
}

func NewProvider(cfg ProviderConfig) *Provider {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Provider{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		client:   &http.Client{Timeout: cfg.Timeout},
		logger:   cfg.Logger.Named("balance"),
		cacheTTL: cfg.CacheTTL,
		cache:    make(map[string]cacheEntry),
		epoch:    make(map[string]uint64),
	}
}

type balancesResponse struct {
	Balances []balanceItem `json:"balances"`
}

type balanceItem struct {
	Mint     string  `json:"mint"`
	Symbol   string  `json:"symbol"`
	Amount   uint64  `json:"amount"`
	UIAmount float64 `json:"uiAmount"`
	Decimals uint8   `json:"decimals"`
	USDValue float64 `json:"usdValue"`
}

// Fetch returns the full holdings list for an address in provider order. An
// empty wallet yields an empty list, not an error. A second call while one
// is outstanding for the same address waits on the outstanding result.
func (p *Provider) Fetch(ctx context.Context, address string) ([]types.Balance, error) {
	if cached, ok := p.cached(address); ok {
		return cached, nil
	}

	v, err, shared := p.group.Do(address, func() (interface{}, error) {
		return p.fetchRemote(ctx, address)
	})
	if err != nil {
		return nil, err
	}
	if shared {
		p.logger.Debug("balance fetch deduplicated", zap.String("address", address))
	}
	return v.([]types.Balance), nil
}

// Invalidate drops the cached holdings for an address. Called after a swap
// executes, since the balances it reported are now stale. A fetch in flight
// at this point is forgotten and its result never cached.
func (p *Provider) Invalidate(address string) {
	p.mu.Lock()
	delete(p.cache, address)
	p.epoch[address]++
	p.mu.Unlock()
	p.group.Forget(address)
	p.logger.Debug("balance cache invalidated", zap.String("address", address))
}

func (p *Provider) cached(address string) ([]types.Balance, bool) {
	if p.cacheTTL <= 0 {
		return nil, false
	}
	p.mu.RLock()
	defer p.mu.RUnlock()

	entry, ok := p.cache[address]
	if !ok || time.Since(entry.fetchedAt) > p.cacheTTL {
		return nil, false
	}
	return entry.balances, true
}

func (p *Provider) fetchRemote(ctx context.Context, address string) ([]types.Balance, error) {
	p.mu.RLock()
	epoch := p.epoch[address]
	p.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/balances/"+address, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: create request: %v", types.ErrNetwork, err)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: balances request: %v", types.ErrNetwork, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: unexpected status %d: %s", types.ErrNetwork, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var parsed balancesResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("%w: decode balances response: %v", types.ErrNetwork, err)
	}

	balances := make([]types.Balance, 0, len(parsed.Balances))
	for _, item := range parsed.Balances {
		balances = append(balances, types.Balance{
			Token: types.TokenRef{
				Address:  item.Mint,
				Symbol:   item.Symbol,
				Decimals: item.Decimals,
			},
			RawAmount:   item.Amount,
			HumanAmount: item.UIAmount,
			USDValue:    item.USDValue,
		})
	}

	if p.cacheTTL > 0 {
		p.mu.Lock()
		if p.epoch[address] == epoch {
			p.cache[address] = cacheEntry{balances: balances, fetchedAt: time.Now()}
		}
		p.mu.Unlock()
	}

	p.logger.Debug("balances fetched",
		zap.String("address", address),
		zap.Int("holdings", len(balances)),
		zap.Float64("total_usd", types.TotalUSD(balances)))
	return balances, nil
}
