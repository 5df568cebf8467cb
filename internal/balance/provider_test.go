// ========================================
// File: internal/balance/provider_test.go
// ========================================
package balance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

const testAddress = "taker1111111111111111111111111111111111111111"

func TestProviderFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/balances/"+testAddress, r.URL.Path)
		w.Write([]byte(`{"balances": [
			{"mint": "So11111111111111111111111111111111111111112", "symbol": "SOL", "amount": 2000000000, "uiAmount": 2.0, "decimals": 9, "usdValue": 411.0},
			{"mint": "EPjFWdd5AufqSSqeM2qN1xzybapC8G4wEGGkZwyTDt1v", "symbol": "USDC", "amount": 19500000, "uiAmount": 19.5, "decimals": 6, "usdValue": 19.5}
		]}`))
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: srv.URL, Logger: zap.NewNop()})
	balances, err := p.Fetch(context.Background(), testAddress)
	require.NoError(t, err)

	require.Len(t, balances, 2)
	assert.Equal(t, "SOL", balances[0].Token.Symbol)
	assert.Equal(t, uint64(2_000_000_000), balances[0].RawAmount)
	assert.Equal(t, uint8(9), balances[0].Token.Decimals)
	assert.Equal(t, 19.5, balances[1].USDValue)
	assert.Equal(t, 430.5, types.TotalUSD(balances))
}

func TestProviderEmptyWallet(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"balances": []}`))
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: srv.URL, Logger: zap.NewNop()})
	balances, err := p.Fetch(context.Background(), testAddress)
	require.NoError(t, err)

	assert.Empty(t, balances)
	assert.Equal(t, 0.0, types.TotalUSD(balances))
}

func TestProviderCollapsesConcurrentFetches(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		time.Sleep(50 * time.Millisecond)
		w.Write([]byte(`{"balances": []}`))
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: srv.URL, Logger: zap.NewNop()})

	const callers = 8
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Fetch(context.Background(), testAddress)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), requests.Load())
}

func TestProviderCacheAndInvalidate(t *testing.T) {
	var requests atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		w.Write([]byte(`{"balances": []}`))
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: srv.URL, CacheTTL: time.Minute, Logger: zap.NewNop()})

	_, err := p.Fetch(context.Background(), testAddress)
	require.NoError(t, err)
	_, err = p.Fetch(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, int32(1), requests.Load())

	p.Invalidate(testAddress)

	_, err = p.Fetch(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestProviderInvalidateDuringFetch(t *testing.T) {
	var requests atomic.Int32
	firstRelease := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			<-firstRelease
		}
		w.Write([]byte(`{"balances": []}`))
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: srv.URL, CacheTTL: time.Minute, Logger: zap.NewNop()})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := p.Fetch(context.Background(), testAddress)
		assert.NoError(t, err)
	}()

	require.Eventually(t, func() bool { return requests.Load() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Invalidation while the fetch is in flight: its result must not be
	// cached as if it were fresh.
	p.Invalidate(testAddress)
	close(firstRelease)
	<-done

	_, err := p.Fetch(context.Background(), testAddress)
	require.NoError(t, err)
	assert.Equal(t, int32(2), requests.Load())
}

func TestProviderErrorMapping(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	p := NewProvider(ProviderConfig{BaseURL: srv.URL, Logger: zap.NewNop()})
	_, err := p.Fetch(context.Background(), testAddress)
	assert.ErrorIs(t, err, types.ErrNetwork)
}
