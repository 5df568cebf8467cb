// ================================
// File: internal/market/stream.go
// ================================
package market

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v5"
	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

// ServiceConfig configures the market-data service.
type ServiceConfig struct {
	History       HistoryClient
	Dialer        Dialer
	WSURL         string
	Granularity   string        // candle granularity, default "1m"
	Lookback      time.Duration // historical window, default 24h
	CandleRefresh time.Duration // periodic candle re-fetch, default 60s
	StaleAfter    time.Duration // snapshot flagged stale past this, default 30s
	Logger        *zap.Logger
}

// Service opens market-data streams. Each Open returns an independent handle
// owning its own subscription connection.
type Service struct {
	cfg    ServiceConfig
	logger *zap.Logger
}

func NewService(cfg ServiceConfig) *Service {
	if cfg.Granularity == "" {
		cfg.Granularity = "1m"
	}
	if cfg.Lookback <= 0 {
		cfg.Lookback = 24 * time.Hour
	}
	if cfg.CandleRefresh <= 0 {
		cfg.CandleRefresh = 60 * time.Second
	}
	if cfg.StaleAfter <= 0 {
		cfg.StaleAfter = 30 * time.Second
	}
	if cfg.Dialer == nil {
		cfg.Dialer = WSDialer{}
	}
	return &Service{cfg: cfg, logger: cfg.Logger.Named("market")}
}

// SpotPrice polls the REST price endpoint; used when no stream snapshot is
// available. ErrUnavailable when the history client cannot serve spot prices.
func (s *Service) SpotPrice(ctx context.Context, token types.TokenRef) (float64, float64, error) {
	spot, ok := s.cfg.History.(SpotPricer)
	if !ok {
		return 0, 0, types.ErrUnavailable
	}
	return spot.SpotPrice(ctx, token.Address)
}

// Open seeds candles with one historical fetch, then starts the push
// subscription and the periodic candle refresh. The returned stream owns one
// subscription at a time; opening a different token is a new handle and the
// old one must be closed first.
func (s *Service) Open(ctx context.Context, token types.TokenRef) (*Stream, error) {
	streamCtx, cancel := context.WithCancel(ctx)
	st := &Stream{
		cfg:    s.cfg,
		token:  token,
		ctx:    streamCtx,
		cancel: cancel,
		logger: s.logger.Named("stream").With(zap.String("token", token.Symbol)),
		snap:   types.MarketSnapshot{Token: token},
	}

	// Seed failure is tolerated: the stream stays unavailable until either a
	// later refresh or the first push tick lands.
	if err := st.refreshCandles(); err != nil {
		st.logger.Warn("initial candle fetch failed", zap.Error(err))
	}

	st.wg.Add(2)
	go st.subscribeLoop()
	go st.candleLoop()

	return st, nil
}

// Stream is a live view of one token's market state.
type Stream struct {
	cfg    ServiceConfig
	token  types.TokenRef
	logger *zap.Logger

	ctx       context.Context
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once

	mu     sync.RWMutex
	snap   types.MarketSnapshot
	seeded bool
	closed bool
}

// Snapshot returns the latest market view atomically. It fails with
// ErrUnavailable only before any data has arrived (ErrStreamClosed if the
// stream was closed before ever seeding); transient disconnects keep
// returning the last known values with Stale set past the threshold.
func (st *Stream) Snapshot() (types.MarketSnapshot, error) {
	st.mu.RLock()
	defer st.mu.RUnlock()

	if !st.seeded {
		if st.closed {
			return types.MarketSnapshot{}, types.ErrStreamClosed
		}
		return types.MarketSnapshot{}, types.ErrUnavailable
	}

	snap := st.snap
	snap.Candles = make([]types.Candle, len(st.snap.Candles))
	copy(snap.Candles, st.snap.Candles)
	snap.Stale = time.Since(snap.UpdatedAt) > st.cfg.StaleAfter
	return snap, nil
}

// Close tears down the subscription and stops all updates. Idempotent; once
// it returns, no further snapshot mutation happens even if the push channel
// delivers a late message.
func (st *Stream) Close() {
	st.closeOnce.Do(func() {
		st.mu.Lock()
		st.closed = true
		st.mu.Unlock()

		st.cancel()
		st.wg.Wait()
		st.logger.Debug("stream closed")
	})
}

// candleLoop refreshes the historical series periodically. Candles are only
// ever replaced wholesale here, never appended by push ticks.
func (st *Stream) candleLoop() {
	defer st.wg.Done()

	ticker := time.NewTicker(st.cfg.CandleRefresh)
	defer ticker.Stop()

	for {
		select {
		case <-st.ctx.Done():
			return
		case <-ticker.C:
			if err := st.refreshCandles(); err != nil {
				st.logger.Warn("candle refresh failed", zap.Error(err))
			}
		}
	}
}

func (st *Stream) refreshCandles() error {
	ctx, cancel := context.WithTimeout(st.ctx, 15*time.Second)
	defer cancel()

	now := time.Now()
	candles, err := st.cfg.History.Candles(ctx, st.token.Address, st.cfg.Granularity, now.Add(-st.cfg.Lookback), now)
	if err != nil {
		return err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return nil
	}

	st.snap.Candles = candles
	st.snap.UpdatedAt = now
	if len(candles) > 0 {
		last := candles[len(candles)-1]
		st.snap.Price = last.Close
		// Change is measured across the whole lookback window, so the first
		// candle's open stands in for the price as of ~24h ago. Push ticks
		// overwrite this with the provider's own 24h figure.
		if first := candles[0]; first.Open != 0 {
			st.snap.Change24hPct = (last.Close - first.Open) / first.Open * 100
		}
		st.seeded = true
	}
	return nil
}

// subscribeLoop maintains the push subscription: dial, subscribe, read until
// the transport drops, then reconnect with exponential backoff. Snapshot
// reads keep serving the last known values throughout the gap.
func (st *Stream) subscribeLoop() {
	defer st.wg.Done()

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 500 * time.Millisecond
	bo.MaxInterval = 30 * time.Second

	for {
		if st.ctx.Err() != nil {
			return
		}

		conn, err := st.cfg.Dialer.Dial(st.ctx, st.cfg.WSURL)
		if err != nil {
			st.logger.Warn("push channel dial failed", zap.Error(err))
			if !st.sleep(bo.NextBackOff()) {
				return
			}
			continue
		}

		if err := conn.WriteJSON(newSubscribeMsg(st.token.Address, st.cfg.Granularity)); err != nil {
			st.logger.Warn("subscribe handshake failed", zap.Error(err))
			_ = conn.Close()
			if !st.sleep(bo.NextBackOff()) {
				return
			}
			continue
		}

		bo.Reset()
		st.logger.Debug("push subscription established")
		st.readLoop(conn)

		if st.ctx.Err() != nil {
			return
		}
		if !st.sleep(bo.NextBackOff()) {
			return
		}
	}
}

// readLoop consumes one connection until it errors. Closing the stream
// closes the connection, which unblocks the pending read.
func (st *Stream) readLoop(conn Conn) {
	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-st.ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			_ = conn.Close()
			if st.ctx.Err() == nil {
				st.logger.Warn("push channel dropped", zap.Error(err))
			}
			return
		}

		var msg pushMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			st.logger.Debug("ignoring malformed push message", zap.Error(err))
			continue
		}
		if msg.Type != msgPriceData {
			continue
		}
		st.applyTick(msg.Data)
	}
}

// applyTick updates price fields in place. Candles are left untouched: push
// deltas and historical bars run at different rates and must not interleave
// into one series.
func (st *Stream) applyTick(tick priceData) {
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.closed {
		return
	}

	st.snap.Price = tick.Open
	st.snap.Change24hPct = tick.ChangePct
	st.snap.UpdatedAt = time.Now()
	st.seeded = true
}

func (st *Stream) sleep(d time.Duration) bool {
	select {
	case <-st.ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
