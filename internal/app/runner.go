// =============================
// File: internal/app/runner.go
// =============================
package app

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/balance"
	"github.com/kamilbekov/solana-terminal/internal/chain"
	"github.com/kamilbekov/solana-terminal/internal/config"
	"github.com/kamilbekov/solana-terminal/internal/executor"
	"github.com/kamilbekov/solana-terminal/internal/market"
	"github.com/kamilbekov/solana-terminal/internal/quote"
	"github.com/kamilbekov/solana-terminal/internal/types"
	"github.com/kamilbekov/solana-terminal/internal/wallet"
)

// Runner wires the terminal core: quote engine, market-data service, balance
// provider and (when a wallet is configured) the swap executor. UI layers
// consume it through the service accessors.
type Runner struct {
	logger     *zap.Logger
	cfg        *config.Config
	quotes     *quote.Engine
	market     *market.Service
	balances   *balance.Provider
	executor   *executor.Executor
	signerAddr string
	shutdownCh chan os.Signal
}

func NewRunner(logger *zap.Logger) *Runner {
	return &Runner{
		logger:     logger,
		shutdownCh: make(chan os.Signal, 1),
	}
}

// Initialize loads configuration from a file and constructs all services.
func (r *Runner) Initialize(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	return r.InitializeConfig(cfg)
}

// InitializeConfig constructs all services from an already loaded config.
// The executor is only built when a wallets file and an RPC endpoint are
// configured; the quote and market pipelines work without one.
func (r *Runner) InitializeConfig(cfg *config.Config) error {
	r.cfg = cfg

	r.balances = balance.NewProvider(balance.ProviderConfig{
		BaseURL:  cfg.JupiterBaseURL,
		Timeout:  cfg.HTTPTimeout(),
		CacheTTL: time.Duration(cfg.BalanceCacheSec) * time.Second,
		Logger:   r.logger,
	})

	r.quotes = quote.NewEngine(quote.EngineConfig{
		Client:       quote.NewJupiterClient(cfg.JupiterBaseURL, cfg.HTTPTimeout(), r.logger),
		Debounce:     cfg.QuoteDebounce(),
		FetchTimeout: cfg.HTTPTimeout(),
		Logger:       r.logger,
	})

	r.market = market.NewService(market.ServiceConfig{
		History:       market.NewBirdeyeClient(cfg.BirdeyeBaseURL, cfg.BirdeyeAPIKey, cfg.HTTPTimeout(), r.logger),
		WSURL:         cfg.BirdeyeWSURL,
		Granularity:   cfg.CandleInterval,
		Lookback:      time.Duration(cfg.CandleLookbackH) * time.Hour,
		CandleRefresh: time.Duration(cfg.CandleRefreshS) * time.Second,
		StaleAfter:    time.Duration(cfg.StaleAfterSec) * time.Second,
		Logger:        r.logger,
	})

	if cfg.WalletsFile != "" && len(cfg.RPCList) > 0 {
		if err := r.initExecutor(cfg); err != nil {
			return err
		}
	} else {
		r.logger.Info("no wallet configured, running quote-only")
	}

	return nil
}

func (r *Runner) initExecutor(cfg *config.Config) error {
	wallets, err := wallet.Load(cfg.WalletsFile)
	if err != nil {
		return fmt.Errorf("load wallets: %w", err)
	}

	var w *wallet.Wallet
	for _, candidate := range wallets {
		w = candidate
		break
	}

	signer := executor.NewLocalSigner(w, chain.NewClient(cfg.RPCList[0], r.logger), r.logger)
	r.signerAddr = signer.Address()
	r.executor = executor.New(executor.Config{
		Signer:      signer,
		QuoteTTL:    cfg.QuoteTTL(),
		Invalidator: r.balances,
		Logger:      r.logger,
	})

	r.logger.Info("executor initialized", zap.String("address", r.signerAddr))
	return nil
}

// Service accessors for UI layers.
func (r *Runner) Quotes() *quote.Engine       { return r.quotes }
func (r *Runner) Market() *market.Service     { return r.market }
func (r *Runner) Balances() *balance.Provider { return r.balances }
func (r *Runner) Executor() *executor.Executor {
	return r.executor
}

// Run opens a market stream for the default token and keeps the core alive
// until a shutdown signal, logging the market view and wallet holdings
// periodically.
func (r *Runner) Run(ctx context.Context) error {
	signal.Notify(r.shutdownCh, syscall.SIGINT, syscall.SIGTERM)
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		sig := <-r.shutdownCh
		r.logger.Info("signal received: " + sig.String())
		cancel()
	}()

	stream, err := r.market.Open(runCtx, types.WSOL)
	if err != nil {
		return fmt.Errorf("open market stream: %w", err)
	}
	defer stream.Close()

	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-runCtx.Done():
			r.quotes.Close()
			return nil
		case res := <-r.quotes.Quotes():
			r.logQuote(res)
		case <-ticker.C:
			r.logMarket(runCtx, stream)
			r.logBalances(runCtx)
		}
	}
}

func (r *Runner) logQuote(res quote.Result) {
	if res.Err != nil {
		r.logger.Warn("quote failed", zap.Error(res.Err))
		return
	}
	r.logger.Info("quote ready",
		zap.String("intent", res.Quote.Intent.String()),
		zap.String("out_amount", res.Quote.OutAmountUI()),
		zap.String("route", res.Quote.Route),
		zap.Float64("price_impact_pct", res.Quote.PriceImpactPct))
}

func (r *Runner) logMarket(ctx context.Context, stream *market.Stream) {
	snap, err := stream.Snapshot()
	if err != nil {
		// No snapshot yet; fall back to the REST spot price.
		fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.HTTPTimeout())
		defer cancel()

		price, change, perr := r.market.SpotPrice(fetchCtx, types.WSOL)
		if perr != nil {
			r.logger.Debug("market data unavailable", zap.Error(perr))
			return
		}
		r.logger.Info("spot price",
			zap.String("token", types.WSOL.Symbol),
			zap.Float64("price", price),
			zap.Float64("change_24h_pct", change))
		return
	}
	r.logger.Info("market snapshot",
		zap.String("token", snap.Token.Symbol),
		zap.Float64("price", snap.Price),
		zap.Float64("change_24h_pct", snap.Change24hPct),
		zap.Int("candles", len(snap.Candles)),
		zap.Bool("stale", snap.Stale))
}

func (r *Runner) logBalances(ctx context.Context) {
	if r.signerAddr == "" {
		return
	}
	fetchCtx, cancel := context.WithTimeout(ctx, r.cfg.HTTPTimeout())
	defer cancel()

	balances, err := r.balances.Fetch(fetchCtx, r.signerAddr)
	if err != nil {
		r.logger.Warn("balance fetch failed", zap.Error(err))
		return
	}
	r.logger.Info("portfolio",
		zap.Int("holdings", len(balances)),
		zap.Float64("total_usd", types.TotalUSD(balances)))
}
