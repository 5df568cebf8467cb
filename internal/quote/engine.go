// ===============================
// File: internal/quote/engine.go
// ===============================
package quote

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

// ErrEngineClosed is returned by Submit after Close.
var ErrEngineClosed = errors.New("quote engine closed")

// Result is one quote outcome delivered on the engine channel. Either Quote
// or Err is set. Results for superseded intents are never delivered.
type Result struct {
	Quote *types.Quote
	Err   error
}

// Engine turns a stream of intent mutations into at most one in-flight quote
// request. Rapid submissions coalesce over a quiescence window and only the
// request matching the latest intent may deliver a result: every submission
// bumps a sequence number, each fetch carries the number it was armed with,
// and completions whose number no longer matches are dropped silently.
type Engine struct {
	client       OrderClient
	logger       *zap.Logger
	debounce     time.Duration
	fetchTimeout time.Duration

	mu     sync.Mutex
	seq    uint64
	intent types.TradeIntent
	timer  *time.Timer
	closed bool

	ctx     context.Context
	cancel  context.CancelFunc
	results chan Result
}

// EngineConfig configures a quote engine.
type EngineConfig struct {
	Client       OrderClient
	Debounce     time.Duration // quiescence window, default 500ms
	FetchTimeout time.Duration // per-request bound, default 10s
	Logger       *zap.Logger
}

func NewEngine(cfg EngineConfig) *Engine {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.FetchTimeout <= 0 {
		cfg.FetchTimeout = 10 * time.Second
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Engine{
		client:       cfg.Client,
		logger:       cfg.Logger.Named("quote_engine"),
		debounce:     cfg.Debounce,
		fetchTimeout: cfg.FetchTimeout,
		ctx:          ctx,
		cancel:       cancel,
		results:      make(chan Result, 8),
	}
}

// Submit records a new intent and (re)arms the debounce timer. Validation
// failures are synchronous; no request is issued for an invalid intent and
// any pending fetch for the previous intent is superseded.
func (e *Engine) Submit(intent types.TradeIntent) error {
	if err := ValidateIntent(intent); err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return ErrEngineClosed
	}

	e.seq++
	seq := e.seq
	e.intent = intent

	if e.timer != nil {
		e.timer.Stop()
	}
	e.timer = time.AfterFunc(e.debounce, func() {
		e.fetch(seq, intent)
	})

	e.logger.Debug("intent submitted",
		zap.Uint64("seq", seq),
		zap.String("intent", intent.String()))
	return nil
}

// Reset invalidates the current intent and any in-flight request. Used after
// an execution completes so the next quote is freshly requested.
func (e *Engine) Reset() {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.seq++
	e.intent = types.TradeIntent{}
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
}

// Quotes is the delivery channel for debounced quote results.
func (e *Engine) Quotes() <-chan Result {
	return e.results
}

// Close stops the engine. In-flight results are discarded; the results
// channel is left open and simply goes quiet.
func (e *Engine) Close() {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	e.mu.Unlock()

	e.cancel()
}

// fetch runs after the quiescence window. seq is the sequence number the
// timer was armed with; a mismatch at any point means the intent moved on
// and the work is abandoned without delivery.
func (e *Engine) fetch(seq uint64, intent types.TradeIntent) {
	e.mu.Lock()
	if e.closed || seq != e.seq {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	ctx, cancel := context.WithTimeout(e.ctx, e.fetchTimeout)
	defer cancel()

	q, err := e.QuoteOnce(ctx, intent)

	e.mu.Lock()
	if e.closed || seq != e.seq {
		e.mu.Unlock()
		// Deliberate no-op, not an error: a superseded result must never
		// overwrite what the caller sees for the current intent.
		e.logger.Debug("dropping superseded quote result", zap.Uint64("seq", seq))
		return
	}
	e.mu.Unlock()

	select {
	case e.results <- Result{Quote: q, Err: err}:
	case <-e.ctx.Done():
	}
}

// QuoteOnce fetches a quote for the given intent immediately, bypassing the
// debounce. The returned quote carries its fetch time; execution enforces
// the staleness window.
func (e *Engine) QuoteOnce(ctx context.Context, intent types.TradeIntent) (*types.Quote, error) {
	if err := ValidateIntent(intent); err != nil {
		return nil, err
	}

	raw, err := RawAmount(intent.HumanAmount, intent.InputToken.Decimals)
	if err != nil {
		return nil, err
	}

	order, err := e.client.GetOrder(ctx, OrderRequest{
		InputMint:   intent.InputToken.Address,
		OutputMint:  intent.OutputToken.Address,
		AmountRaw:   raw,
		Taker:       intent.TakerAddress,
		SlippageBps: intent.SlippageBps,
	})
	if err != nil {
		return nil, err
	}

	return buildQuote(intent, order)
}

// buildQuote maps a provider order into a Quote. Any failure leaves no
// half-populated quote behind.
func buildQuote(intent types.TradeIntent, order *OrderResponse) (*types.Quote, error) {
	outRaw, err := strconv.ParseUint(order.OutAmount, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed outAmount %q", types.ErrNetwork, order.OutAmount)
	}

	payload, err := base64.StdEncoding.DecodeString(order.Transaction)
	if err != nil {
		return nil, fmt.Errorf("%w: malformed transaction payload: %v", types.ErrNetwork, err)
	}

	return &types.Quote{
		Intent:             intent,
		OutAmountRaw:       outRaw,
		Route:              order.Router,
		PriceImpactPct:     order.PriceImpact,
		NetworkFeeLamports: order.PrioritizationFeeLamports,
		UnsignedTx:         payload,
		FetchedAt:          time.Now(),
	}, nil
}
