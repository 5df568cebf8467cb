// ====================================
// File: internal/executor/executor.go
// ====================================
package executor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	bin "github.com/gagliardetto/binary"
	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

// Invalidator is notified after a successful execution so cached state for
// the taker (balances, reusable quotes) can be dropped.
type Invalidator interface {
	Invalidate(address string)
}

// Executor hands a quote's transaction payload to a signer and reports the
// terminal outcome. It performs no retries of its own: a swap transaction is
// not safely replayable, so retry means re-quoting at the caller.
type Executor struct {
	signer      Signer
	quoteTTL    time.Duration
	invalidator Invalidator
	logger      *zap.Logger

	// One SignAndSend at a time per signer; concurrent submissions for the
	// same key risk nonce/ordering conflicts on chain.
	signerMu sync.Mutex
}

// Config configures a swap executor.
type Config struct {
	Signer      Signer
	QuoteTTL    time.Duration // staleness window for quotes, default 30s
	Invalidator Invalidator   // optional
	Logger      *zap.Logger
}

func New(cfg Config) *Executor {
	if cfg.QuoteTTL <= 0 {
		cfg.QuoteTTL = 30 * time.Second
	}
	return &Executor{
		signer:      cfg.Signer,
		quoteTTL:    cfg.QuoteTTL,
		invalidator: cfg.Invalidator,
		logger:      cfg.Logger.Named("executor"),
	}
}

// Execute consumes the quote and submits its payload for signing and
// broadcast. Preconditions are checked before the signer is contacted:
// a quote can be executed at most once, and an expired quote fails with
// ErrQuoteExpired so the caller re-requests instead of replaying a payload
// whose route or blockhash has moved on.
func (e *Executor) Execute(ctx context.Context, q *types.Quote) (types.ExecutionResult, error) {
	if !q.Consume() {
		return types.ExecutionResult{}, types.ErrQuoteConsumed
	}

	if q.Expired(e.quoteTTL, time.Now()) {
		e.logger.Warn("refusing to execute expired quote",
			zap.Time("fetched_at", q.FetchedAt),
			zap.Duration("ttl", e.quoteTTL))
		return types.ExecutionResult{}, types.ErrQuoteExpired
	}

	tx, err := solana.TransactionFromDecoder(bin.NewBinDecoder(q.UnsignedTx))
	if err != nil {
		return types.ExecutionResult{}, fmt.Errorf("%w: decode transaction payload: %v", types.ErrNetwork, err)
	}

	e.signerMu.Lock()
	sig, err := e.signer.SignAndSend(ctx, tx)
	e.signerMu.Unlock()
	if err != nil {
		e.logger.Error("swap execution failed",
			zap.String("intent", q.Intent.String()),
			zap.Error(err))
		return types.ExecutionResult{}, classifySignerError(err)
	}

	e.logger.Info("swap executed",
		zap.String("intent", q.Intent.String()),
		zap.String("signature", sig),
		zap.String("out_amount", q.OutAmountUI()))

	if e.invalidator != nil {
		e.invalidator.Invalidate(q.Intent.TakerAddress)
	}

	return types.ExecutionResult{Signature: sig}, nil
}

// classifySignerError maps a signer failure onto the error taxonomy. Already
// classified errors pass through; anything unrecognized is a signer failure.
func classifySignerError(err error) error {
	switch {
	case errors.Is(err, types.ErrUserRejected),
		errors.Is(err, types.ErrSignerFailure),
		errors.Is(err, types.ErrBroadcastFailure):
		return err
	default:
		return fmt.Errorf("%w: %v", types.ErrSignerFailure, err)
	}
}
