// ===============================
// File: internal/types/errors.go
// ===============================
package types

import "errors"

// Error taxonomy for the quote/execution pipeline. Callers classify with
// errors.Is; every provider or signer failure is wrapped around exactly one
// of these sentinels.
var (
	// ErrInvalidIntent means local validation failed; no request was issued.
	ErrInvalidIntent = errors.New("invalid trade intent")

	// ErrNetwork covers transport failures, timeouts and malformed provider
	// responses. Retryable by the caller.
	ErrNetwork = errors.New("network error")

	// ErrRateLimited is the provider backpressure signal; back off before
	// retrying.
	ErrRateLimited = errors.New("rate limited by provider")

	// ErrNoLiquidity means the provider explicitly reported no viable route.
	ErrNoLiquidity = errors.New("no liquidity for trade")

	// ErrQuoteExpired means the quote outlived its execution window; request
	// a fresh quote instead of replaying the payload.
	ErrQuoteExpired = errors.New("quote expired")

	// ErrQuoteConsumed means the quote was already passed to execution.
	ErrQuoteConsumed = errors.New("quote already executed")

	// Signer-side failures. Never retried automatically.
	ErrUserRejected     = errors.New("user rejected signing")
	ErrSignerFailure    = errors.New("signer failure")
	ErrBroadcastFailure = errors.New("broadcast failure")

	// ErrStreamClosed is returned by operations on a closed market stream.
	ErrStreamClosed = errors.New("market stream closed")

	// ErrUnavailable means no market snapshot has been established yet.
	ErrUnavailable = errors.New("market data unavailable")
)
