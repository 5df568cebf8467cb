// ========================================
// File: internal/executor/executor_test.go
// ========================================
package executor

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/types"
)

// mockSigner records calls and returns a scripted outcome.
type mockSigner struct {
	sig string
	err error

	mu    sync.Mutex
	calls int
}

func (m *mockSigner) Address() string { return "signer1111111111111111111111111111111111111" }

func (m *mockSigner) SignAndSend(ctx context.Context, tx *solana.Transaction) (string, error) {
	m.mu.Lock()
	m.calls++
	m.mu.Unlock()
	if m.err != nil {
		return "", m.err
	}
	return m.sig, nil
}

func (m *mockSigner) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

type mockInvalidator struct {
	mu        sync.Mutex
	addresses []string
}

func (m *mockInvalidator) Invalidate(address string) {
	m.mu.Lock()
	m.addresses = append(m.addresses, address)
	m.mu.Unlock()
}

// testTxPayload builds a serialized unsigned transaction the way the pricing
// provider would return one.
func testTxPayload(t *testing.T) []byte {
	t.Helper()
	payer := solana.NewWallet()
	tx, err := solana.NewTransaction(
		[]solana.Instruction{
			system.NewTransferInstruction(1, payer.PublicKey(), solana.SystemProgramID).Build(),
		},
		solana.Hash{},
		solana.TransactionPayer(payer.PublicKey()),
	)
	require.NoError(t, err)

	payload, err := tx.MarshalBinary()
	require.NoError(t, err)
	return payload
}

func testQuote(t *testing.T) *types.Quote {
	t.Helper()
	return &types.Quote{
		Intent: types.TradeIntent{
			InputToken:   types.WSOL,
			OutputToken:  types.USDC,
			HumanAmount:  "2",
			SlippageBps:  50,
			TakerAddress: "taker1111111111111111111111111111111111111111",
		},
		OutAmountRaw: 180_000_000,
		UnsignedTx:   testTxPayload(t),
		FetchedAt:    time.Now(),
	}
}

func TestExecuteSuccess(t *testing.T) {
	signer := &mockSigner{sig: "abc"}
	inv := &mockInvalidator{}
	exec := New(Config{Signer: signer, Invalidator: inv, Logger: zap.NewNop()})

	q := testQuote(t)
	res, err := exec.Execute(context.Background(), q)
	require.NoError(t, err)

	assert.Equal(t, "abc", res.Signature)
	assert.Equal(t, 1, signer.callCount())
	assert.Equal(t, []string{q.Intent.TakerAddress}, inv.addresses)
}

func TestExecuteSingleUse(t *testing.T) {
	signer := &mockSigner{sig: "abc"}
	exec := New(Config{Signer: signer, Logger: zap.NewNop()})

	q := testQuote(t)
	_, err := exec.Execute(context.Background(), q)
	require.NoError(t, err)

	_, err = exec.Execute(context.Background(), q)
	assert.ErrorIs(t, err, types.ErrQuoteConsumed)
	assert.Equal(t, 1, signer.callCount())
}

func TestExecuteExpiredQuote(t *testing.T) {
	signer := &mockSigner{sig: "abc"}
	exec := New(Config{Signer: signer, QuoteTTL: 30 * time.Second, Logger: zap.NewNop()})

	q := testQuote(t)
	q.FetchedAt = time.Now().Add(-time.Minute)

	_, err := exec.Execute(context.Background(), q)
	assert.ErrorIs(t, err, types.ErrQuoteExpired)
	// The signer is never contacted for a stale quote.
	assert.Equal(t, 0, signer.callCount())
}

func TestExecuteMalformedPayload(t *testing.T) {
	signer := &mockSigner{sig: "abc"}
	exec := New(Config{Signer: signer, Logger: zap.NewNop()})

	q := testQuote(t)
	q.UnsignedTx = []byte("definitely not a transaction")

	_, err := exec.Execute(context.Background(), q)
	assert.ErrorIs(t, err, types.ErrNetwork)
	assert.Equal(t, 0, signer.callCount())
}

func TestExecuteSignerErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		signerErr error
		wantErr   error
	}{
		{"user rejected passes through", types.ErrUserRejected, types.ErrUserRejected},
		{"broadcast failure passes through", types.ErrBroadcastFailure, types.ErrBroadcastFailure},
		{"signer failure passes through", types.ErrSignerFailure, types.ErrSignerFailure},
		{"unclassified wraps as signer failure", errors.New("hardware wallet unplugged"), types.ErrSignerFailure},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			signer := &mockSigner{err: tt.signerErr}
			exec := New(Config{Signer: signer, Logger: zap.NewNop()})

			_, err := exec.Execute(context.Background(), testQuote(t))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestExecuteSerializesSignerAccess(t *testing.T) {
	signer := &slowSigner{}
	exec := New(Config{Signer: signer, Logger: zap.NewNop()})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := exec.Execute(context.Background(), testQuote(t))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, signer.maxOverlap())
}

// slowSigner tracks how many SignAndSend calls overlap.
type slowSigner struct {
	mu       sync.Mutex
	inFlight int
	peak     int
}

func (s *slowSigner) Address() string { return "signer1111111111111111111111111111111111111" }

func (s *slowSigner) SignAndSend(ctx context.Context, tx *solana.Transaction) (string, error) {
	s.mu.Lock()
	s.inFlight++
	if s.inFlight > s.peak {
		s.peak = s.inFlight
	}
	s.mu.Unlock()

	time.Sleep(10 * time.Millisecond)

	s.mu.Lock()
	s.inFlight--
	s.mu.Unlock()
	return "abc", nil
}

func (s *slowSigner) maxOverlap() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.peak
}
