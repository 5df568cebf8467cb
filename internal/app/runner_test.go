// ==================================
// File: internal/app/runner_test.go
// ==================================
package app

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/executor"
	"github.com/kamilbekov/solana-terminal/internal/quote"
	"github.com/kamilbekov/solana-terminal/internal/types"
)

func TestRunnerInitializeQuoteOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("debug_logging: false\n"), 0o600))

	runner := NewRunner(zap.NewNop())
	require.NoError(t, runner.Initialize(path))

	assert.NotNil(t, runner.Quotes())
	assert.NotNil(t, runner.Market())
	assert.NotNil(t, runner.Balances())
	// Without a wallet and RPC the executor stays unconfigured.
	assert.Nil(t, runner.Executor())
}

type recordingSigner struct {
	sig   string
	calls int
}

func (s *recordingSigner) Address() string { return "signer1111111111111111111111111111111111111" }

func (s *recordingSigner) SignAndSend(ctx context.Context, tx *solana.Transaction) (string, error) {
	s.calls++
	return s.sig, nil
}

// TestSwapPipeline drives the full quote-then-execute path: intent in, order
// fetched from the provider, quote formatted for display, payload handed to
// the signer exactly once.
func TestSwapPipeline(t *testing.T) {
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

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/order", r.URL.Path)
		assert.Equal(t, "2000000000", r.URL.Query().Get("amount"))
		w.Write([]byte(`{
			"transaction": "` + base64.StdEncoding.EncodeToString(payload) + `",
			"outAmount": "180000000",
			"router": "metis",
			"priceImpact": 0.01
		}`))
	}))
	defer srv.Close()

	engine := quote.NewEngine(quote.EngineConfig{
		Client: quote.NewJupiterClient(srv.URL, 5*time.Second, zap.NewNop()),
		Logger: zap.NewNop(),
	})
	defer engine.Close()

	intent := types.TradeIntent{
		InputToken:   types.WSOL,
		OutputToken:  types.USDC,
		HumanAmount:  "2",
		SlippageBps:  50,
		TakerAddress: "taker1111111111111111111111111111111111111111",
	}

	q, err := engine.QuoteOnce(context.Background(), intent)
	require.NoError(t, err)
	assert.Equal(t, "180.000000", q.OutAmountUI())
	assert.Equal(t, "metis", q.Route)

	signer := &recordingSigner{sig: "abc"}
	exec := executor.New(executor.Config{Signer: signer, Logger: zap.NewNop()})

	res, err := exec.Execute(context.Background(), q)
	require.NoError(t, err)
	assert.Equal(t, "abc", res.Signature)
	assert.Equal(t, 1, signer.calls)

	// The quote is spent; re-executing requires a fresh one.
	_, err = exec.Execute(context.Background(), q)
	assert.ErrorIs(t, err, types.ErrQuoteConsumed)
}
