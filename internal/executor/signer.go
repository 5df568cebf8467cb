// ==================================
// File: internal/executor/signer.go
// ==================================
package executor

import (
	"context"
	"fmt"

	"github.com/gagliardetto/solana-go"
	"go.uber.org/zap"

	"github.com/kamilbekov/solana-terminal/internal/chain"
	"github.com/kamilbekov/solana-terminal/internal/types"
	"github.com/kamilbekov/solana-terminal/internal/wallet"
)

// Signer is the capability interface for signing and broadcasting a
// deserialized transaction. Backends range from an embedded key to hardware
// wallets or browser extensions; the executor treats them all the same.
type Signer interface {
	// Address returns the public address the signer signs for.
	Address() string
	// SignAndSend signs the transaction and broadcasts it, returning the
	// transaction signature.
	SignAndSend(ctx context.Context, tx *solana.Transaction) (string, error)
}

// LocalSigner signs with an embedded wallet key and broadcasts through a
// chain client.
type LocalSigner struct {
	wallet      *wallet.Wallet
	broadcaster chain.Broadcaster
	logger      *zap.Logger
}

func NewLocalSigner(w *wallet.Wallet, broadcaster chain.Broadcaster, logger *zap.Logger) *LocalSigner {
	return &LocalSigner{
		wallet:      w,
		broadcaster: broadcaster,
		logger:      logger.Named("local_signer"),
	}
}

func (s *LocalSigner) Address() string {
	return s.wallet.PublicKey.String()
}

// SignAndSend signs the prepared transaction as-is; the provider payload
// already carries a recent blockhash. Success means the cluster confirmed
// the signature, not just that the send call returned. Signing and
// broadcast failures stay distinguishable for the executor's error mapping.
func (s *LocalSigner) SignAndSend(ctx context.Context, tx *solana.Transaction) (string, error) {
	if err := s.wallet.SignTransaction(tx); err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrSignerFailure, err)
	}

	sig, err := s.broadcaster.SendTransaction(ctx, tx)
	if err != nil {
		return "", fmt.Errorf("%w: %v", types.ErrBroadcastFailure, err)
	}

	s.logger.Info("transaction broadcast, awaiting confirmation",
		zap.String("signature", sig.String()),
		zap.String("address", s.Address()))

	if err := s.broadcaster.WaitForConfirmation(ctx, sig); err != nil {
		return "", fmt.Errorf("%w: confirmation: %v", types.ErrBroadcastFailure, err)
	}

	s.logger.Info("transaction confirmed", zap.String("signature", sig.String()))
	return sig.String(), nil
}

var _ Signer = (*LocalSigner)(nil)
