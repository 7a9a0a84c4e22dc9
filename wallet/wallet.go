// Package wallet defines the boundary to the user's signing wallet. The wallet
// itself lives outside this module; the orchestrator only needs to know which
// chain it is on, ask it to switch, and hand it transactions to sign and
// broadcast.
package wallet

import (
	"context"
	"errors"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ErrNoWallet indicates that no wallet is connected.
var ErrNoWallet = errors.New("wallet: not connected")

// ErrRejected indicates the user declined the signature or switch prompt.
var ErrRejected = errors.New("wallet: user rejected request")

// Wallet captures the functionality the orchestrator requires from the
// connected signing wallet.
type Wallet interface {
	// ActiveChain returns the chain the wallet is currently connected to.
	// Returns ErrNoWallet when no wallet is connected.
	ActiveChain(ctx context.Context) (uint64, error)
	// SwitchChain prompts the wallet to move to the given chain and blocks
	// until the wallet confirms or refuses.
	SwitchChain(ctx context.Context, chainID uint64) error
	// SignAndSend signs the prepared calldata against the target contract
	// and broadcasts it, returning the transaction hash.
	SignAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

// FuncWallet adapts callback functions to the Wallet interface.
type FuncWallet struct {
	ActiveChainFunc func(ctx context.Context) (uint64, error)
	SwitchChainFunc func(ctx context.Context, chainID uint64) error
	SignAndSendFunc func(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error)
}

// ActiveChain delegates to the configured callback.
func (w FuncWallet) ActiveChain(ctx context.Context) (uint64, error) {
	if w.ActiveChainFunc == nil {
		return 0, ErrNoWallet
	}
	return w.ActiveChainFunc(ctx)
}

// SwitchChain delegates to the configured callback.
func (w FuncWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	if w.SwitchChainFunc == nil {
		return ErrNoWallet
	}
	return w.SwitchChainFunc(ctx, chainID)
}

// SignAndSend delegates to the configured callback.
func (w FuncWallet) SignAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	if w.SignAndSendFunc == nil {
		return common.Hash{}, ErrNoWallet
	}
	return w.SignAndSendFunc(ctx, to, value, data)
}
