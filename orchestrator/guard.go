package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mintgram/wallet"
)

// ErrChainSwitchFailed indicates the wallet refused or failed the switch
// request.
var ErrChainSwitchFailed = errors.New("orchestrator: chain switch failed")

// NetworkGuard verifies the connected wallet is on the required chain before
// any transaction is attempted, issuing at most one switch request. A failed
// switch is reported once; the caller may re-invoke on a new user action.
type NetworkGuard struct {
	wallet   wallet.Wallet
	required uint64
	logger   *slog.Logger
}

// NewNetworkGuard constructs a guard for the required chain.
func NewNetworkGuard(w wallet.Wallet, required uint64, logger *slog.Logger) *NetworkGuard {
	if logger == nil {
		logger = slog.Default()
	}
	return &NetworkGuard{wallet: w, required: required, logger: logger}
}

// EnsureChain returns nil when the wallet is connected to the required chain,
// switching first if necessary. It returns wallet.ErrNoWallet when nothing is
// connected and ErrChainSwitchFailed when the switch is refused.
func (g *NetworkGuard) EnsureChain(ctx context.Context) error {
	if g.wallet == nil {
		return wallet.ErrNoWallet
	}
	active, err := g.wallet.ActiveChain(ctx)
	if err != nil {
		if errors.Is(err, wallet.ErrNoWallet) {
			return err
		}
		return fmt.Errorf("orchestrator: query active chain: %w", err)
	}
	if active == g.required {
		return nil
	}
	g.logger.Info("switching wallet chain", "from", active, "to", g.required)
	if err := g.wallet.SwitchChain(ctx, g.required); err != nil {
		return fmt.Errorf("%w: %v", ErrChainSwitchFailed, err)
	}
	return nil
}
