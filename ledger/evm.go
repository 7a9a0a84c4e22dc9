// Package ledger queries the EVM chain directly for transaction receipts. It
// backs the polling half of the confirmation race and the manual fallback the
// error classifier runs when the callback path claims a receipt could not be
// fetched.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// ErrReceiptTimeout indicates the receipt did not appear within the wait budget.
var ErrReceiptTimeout = errors.New("ledger: timed out waiting for receipt")

// ErrReverted indicates the transaction was mined but reverted.
var ErrReverted = errors.New("ledger: transaction reverted")

// Client defines the subset of the Ethereum RPC used for receipt queries.
type Client interface {
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
}

// Dial initialises an EVM RPC client for the provided endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("ledger: rpc endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// ReceiptWaitOptions control the polling loop in WaitForReceipt.
type ReceiptWaitOptions struct {
	PollingInterval time.Duration
	Timeout         time.Duration
	Confirmations   uint64
}

// DefaultReceiptWaitOptions mirrors the cadence the app has always used: poll
// every two seconds, give up after a minute, require one confirmation.
func DefaultReceiptWaitOptions() ReceiptWaitOptions {
	return ReceiptWaitOptions{
		PollingInterval: 2 * time.Second,
		Timeout:         60 * time.Second,
		Confirmations:   1,
	}
}

func (o ReceiptWaitOptions) withDefaults() ReceiptWaitOptions {
	def := DefaultReceiptWaitOptions()
	if o.PollingInterval <= 0 {
		o.PollingInterval = def.PollingInterval
	}
	if o.Timeout <= 0 {
		o.Timeout = def.Timeout
	}
	if o.Confirmations == 0 {
		o.Confirmations = def.Confirmations
	}
	return o
}

// WaitForReceipt polls the chain until the transaction has a successful receipt
// with the requested confirmation depth, the budget elapses, or the context is
// cancelled. A mined-but-reverted transaction returns ErrReverted immediately.
func WaitForReceipt(ctx context.Context, client Client, txHash common.Hash, opts ReceiptWaitOptions) (*gethtypes.Receipt, error) {
	if client == nil {
		return nil, fmt.Errorf("ledger: client required")
	}
	if (txHash == common.Hash{}) {
		return nil, fmt.Errorf("ledger: tx hash required")
	}
	opts = opts.withDefaults()

	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	ticker := time.NewTicker(opts.PollingInterval)
	defer ticker.Stop()

	for {
		receipt, err := fetchConfirmed(ctx, client, txHash, opts.Confirmations)
		if err == nil {
			return receipt, nil
		}
		if errors.Is(err, ErrReverted) {
			return nil, err
		}
		if ctx.Err() != nil {
			break
		}
		select {
		case <-ctx.Done():
		case <-ticker.C:
			continue
		}
		break
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return nil, fmt.Errorf("%w: %s", ErrReceiptTimeout, txHash.Hex())
	}
	return nil, ctx.Err()
}

// fetchConfirmed performs one receipt lookup and verifies status plus
// confirmation depth.
func fetchConfirmed(ctx context.Context, client Client, txHash common.Hash, confirmations uint64) (*gethtypes.Receipt, error) {
	receipt, err := client.TransactionReceipt(ctx, txHash)
	if err != nil {
		if errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("ledger: transaction %s not found", txHash.Hex())
		}
		return nil, fmt.Errorf("ledger: fetch receipt: %w", err)
	}
	if receipt == nil {
		return nil, fmt.Errorf("ledger: transaction receipt missing")
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%w: %s", ErrReverted, txHash.Hex())
	}
	if confirmations > 1 {
		header, err := client.HeaderByNumber(ctx, nil)
		if err != nil {
			return nil, fmt.Errorf("ledger: fetch head: %w", err)
		}
		if header == nil || header.Number == nil || receipt.BlockNumber == nil {
			return nil, fmt.Errorf("ledger: block metadata unavailable")
		}
		if header.Number.Cmp(receipt.BlockNumber) < 0 {
			return nil, fmt.Errorf("ledger: transaction block ahead of head")
		}
		confirmed := new(big.Int).Sub(header.Number, receipt.BlockNumber)
		confirmed.Add(confirmed, big.NewInt(1))
		if confirmed.Cmp(new(big.Int).SetUint64(confirmations)) < 0 {
			return nil, fmt.Errorf("ledger: insufficient confirmations: have %s want %d", confirmed.String(), confirmations)
		}
	}
	return receipt, nil
}
