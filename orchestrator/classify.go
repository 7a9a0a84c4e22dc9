package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"mintgram/ledger"
	"mintgram/wallet"
)

// ErrorKind is the fixed failure taxonomy driving user messaging and retry
// eligibility.
type ErrorKind string

// The taxonomy.
const (
	ErrorNoWallet           ErrorKind = "no_wallet"
	ErrorChainSwitchFailed  ErrorKind = "chain_switch_failed"
	ErrorRejected           ErrorKind = "rejected"
	ErrorInsufficientFunds  ErrorKind = "insufficient_funds"
	ErrorAlreadyExists      ErrorKind = "already_exists"
	ErrorReceiptFetchFailed ErrorKind = "receipt_fetch_failed"
	ErrorUnknown            ErrorKind = "unknown"
)

// ClassifiedError is the classifier's verdict: taxonomy kind, the message to
// surface, and whether re-running the whole operation is worth suggesting.
type ClassifiedError struct {
	Kind        ErrorKind
	UserMessage string
	Retryable   bool
}

// User-facing messages per kind. Unknown failures surface the raw message.
const (
	msgNoWallet           = "Wallet is not connected."
	msgChainSwitchFailed  = "Failed to switch network. Please switch manually and retry."
	msgRejected           = "Transaction was rejected."
	msgInsufficientFunds  = "Insufficient funds. ETH on the target network is required."
	msgAlreadyExists      = "That name is already taken. Please choose another."
	msgReceiptFetchFailed = "Could not confirm the transaction. Please try again shortly."
)

// Classifier maps raw failures onto the taxonomy. When the raw failure says
// the provider could not fetch a receipt and the transaction hash is known,
// the classifier performs one manual receipt fetch before giving up; a receipt
// found that way overrides the failure entirely.
type Classifier struct {
	client   ledger.Client
	waitOpts ledger.ReceiptWaitOptions
	logger   *slog.Logger
}

// NewClassifier constructs a classifier. The ledger client may be nil, in
// which case the manual receipt fallback is skipped.
func NewClassifier(client ledger.Client, waitOpts ledger.ReceiptWaitOptions, logger *slog.Logger) *Classifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{client: client, waitOpts: waitOpts, logger: logger}
}

// Classify maps cause onto the taxonomy. The returned receipt is non-nil only
// when the manual fallback recovered the transaction, in which case the
// failure is void and the caller must treat the operation as confirmed.
func (c *Classifier) Classify(ctx context.Context, cause error, txHash *common.Hash) (ClassifiedError, *gethtypes.Receipt) {
	if cause == nil {
		return ClassifiedError{Kind: ErrorUnknown, UserMessage: "unknown error", Retryable: false}, nil
	}

	// Structured sentinels first; message matching is the legacy fallback.
	switch {
	case errors.Is(cause, wallet.ErrNoWallet):
		return ClassifiedError{Kind: ErrorNoWallet, UserMessage: msgNoWallet}, nil
	case errors.Is(cause, wallet.ErrRejected):
		return ClassifiedError{Kind: ErrorRejected, UserMessage: msgRejected}, nil
	}

	message := cause.Error()
	lower := strings.ToLower(message)
	switch {
	case strings.Contains(message, "User rejected"):
		return ClassifiedError{Kind: ErrorRejected, UserMessage: msgRejected}, nil
	case strings.Contains(lower, "insufficient funds"):
		return ClassifiedError{Kind: ErrorInsufficientFunds, UserMessage: msgInsufficientFunds}, nil
	case strings.Contains(lower, "already exists"):
		return ClassifiedError{Kind: ErrorAlreadyExists, UserMessage: msgAlreadyExists}, nil
	case c.isReceiptFetchFailure(cause, lower):
		if txHash != nil && c.client != nil {
			if receipt := c.manualReceiptFetch(ctx, *txHash); receipt != nil {
				return ClassifiedError{}, receipt
			}
		}
		return ClassifiedError{Kind: ErrorReceiptFetchFailed, UserMessage: msgReceiptFetchFailed, Retryable: true}, nil
	}
	return ClassifiedError{Kind: ErrorUnknown, UserMessage: message}, nil
}

func (c *Classifier) isReceiptFetchFailure(cause error, lower string) bool {
	if errors.Is(cause, ledger.ErrReceiptTimeout) {
		return true
	}
	return strings.Contains(lower, "failed to get transaction receipt")
}

func (c *Classifier) manualReceiptFetch(ctx context.Context, txHash common.Hash) *gethtypes.Receipt {
	receipt, err := ledger.WaitForReceipt(ctx, c.client, txHash, c.waitOpts)
	if err != nil {
		c.logger.Warn("manual receipt fallback failed", "tx", txHash.Hex(), "err", err)
		return nil
	}
	c.logger.Info("manual receipt fallback recovered transaction", "tx", txHash.Hex())
	return receipt
}
