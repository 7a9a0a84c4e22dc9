package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// TxBackend is the slice of the RPC client KeyWallet needs to build, price,
// and broadcast transactions. *ethclient.Client satisfies it.
type TxBackend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
}

// KeyWallet signs with a local private key and broadcasts through an RPC
// backend. Server deployments use it in place of a user-held wallet; it is
// pinned to one chain and refuses to switch.
type KeyWallet struct {
	backend TxBackend
	key     *ecdsa.PrivateKey
	from    common.Address
	chainID *big.Int
}

// NewKeyWallet derives the wallet from a hex-encoded private key and verifies
// the RPC endpoint is on the expected chain.
func NewKeyWallet(ctx context.Context, backend TxBackend, hexKey string, chainID uint64) (*KeyWallet, error) {
	if backend == nil {
		return nil, fmt.Errorf("wallet: rpc backend required")
	}
	trimmed := strings.TrimPrefix(strings.TrimSpace(hexKey), "0x")
	if trimmed == "" {
		return nil, ErrNoWallet
	}
	key, err := gethcrypto.HexToECDSA(trimmed)
	if err != nil {
		return nil, fmt.Errorf("wallet: parse signer key: %w", err)
	}
	remote, err := backend.ChainID(ctx)
	if err != nil {
		return nil, fmt.Errorf("wallet: query chain id: %w", err)
	}
	if remote.Uint64() != chainID {
		return nil, fmt.Errorf("wallet: rpc endpoint is on chain %d, expected %d", remote.Uint64(), chainID)
	}
	return &KeyWallet{
		backend: backend,
		key:     key,
		from:    gethcrypto.PubkeyToAddress(key.PublicKey),
		chainID: new(big.Int).SetUint64(chainID),
	}, nil
}

// Address returns the signing address.
func (w *KeyWallet) Address() common.Address {
	return w.from
}

// ActiveChain returns the pinned chain.
func (w *KeyWallet) ActiveChain(ctx context.Context) (uint64, error) {
	return w.chainID.Uint64(), nil
}

// SwitchChain refuses anything but the pinned chain.
func (w *KeyWallet) SwitchChain(ctx context.Context, chainID uint64) error {
	if chainID == w.chainID.Uint64() {
		return nil
	}
	return fmt.Errorf("wallet: key wallet is pinned to chain %d", w.chainID.Uint64())
}

// SignAndSend builds, signs, and broadcasts a transaction against the target
// contract. Chains without a base fee in their headers get a legacy
// gas-priced transaction.
func (w *KeyWallet) SignAndSend(ctx context.Context, to common.Address, value *big.Int, data []byte) (common.Hash, error) {
	nonce, err := w.backend.PendingNonceAt(ctx, w.from)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: fetch nonce: %w", err)
	}
	if value == nil {
		value = new(big.Int)
	}
	gasLimit, err := w.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:  w.from,
		To:    &to,
		Value: value,
		Data:  data,
	})
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: estimate gas: %w", err)
	}
	head, err := w.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: fetch head: %w", err)
	}

	var tx *gethtypes.Transaction
	if head.BaseFee != nil {
		tipCap, err := w.backend.SuggestGasTipCap(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("wallet: suggest gas tip: %w", err)
		}
		feeCap := new(big.Int).Add(tipCap, new(big.Int).Mul(head.BaseFee, big.NewInt(2)))
		tx = gethtypes.NewTx(&gethtypes.DynamicFeeTx{
			ChainID:   w.chainID,
			Nonce:     nonce,
			GasTipCap: tipCap,
			GasFeeCap: feeCap,
			Gas:       gasLimit,
			To:        &to,
			Value:     value,
			Data:      data,
		})
	} else {
		gasPrice, err := w.backend.SuggestGasPrice(ctx)
		if err != nil {
			return common.Hash{}, fmt.Errorf("wallet: suggest gas price: %w", err)
		}
		tx = gethtypes.NewTx(&gethtypes.LegacyTx{
			Nonce:    nonce,
			GasPrice: gasPrice,
			Gas:      gasLimit,
			To:       &to,
			Value:    value,
			Data:     data,
		})
	}
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(w.chainID), w.key)
	if err != nil {
		return common.Hash{}, fmt.Errorf("wallet: sign transaction: %w", err)
	}
	if err := w.backend.SendTransaction(ctx, signed); err != nil {
		return common.Hash{}, fmt.Errorf("wallet: broadcast transaction: %w", err)
	}
	return signed.Hash(), nil
}
