package wallet

import (
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

const testKeyHex = "4c0883a69102937d6231471b5dbb6204fe5129617082792ae468d01a3f362318"

type fakeBackend struct {
	chainID  *big.Int
	baseFee  *big.Int
	tipCap   *big.Int
	gasPrice *big.Int
	nonce    uint64
	gasLimit uint64
	sent     []*gethtypes.Transaction
}

func (b *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return b.chainID, nil
}

func (b *fakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	return b.nonce, nil
}

func (b *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	return b.gasLimit, nil
}

func (b *fakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if b.tipCap == nil {
		return nil, errors.New("tip cap unavailable")
	}
	return b.tipCap, nil
}

func (b *fakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	if b.gasPrice == nil {
		return nil, errors.New("gas price unavailable")
	}
	return b.gasPrice, nil
}

func (b *fakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	return &gethtypes.Header{Number: big.NewInt(1), BaseFee: b.baseFee}, nil
}

func (b *fakeBackend) SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error {
	b.sent = append(b.sent, tx)
	return nil
}

func newTestWallet(t *testing.T, backend *fakeBackend) *KeyWallet {
	t.Helper()
	w, err := NewKeyWallet(context.Background(), backend, testKeyHex, backend.chainID.Uint64())
	if err != nil {
		t.Fatalf("NewKeyWallet: %v", err)
	}
	return w
}

func TestSignAndSendDynamicFee(t *testing.T) {
	backend := &fakeBackend{
		chainID:  big.NewInt(8453),
		baseFee:  big.NewInt(100),
		tipCap:   big.NewInt(2),
		nonce:    7,
		gasLimit: 21000,
	}
	w := newTestWallet(t, backend)

	to := common.HexToAddress("0xc5a076cad94176c2996B32d8466Be1cE757FAa27")
	hash, err := w.SignAndSend(context.Background(), to, big.NewInt(5), []byte{0xab})
	if err != nil {
		t.Fatalf("SignAndSend: %v", err)
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Type() != gethtypes.DynamicFeeTxType {
		t.Fatalf("expected dynamic fee tx, got type %d", tx.Type())
	}
	if tx.Nonce() != 7 || tx.Gas() != 21000 {
		t.Fatalf("unexpected nonce/gas: %d/%d", tx.Nonce(), tx.Gas())
	}
	if tx.GasTipCap().Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("unexpected tip cap %s", tx.GasTipCap())
	}
	// tip + 2*baseFee
	if tx.GasFeeCap().Cmp(big.NewInt(202)) != 0 {
		t.Fatalf("unexpected fee cap %s", tx.GasFeeCap())
	}
	if *tx.To() != to || tx.Value().Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected destination/value: %s/%s", tx.To(), tx.Value())
	}
	if hash != tx.Hash() {
		t.Fatalf("returned hash %s does not match broadcast tx %s", hash, tx.Hash())
	}
}

func TestSignAndSendWithoutBaseFee(t *testing.T) {
	// Headers from pre-EIP-1559 chains carry no base fee; the wallet must fall
	// back to a gas-priced transaction instead of crashing.
	backend := &fakeBackend{
		chainID:  big.NewInt(1337),
		gasPrice: big.NewInt(5),
		nonce:    1,
		gasLimit: 50000,
	}
	w := newTestWallet(t, backend)

	to := common.HexToAddress("0xc5a076cad94176c2996B32d8466Be1cE757FAa27")
	hash, err := w.SignAndSend(context.Background(), to, nil, []byte{0x01})
	if err != nil {
		t.Fatalf("SignAndSend: %v", err)
	}
	if (hash == common.Hash{}) {
		t.Fatal("expected a transaction hash")
	}
	if len(backend.sent) != 1 {
		t.Fatalf("expected 1 broadcast, got %d", len(backend.sent))
	}
	tx := backend.sent[0]
	if tx.Type() != gethtypes.LegacyTxType {
		t.Fatalf("expected legacy tx, got type %d", tx.Type())
	}
	if tx.GasPrice().Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("unexpected gas price %s", tx.GasPrice())
	}
	if tx.Value().Sign() != 0 {
		t.Fatalf("nil value should send zero, got %s", tx.Value())
	}
}

func TestNewKeyWalletChainMismatch(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(1)}
	if _, err := NewKeyWallet(context.Background(), backend, testKeyHex, 8453); err == nil {
		t.Fatal("expected chain mismatch to be rejected")
	}
}

func TestNewKeyWalletMissingKey(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(8453)}
	if _, err := NewKeyWallet(context.Background(), backend, "", 8453); !errors.Is(err, ErrNoWallet) {
		t.Fatalf("expected ErrNoWallet, got %v", err)
	}
}

func TestSwitchChainPinned(t *testing.T) {
	backend := &fakeBackend{chainID: big.NewInt(8453)}
	w := newTestWallet(t, backend)
	if err := w.SwitchChain(context.Background(), 8453); err != nil {
		t.Fatalf("switch to pinned chain should succeed: %v", err)
	}
	if err := w.SwitchChain(context.Background(), 1); err == nil {
		t.Fatal("expected switch away from pinned chain to fail")
	}
}
