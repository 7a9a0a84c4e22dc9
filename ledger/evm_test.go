package ledger

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
)

type fakeClient struct {
	mu       sync.Mutex
	receipts []receiptResult
	calls    int
	head     *big.Int
}

type receiptResult struct {
	receipt *gethtypes.Receipt
	err     error
}

func (f *fakeClient) TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	idx := f.calls
	if idx >= len(f.receipts) {
		idx = len(f.receipts) - 1
	}
	f.calls++
	res := f.receipts[idx]
	return res.receipt, res.err
}

func (f *fakeClient) HeaderByNumber(ctx context.Context, number *big.Int) (*gethtypes.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &gethtypes.Header{Number: new(big.Int).Set(f.head)}, nil
}

func (f *fakeClient) setHead(n int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = big.NewInt(n)
}

func (f *fakeClient) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func successfulReceipt(block int64) *gethtypes.Receipt {
	return &gethtypes.Receipt{
		Status:      gethtypes.ReceiptStatusSuccessful,
		BlockNumber: big.NewInt(block),
	}
}

var testHash = common.HexToHash("0xabc123")

func TestWaitForReceiptRetriesUntilFound(t *testing.T) {
	client := &fakeClient{
		receipts: []receiptResult{
			{err: ethereum.NotFound},
			{err: ethereum.NotFound},
			{receipt: successfulReceipt(10)},
		},
		head: big.NewInt(10),
	}
	opts := ReceiptWaitOptions{PollingInterval: time.Millisecond, Timeout: time.Second, Confirmations: 1}
	receipt, err := WaitForReceipt(context.Background(), client, testHash, opts)
	if err != nil {
		t.Fatalf("wait for receipt: %v", err)
	}
	if receipt == nil || receipt.Status != gethtypes.ReceiptStatusSuccessful {
		t.Fatalf("unexpected receipt %+v", receipt)
	}
	if client.callCount() != 3 {
		t.Fatalf("expected 3 lookups, got %d", client.callCount())
	}
}

func TestWaitForReceiptTimesOut(t *testing.T) {
	client := &fakeClient{
		receipts: []receiptResult{{err: ethereum.NotFound}},
		head:     big.NewInt(10),
	}
	opts := ReceiptWaitOptions{PollingInterval: time.Millisecond, Timeout: 20 * time.Millisecond, Confirmations: 1}
	_, err := WaitForReceipt(context.Background(), client, testHash, opts)
	if !errors.Is(err, ErrReceiptTimeout) {
		t.Fatalf("expected ErrReceiptTimeout, got %v", err)
	}
}

func TestWaitForReceiptRevertedIsTerminal(t *testing.T) {
	client := &fakeClient{
		receipts: []receiptResult{{receipt: &gethtypes.Receipt{Status: gethtypes.ReceiptStatusFailed, BlockNumber: big.NewInt(5)}}},
		head:     big.NewInt(10),
	}
	opts := ReceiptWaitOptions{PollingInterval: time.Millisecond, Timeout: time.Second}
	_, err := WaitForReceipt(context.Background(), client, testHash, opts)
	if !errors.Is(err, ErrReverted) {
		t.Fatalf("expected ErrReverted, got %v", err)
	}
	if client.callCount() != 1 {
		t.Fatalf("reverted transaction should not be retried, got %d lookups", client.callCount())
	}
}

func TestWaitForReceiptConfirmationDepth(t *testing.T) {
	// Head starts level with the transaction block; two confirmations need
	// one more block, which "arrives" after the first check.
	client := &fakeClient{
		receipts: []receiptResult{{receipt: successfulReceipt(10)}},
		head:     big.NewInt(10),
	}
	opts := ReceiptWaitOptions{PollingInterval: time.Millisecond, Timeout: time.Second, Confirmations: 2}

	done := make(chan struct{})
	go func() {
		time.Sleep(5 * time.Millisecond)
		client.setHead(11)
		close(done)
	}()

	receipt, err := WaitForReceipt(context.Background(), client, testHash, opts)
	if err != nil {
		t.Fatalf("wait for receipt: %v", err)
	}
	<-done
	if receipt.BlockNumber.Int64() != 10 {
		t.Fatalf("unexpected block %v", receipt.BlockNumber)
	}
}

func TestWaitForReceiptValidatesInput(t *testing.T) {
	if _, err := WaitForReceipt(context.Background(), nil, testHash, ReceiptWaitOptions{}); err == nil {
		t.Fatal("expected error for nil client")
	}
	client := &fakeClient{receipts: []receiptResult{{receipt: successfulReceipt(1)}}, head: big.NewInt(1)}
	if _, err := WaitForReceipt(context.Background(), client, common.Hash{}, ReceiptWaitOptions{}); err == nil {
		t.Fatal("expected error for zero hash")
	}
}
