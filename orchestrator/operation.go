// Package orchestrator drives a user-initiated creation from intent to a
// durable, user-visible outcome: chain precondition checks, submission through
// the launchpad callback contract, a confirmation race between the callback
// path and a deadline-gated receipt poll, and a single terminal notification
// per operation.
package orchestrator

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

// Kind identifies the creation flow an operation runs.
type Kind string

// Operation kinds.
const (
	KindCreateCoin Kind = "create_coin"
	KindCreatePost Kind = "create_post"
)

// Status is the lifecycle state of an operation. Terminal states are never
// reopened; a fresh user action creates a new operation.
type Status string

// Operation statuses.
const (
	StatusPending   Status = "pending"
	StatusSubmitted Status = "submitted"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

// Operation is one user-initiated creation request. The coordinator owns the
// record; callers receive a snapshot once the operation reaches a terminal
// state.
type Operation struct {
	ID              string
	Kind            Kind
	Symbol          string
	SubmittedTxHash *common.Hash
	Status          Status
	StartedAt       time.Time
	Outcome         *ClassifiedError
	Receipt         *gethtypes.Receipt
}

// resolution is what a confirmation watcher commits: either a receipt or a
// classified failure, tagged with the path that won the race.
type resolution struct {
	receipt    *gethtypes.Receipt
	classified *ClassifiedError
	path       string
}

// Race paths, used for metrics and logs.
const (
	pathCallback = "callback"
	pathPoll     = "poll"
)

// opState is the ephemeral per-operation record: the mutable operation, the
// commit guard, and the cancellation shared by both watchers.
type opState struct {
	mu sync.Mutex
	op Operation

	committed atomic.Bool
	outcome   chan resolution

	watchCtx    context.Context
	cancelWatch context.CancelFunc

	deadline *time.Timer
}

func newOpState(parent context.Context, kind Kind, symbol string, now time.Time) *opState {
	ctx, cancel := context.WithCancel(parent)
	return &opState{
		op: Operation{
			ID:        uuid.NewString(),
			Kind:      kind,
			Symbol:    symbol,
			Status:    StatusPending,
			StartedAt: now,
		},
		outcome:     make(chan resolution, 1),
		watchCtx:    ctx,
		cancelWatch: cancel,
	}
}

// recordSubmission notes the transaction hash and moves the operation to
// Submitted.
func (s *opState) recordSubmission(txHash common.Hash) {
	s.mu.Lock()
	defer s.mu.Unlock()
	hash := txHash
	s.op.SubmittedTxHash = &hash
	s.op.Status = StatusSubmitted
}

func (s *opState) txHash() *common.Hash {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.op.SubmittedTxHash == nil {
		return nil
	}
	hash := *s.op.SubmittedTxHash
	return &hash
}

// commit applies a resolution exactly once. The first writer wins; later
// writers observe false and must perform no user-visible action. Committing
// cancels the sibling watcher and releases the deadline timer.
func (s *opState) commit(res resolution) bool {
	if !s.committed.CompareAndSwap(false, true) {
		return false
	}
	s.stopDeadline()
	s.cancelWatch()
	s.outcome <- res
	return true
}

func (s *opState) armDeadline(d time.Duration, fire func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deadline = time.AfterFunc(d, fire)
}

func (s *opState) stopDeadline() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.deadline != nil {
		s.deadline.Stop()
		s.deadline = nil
	}
}

// snapshot returns a copy of the operation record.
func (s *opState) snapshot() Operation {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.op
}

func (s *opState) setTerminal(status Status, classified *ClassifiedError, receipt *gethtypes.Receipt) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.op.Status = status
	s.op.Outcome = classified
	s.op.Receipt = receipt
}
