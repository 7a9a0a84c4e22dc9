// Package launchpad wraps asset creation behind a single callback contract so
// coin and post creation look identical to the orchestrator regardless of the
// underlying factory call.
package launchpad

import (
	"context"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"mintgram/mintclub"
)

// Callbacks is the uniform creation callback tuple. SignatureRequested and
// Submitted fire synchronously relative to the signing flow. Confirmed and
// Failed may fire asynchronously, arbitrarily later, or never; callers must
// not rely on them as their only confirmation path.
type Callbacks struct {
	SignatureRequested func()
	Submitted          func(txHash common.Hash)
	Confirmed          func(receipt *gethtypes.Receipt)
	Failed             func(err error)
}

func (cb Callbacks) signatureRequested() {
	if cb.SignatureRequested != nil {
		cb.SignatureRequested()
	}
}

func (cb Callbacks) submitted(txHash common.Hash) {
	if cb.Submitted != nil {
		cb.Submitted(txHash)
	}
}

func (cb Callbacks) confirmed(receipt *gethtypes.Receipt) {
	if cb.Confirmed != nil {
		cb.Confirmed(receipt)
	}
}

func (cb Callbacks) failed(err error) {
	if cb.Failed != nil {
		cb.Failed(err)
	}
}

// Creator submits a creation transaction. An error return means the operation
// failed before or during submission; after a nil return the outcome arrives
// through the callbacks.
type Creator interface {
	Create(ctx context.Context, params mintclub.CreationParams, cb Callbacks) error
}

// CreatorFunc adapts a function to the Creator interface.
type CreatorFunc func(ctx context.Context, params mintclub.CreationParams, cb Callbacks) error

// Create implements Creator.
func (f CreatorFunc) Create(ctx context.Context, params mintclub.CreationParams, cb Callbacks) error {
	return f(ctx, params, cb)
}
