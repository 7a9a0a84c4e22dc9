package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"

	"mintgram/launchpad"
	"mintgram/ledger"
	"mintgram/mintclub"
	"mintgram/notify"
	"mintgram/wallet"
)

// ReadState is the dependent read-state store refreshed after a successful
// terminal outcome.
type ReadState interface {
	RefreshToken(ctx context.Context, symbol string)
	RefreshPosts(ctx context.Context, reserve common.Address)
}

// FuncReadState adapts callbacks to ReadState.
type FuncReadState struct {
	RefreshTokenFunc func(ctx context.Context, symbol string)
	RefreshPostsFunc func(ctx context.Context, reserve common.Address)
}

// RefreshToken delegates to the configured callback.
func (r FuncReadState) RefreshToken(ctx context.Context, symbol string) {
	if r.RefreshTokenFunc != nil {
		r.RefreshTokenFunc(ctx, symbol)
	}
}

// RefreshPosts delegates to the configured callback.
func (r FuncReadState) RefreshPosts(ctx context.Context, reserve common.Address) {
	if r.RefreshPostsFunc != nil {
		r.RefreshPostsFunc(ctx, reserve)
	}
}

// User-facing progress messages.
const (
	msgCoinCreating  = "Creating your creator coin..."
	msgPostCreating  = "Creating your post..."
	msgAwaitingSig   = "Waiting for wallet signature..."
	msgAwaitingChain = "Transaction submitted. Waiting for confirmation..."
	msgCoinCreated   = "Creator coin created!"
	msgPostCreated   = "Post created!"
)

// Coordinator runs creation operations end to end. One goroutine of control
// per operation; multiple operations may be in flight concurrently.
type Coordinator struct {
	guard         *NetworkGuard
	creator       launchpad.Creator
	client        ledger.Client
	classifier    *Classifier
	sink          notify.Sink
	readState     ReadState
	existence     ExistenceChecker
	existenceOpts ExistenceOptions
	deadline      time.Duration
	waitOpts      ledger.ReceiptWaitOptions
	clock         func() time.Time
	logger        *slog.Logger
	metrics       *Metrics

	mu       sync.Mutex
	inflight map[string]*opState
}

// Option customises the coordinator.
type Option func(*Coordinator)

// WithNotifier supplies the notification sink.
func WithNotifier(sink notify.Sink) Option {
	return func(c *Coordinator) { c.sink = sink }
}

// WithReadState supplies the dependent read-state store.
func WithReadState(rs ReadState) Option {
	return func(c *Coordinator) { c.readState = rs }
}

// WithExistenceChecker supplies the post-creation existence poll target.
func WithExistenceChecker(checker ExistenceChecker) Option {
	return func(c *Coordinator) { c.existence = checker }
}

// WithExistenceOptions overrides the existence poll cadence.
func WithExistenceOptions(opts ExistenceOptions) Option {
	return func(c *Coordinator) { c.existenceOpts = opts }
}

// WithDeadline overrides the idle deadline gating the polling fallback.
func WithDeadline(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.deadline = d
		}
	}
}

// WithReceiptWaitOptions overrides the polling fallback cadence.
func WithReceiptWaitOptions(opts ledger.ReceiptWaitOptions) Option {
	return func(c *Coordinator) { c.waitOpts = opts }
}

// WithClock sets the function used to derive timestamps.
func WithClock(clock func() time.Time) Option {
	return func(c *Coordinator) {
		if clock != nil {
			c.clock = clock
		}
	}
}

// WithLogger attaches a structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics overrides the default (unregistered) metrics.
func WithMetrics(m *Metrics) Option {
	return func(c *Coordinator) {
		if m != nil {
			c.metrics = m
		}
	}
}

// NewCoordinator constructs a coordinator for the required chain.
func NewCoordinator(w wallet.Wallet, creator launchpad.Creator, client ledger.Client, requiredChain uint64, opts ...Option) *Coordinator {
	c := &Coordinator{
		creator:       creator,
		client:        client,
		sink:          notify.SlogSink{},
		readState:     FuncReadState{},
		existenceOpts: DefaultExistenceOptions(),
		deadline:      10 * time.Second,
		waitOpts:      ledger.DefaultReceiptWaitOptions(),
		clock:         time.Now,
		logger:        slog.Default(),
		inflight:      make(map[string]*opState),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.guard = NewNetworkGuard(w, requiredChain, c.logger)
	c.classifier = NewClassifier(client, c.waitOpts, c.logger)
	if c.metrics == nil {
		c.metrics = NewMetrics(nil)
	}
	return c
}

// Run executes one creation operation to its terminal state and returns the
// final record. The notification sink receives exactly one terminal message
// keyed by the operation id, regardless of which confirmation path resolves.
func (c *Coordinator) Run(ctx context.Context, kind Kind, params mintclub.CreationParams) Operation {
	state := newOpState(ctx, kind, params.Symbol, c.clock())
	c.track(state)
	defer c.untrack(state)

	c.metrics.recordStart(kind)
	c.sink.Loading(loadingMessage(kind), state.op.ID)

	if err := params.Validate(); err != nil {
		classified := ClassifiedError{Kind: ErrorUnknown, UserMessage: err.Error()}
		state.commit(resolution{classified: &classified})
		return c.finish(ctx, state, kind, params)
	}
	if err := c.guard.EnsureChain(ctx); err != nil {
		classified := classifyGuardError(err)
		state.commit(resolution{classified: &classified})
		return c.finish(ctx, state, kind, params)
	}

	err := c.creator.Create(ctx, params, launchpad.Callbacks{
		SignatureRequested: func() {
			c.sink.Loading(msgAwaitingSig, state.op.ID)
		},
		Submitted: func(txHash common.Hash) {
			state.recordSubmission(txHash)
			c.sink.Loading(msgAwaitingChain, state.op.ID)
			c.armDeadline(state)
		},
		Confirmed: func(receipt *gethtypes.Receipt) {
			state.commit(resolution{receipt: receipt, path: pathCallback})
		},
		Failed: func(cause error) {
			c.resolveFailure(state, cause)
		},
	})
	if err != nil {
		c.resolveFailure(state, err)
	}

	return c.finish(ctx, state, kind, params)
}

// armDeadline starts the single-shot idle timer. If it elapses before the
// callback path commits, the watcher polls the ledger directly; whichever
// side commits first wins and the other becomes a no-op.
func (c *Coordinator) armDeadline(state *opState) {
	state.armDeadline(c.deadline, func() {
		if state.committed.Load() {
			return
		}
		hash := state.txHash()
		if hash == nil {
			return
		}
		c.logger.Info("confirmation deadline elapsed, polling ledger", "op", state.op.ID, "tx", hash.Hex())
		receipt, err := ledger.WaitForReceipt(state.watchCtx, c.client, *hash, c.waitOpts)
		if err != nil {
			if errors.Is(err, context.Canceled) {
				return
			}
			state.commit(resolution{
				classified: &ClassifiedError{Kind: ErrorReceiptFetchFailed, UserMessage: msgReceiptFetchFailed, Retryable: true},
				path:       pathPoll,
			})
			return
		}
		state.commit(resolution{receipt: receipt, path: pathPoll})
	})
}

// resolveFailure classifies a raw failure and commits it. When the manual
// receipt fallback recovers the transaction, the commit is a confirmation
// instead.
func (c *Coordinator) resolveFailure(state *opState, cause error) {
	if state.committed.Load() {
		return
	}
	classified, receipt := c.classifier.Classify(state.watchCtx, cause, state.txHash())
	if receipt != nil {
		state.commit(resolution{receipt: receipt, path: pathCallback})
		return
	}
	state.commit(resolution{classified: &classified})
}

// finish waits for the committed resolution, applies the terminal state, the
// post-success side effects, and the single terminal notification.
func (c *Coordinator) finish(ctx context.Context, state *opState, kind Kind, params mintclub.CreationParams) Operation {
	var res resolution
	select {
	case res = <-state.outcome:
	case <-ctx.Done():
		classified := ClassifiedError{Kind: ErrorUnknown, UserMessage: "operation cancelled"}
		state.commit(resolution{classified: &classified})
		res = <-state.outcome
	}

	if res.receipt != nil {
		state.setTerminal(StatusConfirmed, nil, res.receipt)
		c.metrics.recordConfirmed(kind, res.path)
		c.logger.Info("operation confirmed", "op", state.op.ID, "kind", string(kind), "path", res.path)
		c.refreshAfterSuccess(ctx, kind, params)
		c.sink.Success(successMessage(kind), state.op.ID)
		return state.snapshot()
	}

	state.setTerminal(StatusFailed, res.classified, nil)
	c.metrics.recordFailed(kind, res.classified.Kind)
	c.logger.Warn("operation failed",
		"op", state.op.ID, "kind", string(kind),
		"error_kind", string(res.classified.Kind), "retryable", res.classified.Retryable)
	c.sink.Error(res.classified.UserMessage, state.op.ID)
	return state.snapshot()
}

// refreshAfterSuccess runs the same side effects for both confirmation paths.
// Coins first wait for the index to observe the new token; posts refresh the
// creator's post list directly.
func (c *Coordinator) refreshAfterSuccess(ctx context.Context, kind Kind, params mintclub.CreationParams) {
	switch kind {
	case KindCreateCoin:
		if c.existence != nil {
			if WaitForExistence(ctx, c.existence, params.Symbol, c.existenceOpts, c.logger) {
				c.readState.RefreshToken(ctx, params.Symbol)
			}
			return
		}
		c.readState.RefreshToken(ctx, params.Symbol)
	case KindCreatePost:
		c.readState.RefreshPosts(ctx, params.Reserve.Address)
	}
}

func (c *Coordinator) track(state *opState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.inflight[state.op.ID] = state
}

func (c *Coordinator) untrack(state *opState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.inflight, state.op.ID)
}

// InFlight reports the number of operations currently running.
func (c *Coordinator) InFlight() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.inflight)
}

func classifyGuardError(err error) ClassifiedError {
	switch {
	case errors.Is(err, wallet.ErrNoWallet):
		return ClassifiedError{Kind: ErrorNoWallet, UserMessage: msgNoWallet}
	case errors.Is(err, ErrChainSwitchFailed):
		return ClassifiedError{Kind: ErrorChainSwitchFailed, UserMessage: msgChainSwitchFailed}
	}
	return ClassifiedError{Kind: ErrorUnknown, UserMessage: err.Error()}
}

func loadingMessage(kind Kind) string {
	if kind == KindCreateCoin {
		return msgCoinCreating
	}
	return msgPostCreating
}

func successMessage(kind Kind) string {
	if kind == KindCreateCoin {
		return msgCoinCreated
	}
	return msgPostCreated
}
