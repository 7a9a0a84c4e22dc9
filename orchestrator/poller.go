package orchestrator

import (
	"context"
	"log/slog"
	"time"
)

// ExistenceChecker answers whether a token is visible to the index yet.
type ExistenceChecker interface {
	Exists(ctx context.Context, symbol string) (bool, error)
}

// ExistenceCheckerFunc adapts a function to ExistenceChecker.
type ExistenceCheckerFunc func(ctx context.Context, symbol string) (bool, error)

// Exists implements ExistenceChecker.
func (f ExistenceCheckerFunc) Exists(ctx context.Context, symbol string) (bool, error) {
	return f(ctx, symbol)
}

// ExistenceOptions control the post-creation existence poll.
type ExistenceOptions struct {
	MaxAttempts int
	Interval    time.Duration
}

// DefaultExistenceOptions returns the observed cadence: ten attempts, two
// seconds apart.
func DefaultExistenceOptions() ExistenceOptions {
	return ExistenceOptions{MaxAttempts: 10, Interval: 2 * time.Second}
}

func (o ExistenceOptions) withDefaults() ExistenceOptions {
	def := DefaultExistenceOptions()
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = def.MaxAttempts
	}
	if o.Interval <= 0 {
		o.Interval = def.Interval
	}
	return o
}

// WaitForExistence polls the checker until the symbol is observed or the
// attempt budget is exhausted. Check errors count as "not yet". Exhaustion is
// a soft degradation: the caller proceeds without a refresh and the user can
// refresh manually later.
func WaitForExistence(ctx context.Context, checker ExistenceChecker, symbol string, opts ExistenceOptions, logger *slog.Logger) bool {
	if checker == nil || symbol == "" {
		return false
	}
	if logger == nil {
		logger = slog.Default()
	}
	opts = opts.withDefaults()

	for attempt := 1; attempt <= opts.MaxAttempts; attempt++ {
		exists, err := checker.Exists(ctx, symbol)
		if err != nil {
			logger.Debug("existence check failed", "symbol", symbol, "attempt", attempt, "err", err)
		} else if exists {
			return true
		}
		if attempt == opts.MaxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return false
		case <-time.After(opts.Interval):
		}
	}
	logger.Debug("existence poll exhausted", "symbol", symbol, "attempts", opts.MaxAttempts)
	return false
}
