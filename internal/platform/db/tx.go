package db

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// Beginner starts transactions. *pgxpool.Pool satisfies it.
type Beginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

type commitHooksKey struct{}

// CommitHooks collects callbacks that must only run once the surrounding
// transaction has committed.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

// WithCommitHooks attaches a hook collector to ctx. When ctx already carries
// one (nested transaction) the returned collector is nil and the outer
// transaction stays responsible for running the hooks.
func WithCommitHooks(ctx context.Context) (context.Context, *CommitHooks) {
	if hooksFrom(ctx) != nil {
		return ctx, nil
	}
	hooks := &CommitHooks{}
	return context.WithValue(ctx, commitHooksKey{}, hooks), hooks
}

// AfterCommit schedules fn to run after the transaction bound to ctx commits.
// Outside a transaction fn runs immediately.
func AfterCommit(ctx context.Context, fn func(context.Context)) {
	if fn == nil {
		return
	}
	if hooks := hooksFrom(ctx); hooks != nil {
		hooks.mu.Lock()
		hooks.fns = append(hooks.fns, fn)
		hooks.mu.Unlock()
		return
	}
	fn(ctx)
}

// Run executes the registered hooks in registration order and clears them.
func (h *CommitHooks) Run(ctx context.Context) {
	if h == nil {
		return
	}
	h.mu.Lock()
	fns := h.fns
	h.fns = nil
	h.mu.Unlock()
	ctx = context.WithValue(ctx, commitHooksKey{}, (*CommitHooks)(nil))
	for _, fn := range fns {
		fn(ctx)
	}
}

// Discard drops the registered hooks without running them.
func (h *CommitHooks) Discard() {
	if h == nil {
		return
	}
	h.mu.Lock()
	h.fns = nil
	h.mu.Unlock()
}

func hooksFrom(ctx context.Context) *CommitHooks {
	hooks, _ := ctx.Value(commitHooksKey{}).(*CommitHooks)
	return hooks
}

// WithTx executes fn within a RepeatableRead transaction. Hooks registered
// through AfterCommit while fn runs are executed after a successful commit and
// discarded otherwise.
func WithTx(ctx context.Context, pool Beginner, fn func(context.Context, pgx.Tx) error) error {
	txCtx, hooks := WithCommitHooks(ctx)

	tx, err := pool.BeginTx(txCtx, pgx.TxOptions{IsoLevel: pgx.RepeatableRead})
	if err != nil {
		return fmt.Errorf("platform/db: begin tx: %w", err)
	}

	defer func() {
		_ = tx.Rollback(txCtx)
	}()

	if err := fn(txCtx, tx); err != nil {
		hooks.Discard()
		return err
	}

	if err := tx.Commit(txCtx); err != nil {
		hooks.Discard()
		return fmt.Errorf("platform/db: commit tx: %w", err)
	}

	hooks.Run(ctx)
	return nil
}
