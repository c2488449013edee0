package persistence

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5"
)

// TxBeginner starts transactions; *pgxpool.Pool satisfies it.
type TxBeginner interface {
	BeginTx(ctx context.Context, opts pgx.TxOptions) (pgx.Tx, error)
}

// CommitHooks collects continuations that may only run once a transaction has committed.
type CommitHooks struct {
	mu  sync.Mutex
	fns []func(context.Context)
}

// AfterCommit registers fn to run after a successful commit. It is dropped on rollback.
func (h *CommitHooks) AfterCommit(fn func(context.Context)) {
	if fn == nil {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fns = append(h.fns, fn)
}

func (h *CommitHooks) run(ctx context.Context) {
	h.mu.Lock()
	fns := append([]func(context.Context){}, h.fns...)
	h.mu.Unlock()

	for _, fn := range fns {
		fn(ctx)
	}
}

// RunInTx executes fn inside a transaction. The transaction commits when fn returns nil;
// hooks registered through CommitHooks run only after that commit succeeds.
func RunInTx(ctx context.Context, db TxBeginner, fn func(tx pgx.Tx, hooks *CommitHooks) error) error {
	if db == nil {
		return fmt.Errorf("begin tx: no database configured")
	}
	tx, err := db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}

	hooks := &CommitHooks{}
	if err := fn(tx, hooks); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(context.WithoutCancel(ctx))
		return fmt.Errorf("commit tx: %w", err)
	}

	hooks.run(context.WithoutCancel(ctx))
	return nil
}
