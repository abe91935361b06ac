package votes

import (
	"context"
	"database/sql"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
	"gorm.io/gorm"
)

// TxRunner provides the transaction boundary for ledger and counter writes.
// fn either commits as a whole or leaves no trace.
type TxRunner interface {
	InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error
}

type gormTxRunner struct {
	db   *gorm.DB
	opts *sql.TxOptions
}

// NewGormTxRunner returns a runner backed by GORM transactions at the given
// isolation level.
func NewGormTxRunner(db *gorm.DB, isolation sql.IsolationLevel) TxRunner {
	return &gormTxRunner{db: db, opts: &sql.TxOptions{Isolation: isolation}}
}

func (r *gormTxRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	if fn == nil {
		return nil
	}
	if r == nil || r.db == nil {
		return NewError(CodeInternal, "votes.tx", "transaction runner has nil db", nil)
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(dbctx.Context{Ctx: ctx, Tx: tx})
	}, r.opts)
}
