package votes

import (
	"context"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
)

// Directory answers the liveness preconditions of a vote. Both methods
// return ErrUserNotFound / ErrContentNotFound for missing or inactive rows.
type Directory interface {
	GetActiveUser(ctx context.Context, id int) error
	GetActiveContent(ctx context.Context, ref ContentRef) error
}

// Ledger is the data access for vote records. Every method runs inside the
// transaction carried by dbc and never commits or retries on its own.
type Ledger interface {
	// Find returns the record for the pair, or nil when none exists
	Find(dbc dbctx.Context, voterID int, content ContentRef) (*Record, error)

	// Insert creates a record and fills in its ID; a concurrent insert of
	// the same pair surfaces as a unique violation
	Insert(dbc dbctx.Context, rec *Record) error

	// SetPolarity flips a record, matching on its previous polarity
	SetPolarity(dbc dbctx.Context, id int, from, to Polarity) error

	// Delete removes a record by id
	Delete(dbc dbctx.Context, id int) error

	// Tally counts ledger rows per content id for one kind
	Tally(dbc dbctx.Context, kind ContentKind) (map[int]Counters, error)

	// StatesFor reads the voter's current state for each id without locking.
	// Ids the voter never voted on are absent from the result.
	StatesFor(dbc dbctx.Context, voterID int, kind ContentKind, ids []int) (map[int]State, error)
}

// CounterStore owns the materialized upvotes/downvotes columns. It is the
// only writer of those columns.
type CounterStore interface {
	// Apply adds delta to the content's counters and returns the new values
	Apply(dbc dbctx.Context, content ContentRef, delta Delta) (Counters, error)

	// Snapshot reads the stored counters of every row of one kind
	Snapshot(dbc dbctx.Context, kind ContentKind) (map[int]Counters, error)

	// Overwrite replaces stored counters; used by reconciliation only
	Overwrite(dbc dbctx.Context, content ContentRef, c Counters) error
}
