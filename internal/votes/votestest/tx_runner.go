package votestest

import (
	"context"
	"sync"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

// InjectedRunner wraps another runner (or none) and injects begin/commit
// failures. Commit failures are raised inside the inner transaction so the
// inner runner rolls its writes back.
type InjectedRunner struct {
	Inner votes.TxRunner

	mu sync.Mutex

	FailBegin  error
	FailCommit error
	// CommitErrs are returned by successive commits, one each, before
	// FailCommit is consulted.
	CommitErrs []error

	BeginCalls    int
	CommitCalls   int
	RollbackCalls int
}

var _ votes.TxRunner = (*InjectedRunner)(nil)

func (r *InjectedRunner) InTx(ctx context.Context, fn func(dbc dbctx.Context) error) error {
	r.mu.Lock()
	r.BeginCalls++
	failBegin := r.FailBegin
	r.mu.Unlock()

	if failBegin != nil {
		return failBegin
	}

	body := func(dbc dbctx.Context) error {
		if fn != nil {
			if err := fn(dbc); err != nil {
				return err
			}
		}
		return r.nextCommitErr()
	}

	var err error
	if r.Inner != nil {
		err = r.Inner.InTx(ctx, body)
	} else {
		err = body(dbctx.Context{Ctx: ctx})
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err != nil {
		r.RollbackCalls++
		return err
	}
	r.CommitCalls++
	return nil
}

func (r *InjectedRunner) nextCommitErr() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.CommitErrs) > 0 {
		err := r.CommitErrs[0]
		r.CommitErrs = r.CommitErrs[1:]
		return err
	}
	return r.FailCommit
}

func (r *InjectedRunner) Counts() (begin, commit, rollback int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.BeginCalls, r.CommitCalls, r.RollbackCalls
}
