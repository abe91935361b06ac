package votestest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

func TestInjectedRunner_CommitsOnSuccess(t *testing.T) {
	r := &InjectedRunner{}
	called := false
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		called = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, called)
	begin, commit, rollback := r.Counts()
	assert.Equal(t, [3]int{1, 1, 0}, [3]int{begin, commit, rollback})
}

func TestInjectedRunner_FailBeginSkipsBody(t *testing.T) {
	beginErr := errors.New("no connection")
	r := &InjectedRunner{FailBegin: beginErr}
	err := r.InTx(context.Background(), func(_ dbctx.Context) error {
		t.Fatal("body must not run")
		return nil
	})
	assert.ErrorIs(t, err, beginErr)
}

func TestInjectedRunner_CommitFailureRollsBackInner(t *testing.T) {
	store := NewMemoryStore()
	ref := votes.ContentRef{Kind: votes.KindPost, ID: 1}
	store.AddContent(ref, true)

	r := &InjectedRunner{Inner: store, CommitErrs: []error{SerializationFailure()}}
	write := func(dbc dbctx.Context) error {
		if err := store.Insert(dbc, &votes.Record{VoterID: 1, Content: ref, Polarity: votes.Positive}); err != nil {
			return err
		}
		_, err := store.Apply(dbc, ref, votes.Delta{Upvotes: 1})
		return err
	}

	err := r.InTx(context.Background(), write)
	require.Error(t, err)
	assert.Zero(t, store.RecordCount())
	assert.Equal(t, votes.Counters{}, store.CountersOf(ref))

	require.NoError(t, r.InTx(context.Background(), write))
	assert.Equal(t, 1, store.RecordCount())
	assert.Equal(t, votes.Counters{Upvotes: 1}, store.CountersOf(ref))

	begin, commit, rollback := r.Counts()
	assert.Equal(t, [3]int{2, 1, 1}, [3]int{begin, commit, rollback})
}

func TestMemoryStore_GuardsMirrorDatabase(t *testing.T) {
	store := NewMemoryStore()
	ref := votes.ContentRef{Kind: votes.KindComment, ID: 9}
	store.AddContent(ref, true)
	dbc := dbctx.Context{Ctx: context.Background()}

	require.NoError(t, store.Insert(dbc, &votes.Record{VoterID: 1, Content: ref, Polarity: votes.Negative}))
	err := store.Insert(dbc, &votes.Record{VoterID: 1, Content: ref, Polarity: votes.Positive})
	assert.True(t, votes.IsCode(votes.MapError("insert", err), votes.CodeConflict))

	rec, err := store.Find(dbc, 1, ref)
	require.NoError(t, err)
	require.NotNil(t, rec)
	err = store.SetPolarity(dbc, rec.ID, votes.Positive, votes.Negative)
	assert.True(t, votes.IsCode(err, votes.CodeConflict), "stale polarity")

	_, err = store.Apply(dbc, ref, votes.Delta{Upvotes: -1})
	assert.True(t, votes.IsCode(err, votes.CodeConflict), "underflow")

	require.NoError(t, store.Delete(dbc, rec.ID))
	assert.True(t, votes.IsCode(store.Delete(dbc, rec.ID), votes.CodeConflict))
}

func TestHooksRecorder_CapturesSignals(t *testing.T) {
	h := &HooksRecorder{}
	h.ObserveOperation("votes.cast", "success", 0)
	h.IncRetry("votes.cast")
	h.IncConflict("votes.cast")
	assert.Equal(t, []string{"success"}, h.Statuses())
	assert.Equal(t, 1, h.RetryCount())
	assert.Equal(t, []string{"votes.cast"}, h.Conflicts)
}
