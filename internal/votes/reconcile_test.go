package votes_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes/votestest"
)

func TestReconcile_ReportsAndRepairsDrift(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	other := votes.ContentRef{Kind: votes.KindPost, ID: 3}
	f.store.AddContent(other, true)

	_, err := f.svc.CastVote(ctx, 1, post, votes.Positive)
	require.NoError(t, err)
	_, err = f.svc.CastVote(ctx, 2, post, votes.Negative)
	require.NoError(t, err)
	_, err = f.svc.CastVote(ctx, 1, comment, votes.Positive)
	require.NoError(t, err)

	// simulate a writer that bypassed the engine
	f.store.SetCounters(post, votes.Counters{Upvotes: 7, Downvotes: 1})
	f.store.SetCounters(other, votes.Counters{Downvotes: 2})

	rec := votes.NewReconciler(votes.Deps{Ledger: f.store, Counters: f.store, Runner: f.store})

	drifts, err := rec.Reconcile(ctx, votes.KindPost, false)
	require.NoError(t, err)
	require.Len(t, drifts, 2)
	assert.Equal(t, votes.Drift{Content: other, Stored: votes.Counters{Downvotes: 2}, Tallied: votes.Counters{}}, drifts[0])
	assert.Equal(t, votes.Drift{Content: post, Stored: votes.Counters{Upvotes: 7, Downvotes: 1}, Tallied: votes.Counters{Upvotes: 1, Downvotes: 1}}, drifts[1])
	assert.Equal(t, votes.Counters{Upvotes: 7, Downvotes: 1}, f.store.CountersOf(post), "audit only")

	drifts, err = rec.Reconcile(ctx, votes.KindPost, true)
	require.NoError(t, err)
	assert.Len(t, drifts, 2)
	f.assertConsistent(t, post)
	f.assertConsistent(t, other)

	drifts, err = rec.Reconcile(ctx, votes.KindPost, false)
	require.NoError(t, err)
	assert.Empty(t, drifts)

	drifts, err = rec.Reconcile(ctx, votes.KindComment, false)
	require.NoError(t, err)
	assert.Empty(t, drifts)
}

func TestReconcile_RejectsUnknownKind(t *testing.T) {
	store := votestest.NewMemoryStore()
	rec := votes.NewReconciler(votes.Deps{Ledger: store, Counters: store, Runner: store})
	_, err := rec.Reconcile(context.Background(), votes.ContentKind("group"), false)
	assert.True(t, votes.IsCode(err, votes.CodeValidation))
}
