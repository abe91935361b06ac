package repos

import (
	"context"
	"database/sql"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/models"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

func seedUser(t *testing.T, db *gorm.DB) models.User {
	t.Helper()
	tag := uuid.NewString()[:8]
	u := models.User{Username: "u_" + tag, Email: tag + "@example.com"}
	require.NoError(t, db.Create(&u).Error)
	return u
}

func seedPost(t *testing.T, db *gorm.DB, authorID int) votes.ContentRef {
	t.Helper()
	p := models.Post{Title: "post " + uuid.NewString(), Content: "body", AuthorID: authorID}
	require.NoError(t, db.Create(&p).Error)
	return votes.ContentRef{Kind: votes.KindPost, ID: p.ID}
}

func seedComment(t *testing.T, db *gorm.DB, authorID, postID int) votes.ContentRef {
	t.Helper()
	c := models.Comment{Body: "comment", AuthorID: authorID, PostID: postID}
	require.NoError(t, db.Create(&c).Error)
	return votes.ContentRef{Kind: votes.KindComment, ID: c.ID}
}

// newEngine mirrors the API wiring: read committed and the given attempt budget.
func newEngine(db *gorm.DB, attempts uint) *votes.Service {
	return votes.NewService(votes.Deps{
		Directory: NewDirectory(db),
		Ledger:    NewVoteRepo(db),
		Counters:  NewCounterRepo(db),
		Runner:    votes.NewGormTxRunner(db, sql.LevelReadCommitted),
	}, votes.Options{
		MaxAttempts:    attempts,
		AttemptTimeout: 5 * time.Second,
		InitialBackoff: 5 * time.Millisecond,
		MaxBackoff:     50 * time.Millisecond,
	})
}

func storedCounters(t *testing.T, db *gorm.DB, ref votes.ContentRef) votes.Counters {
	t.Helper()
	c, err := NewCounterRepo(db).Read(dbctx.Context{Ctx: context.Background()}, ref)
	require.NoError(t, err)
	return c
}

func ledgerTally(t *testing.T, db *gorm.DB, ref votes.ContentRef) votes.Counters {
	t.Helper()
	all, err := NewVoteRepo(db).Tally(dbctx.Context{Ctx: context.Background()}, ref.Kind)
	require.NoError(t, err)
	return all[ref.ID]
}

func TestVoteRepo_LedgerOperations(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	dbc := dbctx.Context{Ctx: ctx}
	repo := NewVoteRepo(db)

	u := seedUser(t, db)
	ref := seedPost(t, db, u.ID)

	rec, err := repo.Find(dbc, u.ID, ref)
	require.NoError(t, err)
	assert.Nil(t, rec)

	in := &votes.Record{VoterID: u.ID, Content: ref, Polarity: votes.Positive}
	require.NoError(t, repo.Insert(dbc, in))
	assert.NotZero(t, in.ID)

	dup := repo.Insert(dbc, &votes.Record{VoterID: u.ID, Content: ref, Polarity: votes.Negative})
	require.Error(t, dup)
	assert.True(t, votes.IsCode(votes.MapError("test", dup), votes.CodeConflict), "got %v", dup)

	err = repo.SetPolarity(dbc, in.ID, votes.Negative, votes.Positive)
	assert.True(t, votes.IsCode(err, votes.CodeConflict), "compare-and-set on stale polarity")

	require.NoError(t, repo.SetPolarity(dbc, in.ID, votes.Positive, votes.Negative))
	rec, err = repo.Find(dbc, u.ID, ref)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, in.ID, rec.ID)
	assert.Equal(t, votes.Negative, rec.Polarity)
	assert.Equal(t, ref, rec.Content)

	require.NoError(t, repo.Delete(dbc, in.ID))
	assert.True(t, votes.IsCode(repo.Delete(dbc, in.ID), votes.CodeConflict))
}

func TestVoteRepo_RejectsInvalidVoteType(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db)
	ref := seedPost(t, db, u.ID)

	err := db.Create(&models.Vote{UserID: u.ID, ContentKind: "post", ContentID: ref.ID, VoteType: 2}).Error
	require.Error(t, err)
	assert.True(t, votes.IsCode(votes.MapError("test", err), votes.CodeConflict))
}

func TestVoteStates_Postgres(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	svc := newEngine(db, 3)

	author := seedUser(t, db)
	up := seedPost(t, db, author.ID)
	down := seedPost(t, db, author.ID)
	untouched := seedPost(t, db, author.ID)
	cref := seedComment(t, db, author.ID, up.ID)
	voter := seedUser(t, db)

	_, err := svc.CastVote(ctx, voter.ID, up, votes.Positive)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, voter.ID, down, votes.Negative)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, voter.ID, cref, votes.Positive)
	require.NoError(t, err)
	_, err = svc.CastVote(ctx, author.ID, untouched, votes.Positive)
	require.NoError(t, err)

	got, err := svc.VoteStates(ctx, voter.ID, votes.KindPost, []int{up.ID, down.ID, untouched.ID})
	require.NoError(t, err)
	assert.Equal(t, map[int]votes.State{
		up.ID:        votes.Upvoted,
		down.ID:      votes.Downvoted,
		untouched.ID: votes.NoVote,
	}, got)

	raw, err := NewVoteRepo(db).StatesFor(dbctx.Context{Ctx: ctx}, voter.ID, votes.KindComment, []int{cref.ID, up.ID})
	require.NoError(t, err)
	assert.Equal(t, map[int]votes.State{cref.ID: votes.Upvoted}, raw)

	// a toggle back to NoVote is visible immediately
	_, err = svc.CastVote(ctx, voter.ID, up, votes.Positive)
	require.NoError(t, err)
	got, err = svc.VoteStates(ctx, voter.ID, votes.KindPost, []int{up.ID})
	require.NoError(t, err)
	assert.Equal(t, votes.NoVote, got[up.ID])
}

func TestCounterRepo_ApplyGuards(t *testing.T) {
	db := testDB(t)
	dbc := dbctx.Context{Ctx: context.Background()}
	repo := NewCounterRepo(db)

	u := seedUser(t, db)
	ref := seedPost(t, db, u.ID)

	got, err := repo.Apply(dbc, ref, votes.Delta{Upvotes: 1})
	require.NoError(t, err)
	assert.Equal(t, votes.Counters{Upvotes: 1}, got)

	_, err = repo.Apply(dbc, ref, votes.Delta{Downvotes: -1})
	assert.True(t, votes.IsCode(err, votes.CodeConflict), "underflow must be refused")
	assert.Equal(t, votes.Counters{Upvotes: 1}, storedCounters(t, db, ref))

	_, err = repo.Apply(dbc, votes.ContentRef{Kind: votes.KindPost, ID: ref.ID + 100000}, votes.Delta{Upvotes: 1})
	assert.ErrorIs(t, err, votes.ErrContentNotFound)
}

func TestModels_CannotWriteCounters(t *testing.T) {
	db := testDB(t)
	u := seedUser(t, db)

	p := models.Post{Title: "forged", AuthorID: u.ID, Upvotes: 500, Downvotes: 3}
	require.NoError(t, db.Create(&p).Error)
	ref := votes.ContentRef{Kind: votes.KindPost, ID: p.ID}
	assert.Equal(t, votes.Counters{}, storedCounters(t, db, ref))

	p.Upvotes = 99
	p.Title = "edited"
	require.NoError(t, db.Save(&p).Error)
	assert.Equal(t, votes.Counters{}, storedCounters(t, db, ref))
}

func TestDirectory_ActiveChecks(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	dir := NewDirectory(db)

	u := seedUser(t, db)
	ref := seedPost(t, db, u.ID)
	require.NoError(t, dir.GetActiveUser(ctx, u.ID))
	require.NoError(t, dir.GetActiveContent(ctx, ref))

	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", ref.ID).Update("is_active", false).Error)
	assert.ErrorIs(t, dir.GetActiveContent(ctx, ref), votes.ErrContentNotFound)

	require.NoError(t, db.Model(&models.User{}).Where("id = ?", u.ID).Update("is_active", false).Error)
	assert.ErrorIs(t, dir.GetActiveUser(ctx, u.ID), votes.ErrUserNotFound)
	assert.ErrorIs(t, dir.GetActiveUser(ctx, -1), votes.ErrUserNotFound)
}

func TestCastVote_PostgresScenario(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	svc := newEngine(db, 3)

	author := seedUser(t, db)
	ref := seedPost(t, db, author.ID)
	a := seedUser(t, db)
	b := seedUser(t, db)

	steps := []struct {
		voter int
		p     votes.Polarity
		state votes.State
		want  votes.Counters
	}{
		{a.ID, votes.Positive, votes.Upvoted, votes.Counters{Upvotes: 1}},
		{a.ID, votes.Positive, votes.NoVote, votes.Counters{}},
		{a.ID, votes.Negative, votes.Downvoted, votes.Counters{Downvotes: 1}},
		{b.ID, votes.Negative, votes.Downvoted, votes.Counters{Downvotes: 2}},
		{a.ID, votes.Positive, votes.Upvoted, votes.Counters{Upvotes: 1, Downvotes: 1}},
	}
	for i, s := range steps {
		res, err := svc.CastVote(ctx, s.voter, ref, s.p)
		require.NoError(t, err, "step %d", i)
		assert.Equal(t, s.state, res.State, "step %d", i)
		assert.Equal(t, s.want, res.Counters, "step %d", i)
		assert.Equal(t, s.want, storedCounters(t, db, ref), "step %d", i)
	}

	var rows int64
	require.NoError(t, db.Model(&models.Vote{}).Where("content_kind = ? AND content_id = ?", "post", ref.ID).Count(&rows).Error)
	assert.EqualValues(t, 2, rows)
	assert.Equal(t, ledgerTally(t, db, ref), storedCounters(t, db, ref))
}

func TestCastVote_PostgresNotFoundLeavesStateUntouched(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	svc := newEngine(db, 3)

	author := seedUser(t, db)
	ref := seedPost(t, db, author.ID)
	voter := seedUser(t, db)

	_, err := svc.CastVote(ctx, voter.ID, ref, votes.Positive)
	require.NoError(t, err)

	_, err = svc.CastVote(ctx, voter.ID, votes.ContentRef{Kind: votes.KindPost, ID: ref.ID + 100000}, votes.Positive)
	assert.True(t, votes.IsCode(err, votes.CodeNotFound))

	_, err = svc.CastVote(ctx, voter.ID+100000, ref, votes.Positive)
	assert.True(t, votes.IsCode(err, votes.CodeNotFound))

	require.NoError(t, db.Model(&models.Post{}).Where("id = ?", ref.ID).Update("is_active", false).Error)
	_, err = svc.CastVote(ctx, voter.ID, ref, votes.Negative)
	assert.True(t, votes.IsCode(err, votes.CodeNotFound))

	assert.Equal(t, votes.Counters{Upvotes: 1}, storedCounters(t, db, ref))
	assert.Equal(t, votes.Counters{Upvotes: 1}, ledgerTally(t, db, ref))
}

func TestCastVote_PostgresDistinctVotersOnOnePost(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	svc := newEngine(db, 3)

	author := seedUser(t, db)
	ref := seedPost(t, db, author.ID)
	cref := seedComment(t, db, author.ID, ref.ID)

	const voters = 16
	ids := make([]int, voters)
	for i := range ids {
		ids[i] = seedUser(t, db).ID
	}

	// every voter works on its own pair, so nothing may fail: up, remove, up
	var wg sync.WaitGroup
	errs := make(chan error, voters*6)
	for i, id := range ids {
		wg.Add(1)
		go func(voter int, p votes.Polarity) {
			defer wg.Done()
			for r := 0; r < 3; r++ {
				for _, target := range []votes.ContentRef{ref, cref} {
					if _, err := svc.CastVote(ctx, voter, target, p); err != nil {
						errs <- err
					}
				}
			}
		}(id, []votes.Polarity{votes.Positive, votes.Negative}[i%2])
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Errorf("vote on a distinct pair failed: %v", err)
	}
	want := votes.Counters{Upvotes: voters / 2, Downvotes: voters / 2}
	for _, r := range []votes.ContentRef{ref, cref} {
		assert.Equal(t, want, storedCounters(t, db, r), "counters for %s", r)
		assert.Equal(t, want, ledgerTally(t, db, r), "ledger for %s", r)
	}
}

func TestCastVote_PostgresSamePairContention(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	svc := newEngine(db, 3)

	author := seedUser(t, db)
	ref := seedPost(t, db, author.ID)
	cref := seedComment(t, db, author.ID, ref.ID)

	const voters = 8
	const rounds = 6
	ids := make([]int, voters)
	for i := range ids {
		ids[i] = seedUser(t, db).ID
	}

	var wg sync.WaitGroup
	for i, id := range ids {
		// two goroutines per voter so the same pair is contended
		for g := 0; g < 2; g++ {
			wg.Add(1)
			go func(voter, seed int) {
				defer wg.Done()
				for r := 0; r < rounds; r++ {
					p := votes.Positive
					if (seed+r)%2 == 0 {
						p = votes.Negative
					}
					target := ref
					if r%3 == 0 {
						target = cref
					}
					_, err := svc.CastVote(ctx, voter, target, p)
					if err != nil {
						// only a repeatedly lost insert race may surface
						assert.True(t, votes.IsCode(err, votes.CodeConflict), "got %v", err)
					}
				}
			}(id, i+g)
		}
	}
	wg.Wait()

	for _, r := range []votes.ContentRef{ref, cref} {
		stored := storedCounters(t, db, r)
		assert.Equal(t, ledgerTally(t, db, r), stored, "counters for %s", r)
		assert.GreaterOrEqual(t, stored.Upvotes, 0)
		assert.GreaterOrEqual(t, stored.Downvotes, 0)
	}

	var dupes int64
	require.NoError(t, db.Raw(`SELECT COUNT(*) FROM (
		SELECT user_id, content_kind, content_id FROM votes
		GROUP BY user_id, content_kind, content_id HAVING COUNT(*) > 1) d`).Scan(&dupes).Error)
	assert.Zero(t, dupes)
}

func TestReconciler_PostgresRepairsDrift(t *testing.T) {
	db := testDB(t)
	ctx := context.Background()
	svc := newEngine(db, 3)

	author := seedUser(t, db)
	ref := seedPost(t, db, author.ID)
	voter := seedUser(t, db)
	_, err := svc.CastVote(ctx, voter.ID, ref, votes.Negative)
	require.NoError(t, err)

	require.NoError(t, db.Exec(`UPDATE posts SET upvotes = 4, downvotes = 0 WHERE id = ?`, ref.ID).Error)

	rec := votes.NewReconciler(votes.Deps{
		Ledger:   NewVoteRepo(db),
		Counters: NewCounterRepo(db),
		Runner:   votes.NewGormTxRunner(db, sql.LevelSerializable),
	})
	drifts, err := rec.Reconcile(ctx, votes.KindPost, true)
	require.NoError(t, err)

	var found bool
	for _, d := range drifts {
		if d.Content == ref {
			found = true
			assert.Equal(t, votes.Counters{Upvotes: 4}, d.Stored)
			assert.Equal(t, votes.Counters{Downvotes: 1}, d.Tallied)
		}
	}
	assert.True(t, found)
	assert.Equal(t, votes.Counters{Downvotes: 1}, storedCounters(t, db, ref))
}
