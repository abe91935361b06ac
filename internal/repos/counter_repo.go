package repos

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

// CounterRepo writes the upvotes/downvotes columns of posts and comments.
// Nothing else in the codebase writes them.
type CounterRepo struct {
	db *gorm.DB
}

var _ votes.CounterStore = (*CounterRepo)(nil)

func NewCounterRepo(db *gorm.DB) *CounterRepo {
	return &CounterRepo{db: db}
}

func tableFor(kind votes.ContentKind) (string, error) {
	switch kind {
	case votes.KindPost:
		return "posts", nil
	case votes.KindComment:
		return "comments", nil
	default:
		return "", votes.ErrInvalidContentKind
	}
}

// Apply adds delta in place. The WHERE guard refuses any delta that would
// take a counter below zero, which can only happen if the counters already
// disagree with the ledger.
func (r *CounterRepo) Apply(dbc dbctx.Context, content votes.ContentRef, delta votes.Delta) (votes.Counters, error) {
	table, err := tableFor(content.Kind)
	if err != nil {
		return votes.Counters{}, err
	}
	tx := dbc.DB(r.db)

	var out votes.Counters
	res := tx.Raw(fmt.Sprintf(
		`UPDATE %s SET upvotes = upvotes + ?, downvotes = downvotes + ?
		WHERE id = ? AND upvotes + ? >= 0 AND downvotes + ? >= 0
		RETURNING upvotes, downvotes`, table),
		delta.Upvotes, delta.Downvotes, content.ID, delta.Upvotes, delta.Downvotes,
	).Scan(&out)
	if res.Error != nil {
		return votes.Counters{}, fmt.Errorf("apply %s counters: %w", content.Kind, res.Error)
	}
	if res.RowsAffected == 1 {
		return out, nil
	}

	var exists int64
	if err := tx.Table(table).Where("id = ?", content.ID).Count(&exists).Error; err != nil {
		return votes.Counters{}, fmt.Errorf("check %s: %w", content.Kind, err)
	}
	if exists == 0 {
		return votes.Counters{}, votes.ErrContentNotFound
	}
	return votes.Counters{}, votes.ConflictError("votes.counters.apply", "counter would go negative")
}

type counterRow struct {
	ID        int
	Upvotes   int
	Downvotes int
}

func (r *CounterRepo) Snapshot(dbc dbctx.Context, kind votes.ContentKind) (map[int]votes.Counters, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}
	var rows []counterRow
	if err := dbc.DB(r.db).Table(table).Select("id, upvotes, downvotes").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("snapshot %s counters: %w", kind, err)
	}
	out := make(map[int]votes.Counters, len(rows))
	for _, row := range rows {
		out[row.ID] = votes.Counters{Upvotes: row.Upvotes, Downvotes: row.Downvotes}
	}
	return out, nil
}

func (r *CounterRepo) Overwrite(dbc dbctx.Context, content votes.ContentRef, c votes.Counters) error {
	table, err := tableFor(content.Kind)
	if err != nil {
		return err
	}
	res := dbc.DB(r.db).Exec(
		fmt.Sprintf(`UPDATE %s SET upvotes = ?, downvotes = ? WHERE id = ?`, table),
		c.Upvotes, c.Downvotes, content.ID,
	)
	if res.Error != nil {
		return fmt.Errorf("overwrite %s counters: %w", content.Kind, res.Error)
	}
	if res.RowsAffected == 0 {
		return votes.ErrContentNotFound
	}
	return nil
}

// Read returns the stored counters outside any engine transaction.
func (r *CounterRepo) Read(dbc dbctx.Context, content votes.ContentRef) (votes.Counters, error) {
	table, err := tableFor(content.Kind)
	if err != nil {
		return votes.Counters{}, err
	}
	var row counterRow
	err = dbc.DB(r.db).Table(table).Select("id, upvotes, downvotes").Where("id = ?", content.ID).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return votes.Counters{}, votes.ErrContentNotFound
	}
	if err != nil {
		return votes.Counters{}, fmt.Errorf("read %s counters: %w", content.Kind, err)
	}
	return votes.Counters{Upvotes: row.Upvotes, Downvotes: row.Downvotes}, nil
}
