package repos

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/models"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/pkg/dbctx"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

// VoteRepo is the GORM-backed vote ledger.
type VoteRepo struct {
	db *gorm.DB
}

var _ votes.Ledger = (*VoteRepo)(nil)

func NewVoteRepo(db *gorm.DB) *VoteRepo {
	return &VoteRepo{db: db}
}

func (r *VoteRepo) Find(dbc dbctx.Context, voterID int, content votes.ContentRef) (*votes.Record, error) {
	var row models.Vote
	err := dbc.DB(r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ? AND content_kind = ? AND content_id = ?", voterID, string(content.Kind), content.ID).
		Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find vote: %w", err)
	}
	return toRecord(row), nil
}

func (r *VoteRepo) Insert(dbc dbctx.Context, rec *votes.Record) error {
	row := models.Vote{
		UserID:      rec.VoterID,
		ContentKind: string(rec.Content.Kind),
		ContentID:   rec.Content.ID,
		VoteType:    int(rec.Polarity),
	}
	if err := dbc.DB(r.db).Create(&row).Error; err != nil {
		return fmt.Errorf("insert vote: %w", err)
	}
	rec.ID = row.ID
	rec.CreatedAt = row.CreatedAt
	rec.UpdatedAt = row.UpdatedAt
	return nil
}

func (r *VoteRepo) SetPolarity(dbc dbctx.Context, id int, from, to votes.Polarity) error {
	res := dbc.DB(r.db).
		Model(&models.Vote{}).
		Where("id = ? AND vote_type = ?", id, int(from)).
		Updates(map[string]interface{}{
			"vote_type":  int(to),
			"updated_at": time.Now().UTC(),
		})
	if res.Error != nil {
		return fmt.Errorf("update vote: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return votes.ConflictError("votes.ledger.set_polarity", "vote changed concurrently")
	}
	return nil
}

func (r *VoteRepo) Delete(dbc dbctx.Context, id int) error {
	res := dbc.DB(r.db).Where("id = ?", id).Delete(&models.Vote{})
	if res.Error != nil {
		return fmt.Errorf("delete vote: %w", res.Error)
	}
	if res.RowsAffected != 1 {
		return votes.ConflictError("votes.ledger.delete", "vote already removed")
	}
	return nil
}

type tallyRow struct {
	ContentID int
	Upvotes   int
	Downvotes int
}

func (r *VoteRepo) Tally(dbc dbctx.Context, kind votes.ContentKind) (map[int]votes.Counters, error) {
	var rows []tallyRow
	err := dbc.DB(r.db).
		Model(&models.Vote{}).
		Select(`content_id,
			COUNT(*) FILTER (WHERE vote_type = 1) AS upvotes,
			COUNT(*) FILTER (WHERE vote_type = -1) AS downvotes`).
		Where("content_kind = ?", string(kind)).
		Group("content_id").
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("tally votes: %w", err)
	}
	out := make(map[int]votes.Counters, len(rows))
	for _, row := range rows {
		out[row.ContentID] = votes.Counters{Upvotes: row.Upvotes, Downvotes: row.Downvotes}
	}
	return out, nil
}

func (r *VoteRepo) StatesFor(dbc dbctx.Context, voterID int, kind votes.ContentKind, ids []int) (map[int]votes.State, error) {
	var rows []models.Vote
	err := dbc.DB(r.db).
		Select("content_id", "vote_type").
		Where("user_id = ? AND content_kind = ? AND content_id IN ?", voterID, string(kind), ids).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("vote states: %w", err)
	}
	out := make(map[int]votes.State, len(rows))
	for _, row := range rows {
		out[row.ContentID] = votes.StateOf(&votes.Record{Polarity: votes.Polarity(row.VoteType)})
	}
	return out, nil
}

func toRecord(row models.Vote) *votes.Record {
	return &votes.Record{
		ID:        row.ID,
		VoterID:   row.UserID,
		Content:   votes.ContentRef{Kind: votes.ContentKind(row.ContentKind), ID: row.ContentID},
		Polarity:  votes.Polarity(row.VoteType),
		CreatedAt: row.CreatedAt,
		UpdatedAt: row.UpdatedAt,
	}
}
