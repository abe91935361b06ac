package models

import "time"

// Vote is one ledger row: the current polarity of one user on one post or
// comment. (user_id, content_kind, content_id) is unique.
type Vote struct {
	ID          int       `gorm:"primaryKey" json:"id"`
	UserID      int       `gorm:"not null;uniqueIndex:idx_votes_user_content,priority:1" json:"user_id"`
	ContentKind string    `gorm:"type:varchar(16);not null;uniqueIndex:idx_votes_user_content,priority:2;index:idx_votes_content,priority:1" json:"content_kind"`
	ContentID   int       `gorm:"not null;uniqueIndex:idx_votes_user_content,priority:3;index:idx_votes_content,priority:2" json:"content_id"`
	VoteType    int       `gorm:"type:smallint;not null" json:"vote_type"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

type CastVoteRequest struct {
	ContentKind string `json:"content_kind" binding:"required"`
	ContentID   int    `json:"content_id" binding:"required"`
	VoteType    string `json:"vote_type" binding:"required"`
}

type PostVoteRequest struct {
	VoteType int `json:"vote_type" binding:"required"`
}
