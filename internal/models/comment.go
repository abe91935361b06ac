package models

import "time"

type Comment struct {
	ID              int       `gorm:"primaryKey" json:"id"`
	Body            string    `gorm:"not null" json:"body"`
	AuthorID        int       `gorm:"not null" json:"author_id"`
	User            User      `gorm:"foreignKey:AuthorID" json:"user"`
	PostID          int       `gorm:"not null;index" json:"post_id"`
	ParentCommentID *int      `json:"parent_comment_id,omitempty"`
	Upvotes         int       `gorm:"->" json:"upvotes"`
	Downvotes       int       `gorm:"->" json:"downvotes"`
	IsActive        bool      `gorm:"not null;default:true" json:"-"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

type CreateCommentRequest struct {
	Body            string `json:"body" binding:"required"`
	ParentCommentID *int   `json:"parent_comment_id,omitempty"`
}
