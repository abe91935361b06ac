package models

import "time"

// Post is votable content. Upvotes/Downvotes are read-only here: the vote
// engine is the only writer.
type Post struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Title     string    `gorm:"not null" json:"title"`
	Content   string    `json:"content"`
	Image     string    `json:"image"`
	Category  string    `json:"category"`
	AuthorID  int       `gorm:"not null" json:"author_id"`
	Author    User      `gorm:"foreignKey:AuthorID" json:"author"`
	Comments  int       `gorm:"-" json:"comments"`
	Upvotes   int       `gorm:"->" json:"upvotes"`
	Downvotes int       `gorm:"->" json:"downvotes"`
	IsActive  bool      `gorm:"not null;default:true" json:"-"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type CreatePostRequest struct {
	Title    string `json:"title" binding:"required"`
	Content  string `json:"content"`
	Image    string `json:"image"`
	Category string `json:"category"`
}

type UpdatePostRequest struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	Image    *string `json:"image"`
	Category *string `json:"category"`
}
