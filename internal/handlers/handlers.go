package handlers

import (
	"gorm.io/gorm"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
)

// Handler combines all handler types
type Handler struct {
	Post    *PostHandler
	Comment *CommentHandler
	User    *UserHandler
	Vote    *VoteHandler
}

// NewHandler creates a unified handler with all sub-handlers
func NewHandler(db *gorm.DB, caster VoteCaster, log *logger.Logger) *Handler {
	return &Handler{
		Post:    NewPostHandler(db, log),
		Comment: NewCommentHandler(db),
		User:    NewUserHandler(db, log),
		Vote:    NewVoteHandler(caster, log),
	}
}
