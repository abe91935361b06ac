package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

func extractUserID(c *gin.Context) (int, bool) {
	raw, exists := c.Get("user_id")
	if !exists {
		return 0, false
	}
	switch v := raw.(type) {
	case int:
		return v, true
	case uint:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

func paramID(c *gin.Context, name string) (int, bool) {
	id, err := strconv.Atoi(c.Param(name))
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseIDList parses "1,2,3" into positive ids.
func parseIDList(raw string) ([]int, bool) {
	if strings.TrimSpace(raw) == "" {
		return nil, false
	}
	parts := strings.Split(raw, ",")
	ids := make([]int, 0, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, false
		}
		ids = append(ids, id)
	}
	return ids, true
}

// respondVoteError writes the HTTP form of a vote engine error.
func respondVoteError(c *gin.Context, err error) {
	switch votes.CodeOf(err) {
	case votes.CodeValidation:
		msg := "Invalid vote request"
		switch {
		case errors.Is(err, votes.ErrInvalidPolarity):
			msg = "Invalid vote type. Must be 'upvote' or 'downvote'"
		case errors.Is(err, votes.ErrInvalidContentKind):
			msg = "Invalid content kind. Must be 'post' or 'comment'"
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	case votes.CodeNotFound:
		msg := "Content not found"
		if errors.Is(err, votes.ErrUserNotFound) {
			msg = "User not found"
		}
		c.JSON(http.StatusNotFound, gin.H{"error": msg})
	case votes.CodeConflict:
		c.JSON(http.StatusConflict, gin.H{"error": "Vote conflicted with a concurrent change, please retry"})
	case votes.CodeUnavailable:
		c.Header("Retry-After", "1")
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Vote could not be recorded right now, please retry"})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to vote"})
	}
}
