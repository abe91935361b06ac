package handlers

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/models"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/votes"
)

// VoteCaster is the slice of the vote engine the HTTP layer needs.
type VoteCaster interface {
	CastVote(ctx context.Context, voterID int, content votes.ContentRef, polarity votes.Polarity) (*votes.Result, error)
	VoteStates(ctx context.Context, voterID int, kind votes.ContentKind, ids []int) (map[int]votes.State, error)
}

type VoteHandler struct {
	votes VoteCaster
	log   *logger.Logger
}

func NewVoteHandler(caster VoteCaster, log *logger.Logger) *VoteHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &VoteHandler{votes: caster, log: log}
}

// CastVote handles POST /api/votes with a content reference and
// "upvote"/"downvote".
func (h *VoteHandler) CastVote(c *gin.Context) {
	voterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.CastVoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_kind, content_id and vote_type are required"})
		return
	}
	kind := votes.ContentKind(input.ContentKind)
	if !kind.Valid() {
		respondVoteError(c, votes.Wrap(votes.CodeValidation, "http.vote", votes.ErrInvalidContentKind))
		return
	}
	polarity, err := votes.ParsePolarity(input.VoteType)
	if err != nil {
		respondVoteError(c, votes.Wrap(votes.CodeValidation, "http.vote", err))
		return
	}

	h.cast(c, voterID, votes.ContentRef{Kind: kind, ID: input.ContentID}, polarity)
}

// VotePost handles POST /api/posts/:id/vote with vote_type 1 or -1.
func (h *VoteHandler) VotePost(c *gin.Context) {
	voterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var input models.PostVoteRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote type must be -1 or 1"})
		return
	}
	polarity, err := votes.PolarityFromInt(input.VoteType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Vote type must be -1 or 1"})
		return
	}

	h.cast(c, voterID, votes.ContentRef{Kind: votes.KindPost, ID: postID}, polarity)
}

// UpvoteComment casts an upvote on a comment; repeating it removes the vote.
func (h *VoteHandler) UpvoteComment(c *gin.Context) {
	h.voteComment(c, votes.Positive)
}

// DownvoteComment is UpvoteComment with the opposite polarity.
func (h *VoteHandler) DownvoteComment(c *gin.Context) {
	h.voteComment(c, votes.Negative)
}

func (h *VoteHandler) voteComment(c *gin.Context, polarity votes.Polarity) {
	voterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	commentID, ok := paramID(c, "commentId")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid comment ID"})
		return
	}
	h.cast(c, voterID, votes.ContentRef{Kind: votes.KindComment, ID: commentID}, polarity)
}

func (h *VoteHandler) cast(c *gin.Context, voterID int, ref votes.ContentRef, polarity votes.Polarity) {
	res, err := h.votes.CastVote(c.Request.Context(), voterID, ref, polarity)
	if err != nil {
		if votes.CodeOf(err) == votes.CodeInternal || votes.CodeOf(err) == "" {
			h.log.Error("vote request failed",
				"request_id", c.GetString("request_id"), "voter_id", voterID, "content", ref.String(), "error", err)
		}
		respondVoteError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":      voteMessage(res.Transition.Effect),
		"state":        res.State,
		"content_kind": ref.Kind,
		"content_id":   ref.ID,
		"upvotes":      res.Counters.Upvotes,
		"downvotes":    res.Counters.Downvotes,
	})
}

// GetVoteStates handles GET /api/votes?content_kind=post&content_ids=1,2,3
// and reports the caller's vote on each id ("upvoted", "downvoted" or "none").
func (h *VoteHandler) GetVoteStates(c *gin.Context) {
	voterID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	kind := votes.ContentKind(c.Query("content_kind"))
	if !kind.Valid() {
		respondVoteError(c, votes.Wrap(votes.CodeValidation, "http.vote_states", votes.ErrInvalidContentKind))
		return
	}
	raw := c.Query("content_ids")
	if raw == "" {
		raw = c.Query("content_id")
	}
	ids, ok := parseIDList(raw)
	if !ok || len(ids) > votes.MaxStateLookup {
		c.JSON(http.StatusBadRequest, gin.H{"error": "content_ids must be a comma separated list of positive ids"})
		return
	}

	states, err := h.votes.VoteStates(c.Request.Context(), voterID, kind, ids)
	if err != nil {
		respondVoteError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"content_kind": kind,
		"votes":        states,
	})
}

func voteMessage(effect votes.Effect) string {
	switch effect {
	case votes.EffectDelete:
		return "Vote removed"
	case votes.EffectUpdate:
		return "Vote updated"
	default:
		return "Vote recorded"
	}
}
