package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/models"
)

type PostHandler struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewPostHandler(db *gorm.DB, log *logger.Logger) *PostHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &PostHandler{db: db, log: log}
}

func (h *PostHandler) active() *gorm.DB {
	return h.db.Where("posts.is_active = ?", true)
}

type commentCount struct {
	PostID int
	N      int
}

// attachCommentCounts fills Post.Comments from the live comments. A failed
// count is logged and leaves the counts at zero.
func (h *PostHandler) attachCommentCounts(c *gin.Context, posts []models.Post) {
	if len(posts) == 0 {
		return
	}
	ids := make([]int, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, p.ID)
	}
	var rows []commentCount
	err := h.db.WithContext(c.Request.Context()).
		Model(&models.Comment{}).
		Select("post_id, COUNT(*) AS n").
		Where("post_id IN ? AND is_active = ?", ids, true).
		Group("post_id").
		Scan(&rows).Error
	if err != nil {
		h.log.Error("comment count failed", "request_id", c.GetString("request_id"), "error", err)
		return
	}
	counts := make(map[int]int, len(rows))
	for _, r := range rows {
		counts[r.PostID] = r.N
	}
	for i := range posts {
		posts[i].Comments = counts[posts[i].ID]
	}
}

// GetPosts returns active posts newest first. Vote counts come straight from
// the stored counters.
func (h *PostHandler) GetPosts(c *gin.Context) {
	posts := []models.Post{}

	q := h.active().Preload("Author").Order("created_at desc")
	if category := c.Query("category"); category != "" {
		q = q.Where("category = ?", category)
	}
	if err := q.Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch posts"})
		return
	}
	h.attachCommentCounts(c, posts)

	c.JSON(http.StatusOK, posts)
}

// GetPost returns a single post by ID
func (h *PostHandler) GetPost(c *gin.Context) {
	postID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var post models.Post
	if err := h.active().Preload("Author").First(&post, postID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch post"})
		return
	}
	posts := []models.Post{post}
	h.attachCommentCounts(c, posts)

	c.JSON(http.StatusOK, posts[0])
}

// CreatePost creates a new post (PROTECTED - requires authentication).
// Counters always start at zero.
func (h *PostHandler) CreatePost(c *gin.Context) {
	authorID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}

	var input models.CreatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Title is required"})
		return
	}

	post := models.Post{
		Title:    input.Title,
		Content:  input.Content,
		Image:    input.Image,
		Category: input.Category,
		AuthorID: authorID,
	}
	if err := h.db.Create(&post).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create post"})
		return
	}

	// Reload with author and the database-assigned counters
	h.db.Preload("Author").First(&post, post.ID)

	c.JSON(http.StatusCreated, post)
}

// UpdatePost updates an existing post (PROTECTED - requires ownership)
func (h *PostHandler) UpdatePost(c *gin.Context) {
	currentUserID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var input models.UpdatePostRequest
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var post models.Post
	if err := h.active().First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if post.AuthorID != currentUserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only edit your own posts"})
		return
	}

	updates := map[string]interface{}{}
	if input.Title != nil && *input.Title != "" {
		updates["title"] = *input.Title
	}
	if input.Content != nil {
		updates["content"] = *input.Content
	}
	if input.Image != nil {
		updates["image"] = *input.Image
	}
	if input.Category != nil {
		updates["category"] = *input.Category
	}
	if len(updates) > 0 {
		if err := h.db.Model(&post).Updates(updates).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update post"})
			return
		}
	}
	h.db.Preload("Author").First(&post, post.ID)

	c.JSON(http.StatusOK, post)
}

// DeletePost hides a post (PROTECTED - requires ownership). The row and its
// votes stay so the ledger and counters remain consistent.
func (h *PostHandler) DeletePost(c *gin.Context) {
	currentUserID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "User not authenticated"})
		return
	}
	postID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid post ID"})
		return
	}

	var post models.Post
	if err := h.active().First(&post, postID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Post not found"})
		return
	}

	if post.AuthorID != currentUserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only delete your own posts"})
		return
	}

	if err := h.db.Model(&post).Update("is_active", false).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete post"})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Post deleted successfully"})
}

// GetUserPosts returns all active posts by a specific user
func (h *PostHandler) GetUserPosts(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	posts := []models.Post{}

	if err := h.active().Preload("Author").Where("author_id = ?", userID).Order("created_at desc").Find(&posts).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user posts"})
		return
	}
	h.attachCommentCounts(c, posts)

	c.JSON(http.StatusOK, posts)
}
