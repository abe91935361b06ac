package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/emilythestrangee/reddit-clone/voteledger/internal/logger"
	"github.com/emilythestrangee/reddit-clone/voteledger/internal/models"
)

type UserHandler struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewUserHandler(db *gorm.DB, log *logger.Logger) *UserHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &UserHandler{db: db, log: log}
}

func userJSON(user models.User) gin.H {
	return gin.H{
		"id":         user.ID,
		"username":   user.Username,
		"bio":        user.Bio,
		"avatar":     user.Avatar,
		"created_at": user.CreatedAt,
	}
}

// GetUserProfile returns a user's profile and their active posts
func (h *UserHandler) GetUserProfile(c *gin.Context) {
	userID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}
	var user models.User

	if err := h.db.Where("is_active = ?", true).First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	posts := []models.Post{}
	if err := h.db.Where("author_id = ? AND is_active = ?", userID, true).Order("created_at desc").Find(&posts).Error; err != nil {
		h.log.Error("profile posts query failed", "request_id", c.GetString("request_id"), "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user profile"})
		return
	}

	// karma only counts posts that are still visible
	var karma struct {
		Up   int
		Down int
	}
	err := h.db.Model(&models.Post{}).
		Select("COALESCE(SUM(upvotes), 0) AS up, COALESCE(SUM(downvotes), 0) AS down").
		Where("author_id = ? AND is_active = ?", userID, true).
		Scan(&karma).Error
	if err != nil {
		h.log.Error("karma query failed", "request_id", c.GetString("request_id"), "user_id", userID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to fetch user profile"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"user":  userJSON(user),
		"posts": posts,
		"karma": karma.Up - karma.Down,
	})
}

// GetMe returns the current authenticated user
func (h *UserHandler) GetMe(c *gin.Context) {
	userID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}

	var user models.User
	if err := h.db.Where("is_active = ?", true).First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	out := userJSON(user)
	out["email"] = user.Email
	c.JSON(http.StatusOK, out)
}

func (h *UserHandler) UpdateUserProfile(c *gin.Context) {
	authUserID, ok := extractUserID(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
		return
	}
	userID, ok := paramID(c, "id")
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid user ID"})
		return
	}

	// Check if user is updating their own profile
	if authUserID != userID {
		c.JSON(http.StatusForbidden, gin.H{"error": "You can only update your own profile"})
		return
	}

	var input struct {
		Bio    string `json:"bio"`
		Avatar string `json:"avatar"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := h.db.Where("is_active = ?", true).First(&user, userID).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
		return
	}

	if input.Bio != "" {
		user.Bio = input.Bio
	}
	if input.Avatar != "" {
		user.Avatar = input.Avatar
	}

	if err := h.db.Save(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update profile"})
		return
	}

	c.JSON(http.StatusOK, userJSON(user))
}
