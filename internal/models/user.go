package models

import "time"

// User is a registered voter/author. Credentials live with the identity
// provider that issues our bearer tokens.
type User struct {
	ID        int       `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"unique;not null" json:"username"`
	Email     string    `gorm:"unique;not null" json:"email"`
	Bio       string    `json:"bio"`
	Avatar    string    `json:"avatar"` // Stores avatar ID (1-6) or URL
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
