package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
)

var errMissingUserID = errors.New("token has no user_id claim")

// AuthMiddleware verifies an HS256 bearer token issued by the identity
// service and stores the caller's id under "user_id".
func AuthMiddleware(secret string) gin.HandlerFunc {
	key := []byte(secret)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}
		tokenString, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || strings.TrimSpace(tokenString) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid authorization format"})
			return
		}

		userID, username, err := parseToken(strings.TrimSpace(tokenString), key)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		c.Set("user_id", userID)
		if username != "" {
			c.Set("username", username)
		}
		c.Next()
	}
}

func parseToken(tokenString string, key []byte) (int, string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		return key, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil {
		return 0, "", err
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, "", errMissingUserID
	}
	// numeric claims decode as float64
	raw, ok := claims["user_id"].(float64)
	if !ok || raw <= 0 || raw != float64(int(raw)) {
		return 0, "", errMissingUserID
	}
	username, _ := claims["username"].(string)
	return int(raw), username, nil
}
