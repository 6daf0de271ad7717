package auth

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/rmitchellscott/couchpilot/internal/database"
)

// AuthMiddleware authenticates owner requests via the session cookie or a
// Bearer token carrying the same JWT.
func AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		user := currentUserFromRequest(c)
		if user == nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
			c.Abort()
			return
		}

		c.Set("user", user)
		c.Next()
	}
}

// currentUserFromRequest resolves the JWT from cookie or Authorization header
// and loads the matching user. Returns nil on any failure.
func currentUserFromRequest(c *gin.Context) *database.User {
	tokenString, err := c.Cookie("auth_token")
	if err != nil || tokenString == "" {
		if authHeader := c.GetHeader("Authorization"); strings.HasPrefix(authHeader, "Bearer ") {
			tokenString = strings.TrimPrefix(authHeader, "Bearer ")
		}
	}
	if tokenString == "" {
		return nil
	}

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return nil
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil
	}

	rawID, ok := claims["user_id"].(float64)
	if !ok {
		return nil
	}

	user, err := database.NewUserService(database.GetDB()).GetUserByID(int64(rawID))
	if err != nil {
		return nil
	}
	return user
}

// GetCurrentUser returns the authenticated user from the gin context
func GetCurrentUser(c *gin.Context) *database.User {
	if user, exists := c.Get("user"); exists {
		return user.(*database.User)
	}
	return nil
}

// RequireUser ensures a user is authenticated and returns it
func RequireUser(c *gin.Context) (*database.User, bool) {
	user := GetCurrentUser(c)
	if user == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return nil, false
	}
	return user, true
}
