package api

import (
	"net/http"                            // HTTP status codes
	"payment_gateway/internal/domain"     // Domain models
	"payment_gateway/internal/middleware" // Current user helpers
	"payment_gateway/internal/utils"      // JWT utility functions
	"regexp"                              // Regular expressions
	"strings"                             // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logging library
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// RegisterRequest is the body of POST /auth/register
type RegisterRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// LoginRequest is the body of POST /auth/login
type LoginRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// AuthResponse is returned by a successful login
type AuthResponse struct {
	Token     string      `json:"token"`      // JWT token
	ExpiresIn int64       `json:"expires_in"` // Token lifetime in seconds
	User      domain.User `json:"user"`       // Logged in user
}

var usernameRe = regexp.MustCompile(`^[A-Za-z]+$`)

// isValidUsername checks if the username contains only alphabetic characters
func isValidUsername(username string) bool {
	return usernameRe.MatchString(username)
}

// isValidPassword checks if the password length is between 8 and 15 characters
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 15
}

// RegisterHandler creates a regular user account
func RegisterHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req RegisterRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		// Validate username and password
		if !isValidUsername(req.Username) {
			badRequest(c, "Username must be alphabetic only")
			return
		}
		if !isValidPassword(req.Password) {
			badRequest(c, "Password must be 8-15 characters")
			return
		}
		// Hash the password and create the user
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, err)
			return
		}
		// Lowercase username to ensure uniqueness
		user := domain.User{Username: strings.ToLower(req.Username), Password: string(hash), Role: domain.RoleUser, IsActive: true}
		if err := db.WithContext(c.Request.Context()).Create(&user).Error; err != nil {
			respondError(c, domain.Validation("Username already exists"))
			return
		}
		logrus.WithFields(logrus.Fields{
			"user_id":  user.ID,       // New user ID
			"username": user.Username, // Username
		}).Info("User registered")
		c.JSON(http.StatusCreated, gin.H{"message": "User registered successfully", "user": user})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req LoginRequest // Bind JSON request to struct
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "Invalid request")
			return
		}
		invalid := gin.H{"error": "Invalid credentials", "kind": domain.KindAuth}
		var user domain.User // Fetch user from database
		if err := db.WithContext(c.Request.Context()).Where("username = ?", strings.ToLower(req.Username)).First(&user).Error; err != nil {
			c.JSON(http.StatusUnauthorized, invalid)
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, invalid)
			return
		}
		if !user.IsActive {
			respondError(c, domain.Auth("Account is deactivated"))
			return
		}
		token, err := utils.GenerateJWT(user.ID, user.Role, jwtSecret) // Generate JWT token
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, AuthResponse{Token: token, ExpiresIn: int64(utils.TokenTTL.Seconds()), User: user})
	}
}

// ProfileHandler returns the authenticated user
func ProfileHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := middleware.CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized", "kind": domain.KindAuth})
			return
		}
		c.JSON(http.StatusOK, gin.H{"user": user})
	}
}
