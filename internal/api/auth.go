package api

import (
	"errors"                          // Error inspection
	"fund_ledger/internal/domain"     // Importing domain models
	"fund_ledger/internal/repository" // User store
	"fund_ledger/internal/utils"      // Utility functions
	"net/http"                        // HTTP status codes
	"regexp"                          // Regular expressions
	"strings"                         // String manipulation

	"github.com/gin-gonic/gin"   // Gin web framework
	"github.com/sirupsen/logrus" // Logrus for structured logging
	"golang.org/x/crypto/bcrypt" // Password hashing
	"gorm.io/gorm"               // GORM ORM library
)

// CredentialsRequest is the body of register and login
type CredentialsRequest struct {
	Username string `json:"username" binding:"required"` // Username must be provided
	Password string `json:"password" binding:"required"` // Password must be provided
}

// AuthResponse carries the issued token
type AuthResponse struct {
	Token string `json:"token"` // JWT token
}

var usernamePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_]{2,31}$`)

// isValidUsername checks the username shape: a letter then 2-31 letters, digits or underscores
func isValidUsername(username string) bool {
	return usernamePattern.MatchString(username)
}

// isValidPassword checks the password length; bcrypt ignores bytes past 72
func isValidPassword(password string) bool {
	return len(password) >= 8 && len(password) <= 72
}

// RegisterHandler creates a user that can own funds
func RegisterHandler(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CredentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request")
			return
		}
		if !isValidUsername(req.Username) {
			respondError(c, domain.Errorf(domain.KindInvalidInput, "Username must be 3-32 letters, digits or underscores"))
			return
		}
		if !isValidPassword(req.Password) {
			respondError(c, domain.Errorf(domain.KindInvalidInput, "Password must be 8-72 characters"))
			return
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
		if err != nil {
			respondError(c, domain.Persistence("hash password", err))
			return
		}
		// Lowercase username to ensure uniqueness
		user := domain.User{Username: strings.ToLower(req.Username), Password: string(hash)}
		if err := repository.New(db).CreateUser(c.Request.Context(), &user); err != nil {
			logrus.WithFields(logrus.Fields{
				"username": user.Username,
				"error":    err.Error(),
			}).Warn("Registration rejected")
			if errors.Is(err, domain.ErrDuplicateKey) {
				respondError(c, domain.Errorf(domain.KindInvalidInput, "Username already exists"))
				return
			}
			respondError(c, domain.Persistence("create user", err)) // Store failure, not a taken name
			return
		}
		logrus.WithField("user_id", user.ID).Info("User registered")
		c.JSON(http.StatusCreated, gin.H{"data": gin.H{"id": user.ID, "username": user.Username}})
	}
}

// LoginHandler authenticates a user and returns a JWT token
func LoginHandler(db *gorm.DB, jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req CredentialsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "Invalid request")
			return
		}
		user, err := repository.New(db).FindUserByUsername(c.Request.Context(), strings.ToLower(req.Username))
		if errors.Is(err, domain.ErrRecordNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "unauthorized", "detail": "Invalid credentials"}})
			return
		}
		if err != nil {
			respondError(c, domain.Persistence("load user", err))
			return
		}
		// Compare provided password with stored hash
		if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": gin.H{"kind": "unauthorized", "detail": "Invalid credentials"}})
			return
		}
		token, err := utils.GenerateJWT(user.ID, jwtSecret)
		if err != nil {
			respondError(c, domain.Persistence("sign token", err))
			return
		}
		c.JSON(http.StatusOK, gin.H{"data": AuthResponse{Token: token}})
	}
}
