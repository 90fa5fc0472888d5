package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"gatescan/auth"
	"gatescan/models"
)

// Context keys set by AuthRequired for downstream handlers.
const (
	ctxOperatorID = "operator_id"
	ctxUsername   = "username"
	ctxRole       = "role"
)

type AuthHandler struct {
	db     *pgxpool.Pool
	secret string
	logger *zap.Logger
}

func NewAuthHandler(db *pgxpool.Pool, secret string, logger *zap.Logger) *AuthHandler {
	return &AuthHandler{db: db, secret: secret, logger: logger}
}

// Login checks operator credentials and issues a session token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"success": false, "message": err.Error()})
		return
	}

	var op models.Operator
	err := h.db.QueryRow(c,
		`SELECT id, username, password_hash, role FROM operators
		 WHERE username = $1 AND deleted_at IS NULL`,
		req.Username).Scan(&op.ID, &op.Username, &op.PasswordHash, &op.Role)
	if err != nil {
		if isNoRows(err) {
			c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid username or password"})
			return
		}
		h.logger.Error("operator lookup failed", zap.String("username", req.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Database error"})
		return
	}

	if bcrypt.CompareHashAndPassword([]byte(op.PasswordHash), []byte(req.Password)) != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid username or password"})
		return
	}

	token, err := auth.GenerateToken(h.secret, op.ID, op.Username, op.Role)
	if err != nil {
		h.logger.Error("token generation failed", zap.String("username", op.Username), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "message": "Failed to create session"})
		return
	}

	h.logger.Info("operator logged in", zap.String("username", op.Username), zap.String("role", op.Role))

	c.JSON(http.StatusOK, models.LoginResponse{Token: token, Role: op.Role})
}

// AuthRequired validates the Bearer token and stashes the operator identity
// in the request context.
func AuthRequired(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Missing or invalid authorization header"})
			return
		}

		claims, err := auth.ValidateToken(secret, strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"success": false, "message": "Invalid token"})
			return
		}

		c.Set(ctxOperatorID, claims.OperatorID)
		c.Set(ctxUsername, claims.Username)
		c.Set(ctxRole, claims.Role)
		c.Next()
	}
}

// AdminRequired gates admin-only routes. Must run after AuthRequired.
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxRole) != models.RoleAdmin {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"success": false, "message": "Admin access required"})
			return
		}
		c.Next()
	}
}
