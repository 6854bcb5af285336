package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/config"
	"github.com/greetforge/greetforge/internal/security"
)

// AuthHandler serves POST /v0/admin/login.
type AuthHandler struct {
	cfg *config.Config
}

// NewAuthHandler creates an AuthHandler.
func NewAuthHandler(cfg *config.Config) *AuthHandler {
	return &AuthHandler{cfg: cfg}
}

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Login checks the configured admin credentials and issues a signed
// token.
func (h *AuthHandler) Login(c *gin.Context) {
	var req loginRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	if req.Username != h.cfg.AdminUsername || !security.VerifyPassword(h.cfg.AdminPassword, req.Password) {
		log.WithField("username", req.Username).Warn("admin login rejected")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	token, errSign := security.SignAdminToken(h.cfg.JWTSecret, req.Username, h.cfg.JWTExpiry)
	if errSign != nil {
		log.WithError(errSign).Error("failed to sign admin token")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to issue token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"token":   token,
		"user":    gin.H{"username": req.Username, "role": "admin"},
	})
}
