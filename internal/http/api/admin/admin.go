// Package admin exposes the management API: login, prompt template
// administration, the usage dashboard, client status, and upstream
// checks. Everything except login requires a bearer token.
package admin

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/greetforge/greetforge/internal/config"
	"github.com/greetforge/greetforge/internal/quota"
	"github.com/greetforge/greetforge/internal/security"
	"github.com/greetforge/greetforge/internal/store"
	"github.com/greetforge/greetforge/internal/upstream"
)

// contextAdminUser is the gin context key holding the authenticated
// admin username.
const contextAdminUser = "adminUser"

// Deps are the collaborators the admin handlers need.
type Deps struct {
	Config   *config.Config
	Store    *store.Store
	Quotas   *quota.Store
	Enhancer *upstream.Enhancer
	Images   *upstream.ImageClient
}

// RegisterAdminRoutes mounts the admin API on the engine.
func RegisterAdminRoutes(engine *gin.Engine, deps Deps) {
	auth := NewAuthHandler(deps.Config)
	prompts := NewPromptHandler(deps.Store)
	dashboard := NewDashboardHandler(deps.Store, deps.Quotas)
	clients := NewClientsHandler(deps.Store, deps.Quotas)
	checks := NewUpstreamHandler(deps.Enhancer, deps.Images)

	group := engine.Group("/v0/admin")
	group.POST("/login", auth.Login)

	protected := group.Group("")
	protected.Use(adminAuthMiddleware(deps.Config))
	protected.GET("/prompts", prompts.Get)
	protected.POST("/prompts", prompts.Upsert)
	protected.DELETE("/prompts", prompts.Delete)
	protected.GET("/dashboard", dashboard.Overview)
	protected.GET("/clients", clients.List)
	protected.GET("/upstream/check", checks.Check)
}

// adminAuthMiddleware validates the Authorization bearer token and
// stashes the admin username in the context.
func adminAuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing authorization header"})
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid authorization header"})
			return
		}
		claims, errParse := security.ParseAdminToken(cfg.JWTSecret, strings.TrimSpace(parts[1]))
		if errParse != nil {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "invalid or expired token"})
			return
		}
		c.Set(contextAdminUser, claims.Username)
		c.Next()
	}
}
