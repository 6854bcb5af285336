package public

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// HealthHandler serves GET /healthz.
type HealthHandler struct {
	db *gorm.DB
}

// NewHealthHandler creates a HealthHandler.
func NewHealthHandler(db *gorm.DB) *HealthHandler {
	return &HealthHandler{db: db}
}

// Check reports process and database health.
func (h *HealthHandler) Check(c *gin.Context) {
	if h.db != nil {
		sqlDB, errDB := h.db.DB()
		if errDB != nil || sqlDB.PingContext(c.Request.Context()) != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
