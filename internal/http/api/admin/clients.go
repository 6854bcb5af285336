package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/quota"
	"github.com/greetforge/greetforge/internal/store"
)

// ClientsHandler serves GET /v0/admin/clients.
type ClientsHandler struct {
	store  *store.Store
	quotas *quota.Store
}

// NewClientsHandler creates a ClientsHandler.
func NewClientsHandler(st *store.Store, quotas *quota.Store) *ClientsHandler {
	return &ClientsHandler{store: st, quotas: quotas}
}

// List returns the per-client quota status: configured and active
// clients with their limit, usage, and remaining slots.
func (h *ClientsHandler) List(c *gin.Context) {
	ctx := c.Request.Context()

	active, errActive := h.store.CompaniesWithActivity(ctx)
	if errActive != nil {
		log.WithError(errActive).Error("failed to list clients")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load clients"})
		return
	}

	clients := make([]gin.H, 0)
	for _, company := range companySet(active, h.quotas.ConfiguredCompanies()) {
		used, errUsed := h.quotas.Used(ctx, company)
		if errUsed != nil {
			log.WithError(errUsed).Error("failed to read client usage")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load clients"})
			return
		}
		limit := h.quotas.Limit(company)
		remaining := int64(limit) - used
		if remaining < 0 {
			remaining = 0
		}
		clients = append(clients, gin.H{
			"client":    company,
			"limit":     limit,
			"used":      used,
			"remaining": remaining,
			"exhausted": remaining == 0,
		})
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "clients": clients, "total": len(clients)})
}
