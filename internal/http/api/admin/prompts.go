package admin

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/store"
)

// PromptHandler serves the custom prompt template CRUD under
// /v0/admin/prompts.
type PromptHandler struct {
	store *store.Store
}

// NewPromptHandler creates a PromptHandler.
func NewPromptHandler(st *store.Store) *PromptHandler {
	return &PromptHandler{store: st}
}

// Get returns either the active template for ?client= or, without the
// query, every stored template.
func (h *PromptHandler) Get(c *gin.Context) {
	ctx := c.Request.Context()

	if client := strings.TrimSpace(c.Query("client")); client != "" {
		template, errFind := h.store.ActiveTemplate(ctx, client)
		if errors.Is(errFind, store.ErrNotFound) {
			c.JSON(http.StatusOK, gin.H{"success": true, "prompt": nil})
			return
		}
		if errFind != nil {
			log.WithError(errFind).Error("failed to load prompt template")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load prompt"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"success": true, "prompt": template})
		return
	}

	templates, errList := h.store.Templates(ctx)
	if errList != nil {
		log.WithError(errList).Error("failed to list prompt templates")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to load prompts"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prompts": templates})
}

type upsertPromptRequest struct {
	ClientName string `json:"clientName"`
	Template   string `json:"template"`
	IsActive   *bool  `json:"isActive"`
}

// Upsert creates or replaces the template for a client. Client matching
// is case-insensitive and the last write wins.
func (h *PromptHandler) Upsert(c *gin.Context) {
	var req upsertPromptRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.ClientName) == "" || strings.TrimSpace(req.Template) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "clientName and template are required"})
		return
	}
	isActive := true
	if req.IsActive != nil {
		isActive = *req.IsActive
	}

	template, errUpsert := h.store.UpsertTemplate(c.Request.Context(), req.ClientName, req.Template, isActive, c.GetString(contextAdminUser))
	if errUpsert != nil {
		log.WithError(errUpsert).Error("failed to save prompt template")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to save prompt"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true, "prompt": template})
}

// Delete removes the template named by ?client=.
func (h *PromptHandler) Delete(c *gin.Context) {
	client := strings.TrimSpace(c.Query("client"))
	if client == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "client is required"})
		return
	}

	errDelete := h.store.DeleteTemplate(c.Request.Context(), client)
	if errors.Is(errDelete, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "prompt not found"})
		return
	}
	if errDelete != nil {
		log.WithError(errDelete).Error("failed to delete prompt template")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to delete prompt"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
