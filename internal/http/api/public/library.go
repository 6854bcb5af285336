package public

import (
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/imagestore"
)

// LibraryHandler serves GET /api/library.
type LibraryHandler struct {
	images *imagestore.Storage
}

// NewLibraryHandler creates a LibraryHandler.
func NewLibraryHandler(images *imagestore.Storage) *LibraryHandler {
	return &LibraryHandler{images: images}
}

// List returns every generated card on disk, newest first. Listing works
// off the filesystem so cards survive even when their records were lost.
func (h *LibraryHandler) List(c *gin.Context) {
	entries, errList := h.images.ListGenerated()
	if errList != nil {
		log.WithError(errList).Error("failed to list generated cards")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load library"})
		return
	}

	images := make([]gin.H, 0, len(entries))
	for _, entry := range entries {
		images = append(images, gin.H{
			"filename":  entry.Filename,
			"url":       entry.URL,
			"client":    entry.Client,
			"createdAt": entry.CreatedAt,
		})
	}
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"images":  images,
		"total":   len(images),
	})
}
