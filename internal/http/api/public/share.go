package public

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/imagestore"
	"github.com/greetforge/greetforge/internal/models"
	"github.com/greetforge/greetforge/internal/store"
)

// ShareHandler serves GET /api/share/:id.
type ShareHandler struct {
	store  *store.Store
	images *imagestore.Storage
}

// NewShareHandler creates a ShareHandler.
func NewShareHandler(st *store.Store, images *imagestore.Storage) *ShareHandler {
	return &ShareHandler{store: st, images: images}
}

// Resolve looks up a shared card by id. The artifact must exist on disk;
// overlay details are attached when a matching generation record exists.
func (h *ShareHandler) Resolve(c *gin.Context) {
	id := c.Param("id")
	if !h.images.ShareExists(id) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Greeting card not found"})
		return
	}

	response := gin.H{
		"success":     true,
		"imageUrl":    h.images.ShareURL(id),
		"title":       "Holiday Greeting Card",
		"description": "A personalized holiday greeting card",
	}

	generation, errFind := h.store.GenerationByImageURL(c.Request.Context(), h.images.ShareURL(id))
	switch {
	case errFind == nil:
		var details models.UserDetails
		if errParse := json.Unmarshal(generation.UserDetails, &details); errParse != nil {
			log.WithError(errParse).WithField("generation", generation.ID).Warn("malformed user details")
		}
		response["client"] = generation.Company
		response["createdAt"] = generation.CreatedAt
		if details.Name != "" {
			response["title"] = "Holiday Greeting Card from " + details.Name
		}
		if details.GreetingText != "" {
			response["description"] = details.GreetingText
		}
		response["overlayData"] = gin.H{
			"name":            details.Name,
			"greetingText":    details.GreetingText,
			"selectedHoliday": details.SelectedHoliday,
		}
	case errors.Is(errFind, store.ErrNotFound):
		// Artifact predates recording or the record write was lost; the
		// card is still shareable without overlay details.
	default:
		log.WithError(errFind).WithField("share_id", id).Warn("share record lookup failed")
	}

	c.JSON(http.StatusOK, response)
}
