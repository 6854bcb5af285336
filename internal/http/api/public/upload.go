package public

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/imagestore"
)

// uploadDescription is the stand-in subject description attached to
// uploaded photos. The reference image itself drives the generation.
const uploadDescription = "person from uploaded photo"

// UploadHandler serves POST /api/analyze-image.
type UploadHandler struct {
	images *imagestore.Storage
}

// NewUploadHandler creates an UploadHandler.
func NewUploadHandler(images *imagestore.Storage) *UploadHandler {
	return &UploadHandler{images: images}
}

// Analyze validates and stores an uploaded reference photo.
func (h *UploadHandler) Analyze(c *gin.Context) {
	fileHeader, errForm := c.FormFile("image")
	if errForm != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image file provided"})
		return
	}
	if fileHeader.Size > imagestore.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 10MB."})
		return
	}
	mimeType := fileHeader.Header.Get("Content-Type")
	if _, ok := imagestore.AllowedUploadTypes[mimeType]; !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid file type. Please upload a JPEG, PNG, or WebP image."})
		return
	}

	file, errOpen := fileHeader.Open()
	if errOpen != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded image"})
		return
	}
	defer file.Close()

	data, errRead := io.ReadAll(io.LimitReader(file, imagestore.MaxUploadBytes+1))
	if errRead != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to read uploaded image"})
		return
	}
	if len(data) > imagestore.MaxUploadBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "File too large. Maximum size is 10MB."})
		return
	}

	imagePath, errSave := h.images.SaveUpload(mimeType, data)
	if errSave != nil {
		log.WithError(errSave).Error("failed to store upload")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to store uploaded image"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":     true,
		"description": uploadDescription,
		"imagePath":   imagePath,
	})
}
