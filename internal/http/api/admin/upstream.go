package admin

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/greetforge/greetforge/internal/upstream"
)

// UpstreamHandler serves GET /v0/admin/upstream/check.
type UpstreamHandler struct {
	enhancer *upstream.Enhancer
	images   *upstream.ImageClient
}

// NewUpstreamHandler creates an UpstreamHandler.
func NewUpstreamHandler(enhancer *upstream.Enhancer, images *upstream.ImageClient) *UpstreamHandler {
	return &UpstreamHandler{enhancer: enhancer, images: images}
}

// Check probes the OpenAI key with a minimal completion and reports
// whether both provider keys are configured.
func (h *UpstreamHandler) Check(c *gin.Context) {
	openaiStatus := gin.H{"configured": h.enhancer.Configured(), "ok": false}
	if h.enhancer.Configured() {
		if errCheck := h.enhancer.Check(c.Request.Context()); errCheck != nil {
			openaiStatus["error"] = errCheck.Error()
		} else {
			openaiStatus["ok"] = true
		}
	}

	// The image model has no cheap probe; configuration presence is all
	// that is reported.
	geminiStatus := gin.H{"configured": h.images.Configured()}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"openai":  openaiStatus,
		"gemini":  geminiStatus,
	})
}
