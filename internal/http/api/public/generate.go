package public

import (
	"errors"
	"net/http"
	"regexp"
	"strings"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/config"
	"github.com/greetforge/greetforge/internal/pipeline"
	"github.com/greetforge/greetforge/internal/prompt"
	"github.com/greetforge/greetforge/internal/upstream"
)

// emailPattern is the permissive shape check applied to user emails.
var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// GenerateHandler serves POST /api/generate.
type GenerateHandler struct {
	cfg      *config.Config
	pipeline *pipeline.Pipeline
}

// NewGenerateHandler creates a GenerateHandler.
func NewGenerateHandler(cfg *config.Config, pipe *pipeline.Pipeline) *GenerateHandler {
	return &GenerateHandler{cfg: cfg, pipeline: pipe}
}

// generateRequest is the JSON body of a generation request.
type generateRequest struct {
	Mode              string `json:"mode"`
	Client            string `json:"client"`
	UserName          string `json:"userName"`
	UserEmail         string `json:"userEmail"`
	EmailOptIn        bool   `json:"emailOptIn"`
	Staff             string `json:"staff"`
	CardStyle         string `json:"cardStyle"`
	PersonDescription string `json:"personDescription"`
	Accessory         string `json:"accessory"`
	Pose              string `json:"pose"`
	Background        string `json:"background"`
	MagicalEffect     string `json:"magicalEffect"`
	ImagePath         string `json:"imagePath"`
	SelectedHoliday   string `json:"selectedHoliday"`
	GreetingText      string `json:"greetingText"`
}

// Generate runs one card generation request.
func (h *GenerateHandler) Generate(c *gin.Context) {
	var req generateRequest
	if errBind := c.ShouldBindJSON(&req); errBind != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	if strings.TrimSpace(req.Client) == "" || strings.TrimSpace(req.UserName) == "" || strings.TrimSpace(req.UserEmail) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}
	if !emailPattern.MatchString(strings.TrimSpace(req.UserEmail)) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid email format"})
		return
	}
	if h.cfg.OpenAIKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "OpenAI API key not configured"})
		return
	}
	if h.cfg.GeminiKey == "" {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Gemini API key not configured"})
		return
	}

	result, errGenerate := h.pipeline.Generate(c.Request.Context(), pipeline.Request{
		Mode:              req.Mode,
		Client:            req.Client,
		UserName:          req.UserName,
		UserEmail:         req.UserEmail,
		EmailOptIn:        req.EmailOptIn,
		Staff:             req.Staff,
		CardStyle:         req.CardStyle,
		PersonDescription: req.PersonDescription,
		Accessory:         req.Accessory,
		Pose:              req.Pose,
		Background:        req.Background,
		MagicalEffect:     req.MagicalEffect,
		ImagePath:         req.ImagePath,
		SelectedHoliday:   req.SelectedHoliday,
		GreetingText:      req.GreetingText,
	})
	if errGenerate != nil {
		h.writeError(c, req, errGenerate)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":        true,
		"url":            result.URL,
		"enhancedPrompt": result.EnhancedPrompt,
		"shareUrl":       shareURL(c, result.ShareID),
	})
}

// writeError maps pipeline failures onto HTTP responses.
func (h *GenerateHandler) writeError(c *gin.Context, req generateRequest, err error) {
	var validationErr prompt.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": validationErr.Error()})
		return
	}

	var quotaErr *pipeline.QuotaError
	if errors.As(err, &quotaErr) {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error":        quotaErr.Error(),
			"limitReached": true,
			"currentCount": quotaErr.Used,
			"limit":        quotaErr.Limit,
		})
		return
	}

	if upstreamErr, ok := upstream.AsError(err); ok {
		log.WithError(err).WithFields(log.Fields{
			"client": req.Client,
			"kind":   upstreamErr.Kind.String(),
		}).Error("generation failed upstream")

		switch {
		case upstreamErr.Retryable():
			c.JSON(http.StatusServiceUnavailable, gin.H{
				"error":     "Image generation service is temporarily unavailable. Please try again in a few moments.",
				"retryable": true,
			})
		case upstreamErr.Kind == upstream.KindBadAuth:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Invalid API key configuration"})
		case upstreamErr.Kind == upstream.KindContentPolicy:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Content blocked by safety filters. Please try a different prompt."})
		default:
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Image generation failed: " + upstreamErr.Message})
		}
		return
	}

	log.WithError(err).WithField("client", req.Client).Error("generation failed")
	c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate image"})
}

// shareURL builds the absolute share link for a generated card.
func shareURL(c *gin.Context, shareID string) string {
	scheme := "http"
	if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
		scheme = "https"
	}
	return scheme + "://" + c.Request.Host + "/share/" + shareID
}
