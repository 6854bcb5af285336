// Package public exposes the user-facing API: card generation, photo
// upload, share resolution, the card library, and health.
package public

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/greetforge/greetforge/internal/config"
	"github.com/greetforge/greetforge/internal/imagestore"
	"github.com/greetforge/greetforge/internal/pipeline"
	"github.com/greetforge/greetforge/internal/store"
)

// Deps are the collaborators the public handlers need.
type Deps struct {
	Config   *config.Config
	DB       *gorm.DB
	Store    *store.Store
	Pipeline *pipeline.Pipeline
	Images   *imagestore.Storage
}

// RegisterPublicRoutes mounts the public API on the engine.
func RegisterPublicRoutes(engine *gin.Engine, deps Deps) {
	generate := NewGenerateHandler(deps.Config, deps.Pipeline)
	upload := NewUploadHandler(deps.Images)
	share := NewShareHandler(deps.Store, deps.Images)
	library := NewLibraryHandler(deps.Images)
	health := NewHealthHandler(deps.DB)

	engine.GET("/healthz", health.Check)

	api := engine.Group("/api")
	api.POST("/generate", generate.Generate)
	api.POST("/analyze-image", upload.Analyze)
	api.GET("/share/:id", share.Resolve)
	api.GET("/library", library.List)
}
