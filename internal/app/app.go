// Package app wires the service together and runs the HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"

	"github.com/greetforge/greetforge/internal/config"
	"github.com/greetforge/greetforge/internal/db"
	"github.com/greetforge/greetforge/internal/http/api/admin"
	"github.com/greetforge/greetforge/internal/http/api/public"
	"github.com/greetforge/greetforge/internal/imagestore"
	"github.com/greetforge/greetforge/internal/pipeline"
	"github.com/greetforge/greetforge/internal/quota"
	"github.com/greetforge/greetforge/internal/store"
	"github.com/greetforge/greetforge/internal/upstream"
	"github.com/greetforge/greetforge/internal/watcher"
)

// shutdownTimeout bounds graceful server shutdown.
const shutdownTimeout = 10 * time.Second

// RunServer boots the service and blocks until the context is canceled
// or the server fails.
func RunServer(ctx context.Context, cfg *config.Config) error {
	conn, errOpen := db.Open(cfg.DatabaseDSN)
	if errOpen != nil {
		return errOpen
	}
	if errMigrate := db.Migrate(conn); errMigrate != nil {
		return errMigrate
	}

	images, errImages := imagestore.New(cfg.PublicDir)
	if errImages != nil {
		return errImages
	}

	limits := watcher.NewLimits(cfg.CompanyLimits, cfg.CompanyLimitsFile)
	limits.Start(ctx)

	st := store.New(conn)
	quotas := quota.New(conn, limits.Snapshot)
	enhancer := upstream.NewEnhancer(cfg.OpenAIKey)
	generator := upstream.NewImageClient(cfg.GeminiKey)
	pipe := pipeline.New(st, quotas, enhancer, generator, images)

	engine := buildEngine()
	public.RegisterPublicRoutes(engine, public.Deps{
		Config:   cfg,
		DB:       conn,
		Store:    st,
		Pipeline: pipe,
		Images:   images,
	})
	admin.RegisterAdminRoutes(engine, admin.Deps{
		Config:   cfg,
		Store:    st,
		Quotas:   quotas,
		Enhancer: enhancer,
		Images:   generator,
	})
	engine.Static("/generated", images.GeneratedDir())
	engine.Static("/uploads", images.UploadsDir())

	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: engine,
	}

	errCh := make(chan error, 1)
	go func() {
		log.WithField("addr", server.Addr).Info("server listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if errShutdown := server.Shutdown(shutdownCtx); errShutdown != nil {
			return fmt.Errorf("app: shutdown: %w", errShutdown)
		}
		return nil
	case errServe := <-errCh:
		if errServe != nil && !errors.Is(errServe, http.ErrServerClosed) {
			return fmt.Errorf("app: serve: %w", errServe)
		}
		return nil
	}
}

// buildEngine assembles the gin engine with recovery and request
// logging.
func buildEngine() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger())
	return engine
}

// requestLogger logs one line per request through logrus.
func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.WithFields(log.Fields{
			"method":  c.Request.Method,
			"path":    c.Request.URL.Path,
			"status":  c.Writer.Status(),
			"elapsed": time.Since(start),
		}).Debug("request")
	}
}
