// Package server exposes compositing, projection and design storage over
// HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/keagan/cutline/internal/compositor"
	"github.com/keagan/cutline/internal/config"
	"github.com/keagan/cutline/internal/pipeline"
	"github.com/keagan/cutline/internal/storage"
	"github.com/rs/zerolog"
)

// Requester turns a project into a compositing request
type Requester interface {
	Request(ctx context.Context, project *pipeline.Project) (compositor.Request, error)
}

// Server holds the HTTP handlers and their collaborators
type Server struct {
	logger     zerolog.Logger
	config     *config.Config
	requester  Requester
	compositor *compositor.Compositor
	designs    *storage.Designs

	keepalive time.Duration
}

// New creates a server
func New(logger zerolog.Logger, cfg *config.Config, requester Requester, comp *compositor.Compositor, designs *storage.Designs) *Server {
	return &Server{
		logger:     logger.With().Str("component", "server").Logger(),
		config:     cfg,
		requester:  requester,
		compositor: comp,
		designs:    designs,
		keepalive:  30 * time.Second,
	}
}

// Router builds the gin engine with every route registered
func (s *Server) Router() *gin.Engine {
	if !s.config.Log.Verbose {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	// CORS for the browser editor
	router.Use(func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Add("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Add("Access-Control-Allow-Headers", "Content-Type")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"loading": s.compositor.Loading(),
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	api := router.Group("/api")
	{
		compose := api.Group("/compose")
		{
			compose.POST("", s.handleCompose)
			compose.GET("/progress", s.handleProgress)
		}

		api.POST("/plan", s.handlePlan)
		api.POST("/timeline/project", s.handleProject)

		designs := api.Group("/designs")
		{
			designs.GET("", s.handleListDesigns)
			designs.GET("/:id", s.handleGetDesign)
			designs.GET("/:id/preview", s.handleGetPreview)
			designs.PUT("/:id", s.handleSaveDesign)
			designs.DELETE("/:id", s.handleDeleteDesign)
		}
	}

	return router
}

// Run serves until ctx is cancelled, then shuts down gracefully
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:    addr,
		Handler: s.Router(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	}
}

// statusFor maps domain errors onto HTTP statuses
func statusFor(err error) int {
	switch {
	case errors.Is(err, compositor.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, pipeline.ErrInvalidProject), errors.Is(err, compositor.ErrNoVideo):
		return http.StatusBadRequest
	case errors.Is(err, compositor.ErrAspectMismatch):
		return http.StatusUnprocessableEntity
	case errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) fail(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
