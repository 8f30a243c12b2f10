package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/raine/visual-measurement/internal/measurement"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

const Version = "1.0.0"

// Processor measures products.
type Processor interface {
	Process(ctx context.Context, productID string, urls []string) *measurement.ProductMeasurement
	ProcessBatch(ctx context.Context, products []measurement.Product) []*measurement.ProductMeasurement
}

// Options configures the HTTP surface.
type Options struct {
	MaxImages        int
	VisionConfigured bool
	Debug            bool
}

// AnalyzeRequest is the body of /analyze and one element of /analyze-batch.
type AnalyzeRequest struct {
	ProductID string   `json:"product_id"`
	ImageURLs []string `json:"image_urls"`
}

func (r AnalyzeRequest) validate() error {
	if strings.TrimSpace(r.ProductID) == "" {
		return errors.New("product_id is required")
	}
	if len(r.ImageURLs) == 0 {
		return errors.New("at least one image URL is required")
	}
	return nil
}

type Server struct {
	engine    *gin.Engine
	processor Processor
	opts      Options
}

// New builds the gin engine with recovery, request logging and CORS.
func New(processor Processor, opts Options) *Server {
	if opts.Debug {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())
	engine.Use(loggingMiddleware())
	engine.Use(cors.New(cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))

	s := &Server{engine: engine, processor: processor, opts: opts}
	engine.POST("/analyze", s.handleAnalyze)
	engine.POST("/analyze-batch", s.handleAnalyzeBatch)
	engine.GET("/health", s.handleHealth)
	return s
}

// Handler exposes the engine, mostly for tests.
func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("http server shutdown failed")
		} else {
			log.Info().Msg("http server stopped")
		}
	}()

	log.Info().Str("addr", addr).Msg("http server listening")
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (s *Server) handleAnalyze(c *gin.Context) {
	var req AnalyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if err := req.validate(); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// Failed products are still a successful response; the status lives in the record.
	result := s.processor.Process(c.Request.Context(), req.ProductID, req.ImageURLs)
	c.JSON(http.StatusOK, result)
}

func (s *Server) handleAnalyzeBatch(c *gin.Context) {
	var reqs []AnalyzeRequest
	if err := c.ShouldBindJSON(&reqs); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid JSON body"})
		return
	}
	if len(reqs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "at least one product is required"})
		return
	}

	products := make([]measurement.Product, 0, len(reqs))
	for i, r := range reqs {
		if err := r.validate(); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": fmt.Sprintf("product %d: %v", i, err)})
			return
		}
		products = append(products, measurement.Product{ID: r.ProductID, ImageURLs: r.ImageURLs})
	}

	results := s.processor.ProcessBatch(c.Request.Context(), products)
	log.Info().Int("products", len(results)).Msg("batch complete")
	c.JSON(http.StatusOK, results)
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"version":   Version,
		"components": gin.H{
			"api":                  "operational",
			"gemini_configured":    s.opts.VisionConfigured,
			"pipeline_initialized": s.processor != nil,
		},
		"features": gin.H{
			"max_images_per_product": s.opts.MaxImages,
			"schema_version":         measurement.SchemaVersion,
			"aggregation_method":     measurement.AggregationMethod,
		},
	})
}

func loggingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		var event *zerolog.Event
		switch {
		case status >= http.StatusInternalServerError:
			event = log.Error()
		case status >= http.StatusBadRequest:
			event = log.Warn()
		default:
			event = log.Info()
		}
		event.
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http request")
	}
}
