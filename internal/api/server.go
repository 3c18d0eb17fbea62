// Package api exposes the ingestion trigger and read-only item queries over HTTP.
package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"newsbuzz/internal/model"
	"newsbuzz/internal/scheduler"
	"newsbuzz/internal/storage"
)

// Trigger runs one ingestion pass.
type Trigger interface {
	RunOnce(ctx context.Context) (*model.Report, error)
}

// Reader is the query side of the item store.
type Reader interface {
	Query(ctx context.Context, q storage.Query) ([]model.Item, error)
	Categories(ctx context.Context) ([]storage.CategoryCount, error)
}

// Server holds the HTTP handlers.
type Server struct {
	trigger Trigger
	store   Reader
	log     *slog.Logger
}

// NewServer creates a Server.
func NewServer(trigger Trigger, store Reader, log *slog.Logger) *Server {
	return &Server{trigger: trigger, store: store, log: log}
}

// Handler returns a gin engine with middleware and all routes registered.
func (s *Server) Handler() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery(), s.requestLogger())
	s.RegisterRoutes(r)
	return r
}

// RegisterRoutes adds the routes to r.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.health)
	r.GET("/generate", s.generate)
	r.POST("/generate", s.generate)

	v1 := r.Group("/api/v1")
	{
		v1.GET("/items", s.listItems)
		v1.GET("/categories", s.listCategories)
	}
}

func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		level := slog.LevelInfo
		if c.FullPath() == "/health" {
			level = slog.LevelDebug
		}
		s.log.Log(c.Request.Context(), level, "http request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"duration", time.Since(start),
			"client", c.ClientIP(),
		)
	}
}

func (s *Server) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) generate(c *gin.Context) {
	// the pass outlives a disconnecting client
	ctx := context.WithoutCancel(c.Request.Context())

	report, err := s.trigger.RunOnce(ctx)
	switch {
	case errors.Is(err, scheduler.ErrRunInProgress):
		c.JSON(http.StatusConflict, gin.H{
			"code":    "run_in_progress",
			"message": err.Error(),
		})
		return
	case err != nil:
		s.log.Error("ingestion run", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "ingestion aborted",
			"data":    report,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": report.Summary(),
		"data":    report,
	})
}

func (s *Server) listItems(c *gin.Context) {
	q := storage.Query{
		Category: c.Query("category"),
		Limit:    intQuery(c, "limit", storage.DefaultLimit),
		Offset:   intQuery(c, "offset", 0),
	}.Normalize()

	items, err := s.store.Query(c.Request.Context(), q)
	if err != nil {
		s.log.Error("query items", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	if items == nil {
		items = []model.Item{}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    items,
		"limit":   q.Limit,
		"offset":  q.Offset,
	})
}

func (s *Server) listCategories(c *gin.Context) {
	cats, err := s.store.Categories(c.Request.Context())
	if err != nil {
		s.log.Error("query categories", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{
			"code":    "internal_error",
			"message": "internal server error",
		})
		return
	}
	if cats == nil {
		cats = []storage.CategoryCount{}
	}

	c.JSON(http.StatusOK, gin.H{
		"code":    "ok",
		"message": "success",
		"data":    cats,
	})
}

func intQuery(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.DefaultQuery(key, strconv.Itoa(def)))
	if err != nil {
		return def
	}
	return v
}
