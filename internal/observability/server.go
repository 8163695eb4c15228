// Package observability owns metrics and the HTTP status surface.
//
// Ownership boundary:
// - prometheus collectors for the dispatch core
// - the /health /ready /metrics /status endpoints
//
// It never touches host state directly; everything it reports comes
// through the injected status source.
package observability

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// StatusSource reports live dispatch-core state for /status.
type StatusSource func() map[string]any

// Server exposes the observability HTTP endpoints.
type Server struct {
	id      string
	addr    string
	router  *gin.Engine
	status  StatusSource
	started time.Time
}

func NewServer(id, addr string, corsOrigins []string, status StatusSource) *Server {
	RegisterMetrics()
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger(log.Logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(corsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		id:      id,
		addr:    addr,
		router:  r,
		status:  status,
		started: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	s.router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"uptime": time.Since(s.started).String(),
			"node":   s.id,
		})
	})

	s.router.GET("/ready", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"ready":  true,
			"uptime": time.Since(s.started).String(),
			"node":   s.id,
		})
	})

	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	s.router.GET("/status", func(c *gin.Context) {
		out := gin.H{
			"node":   s.id,
			"uptime": time.Since(s.started).String(),
		}
		if s.status != nil {
			for k, v := range s.status() {
				out[k] = v
			}
		}
		c.JSON(http.StatusOK, out)
	})
}

func (s *Server) Serve() error {
	log.Info().Str("addr", s.addr).Msg("observability listening")
	return s.router.Run(s.addr)
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		event := logger.Info()
		if status >= 500 {
			event = logger.Error()
		} else if status >= 400 {
			event = logger.Warn()
		}

		event.
			Str("method", c.Request.Method).
			Str("path", path).
			Int("status", status).
			Dur("duration", time.Since(start)).
			Msg("http_request")
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
