// Package httpapi is the thin gin HTTP surface exposing the
// OpenAI-compatible chat completions and models endpoints, wired to the
// credential pool, provider adapters, and emitter.
package httpapi

import (
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/fangyuan99/uni-api/internal/config"
)

// Server wires the gin engine to the configured provider runtimes.
type Server struct {
	engine   *gin.Engine
	logger   *zap.Logger
	runtimes []*Runtime
	client   *http.Client
}

// New builds a Server from loaded configuration.
func New(cfg *config.Config, logger *zap.Logger) (*Server, error) {
	runtimes, err := BuildRuntimes(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		logger:   logger,
		runtimes: runtimes,
		client:   newUpstreamClient(),
	}

	gin.SetMode(gin.ReleaseMode)
	s.engine = gin.New()
	s.engine.Use(gin.Recovery(), s.requestLogger())
	s.setupRoutes()

	return s, nil
}

// Handler returns the http.Handler to pass to http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	v1 := s.engine.Group("/v1")
	v1.POST("/chat/completions", s.handleChatCompletions)
	v1.GET("/models", s.handleModels)
}

// requestLogger emits one structured log line per request, tagged with a
// generated request id.
func (s *Server) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := uuid.NewString()
		c.Set("request_id", requestID)
		c.Writer.Header().Set("X-Request-Id", requestID)

		c.Next()

		s.logger.Info("request",
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
		)
	}
}

// newUpstreamClient configures the transport's timeout profile: 15s
// connect, 15s TLS handshake, 30s TCP keep-alive, 300s to response
// headers, 90s idle connection reuse.
func newUpstreamClient() *http.Client {
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   15 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ResponseHeaderTimeout: 300 * time.Second,
		IdleConnTimeout:       90 * time.Second,
		MaxIdleConns:          50,
		MaxIdleConnsPerHost:   10,
	}
	return &http.Client{Transport: transport}
}
