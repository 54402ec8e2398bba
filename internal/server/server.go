package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/atikulmunna/logsift/internal/aggregator"
	"github.com/atikulmunna/logsift/internal/analyzer"
	"github.com/atikulmunna/logsift/internal/hub"
	"github.com/atikulmunna/logsift/internal/store"
)

const (
	defaultMaxUpload = 4 << 20
	shutdownTimeout  = 5 * time.Second
)

// Config holds the HTTP settings the server needs.
type Config struct {
	Port           int
	MaxUploadBytes int64
	AllowedOrigins []string // empty means same-host only, "*" allows any
	Profile        string   // default analysis profile
	RateLimit      int      // API requests per minute per client IP, 0 disables
}

// Server holds the Gin engine and dependencies for the analysis API.
type Server struct {
	engine     *gin.Engine
	hub        *hub.Hub
	store      *store.Store
	aggregator *aggregator.Aggregator
	log        *zap.Logger
	cfg        Config
	analyzers  map[string]*analyzer.Analyzer
	upgrader   websocket.Upgrader
}

// New creates the API server. One analyzer per built-in profile is prepared
// up front so requests can switch profile with ?profile=.
func New(cfg Config, h *hub.Hub, st *store.Store, agg *aggregator.Aggregator, log *zap.Logger) (*Server, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = defaultMaxUpload
	}
	if cfg.Profile == "" {
		cfg.Profile = analyzer.GenericProfile.Name
	}
	if _, err := analyzer.ProfileByName(cfg.Profile); err != nil {
		return nil, err
	}

	analyzers := make(map[string]*analyzer.Analyzer)
	for _, name := range analyzer.ProfileNames() {
		p, err := analyzer.ProfileByName(name)
		if err != nil {
			return nil, err
		}
		analyzers[p.Name] = analyzer.New(analyzer.WithProfile(p))
	}

	gin.SetMode(gin.ReleaseMode)
	engine := gin.New()
	engine.Use(gin.Recovery(), requestLogger(log))

	// Disable automatic redirects that cause 301 issues.
	engine.RedirectTrailingSlash = false
	engine.RedirectFixedPath = false

	s := &Server{
		engine:     engine,
		hub:        h,
		store:      st,
		aggregator: agg,
		log:        log,
		cfg:        cfg,
		analyzers:  analyzers,
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     s.checkOrigin,
	}

	s.setupRoutes()
	return s, nil
}

// Handler exposes the router, mainly for httptest.
func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) setupRoutes() {
	// Health check.
	s.engine.GET("/healthz", func(c *gin.Context) {
		stats := s.aggregator.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":   "ok",
			"uptime":   stats.Uptime,
			"analyses": stats.Analyses,
			"stored":   stats.Stored,
			"dropped":  stats.Dropped,
		})
	})

	api := s.engine.Group("/api")
	if s.cfg.RateLimit > 0 {
		api.Use(rateLimit(s.cfg.RateLimit))
	}
	api.POST("/analyze", s.handleAnalyze)
	api.POST("/logs/upload", s.handleUpload)
	api.GET("/analysis", s.handleRecent)
	api.GET("/analysis/:id", s.handleGetAnalysis)
	api.DELETE("/analysis/:id", s.handleDelete)
	api.GET("/analysis/:id/summary", s.handleGetSummary)
	api.DELETE("/analysis", s.handleClear)
	api.GET("/stats", func(c *gin.Context) {
		c.JSON(http.StatusOK, s.aggregator.Snapshot())
	})

	// WebSocket.
	s.engine.GET("/ws", s.handleWebSocket)

	// Prometheus.
	s.engine.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// pprof profiling endpoints.
	s.engine.GET("/debug/pprof/", gin.WrapF(pprof.Index))
	s.engine.GET("/debug/pprof/cmdline", gin.WrapF(pprof.Cmdline))
	s.engine.GET("/debug/pprof/profile", gin.WrapF(pprof.Profile))
	s.engine.GET("/debug/pprof/symbol", gin.WrapF(pprof.Symbol))
	s.engine.GET("/debug/pprof/trace", gin.WrapF(pprof.Trace))
	s.engine.GET("/debug/pprof/allocs", gin.WrapH(pprof.Handler("allocs")))
	s.engine.GET("/debug/pprof/heap", gin.WrapH(pprof.Handler("heap")))
	s.engine.GET("/debug/pprof/goroutine", gin.WrapH(pprof.Handler("goroutine")))
}

// Start serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info("http server listening", zap.String("addr", srv.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	s.log.Info("http server shutting down")
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}

// requestLogger logs one line per request through zap.
func requestLogger(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
		}
		switch {
		case c.Writer.Status() >= http.StatusInternalServerError:
			log.Error("request", fields...)
		case c.Request.URL.Path == "/metrics" || c.Request.URL.Path == "/healthz":
			log.Debug("request", fields...)
		default:
			log.Info("request", fields...)
		}
	}
}
