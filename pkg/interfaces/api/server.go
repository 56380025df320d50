package api

import (
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/vsinha/tandas/pkg/application/services/lifecycle"
	"github.com/vsinha/tandas/pkg/domain/entities"
	"github.com/vsinha/tandas/pkg/domain/repositories"
	appconfig "github.com/vsinha/tandas/pkg/infrastructure/config"
	"github.com/vsinha/tandas/pkg/infrastructure/events"
)

// CorrelationHeader carries the request's correlation id in and out
const CorrelationHeader = "X-Correlation-Id"

// Config holds the optional collaborators of a Server
type Config struct {
	// CORSOrigins allows every origin when empty or "*"
	CORSOrigins []string
	// Guard serializes transitions per line; defaults to a MemoryGuard
	Guard lifecycle.Guard
	// EventStore defaults to an in-memory store
	EventStore events.EventStore
	// Logger defaults to a discarding logger
	Logger *logrus.Logger
	// Now defaults to time.Now
	Now func() time.Time
	// SessionTTL and MaxSessions bound the session registry; zero takes
	// DefaultSessionTTL and DefaultMaxSessions
	SessionTTL  time.Duration
	MaxSessions int
}

// Server exposes composition sessions and batch lifecycle control over HTTP
type Server struct {
	orders  repositories.OrderRepository
	batches repositories.BatchRepository

	guard  lifecycle.Guard
	events events.EventStore
	logger *logrus.Logger
	now    func() time.Time

	sessions *SessionRegistry

	mu          sync.Mutex
	controllers map[entities.BatchState]*lifecycle.Controller

	router *gin.Engine
}

// NewServer creates a server over the production backend
func NewServer(config Config, orders repositories.OrderRepository, batches repositories.BatchRepository) *Server {
	logger := config.Logger
	if logger == nil {
		logger = logrus.New()
		logger.SetOutput(io.Discard)
	}
	guard := config.Guard
	if guard == nil {
		guard = lifecycle.NewMemoryGuard()
	}
	store := config.EventStore
	if store == nil {
		store = events.NewInMemoryEventStore()
	}
	now := config.Now
	if now == nil {
		now = time.Now
	}

	s := &Server{
		orders:      orders,
		batches:     batches,
		guard:       guard,
		events:      store,
		logger:      logger,
		now:         now,
		controllers: make(map[entities.BatchState]*lifecycle.Controller),
	}
	s.sessions = NewSessionRegistryWithConfig(SessionConfig{
		IdleTTL:     config.SessionTTL,
		MaxSessions: config.MaxSessions,
		Now:         now,
	}, s.newComposer)
	s.router = s.routes(config.CORSOrigins)
	return s
}

// Handler returns the HTTP handler serving the API
func (s *Server) Handler() http.Handler {
	return s.router
}

// Sessions returns the composition session registry
func (s *Server) Sessions() *SessionRegistry {
	return s.sessions
}

func (s *Server) routes(origins []string) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.Use(correlationID())
	r.Use(cors.New(corsConfig(origins)))
	r.Use(errorLogger(s.logger))
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	api := r.Group("/api")
	api.GET("/lines", s.listLines)
	api.GET("/events", s.listEvents)
	api.GET("/lines/:line/events", s.lineEvents)

	sessions := api.Group("/sessions")
	sessions.POST("", s.createSession)
	sessions.GET("/:id", s.getSession)
	sessions.DELETE("/:id", s.deleteSession)
	sessions.POST("/:id/reload", s.reloadSession)
	sessions.POST("/:id/line", s.selectLine)
	sessions.POST("/:id/toggle", s.toggleOrder)
	sessions.POST("/:id/clear", s.clearSelection)
	sessions.POST("/:id/submit", s.submitBatch)

	batches := api.Group("/batches/:state")
	batches.GET("", s.listBatches)
	batches.GET("/export", s.exportBatches)
	batches.POST("/lines/:line/request", s.requestTransition)
	batches.DELETE("/lines/:line/request", s.cancelTransition)
	batches.POST("/lines/:line/confirm", s.confirmTransition)

	r.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "not found"})
	})
	return r
}

func corsConfig(origins []string) cors.Config {
	config := cors.DefaultConfig()
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = origins
		config.AllowCredentials = true
	}
	config.AddAllowMethods("GET", "POST", "DELETE", "OPTIONS")
	config.AddAllowHeaders("Origin", "Content-Type", CorrelationHeader)
	config.AddExposeHeaders("Content-Length", CorrelationHeader)
	return config
}

func correlationID() gin.HandlerFunc {
	return func(c *gin.Context) {
		cid := c.GetHeader(CorrelationHeader)
		if cid == "" {
			cid = uuid.NewString()
		}
		c.Set("correlation_id", cid)
		c.Header(CorrelationHeader, cid)
		c.Next()
	}
}

func errorLogger(logger *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		for _, e := range c.Errors {
			appconfig.LogError(logger, "api", c.HandlerName(), c.Request.Method+" "+c.FullPath(), logrus.Fields{
				"status":         c.Writer.Status(),
				"correlation_id": c.GetString("correlation_id"),
			}, e.Err)
		}
	}
}

func (s *Server) entry() *logrus.Entry {
	return logrus.NewEntry(s.logger)
}

// controller returns the lifecycle controller viewing state. Every
// controller shares the server's guard.
func (s *Server) controller(state entities.BatchState) *lifecycle.Controller {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctl, ok := s.controllers[state]
	if !ok {
		ctl = lifecycle.NewControllerWithConfig(lifecycle.Config{
			Guard:      s.guard,
			EventStore: s.events,
			Logger:     s.entry(),
			Now:        s.now,
		}, s.batches)
		s.controllers[state] = ctl
	}
	return ctl
}
