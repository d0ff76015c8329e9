package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/analyticore/gatekit/breaker"
	"github.com/analyticore/gatekit/component"
	"github.com/analyticore/gatekit/gateway"
	"github.com/analyticore/gatekit/logger"
	"github.com/analyticore/gatekit/registry"
	"github.com/analyticore/gatekit/server/endpoint"
	"github.com/analyticore/gatekit/server/middleware"
)

// Server is the HTTP observability surface backed by Gin.
type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     Config
	log        *logger.Logger
}

// New creates a Server. No middleware or routes are applied yet; call
// ApplyMiddleware and RegisterRoutes before Start.
func New(cfg Config, log *logger.Logger) *Server {
	// Gin mode follows the global zerolog level.
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      engine,
		ReadTimeout:  time.Duration(cfg.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.IdleTimeout) * time.Second,
	}

	return &Server{
		httpServer: httpServer,
		engine:     engine,
		config:     cfg,
		log:        log.WithComponent("server"),
	}
}

// GinEngine returns the underlying Gin engine for route registration.
func (s *Server) GinEngine() *gin.Engine {
	return s.engine
}

// ApplyMiddleware applies the standard middleware stack: recovery,
// request-ID, CORS, body-size limit, and request logging.
func (s *Server) ApplyMiddleware() {
	s.engine.Use(middleware.GinWrap(middleware.Recovery(s.log)))
	s.engine.Use(middleware.GinWrap(middleware.RequestID()))
	s.engine.Use(middleware.GinCORS(&s.config.CORS))
	if s.config.MaxBodySize != "" {
		s.engine.Use(middleware.GinBodySizeLimit(s.config.MaxBodySize))
	}
	s.engine.Use(middleware.GinWrap(middleware.RequestLogger(s.log)))
}

// Deps carries what the observability endpoints read from.
type Deps struct {
	ServiceName string
	Components  *component.Registry
	Gateway     *gateway.Gateway
	Registry    *registry.Registry
	Breakers    *breaker.Manager
}

// RegisterRoutes registers the observability endpoints.
func (s *Server) RegisterRoutes(deps Deps) {
	var checker endpoint.HealthChecker
	if deps.Components != nil {
		checker = deps.Components.HealthAll
	}
	s.engine.GET("/healthz", endpoint.Health(deps.ServiceName, checker))
	s.engine.GET("/readyz", endpoint.Ready(checker))
	s.engine.GET("/version", endpoint.Version())

	v1 := s.engine.Group("/v1")
	v1.GET("/metrics", endpoint.Metrics(deps.Gateway))
	v1.GET("/services", endpoint.Services(deps.Registry))
	v1.GET("/services/:id", endpoint.Service(deps.Registry))
	v1.GET("/breakers", endpoint.Breakers(deps.Breakers))
	v1.GET("/errors", endpoint.Errors(deps.Gateway))
}

// Start binds the port and begins serving. It returns once the listener
// is bound; serving continues in a goroutine.
func (s *Server) Start(ctx context.Context) error {
	s.log.Info("starting HTTP server", logger.Fields("addr", s.httpServer.Addr))

	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server failed to bind %s: %w", s.httpServer.Addr, err)
	}

	go func() {
		if err := s.httpServer.Serve(listener); err != nil && err != http.ErrServerClosed {
			s.log.Error("server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("HTTP server started", logger.Fields("addr", s.httpServer.Addr))
	return nil
}

// Stop gracefully shuts down the server with a 5-second deadline.
func (s *Server) Stop(ctx context.Context) error {
	s.log.Info("shutting down HTTP server")

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown error: %w", err)
	}
	return nil
}

// Addr returns the configured listen address.
func (s *Server) Addr() string {
	return s.httpServer.Addr
}
