package inspect

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/kbukum/beankit/component"
	"github.com/kbukum/beankit/factory"
	"github.com/kbukum/beankit/logger"
	"github.com/kbukum/beankit/observability"
)

var (
	_ component.Component         = (*Server)(nil)
	_ component.Describable       = (*Server)(nil)
	_ component.RouteProvider     = (*Server)(nil)
	_ observability.HealthChecker = (*Server)(nil)
)

const shutdownTimeout = 5 * time.Second

// Server serves the inspection handler. It implements component.Component
// and is usually registered as a manual singleton so the component registry
// starts it with the rest of the application.
type Server struct {
	engine     *gin.Engine
	httpServer *http.Server
	log        *logger.Logger

	mu       sync.Mutex
	listener net.Listener
}

// NewServer creates a server for f listening on addr. HTTP/2 cleartext is
// accepted alongside HTTP/1.1.
func NewServer(addr string, f *factory.Factory, health HealthFunc, log *logger.Logger) *Server {
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}
	if log == nil {
		log = logger.Get("inspect")
	} else {
		log = log.WithComponent("inspect")
	}

	engine := gin.New()
	engine.Use(recovery(log), requestID(), requestLogger(log))
	NewHandler(f, health).Register(engine)

	h2s := &http2.Server{
		MaxConcurrentStreams: 64,
		IdleTimeout:          120 * time.Second,
	}
	return &Server{
		engine: engine,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           h2c.NewHandler(engine, h2s),
			ReadHeaderTimeout: 10 * time.Second,
			IdleTimeout:       120 * time.Second,
		},
		log: log,
	}
}

// Engine returns the gin engine, for tests and extra routes.
func (s *Server) Engine() *gin.Engine { return s.engine }

// Start binds the address and serves in the background. It returns once
// the listener is bound.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("inspect server failed to bind %s: %w", s.httpServer.Addr, err)
	}
	s.mu.Lock()
	s.listener = ln
	s.mu.Unlock()

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.log.Error("Inspect server error", logger.Fields(logger.FieldError, err.Error()))
		}
	}()

	s.log.Info("Inspect server started", logger.Fields("addr", ln.Addr().String()))
	return nil
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	shutdownCtx, cancel := context.WithTimeout(ctx, shutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("inspect server shutdown: %w", err)
	}
	s.mu.Lock()
	s.listener = nil
	s.mu.Unlock()
	s.log.Info("Inspect server stopped")
	return nil
}

// Addr returns the bound address once started, the configured one before.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.httpServer.Addr
}

// CheckHealth reports whether the server is listening.
func (s *Server) CheckHealth(context.Context) observability.Health {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return observability.Health{Name: "inspect", Status: observability.HealthStatusDown, Message: "not listening"}
	}
	return observability.Health{Name: "inspect", Status: observability.HealthStatusUp}
}

// Describe returns summary info for the startup display.
func (s *Server) Describe() component.Description {
	d := component.Description{
		Name:    "Inspect Server",
		Type:    "server",
		Details: s.Addr(),
	}
	if _, port, err := net.SplitHostPort(s.Addr()); err == nil {
		d.Port, _ = strconv.Atoi(port)
	}
	return d
}

// Routes lists the registered routes sorted by path.
func (s *Server) Routes() []component.Route {
	info := s.engine.Routes()
	sort.Slice(info, func(i, j int) bool { return info[i].Path < info[j].Path })
	routes := make([]component.Route, 0, len(info))
	for _, r := range info {
		routes = append(routes, component.Route{Method: r.Method, Path: r.Path, Handler: r.Handler})
	}
	return routes
}
