package httpapi

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"petnotify/internal/model"
	"petnotify/internal/realtime"
	"petnotify/internal/resolver"
	"petnotify/internal/runtime/supervisor"
	"petnotify/internal/storage"
	logx "petnotify/pkg/logx"
)

type Config struct {
	Addr            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	// Heartbeat is the idle keep-alive interval of realtime streams.
	Heartbeat     time.Duration
	JWTSecret     string
	InternalToken string
	// Location renders created_at_formatted. Nil means UTC.
	Location *time.Location
}

// Notifier receives domain writes that may produce notifications.
type Notifier interface {
	EventSaved(ctx context.Context, e model.PetEvent, created bool) ([]model.Notification, error)
	GrantSaved(ctx context.Context, g model.AccessGrant, activated bool, author *model.UserID) (*model.Notification, error)
	VerificationDecided(ctx context.Context, v model.Verification) (*model.Notification, error)
}

// Subscriber attaches a realtime session to a topic.
type Subscriber interface {
	Subscribe(topic string) (<-chan realtime.Message, func())
}

type Deps struct {
	Store    storage.Store
	Notifier Notifier
	Hub      Subscriber
	Targets  *resolver.Targets
	// Health adds fields to /healthz. Optional.
	Health func() map[string]any
}

type Server struct {
	cfg    Config
	deps   Deps
	log    logx.Logger
	engine *gin.Engine

	srv *http.Server
	ln  net.Listener
}

func New(cfg Config, deps Deps, log logx.Logger) *Server {
	if cfg.Heartbeat <= 0 {
		cfg.Heartbeat = 25 * time.Second
	}
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if deps.Targets == nil && deps.Store != nil {
		deps.Targets = resolver.DomainTargets(deps.Store)
	}
	s := &Server{cfg: cfg, deps: deps, log: log}
	s.engine = s.routes()
	return s
}

func (s *Server) Handler() http.Handler { return s.engine }

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(recovery(s.log), accessLog(s.log))

	r.GET("/healthz", s.handleHealth)

	r.GET("/api/realtime", jwtAuth(s.cfg.JWTSecret, true), s.handleStream)

	api := r.Group("/api", jwtAuth(s.cfg.JWTSecret, false))
	{
		n := api.Group("/notifications")
		n.GET("", s.handleList)
		n.GET("/unread-count", s.handleUnreadCount)
		n.PUT("/read-all", s.handleReadAll)
		n.PUT("/:id/read", s.handleMarkRead)
		n.GET("/:id/target", s.handleTarget)

		api.GET("/settings", s.handleGetSettings)
		api.PUT("/settings", s.handlePutSettings)
	}

	in := r.Group("/internal", internalAuth(s.cfg.InternalToken))
	{
		in.PUT("/pets/:id", s.handlePutPet)
		in.POST("/pets/:id/grants", s.handlePostGrant)
		in.PUT("/pet-events/:id", s.handlePutEvent)
		in.POST("/verifications/:id", s.handlePostVerification)
	}
	return r
}

// Start binds the listener and serves under sup. Bind errors are returned
// directly.
func (s *Server) Start(sup *supervisor.Supervisor) error {
	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.cfg.Addr, err)
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       s.cfg.ReadTimeout,
		WriteTimeout:      s.cfg.WriteTimeout,
		// Request contexts end with the supervisor so open streams unwind
		// before Shutdown waits on them.
		BaseContext: func(net.Listener) context.Context { return sup.Context() },
	}
	srv := s.srv
	sup.Go("http.serve", func(ctx context.Context) error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	s.log.Info("http listening", logx.String("addr", ln.Addr().String()))
	return nil
}

// Addr is the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Stop(ctx context.Context) {
	if s.srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.srv.Shutdown(ctx); err != nil {
		s.log.Warn("http shutdown incomplete; closing", logx.Err(err))
		_ = s.srv.Close()
	}
	s.log.Info("http stopped")
}

func (s *Server) handleHealth(c *gin.Context) {
	body := gin.H{"status": "ok"}
	code := http.StatusOK
	if err := s.deps.Store.Ping(c.Request.Context()); err != nil {
		body["status"] = "degraded"
		body["storage"] = err.Error()
		code = http.StatusServiceUnavailable
	}
	if s.deps.Health != nil {
		for k, v := range s.deps.Health() {
			body[k] = v
		}
	}
	c.JSON(code, body)
}
