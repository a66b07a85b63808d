package server

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"factory-ops/config"
	"factory-ops/internal/handler"
	"factory-ops/internal/middleware"
	"factory-ops/internal/services"
	"factory-ops/internal/transport/httpdto"
	"factory-ops/internal/websocket"
	"factory-ops/pkg/logger"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type Server struct {
	httpServer *http.Server
	engine     *gin.Engine
	config     *config.Config
	logger     *logger.Logger
	onShutdown []func(ctx context.Context)
}

var (
	ReleaseMode = "release"
	DebugMode   = "debug"
	TestMode    = "test"
)

type Handlers struct {
	Conversation *handler.ConversationHandler
	Message      *handler.MessageHandler
	Notification *handler.NotificationHandler
	Attachment   *handler.AttachmentHandler
	User         *handler.UserHandler
	Realtime     *websocket.Handler
}

// Dependencies carries the collaborators routes need beyond the handlers.
// Limiter and Health are optional.
type Dependencies struct {
	Auth    *services.AuthService
	Limiter middleware.Limiter
	Health  func(ctx context.Context) error
}

const (
	writeLimitPerMinute = 120
	shutdownTimeout     = 10 * time.Second
)

func New(cfg *config.Config, l *logger.Logger) *Server {
	if cfg.AppMode == ReleaseMode {
		gin.SetMode(gin.ReleaseMode)
	} else if cfg.AppMode == TestMode {
		gin.SetMode(gin.TestMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}

	engine := gin.New()
	engine.Use(gin.Recovery())

	return &Server{
		httpServer: &http.Server{
			Addr:              fmt.Sprintf(":%s", cfg.AppPort),
			Handler:           engine,
			ReadHeaderTimeout: 10 * time.Second,
		},
		engine: engine,
		config: cfg,
		logger: l,
	}
}

// Engine exposes the router, used by tests to drive requests through httptest.
func (s *Server) Engine() *gin.Engine {
	return s.engine
}

// OnShutdown registers fn to run after the HTTP server stopped accepting requests.
// Hooks run in registration order.
func (s *Server) OnShutdown(fn func(ctx context.Context)) {
	s.onShutdown = append(s.onShutdown, fn)
}

func (s *Server) SetupRoutes(handlers *Handlers, deps Dependencies) {
	s.engine.Use(middleware.RequestIDMiddleware())
	s.engine.Use(cors.New(s.corsConfig()))
	s.engine.Use(middleware.LoggingMiddleware(s.logger))
	s.engine.Use(middleware.ErrorHandler(s.logger))

	s.engine.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"message": "pong"}))
	})

	s.engine.GET("/health", func(c *gin.Context) {
		if deps.Health != nil {
			if err := deps.Health(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, httpdto.NewErrorResponse(err.Error(), "UNHEALTHY"))
				return
			}
		}
		c.JSON(http.StatusOK, httpdto.NewSuccessResponse(gin.H{"status": "healthy"}))
	})

	// The socket authenticates itself so it can fail before the upgrade.
	s.engine.GET("/ws", handlers.Realtime.Connect)

	writes := func(scope string) gin.HandlerFunc {
		return middleware.UserRateLimit(deps.Limiter, scope, writeLimitPerMinute, time.Minute, s.logger)
	}

	v1 := s.engine.Group("/v1")
	v1.Use(middleware.AuthMiddleware(deps.Auth, s.config.AuthCookieName))

	conversations := v1.Group("/conversations")
	{
		conversations.GET("", handlers.Conversation.List)
		conversations.POST("", writes("conversations"), handlers.Conversation.Create)
		conversations.GET("/:id/messages", handlers.Message.History)
		conversations.POST("/:id/participants", writes("conversations"), handlers.Conversation.AddParticipant)
		conversations.DELETE("/:id/participants/me", handlers.Conversation.Leave)
	}

	notifications := v1.Group("/notifications")
	{
		notifications.GET("", handlers.Notification.List)
		notifications.GET("/unread-count", handlers.Notification.UnreadCount)
		notifications.POST("/read", writes("notifications"), handlers.Notification.MarkRead)
		notifications.POST("/read-all", writes("notifications"), handlers.Notification.MarkAllRead)
	}

	users := v1.Group("/users")
	{
		users.GET("/search", handlers.User.Search)
	}

	v1.GET("/presence/online", handlers.User.Online)

	v1.POST("/attachments/presign", writes("attachments"), handlers.Attachment.Presign)
}

func (s *Server) corsConfig() cors.Config {
	cfg := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type", "X-Request-ID"},
		ExposeHeaders:    []string{"X-Request-ID", "X-RateLimit-Limit", "X-RateLimit-Remaining"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	if len(s.config.CORSOrigins) == 0 {
		cfg.AllowOriginFunc = func(string) bool { return true }
	} else {
		cfg.AllowOrigins = s.config.CORSOrigins
	}
	return cfg
}

func (s *Server) Start() error {
	go func() {
		if s.logger != nil {
			s.logger.Infof("Starting the server on port %s...", s.config.AppPort)
		}
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if s.logger != nil {
				s.logger.Errorf("Error in starting the server: %s", err)
			}
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGTERM, syscall.SIGINT)

	if s.logger != nil {
		s.logger.Infof("Server is running on :%s", s.config.AppPort)
	}

	<-quit

	if s.logger != nil {
		s.logger.Infof("Quitting signal received, shutting down within %s", shutdownTimeout)
	}

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	err := s.httpServer.Shutdown(ctx)
	if err != nil && s.logger != nil {
		s.logger.Errorf("Error in the graceful shutdown of the server: %s", err)
	}

	for _, fn := range s.onShutdown {
		fn(ctx)
	}

	if err == nil && s.logger != nil {
		s.logger.Infof("Server stopped gracefully")
	}
	return err
}
