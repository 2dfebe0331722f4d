package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/peter-kozarec/tickreplay/pkg/datasource"
	"github.com/peter-kozarec/tickreplay/pkg/server/ws"
	"github.com/peter-kozarec/tickreplay/pkg/simulation"
	"go.uber.org/zap"
)

const shutdownTimeout = 5 * time.Second

// Controller runs fn against the engine on the goroutine that owns it.
type Controller interface {
	Do(ctx context.Context, fn func(*simulation.Engine) error) error
}

type Options struct {
	Addr               string
	Debug              bool
	DefaultStartMinute int
}

// Server is the control surface of a replay session: REST commands, tick and
// availability passthrough to the provider, and the websocket event stream.
type Server struct {
	logger     *zap.Logger
	controller Controller
	provider   datasource.Provider
	hub        *ws.Hub
	options    Options
	engine     *gin.Engine
}

func New(logger *zap.Logger, controller Controller, provider datasource.Provider, hub *ws.Hub, options Options) *Server {
	if !options.Debug {
		gin.SetMode(gin.ReleaseMode)
	}

	s := &Server{
		logger:     logger,
		controller: controller,
		provider:   provider,
		hub:        hub,
		options:    options,
		engine:     gin.New(),
	}
	s.engine.Use(gin.Recovery(), s.accessLog)
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.engine.GET("/health", s.getHealth)

	s.engine.POST("/session", s.postSession)
	s.engine.POST("/play", s.postPlay)
	s.engine.POST("/pause", s.postPause)
	s.engine.PUT("/speed", s.putSpeed)
	s.engine.POST("/seek", s.postSeek)
	s.engine.POST("/orders", s.postOrder)
	s.engine.PUT("/stops/:instrument/:kind", s.putStop)
	s.engine.DELETE("/stops/:instrument/:kind", s.deleteStop)
	s.engine.GET("/snapshot", s.getSnapshot)
	s.engine.GET("/report", s.getReport)

	s.engine.GET("/ticks", s.getTicks)
	s.engine.GET("/availability/:instrument", s.getAvailability)

	if s.hub != nil {
		s.engine.GET("/ws", gin.WrapF(s.hub.HandleWS))
	}
}

func (s *Server) Handler() http.Handler {
	return s.engine
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.options.Addr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("server listening", zap.String("addr", s.options.Addr))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return fmt.Errorf("server: %w", err)
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown: %w", err)
		}
		return ctx.Err()
	}
}

func (s *Server) accessLog(c *gin.Context) {
	start := time.Now()
	c.Next()
	s.logger.Debug("request",
		zap.String("method", c.Request.Method),
		zap.String("path", c.FullPath()),
		zap.Int("status", c.Writer.Status()),
		zap.Duration("elapsed", time.Since(start)))
}
