// Package httpapi serves read-only engine state over HTTP. Handlers only
// read copy-on-read snapshots; nothing here mutates trading state.
package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"tessera/internal/engine"
	"tessera/internal/logger"
	"tessera/internal/position"
	"tessera/internal/risk"
)

// ServerConfig describes the live HTTP server dependencies.
type ServerConfig struct {
	Addr      string
	Engine    *engine.Engine
	Positions *position.Manager
	Risk      *risk.Manager
	// EventHistory bounds the in-memory tick event ring served by
	// /api/events.
	EventHistory int
}

// Server exposes engine status, trades and risk state.
type Server struct {
	addr   string
	router *gin.Engine

	eng       *engine.Engine
	positions *position.Manager
	risk      *risk.Manager
	events    *eventRing
}

// NewServer builds the API server and registers routes.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Engine == nil || cfg.Positions == nil || cfg.Risk == nil {
		return nil, errors.New("http server requires engine, position and risk managers")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":9985"
	}
	if cfg.EventHistory <= 0 {
		cfg.EventHistory = 100
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), requestLogger())

	s := &Server{
		addr:      cfg.Addr,
		router:    router,
		eng:       cfg.Engine,
		positions: cfg.Positions,
		risk:      cfg.Risk,
		events:    newEventRing(cfg.EventHistory),
	}

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	api := router.Group("/api")
	api.GET("/status", s.handleStatus)
	api.GET("/trades", s.handleTrades)
	api.GET("/risk", s.handleRisk)
	api.GET("/events", s.handleEvents)

	return s, nil
}

// Record appends a tick event to the ring served by /api/events. The app
// feeds it from the engine's event channel.
func (s *Server) Record(ev engine.TickEvent) {
	s.events.append(ev)
}

// Addr returns the listen address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

// Start serves HTTP until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("HTTP: listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}

func (s *Server) handleStatus(c *gin.Context) {
	resp := gin.H{
		"state":          s.eng.State().String(),
		"open_positions": s.positions.OpenPositions(),
	}
	if ev, ok := s.eng.LastEvent(); ok {
		resp["last_tick"] = ev
	}
	c.JSON(http.StatusOK, resp)
}

func (s *Server) handleTrades(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	history := s.positions.History()
	if limit > 0 && len(history) > limit {
		history = history[len(history)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{
		"trades": history,
		"stats":  s.positions.Stats(),
	})
}

func (s *Server) handleRisk(c *gin.Context) {
	c.JSON(http.StatusOK, s.risk.State())
}

func (s *Server) handleEvents(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "0"))
	c.JSON(http.StatusOK, gin.H{"events": s.events.snapshot(limit)})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		c.Next()
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s",
			method, path, c.Writer.Status(), c.ClientIP(), time.Since(start))
	}
}
