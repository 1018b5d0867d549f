package httpserver

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/boardsync/internal/adapter/metrics"
	"github.com/pscheid92/boardsync/internal/adapter/websocket"
	"github.com/pscheid92/boardsync/internal/domain"
	"github.com/pscheid92/boardsync/internal/platform/config"
)

type boardService interface {
	ListBoards(ctx context.Context) ([]domain.Board, error)
	GetBoard(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	CreateBoard(ctx context.Context, req domain.CreateBoardRequest) (*domain.Board, error)
}

type boardUpdater interface {
	UpdateBoard(ctx context.Context, id uuid.UUID, update domain.BoardUpdate) (*domain.Board, error)
}

// Deps are the shared handles the server hands to its handlers.
type Deps struct {
	Boards       boardService
	Coordinator  boardUpdater
	Broker       domain.Broker
	Registry     *prometheus.Registry
	Clock        clockwork.Clock
	HealthChecks []HealthCheck
}

type Server struct {
	echo   *echo.Echo
	config *config.Config

	boards      boardService
	coordinator boardUpdater
	broker      domain.Broker

	registry      *prometheus.Registry
	httpMetrics   *metrics.HTTPMetrics
	bridgeMetrics *metrics.BridgeMetrics

	upgrader     ws.Upgrader
	bridgeOpts   websocket.Options
	watchLimits  *watchLimits
	clock        clockwork.Clock
	healthChecks []HealthCheck
	startTime    time.Time

	// watchCtx is the parent of every bridge; Shutdown cancels it.
	watchCtx    context.Context
	stopWatches context.CancelFunc
	watches     sync.WaitGroup
}

func NewServer(cfg *config.Config, deps Deps) *Server {
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Validator = newValidator()

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	registry := deps.Registry
	if registry == nil {
		registry = metrics.NewRegistry()
	}

	watchCtx, stopWatches := context.WithCancel(context.Background())

	srv := &Server{
		echo:          e,
		config:        cfg,
		boards:        deps.Boards,
		coordinator:   deps.Coordinator,
		broker:        deps.Broker,
		registry:      registry,
		httpMetrics:   metrics.NewHTTPMetrics(registry),
		bridgeMetrics: metrics.NewBridgeMetrics(registry),
		upgrader: ws.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     websocket.NewCheckOrigin(cfg.AllowedOrigins()),
		},
		bridgeOpts: websocket.Options{
			RelayClientUpdates: cfg.WatchRelayClientUpdates,
			KeepaliveInterval:  cfg.WatchKeepaliveInterval,
		},
		watchLimits: newWatchLimits(
			cfg.WatchMaxConnections,
			cfg.WatchMaxConnectionsPerIP,
			cfg.WatchConnectRate,
			cfg.WatchConnectBurst,
			clock,
		),
		clock:        clock,
		healthChecks: deps.HealthChecks,
		startTime:    clock.Now(),
		watchCtx:     watchCtx,
		stopWatches:  stopWatches,
	}

	srv.registerRoutes()

	return srv
}

func (s *Server) Start() error {
	slog.Info("Starting server", "port", s.config.Port)
	if err := s.echo.Start(":" + s.config.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start server: %w", err)
	}
	return nil
}

// Shutdown stops accepting requests, then cancels all watch connections and
// waits for their bridges to finish.
func (s *Server) Shutdown(ctx context.Context) error {
	err := s.echo.Shutdown(ctx)
	s.stopWatches()

	done := make(chan struct{})
	go func() {
		s.watches.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return fmt.Errorf("watch connections did not drain: %w", ctx.Err())
	}

	if err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}
	return nil
}

// ServeHTTP lets tests drive the router without a listener.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.echo.ServeHTTP(w, r)
}
