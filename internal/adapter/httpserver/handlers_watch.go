package httpserver

import (
	"context"
	"log/slog"

	"github.com/labstack/echo/v4"
	"github.com/pscheid92/boardsync/internal/adapter/websocket"
	apperrors "github.com/pscheid92/boardsync/internal/platform/errors"
)

// handleWatch upgrades to a WebSocket and relays the board topic until either
// side ends the connection or the server shuts down.
func (s *Server) handleWatch(c echo.Context) error {
	boardID, err := parseBoardID(c)
	if err != nil {
		return err
	}
	if s.watchCtx.Err() != nil {
		return apperrors.ExternalError("server is shutting down", s.watchCtx.Err())
	}

	ip := c.RealIP()
	if ok, reason := s.watchLimits.acquire(ip); !ok {
		s.bridgeMetrics.Rejected.WithLabelValues(string(reason)).Inc()
		return apperrors.RateLimitedError("too many watch connections").
			WithField("reason", string(reason)).
			WithField("board_id", boardID.String())
	}
	defer s.watchLimits.release(ip)

	// Registered while the request is still tracked by the HTTP server, so
	// Shutdown cannot start waiting before this connection is counted.
	s.watches.Add(1)
	defer s.watches.Done()

	conn, err := s.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// The upgrader has already answered with an HTTP error.
		slog.WarnContext(c.Request().Context(), "WebSocket upgrade failed", "board_id", boardID.String(), "error", err)
		return nil
	}

	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	stop := context.AfterFunc(s.watchCtx, cancel)
	defer stop()

	bridge := websocket.NewBridge(conn, s.broker, boardID, s.bridgeOpts, s.bridgeMetrics, s.clock)
	// Bridge errors stay local to their connection; Run logs them.
	_ = bridge.Run(ctx)
	return nil
}
