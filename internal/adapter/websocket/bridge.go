package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/boardsync/internal/adapter/metrics"
	"github.com/pscheid92/boardsync/internal/domain"
	"github.com/pscheid92/boardsync/internal/platform/correlation"
	"golang.org/x/sync/errgroup"
)

const defaultWriteTimeout = 5 * time.Second

// ErrInvalidPayload is returned when the broker delivers a payload that is
// not valid UTF-8 and therefore cannot be sent as a text frame.
var ErrInvalidPayload = errors.New("broker payload is not valid UTF-8")

// Conn is the part of *websocket.Conn a Bridge uses. Close, WriteControl and
// the deadline setters may be called concurrently with reads and writes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	WriteControl(messageType int, data []byte, deadline time.Time) error
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	SetPingHandler(h func(appData string) error)
	SetPongHandler(h func(appData string) error)
	RemoteAddr() net.Addr
	Close() error
}

var _ Conn = (*websocket.Conn)(nil)

type Options struct {
	// RelayClientUpdates publishes client text frames to the board topic.
	// When false they are read and discarded.
	RelayClientUpdates bool
	// KeepaliveInterval between server pings. Zero disables keepalive and
	// read deadlines.
	KeepaliveInterval time.Duration
	WriteTimeout      time.Duration
}

// Bridge relays one WebSocket connection to and from the broker topic of one
// board. The downstream loop is the only writer of data and ping frames, the
// upstream loop the only reader. A Bridge is single-use.
type Bridge struct {
	conn    Conn
	broker  domain.Broker
	boardID uuid.UUID
	topic   string
	opts    Options
	metrics *metrics.BridgeMetrics
	clock   clockwork.Clock
	logger  *slog.Logger

	state atomic.Int32
	used  atomic.Bool
}

func NewBridge(conn Conn, broker domain.Broker, boardID uuid.UUID, opts Options, m *metrics.BridgeMetrics, clock clockwork.Clock) *Bridge {
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = defaultWriteTimeout
	}
	return &Bridge{
		conn:    conn,
		broker:  broker,
		boardID: boardID,
		topic:   domain.Topic(boardID),
		opts:    opts,
		metrics: m,
		clock:   clock,
		logger: slog.Default().With(
			"board_id", boardID.String(),
			"remote_addr", remoteAddr(conn),
		),
	}
}

func remoteAddr(conn Conn) string {
	if addr := conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

func (b *Bridge) State() State {
	return State(b.state.Load())
}

// advance moves the state forward to s. A later phase is never overwritten,
// so Closed stays terminal even when the cancel callback fires after Run.
func (b *Bridge) advance(s State) {
	for {
		cur := b.state.Load()
		if cur >= int32(s) || b.state.CompareAndSwap(cur, int32(s)) {
			return
		}
	}
}

// Run drives the connection until either side ends it, then releases the
// subscription and closes the transport. It returns nil when the client
// closed the connection or ctx was cancelled, and the terminal error
// otherwise (match with errors.Is against the domain errors).
func (b *Bridge) Run(ctx context.Context) error {
	if !b.used.CompareAndSwap(false, true) {
		return domain.ErrBridgeUsed
	}
	ctx, _ = correlation.Ensure(ctx)
	defer b.advance(StateClosed)

	if err := b.conn.WriteControl(websocket.PingMessage, []byte{1}, b.writeDeadline()); err != nil {
		_ = b.conn.Close()
		b.metrics.Terminations.WithLabelValues("ping_failed").Inc()
		b.logger.DebugContext(ctx, "Initial ping failed", "error", err)
		return fmt.Errorf("initial ping: %w", err)
	}

	sub, err := b.broker.Subscribe(ctx, b.topic)
	if err != nil {
		b.metrics.SubscribeFailure.Inc()
		b.metrics.Terminations.WithLabelValues("subscribe_failed").Inc()
		b.logger.WarnContext(ctx, "Failed to subscribe to board topic", "topic", b.topic, "error", err)
		b.closeTransport(websocket.CloseInternalServerErr, "subscription failed")
		return fmt.Errorf("subscribe to %s: %w", b.topic, err)
	}
	b.advance(StateSubscribed)

	start := b.clock.Now()
	b.metrics.ActiveBridges.Inc()
	b.logger.InfoContext(ctx, "Watch connection relaying")

	runErr := b.relay(ctx, sub)

	if err := sub.Close(); err != nil {
		b.logger.DebugContext(ctx, "Failed to release subscription", "error", err)
	}

	code, text, reason, result := classify(ctx, runErr)
	b.closeTransport(code, text)

	b.metrics.ActiveBridges.Dec()
	b.metrics.Terminations.WithLabelValues(reason).Inc()
	b.metrics.BridgeDuration.Observe(b.clock.Since(start).Seconds())

	if result != nil {
		b.logger.WarnContext(ctx, "Watch connection failed", "reason", reason, "error", result)
	} else {
		b.logger.InfoContext(ctx, "Watch connection closed", "reason", reason)
	}
	return result
}

// relay runs both loops in one errgroup. The first loop to fail cancels the
// shared context; the reader is then unblocked by an immediate read deadline
// and the writer returns at its next select.
func (b *Bridge) relay(ctx context.Context, sub domain.Subscription) error {
	g, gctx := errgroup.WithContext(ctx)

	b.installHandlers(gctx)
	if b.opts.KeepaliveInterval > 0 {
		_ = b.conn.SetReadDeadline(time.Now().Add(2 * b.opts.KeepaliveInterval))
	}

	stop := context.AfterFunc(gctx, func() {
		b.advance(StateClosing)
		_ = b.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	b.advance(StateRelaying)
	g.Go(func() error { return b.downstream(gctx, sub) })
	g.Go(func() error { return b.upstream(gctx) })
	return g.Wait()
}

func (b *Bridge) downstream(ctx context.Context, sub domain.Subscription) error {
	var tick <-chan time.Time
	if b.opts.KeepaliveInterval > 0 {
		ticker := b.clock.NewTicker(b.opts.KeepaliveInterval)
		defer ticker.Stop()
		tick = ticker.Chan()
	}

	for {
		select {
		case <-ctx.Done():
			return nil

		case msg, ok := <-sub.Messages():
			if !ok {
				return subscriptionEnded(sub)
			}
			if !utf8.Valid(msg) {
				return fmt.Errorf("%w: topic %s", ErrInvalidPayload, b.topic)
			}
			_ = b.conn.SetWriteDeadline(b.writeDeadline())
			if err := b.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return fmt.Errorf("write to client: %w", err)
			}
			b.metrics.MessagesRelayed.WithLabelValues(metrics.DirectionDownstream).Inc()

		case <-tick:
			if err := b.conn.WriteControl(websocket.PingMessage, nil, b.writeDeadline()); err != nil {
				return fmt.Errorf("keepalive ping: %w", err)
			}
		}
	}
}

func subscriptionEnded(sub domain.Subscription) error {
	err := sub.Err()
	switch {
	case err == nil:
		return domain.ErrSubscriptionLost
	case errors.Is(err, domain.ErrSubscriptionLost):
		return err
	default:
		return fmt.Errorf("%w: %w", domain.ErrSubscriptionLost, err)
	}
}

func (b *Bridge) upstream(ctx context.Context) error {
	for {
		messageType, data, err := b.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			var closeErr *websocket.CloseError
			if errors.As(err, &closeErr) {
				return fmt.Errorf("%w: code %d", domain.ErrGracefulClose, closeErr.Code)
			}
			return fmt.Errorf("read from client: %w", err)
		}
		b.extendReadDeadline(ctx)

		switch messageType {
		case websocket.BinaryMessage:
			return fmt.Errorf("%w: binary frame", domain.ErrProtocolViolation)

		case websocket.TextMessage:
			if !b.opts.RelayClientUpdates {
				b.metrics.DiscardedFrames.Inc()
				b.logger.DebugContext(ctx, "Discarding client text frame", "bytes", len(data))
				continue
			}
			if err := b.broker.Publish(ctx, b.topic, data); err != nil {
				return fmt.Errorf("%w: relay client update: %w", domain.ErrPublishFailed, err)
			}
			b.metrics.MessagesRelayed.WithLabelValues(metrics.DirectionUpstream).Inc()
		}
	}
}

// installHandlers logs control frames. They never end the connection.
func (b *Bridge) installHandlers(ctx context.Context) {
	b.conn.SetPingHandler(func(appData string) error {
		b.logger.DebugContext(ctx, "Ping from client")
		err := b.conn.WriteControl(websocket.PongMessage, []byte(appData), b.writeDeadline())
		if errors.Is(err, websocket.ErrCloseSent) {
			return nil
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return nil
		}
		return err
	})

	b.conn.SetPongHandler(func(string) error {
		b.logger.DebugContext(ctx, "Pong from client")
		b.extendReadDeadline(ctx)
		return nil
	})
}

// extendReadDeadline pushes the read deadline out after client activity. If
// the relay is already shutting down it restores the immediate deadline, so an
// extension racing with shutdown cannot keep the reader blocked.
func (b *Bridge) extendReadDeadline(ctx context.Context) {
	if b.opts.KeepaliveInterval <= 0 || ctx.Err() != nil {
		return
	}
	_ = b.conn.SetReadDeadline(time.Now().Add(2 * b.opts.KeepaliveInterval))
	if ctx.Err() != nil {
		_ = b.conn.SetReadDeadline(time.Now())
	}
}

func (b *Bridge) writeDeadline() time.Time {
	return time.Now().Add(b.opts.WriteTimeout)
}

// closeTransport sends a close frame best-effort and closes the connection.
func (b *Bridge) closeTransport(code int, text string) {
	_ = b.conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(code, text), b.writeDeadline())
	_ = b.conn.Close()
}

// classify maps the relay outcome to a close code, a metric reason and the
// error Run returns.
func classify(ctx context.Context, err error) (code int, text, reason string, result error) {
	switch {
	case err == nil && ctx.Err() != nil:
		return websocket.CloseGoingAway, "server shutting down", "shutdown", nil
	case err == nil, errors.Is(err, domain.ErrGracefulClose):
		return websocket.CloseNormalClosure, "", "client_closed", nil
	case errors.Is(err, domain.ErrProtocolViolation):
		return websocket.CloseUnsupportedData, "binary frames are not supported", "protocol_violation", err
	case errors.Is(err, domain.ErrSubscriptionLost):
		return websocket.CloseInternalServerErr, "subscription lost", "subscription_lost", err
	case errors.Is(err, ErrInvalidPayload):
		return websocket.CloseInternalServerErr, "invalid payload", "invalid_payload", err
	case errors.Is(err, domain.ErrPublishFailed):
		return websocket.CloseInternalServerErr, "relay failed", "relay_failed", err
	default:
		return websocket.CloseInternalServerErr, "", "transport_error", err
	}
}
