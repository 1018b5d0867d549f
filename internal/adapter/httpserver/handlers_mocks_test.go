package httpserver

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/pscheid92/boardsync/internal/adapter/memory"
	"github.com/pscheid92/boardsync/internal/domain"
	"github.com/pscheid92/boardsync/internal/platform/config"
)

// --- Mock implementations ---

type mockBoardService struct {
	listBoardsFn  func(ctx context.Context) ([]domain.Board, error)
	getBoardFn    func(ctx context.Context, id uuid.UUID) (*domain.Board, error)
	createBoardFn func(ctx context.Context, req domain.CreateBoardRequest) (*domain.Board, error)
}

func (m *mockBoardService) ListBoards(ctx context.Context) ([]domain.Board, error) {
	if m.listBoardsFn != nil {
		return m.listBoardsFn(ctx)
	}
	return nil, nil
}

func (m *mockBoardService) GetBoard(ctx context.Context, id uuid.UUID) (*domain.Board, error) {
	if m.getBoardFn != nil {
		return m.getBoardFn(ctx, id)
	}
	return nil, domain.ErrBoardNotFound
}

func (m *mockBoardService) CreateBoard(ctx context.Context, req domain.CreateBoardRequest) (*domain.Board, error) {
	if m.createBoardFn != nil {
		return m.createBoardFn(ctx, req)
	}
	return nil, errors.New("not implemented")
}

type mockUpdater struct {
	updateBoardFn func(ctx context.Context, id uuid.UUID, update domain.BoardUpdate) (*domain.Board, error)
}

func (m *mockUpdater) UpdateBoard(ctx context.Context, id uuid.UUID, update domain.BoardUpdate) (*domain.Board, error) {
	if m.updateBoardFn != nil {
		return m.updateBoardFn(ctx, id, update)
	}
	return nil, domain.ErrBoardNotFound
}

// --- Test server ---

type testServerOption func(cfg *config.Config, deps *Deps)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.HealthChecks = checks }
}

func withBoards(boards boardService) testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.Boards = boards }
}

func withUpdater(updater boardUpdater) testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.Coordinator = updater }
}

func withBroker(broker domain.Broker) testServerOption {
	return func(_ *config.Config, deps *Deps) { deps.Broker = broker }
}

func withConfig(fn func(cfg *config.Config)) testServerOption {
	return func(cfg *config.Config, _ *Deps) { fn(cfg) }
}

func newTestServer(t *testing.T, opts ...testServerOption) *Server {
	t.Helper()

	cfg := &config.Config{
		AppEnv:          "test",
		Port:            "0",
		UpdateRateLimit: 1000,
		UpdateRateBurst: 1000,
	}
	deps := Deps{
		Boards:      &mockBoardService{},
		Coordinator: &mockUpdater{},
		Broker:      memory.NewBroker(),
		Registry:    prometheus.NewRegistry(),
		Clock:       clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)),
	}
	for _, opt := range opts {
		opt(cfg, &deps)
	}

	srv := NewServer(cfg, deps)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	})
	return srv
}

// doRequest sends a request through the full middleware chain.
func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
