package httpserver

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/pscheid92/boardsync/internal/domain"
	apperrors "github.com/pscheid92/boardsync/internal/platform/errors"
)

func (s *Server) handleListBoards(c echo.Context) error {
	boards, err := s.boards.ListBoards(c.Request().Context())
	if err != nil {
		return boardError(err, uuid.Nil)
	}
	if boards == nil {
		boards = []domain.Board{}
	}

	if err := c.JSON(http.StatusOK, boards); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleCreateBoard(c echo.Context) error {
	var req domain.CreateBoardRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body").WithCause(err)
	}
	if err := c.Validate(&req); err != nil {
		return err
	}

	board, err := s.boards.CreateBoard(c.Request().Context(), req)
	if err != nil {
		return boardError(err, uuid.Nil)
	}

	if err := c.JSON(http.StatusCreated, board); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func (s *Server) handleGetBoard(c echo.Context) error {
	boardID, err := parseBoardID(c)
	if err != nil {
		return err
	}

	board, err := s.boards.GetBoard(c.Request().Context(), boardID)
	if err != nil {
		return boardError(err, boardID)
	}

	if err := c.JSON(http.StatusOK, board); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

// handleUpdateBoard runs the coordinator write. A failed publish does not
// fail the request: the write is durable and watchers catch up on the next
// update.
func (s *Server) handleUpdateBoard(c echo.Context) error {
	ctx := c.Request().Context()

	boardID, err := parseBoardID(c)
	if err != nil {
		return err
	}

	var update domain.BoardUpdate
	if err := c.Bind(&update); err != nil {
		return apperrors.ValidationError("invalid request body").WithCause(err).WithField("board_id", boardID.String())
	}
	if err := c.Validate(&update); err != nil {
		return err
	}

	board, err := s.coordinator.UpdateBoard(ctx, boardID, update)
	switch {
	case errors.Is(err, domain.ErrPublishFailed) && board != nil:
		slog.WarnContext(ctx, "Board updated but change was not published",
			"board_id", boardID.String(), "version", board.Version, "error", err)
	case err != nil:
		return boardError(err, boardID)
	}

	if err := c.JSON(http.StatusOK, board); err != nil {
		return fmt.Errorf("failed to send JSON response: %w", err)
	}
	return nil
}

func parseBoardID(c echo.Context) (uuid.UUID, error) {
	raw := c.Param("board_id")
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, apperrors.ValidationError("invalid board id").WithField("board_id", raw)
	}
	return id, nil
}

func boardError(err error, boardID uuid.UUID) error {
	var appErr *apperrors.Error
	switch {
	case errors.Is(err, domain.ErrBoardNotFound):
		appErr = apperrors.NotFoundError("board not found")
	case errors.Is(err, domain.ErrStoreUnavailable):
		appErr = apperrors.ExternalError("board store unavailable", err)
	default:
		appErr = apperrors.InternalError("board operation failed", err)
	}
	if boardID != uuid.Nil {
		appErr = appErr.WithField("board_id", boardID.String())
	}
	return appErr
}
