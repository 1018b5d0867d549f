package correlation

import (
	"bytes"
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewID_Length(t *testing.T) {
	assert.Len(t, NewID(), 8)
}

func TestNewID_Unique(t *testing.T) {
	ids := make(map[string]struct{}, 100)
	for range 100 {
		ids[NewID()] = struct{}{}
	}
	assert.Len(t, ids, 100)
}

func TestID(t *testing.T) {
	tests := []struct {
		name   string
		ctx    context.Context
		wantID string
		wantOK bool
	}{
		{"present", WithID(context.Background(), "abc12345"), "abc12345", true},
		{"missing", context.Background(), "", false},
		{"empty string", WithID(context.Background(), ""), "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			id, ok := ID(tt.ctx)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestEnsure_KeepsExistingID(t *testing.T) {
	ctx := WithID(context.Background(), "keep1234")

	got, id := Ensure(ctx)

	assert.Equal(t, "keep1234", id)
	assert.Equal(t, ctx, got)
}

func TestEnsure_GeneratesMissingID(t *testing.T) {
	ctx, id := Ensure(context.Background())

	assert.Len(t, id, 8)
	fromCtx, ok := ID(ctx)
	assert.True(t, ok)
	assert.Equal(t, id, fromCtx)
}

func TestHandler_AddsCorrelationID(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	logger.InfoContext(WithID(context.Background(), "test1234"), "board updated", "board_id", "b1")

	output := buf.String()
	assert.Contains(t, output, "correlation_id=test1234")
	assert.Contains(t, output, "board_id=b1")
	assert.Contains(t, output, "board updated")
}

func TestHandler_NoCorrelationID_WhenMissing(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil)))

	logger.InfoContext(context.Background(), "no correlation")

	assert.NotContains(t, buf.String(), "correlation_id")
}

func TestHandler_WithAttrsAndGroup_PreserveCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(NewHandler(slog.NewTextHandler(&buf, nil))).
		With("component", "bridge").
		WithGroup("ws")

	logger.InfoContext(WithID(context.Background(), "attr1234"), "relaying", "direction", "downstream")

	output := buf.String()
	assert.Contains(t, output, "correlation_id=attr1234")
	assert.Contains(t, output, "component=bridge")
	assert.Contains(t, output, "ws.direction=downstream")
}
