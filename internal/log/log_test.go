package log

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    slog.Level
		wantErr error
	}{
		{"debug", slog.LevelDebug, nil},
		{"INFO", slog.LevelInfo, nil},
		{"warning", slog.LevelWarn, nil},
		{"error", slog.LevelError, nil},
		{"trace", 0, ErrUnknownLogLevel},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := GetLevel(tt.in)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCreateHandlerWithStrings(t *testing.T) {
	for _, format := range AllFormats {
		t.Run(format, func(t *testing.T) {
			var buf bytes.Buffer
			h, err := CreateHandlerWithStrings(&buf, "info", format)
			require.NoError(t, err)

			slog.New(h).Info("published", "toggle", "shop/prod/checkout")
			assert.Contains(t, buf.String(), "published")
			assert.Contains(t, buf.String(), "shop/prod/checkout")
		})
	}

	_, err := CreateHandlerWithStrings(&bytes.Buffer{}, "info", "xml")
	assert.True(t, errors.Is(err, ErrInvalidArgument))
	assert.True(t, errors.Is(err, ErrUnknownLogFormat))
}

func TestLevelFilters(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(&buf, "warn", "json")
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown")

	out := buf.String()
	assert.False(t, strings.Contains(out, "hidden"))
	assert.True(t, strings.Contains(out, "shown"))
}

func TestWithContext(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)
	ctx := IntoContext(context.Background(), logger)
	assert.Same(t, logger, WithContext(ctx))
	assert.Same(t, slog.Default(), WithContext(context.Background()))
}
