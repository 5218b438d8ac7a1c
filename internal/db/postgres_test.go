package db

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/jackc/pgx/v5/tracelog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestQueryLoggerMapsLevels(t *testing.T) {
	tests := []struct {
		in   tracelog.LogLevel
		want string
	}{
		{tracelog.LogLevelError, "ERROR"},
		{tracelog.LogLevelWarn, "WARN"},
		{tracelog.LogLevelInfo, "INFO"},
		{tracelog.LogLevelTrace, "DEBUG"},
	}

	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			queryLogger(logger)(context.Background(), tt.in, "Query", map[string]any{"sql": "SELECT 1"})

			var line map[string]any
			require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
			assert.Equal(t, tt.want, line["level"])
			assert.Equal(t, "pgx: Query", line["msg"])
			assert.Equal(t, "SELECT 1", line["sql"])
		})
	}
}
