package postgres

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/logger"

	"github.com/jackc/pgx/v5"
	"github.com/stretchr/testify/require"
)

func TestQueryTracer_LogsSlowAndFailed(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	ctx := logger.WithContext(context.Background(), l)

	tr := &queryTracer{slow: time.Nanosecond}
	qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	time.Sleep(time.Millisecond)
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{})
	require.Contains(t, buf.String(), "pg slow query")

	buf.Reset()
	qctx = tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT broken"})
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{Err: errors.New("syntax error")})
	require.Contains(t, buf.String(), "pg query failed")
	require.Contains(t, buf.String(), "SELECT broken")
}

func TestQueryTracer_QuietForFastQueries(t *testing.T) {
	var buf bytes.Buffer
	ctx := logger.WithContext(context.Background(), slog.New(slog.NewTextHandler(&buf, nil)))

	tr := &queryTracer{slow: time.Hour}
	qctx := tr.TraceQueryStart(ctx, nil, pgx.TraceQueryStartData{SQL: "SELECT 1"})
	tr.TraceQueryEnd(qctx, nil, pgx.TraceQueryEndData{})

	require.Empty(t, buf.String())
}

func TestPoolConfig(t *testing.T) {
	pc, err := poolConfig(Config{
		DSN:             "postgres://u:p@localhost:5432/chat?sslmode=disable",
		MaxConns:        7,
		ApplicationName: "chat-relay",
	})
	require.NoError(t, err)
	require.EqualValues(t, 7, pc.MaxConns)
	require.Equal(t, "chat-relay", pc.ConnConfig.RuntimeParams["application_name"])
	require.NotNil(t, pc.ConnConfig.Tracer)

	_, err = poolConfig(Config{DSN: "postgres://%zz"})
	require.Error(t, err)
}
