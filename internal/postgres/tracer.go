package postgres

import (
	"context"
	"log/slog"
	"time"

	"github.com/cwrk-planet/chat-relay/internal/logger"

	"github.com/jackc/pgx/v5"
)

const defaultSlowQuery = 200 * time.Millisecond

type queryStartKey struct{}

type queryStart struct {
	sql string
	at  time.Time
}

// queryTracer пишет в лог неудачные и медленные запросы.
type queryTracer struct {
	slow time.Duration
}

var _ pgx.QueryTracer = (*queryTracer)(nil)

func (t *queryTracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, queryStartKey{}, queryStart{sql: data.SQL, at: time.Now()})
}

func (t *queryTracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, data pgx.TraceQueryEndData) {
	st, ok := ctx.Value(queryStartKey{}).(queryStart)
	if !ok {
		return
	}
	dur := time.Since(st.at)
	slow := t.slow
	if slow <= 0 {
		slow = defaultSlowQuery
	}

	switch {
	case data.Err != nil:
		logger.FromContext(ctx).LogAttrs(ctx, slog.LevelDebug, "pg query failed",
			slog.String("sql", st.sql), slog.Duration("duration", dur), slog.Any("err", data.Err))
	case dur >= slow:
		logger.FromContext(ctx).LogAttrs(ctx, slog.LevelWarn, "pg slow query",
			slog.String("sql", st.sql), slog.Duration("duration", dur),
			slog.String("tag", data.CommandTag.String()))
	}
}
