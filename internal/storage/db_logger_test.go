package storage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func TestStatementResult(t *testing.T) {
	assert.Equal(t, "ok", statementResult(nil, time.Millisecond, 200*time.Millisecond))
	assert.Equal(t, "slow", statementResult(nil, time.Second, 200*time.Millisecond))
	assert.Equal(t, "ok", statementResult(nil, time.Second, 0))
	assert.Equal(t, "not_found", statementResult(gorm.ErrRecordNotFound, time.Second, 200*time.Millisecond))
	assert.Equal(t, "error", statementResult(errors.New("broken pipe"), time.Millisecond, 200*time.Millisecond))
}

func TestCallerFromContext(t *testing.T) {
	assert.Equal(t, "other", callerOf(context.Background()))
	assert.Equal(t, "sync-vk", callerOf(WithCaller(context.Background(), "sync-vk")))
}

func TestTraceCountsStatements(t *testing.T) {
	l := NewStatementLogger("INFO", 200*time.Millisecond)
	ctx := WithCaller(context.Background(), "trace-test")
	sql := func() (string, int64) { return "SELECT * FROM bans_data", 1 }

	l.Trace(ctx, time.Now(), sql, nil)
	l.Trace(ctx, time.Now(), sql, errors.New("connection reset"))
	l.Trace(ctx, time.Now().Add(-time.Second), sql, nil)

	assert.Equal(t, 1.0, testutil.ToFloat64(statementsTotal.WithLabelValues("trace-test", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(statementsTotal.WithLabelValues("trace-test", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(statementsTotal.WithLabelValues("trace-test", "slow")))
}

func TestSilentLoggerStillCounts(t *testing.T) {
	l := NewStatementLogger("ERROR", 0).LogMode(logger.Silent)
	ctx := WithCaller(context.Background(), "silent-test")

	l.Trace(ctx, time.Now(), func() (string, int64) { return "SELECT 1", 1 }, nil)
	assert.Equal(t, 1.0, testutil.ToFloat64(statementsTotal.WithLabelValues("silent-test", "ok")))
}

func TestStatementLoggerLevels(t *testing.T) {
	assert.Equal(t, logger.Info, NewStatementLogger("DEBUG", 0).(*StatementLogger).LogLevel)
	assert.Equal(t, logger.Warn, NewStatementLogger("INFO", 0).(*StatementLogger).LogLevel)
	assert.Equal(t, logger.Error, NewStatementLogger("FATAL", 0).(*StatementLogger).LogLevel)
}
