package storage

import (
	"context"
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	customlogger "bansync/internal/logger"

	"gorm.io/gorm"
	"gorm.io/gorm/logger"
	"gorm.io/gorm/utils"
)

var (
	statementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "bansync_db_statements_total",
		Help: "SQL statements executed against the ban record store",
	}, []string{"caller", "result"}) // result: ok, not_found, slow, error

	statementDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "bansync_db_statement_duration_seconds",
		Help:    "SQL statement latency",
		Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 5},
	}, []string{"caller"})
)

type callerKey struct{}

// WithCaller tags statements run with ctx, such as "sync-vk", in logs and
// metrics.
func WithCaller(ctx context.Context, caller string) context.Context {
	return context.WithValue(ctx, callerKey{}, caller)
}

func callerOf(ctx context.Context) string {
	if ctx != nil {
		if caller, ok := ctx.Value(callerKey{}).(string); ok {
			return caller
		}
	}
	return "other"
}

// StatementLogger is the gorm logger for the ban record store. Every poll
// tick runs the same SELECTs, so successful statements are only written at
// DEBUG; all statements are counted.
type StatementLogger struct {
	LogLevel      logger.LogLevel
	SlowThreshold time.Duration
}

// NewStatementLogger maps the application log level name to a gorm level.
func NewStatementLogger(level string, slowThreshold time.Duration) logger.Interface {
	logLevel := logger.Warn
	switch customlogger.ParseLevel(level) {
	case customlogger.LevelDebug:
		logLevel = logger.Info
	case customlogger.LevelError:
		logLevel = logger.Error
	}
	return &StatementLogger{LogLevel: logLevel, SlowThreshold: slowThreshold}
}

func (l *StatementLogger) LogMode(level logger.LogLevel) logger.Interface {
	newLogger := *l
	newLogger.LogLevel = level
	return &newLogger
}

func (l *StatementLogger) Info(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Info {
		customlogger.Infof("[db:%s] "+msg, append([]interface{}{callerOf(ctx)}, data...)...)
	}
}

func (l *StatementLogger) Warn(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Warn {
		customlogger.Warningf("[db:%s] "+msg, append([]interface{}{callerOf(ctx)}, data...)...)
	}
}

func (l *StatementLogger) Error(ctx context.Context, msg string, data ...interface{}) {
	if l.LogLevel >= logger.Error {
		customlogger.Errorf("[db:%s] "+msg, append([]interface{}{callerOf(ctx)}, data...)...)
	}
}

// Trace classifies one executed statement, counts it and logs it when the
// level allows.
func (l *StatementLogger) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	elapsed := time.Since(begin)
	caller := callerOf(ctx)
	result := statementResult(err, elapsed, l.SlowThreshold)

	statementsTotal.WithLabelValues(caller, result).Inc()
	statementDuration.WithLabelValues(caller).Observe(elapsed.Seconds())

	if l.LogLevel <= logger.Silent {
		return
	}

	ms := float64(elapsed.Nanoseconds()) / 1e6
	switch {
	case result == "error" && l.LogLevel >= logger.Error:
		sql, _ := fc()
		customlogger.Errorf("[db:%s] [%.3fms] [%s] %s; error=%v", caller, ms, utils.FileWithLineNum(), sql, err)
	case result == "slow" && l.LogLevel >= logger.Warn:
		sql, rows := fc()
		customlogger.Warningf("[db:%s] slow statement over %s [%.3fms] [%s] %s; rows=%d", caller, l.SlowThreshold, ms, utils.FileWithLineNum(), sql, rows)
	case l.LogLevel >= logger.Info && customlogger.Enabled(customlogger.LevelDebug):
		sql, rows := fc()
		customlogger.Debugf("[db:%s] [%.3fms] %s; rows=%d", caller, ms, sql, rows)
	}
}

// statementResult is the result label for a statement. A missing row is a
// normal lookup outcome, not an error.
func statementResult(err error, elapsed, slowThreshold time.Duration) string {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return "not_found"
	case err != nil:
		return "error"
	case slowThreshold > 0 && elapsed > slowThreshold:
		return "slow"
	default:
		return "ok"
	}
}
