package logging

import (
	"context"
	"log/slog"
	"os"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps both slog and zap loggers
type Logger struct {
	slog *slog.Logger
	zap  *zap.Logger
}

// Config holds logging configuration
type Config struct {
	Level     string
	Format    string // "json" or "console"
	Output    string // "stdout" or "stderr"
	AddCaller bool
	AddStack  bool
}

// NewLogger creates a new structured logger
func NewLogger(config Config) (*Logger, error) {
	slogLevel := parseSlogLevel(config.Level)
	slogHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slogLevel,
	})
	slogLogger := slog.New(slogHandler)

	zapConfig := zap.NewProductionConfig()
	zapConfig.Level = parseZapLevel(config.Level)
	zapConfig.Encoding = config.Format
	zapConfig.OutputPaths = []string{config.Output}
	zapConfig.ErrorOutputPaths = []string{config.Output}
	zapConfig.DisableCaller = !config.AddCaller
	zapConfig.DisableStacktrace = !config.AddStack

	zapLogger, err := zapConfig.Build()
	if err != nil {
		return nil, err
	}

	return &Logger{
		slog: slogLogger,
		zap:  zapLogger,
	}, nil
}

func parseSlogLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func parseZapLevel(level string) zap.AtomicLevel {
	switch level {
	case "debug":
		return zap.NewAtomicLevelAt(zapcore.DebugLevel)
	case "info":
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	case "warn":
		return zap.NewAtomicLevelAt(zapcore.WarnLevel)
	case "error":
		return zap.NewAtomicLevelAt(zapcore.ErrorLevel)
	default:
		return zap.NewAtomicLevelAt(zapcore.InfoLevel)
	}
}

// WithRequestID adds a task id to the logger context
func (l *Logger) WithRequestID(ctx context.Context, requestID string) *Logger {
	return &Logger{
		slog: l.slog.With("task_id", requestID),
		zap:  l.zap.With(zap.String("task_id", requestID)),
	}
}

// WithTraceID adds a trace ID to the logger context
func (l *Logger) WithTraceID(ctx context.Context, traceID string) *Logger {
	return &Logger{
		slog: l.slog.With("trace_id", traceID),
		zap:  l.zap.With(zap.String("trace_id", traceID)),
	}
}

// WithSpanID adds a span ID to the logger context
func (l *Logger) WithSpanID(ctx context.Context, spanID string) *Logger {
	return &Logger{
		slog: l.slog.With("span_id", spanID),
		zap:  l.zap.With(zap.String("span_id", spanID)),
	}
}

// WithFields adds fields to logger context
func (l *Logger) WithFields(fields map[string]interface{}) *Logger {
	slogAttrs := make([]any, 0, len(fields)*2)
	zapFields := make([]zap.Field, 0, len(fields))

	for key, value := range fields {
		slogAttrs = append(slogAttrs, key, value)
		zapFields = append(zapFields, zap.Any(key, value))
	}

	return &Logger{
		slog: l.slog.With(slogAttrs...),
		zap:  l.zap.With(zapFields...),
	}
}

func (l *Logger) Debug(msg string, args ...interface{}) {
	l.slog.Debug(msg, args...)
	l.zap.Debug(msg, convertToZapFields(args)...)
}

func (l *Logger) Info(msg string, args ...interface{}) {
	l.slog.Info(msg, args...)
	l.zap.Info(msg, convertToZapFields(args)...)
}

func (l *Logger) Warn(msg string, args ...interface{}) {
	l.slog.Warn(msg, args...)
	l.zap.Warn(msg, convertToZapFields(args)...)
}

func (l *Logger) Error(msg string, args ...interface{}) {
	l.slog.Error(msg, args...)
	l.zap.Error(msg, convertToZapFields(args)...)
}

// Fatal logs a fatal message and exits
func (l *Logger) Fatal(msg string, args ...interface{}) {
	l.slog.Error(msg, args...)
	l.zap.Fatal(msg, convertToZapFields(args)...)
}

func convertToZapFields(args []interface{}) []zap.Field {
	if len(args) == 0 {
		return nil
	}

	fields := make([]zap.Field, 0, len(args)/2)
	for i := 0; i < len(args)-1; i += 2 {
		if key, ok := args[i].(string); ok {
			fields = append(fields, zap.Any(key, args[i+1]))
		}
	}
	return fields
}

// LogInference logs a single call to an inference endpoint
func (l *Logger) LogInference(ctx context.Context, role, model, status string, duration time.Duration, promptTokens, completionTokens int, taskID string) {
	fields := map[string]interface{}{
		"role":              role,
		"model":             model,
		"status":            status,
		"duration_ms":       float64(duration.Nanoseconds()) / 1e6,
		"prompt_tokens":     promptTokens,
		"completion_tokens": completionTokens,
		"task_id":           taskID,
	}

	l.WithFields(fields).Info("inference call completed")
}

// LogRouterCacheOp logs a router-cache lookup
func (l *Logger) LogRouterCacheOp(ctx context.Context, hit bool, taskID string) {
	fields := map[string]interface{}{
		"hit":     hit,
		"task_id": taskID,
	}

	logger := l.WithFields(fields)
	if hit {
		logger.Info("router cache hit")
	} else {
		logger.Info("router cache miss")
	}
}

// LogRetry logs a retry of an inference call
func (l *Logger) LogRetry(ctx context.Context, role, model, reason string, attempt int, taskID string) {
	fields := map[string]interface{}{
		"role":    role,
		"model":   model,
		"reason":  reason,
		"attempt": attempt,
		"task_id": taskID,
	}

	l.WithFields(fields).Warn("inference retry")
}

// LogCircuitBreaker logs a circuit breaker state transition
func (l *Logger) LogCircuitBreaker(ctx context.Context, role, model, state string) {
	fields := map[string]interface{}{
		"role":  role,
		"model": model,
		"state": state,
	}

	l.WithFields(fields).Warn("circuit breaker state changed")
}

// LogFault logs a coordinator-caught fault without propagating it
func (l *Logger) LogFault(ctx context.Context, code string, cause string, taskID string) {
	fields := map[string]interface{}{
		"fault_code": code,
		"cause":      cause,
		"task_id":    taskID,
	}

	l.WithFields(fields).Warn("run_once caught fault")
}

// LogSecurityEvent logs a code review denial
func (l *Logger) LogSecurityEvent(ctx context.Context, taskID, ruleID, reason string) {
	fields := map[string]interface{}{
		"task_id": taskID,
		"rule_id": ruleID,
		"reason":  reason,
	}

	l.WithFields(fields).Warn("code review denied plan")
}

// Sync flushes buffered log entries
func (l *Logger) Sync() error {
	return l.zap.Sync()
}

func (l *Logger) Close() error {
	return l.zap.Sync()
}

func (l *Logger) GetSlog() *slog.Logger {
	return l.slog
}

func (l *Logger) GetZap() *zap.Logger {
	return l.zap
}
