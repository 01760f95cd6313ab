package knng

import (
	"context"
	"log/slog"
	"os"
	"time"
)

// Logger wraps slog.Logger with knng-specific context, providing structured
// logging with consistent field names.
type Logger struct {
	*slog.Logger
}

// NewLogger creates a Logger with the given handler. A nil handler means a
// default text handler to stderr.
func NewLogger(handler slog.Handler) *Logger {
	if handler == nil {
		handler = slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		})
	}
	return &Logger{Logger: slog.New(handler)}
}

// NewJSONLogger creates a Logger that outputs JSON-formatted logs.
func NewJSONLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NewTextLogger creates a Logger that outputs human-readable text logs.
func NewTextLogger(level slog.Level) *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))}
}

// NoopLogger creates a Logger that discards all output.
func NoopLogger() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.Level(1000), // Unreachable level
	}))}
}

// LogAddNode records one online insertion.
func (l *Logger) LogAddNode(ctx context.Context, id string, partition int, neighbors int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "add node failed", "id", id, "error", err)
		return
	}
	l.DebugContext(ctx, "node added", "id", id, "partition", partition, "neighbors", neighbors)
}

// LogRemove records one online removal.
func (l *Logger) LogRemove(ctx context.Context, id string, affected int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "remove failed", "id", id, "error", err)
		return
	}
	l.DebugContext(ctx, "node removed", "id", id, "affected", affected)
}

// LogSearch records one query.
func (l *Logger) LogSearch(ctx context.Context, k, results int, err error) {
	if err != nil {
		l.ErrorContext(ctx, "search failed", "k", k, "error", err)
		return
	}
	l.DebugContext(ctx, "search completed", "k", k, "results", results)
}

// LogCheckpoint records a lineage checkpoint.
func (l *Logger) LogCheckpoint(ctx context.Context, nodesAdded int64, duration time.Duration) {
	l.InfoContext(ctx, "graph checkpointed", "nodes_added", nodesAdded, "duration", duration)
}

// LogMedoidUpdate records an online medoid refresh.
func (l *Logger) LogMedoidUpdate(ctx context.Context, size int64, duration time.Duration) {
	l.InfoContext(ctx, "medoids recomputed", "size", size, "duration", duration)
}
