package logger

import (
	"context"
	"time"
)

// contextKey is a private type for context keys to avoid collisions.
type contextKey struct{}

// logContextKey is the key for LogContext in context.Context.
var logContextKey = contextKey{}

// LogContext holds request-scoped logging fields threaded through a
// single blob operation: which chunk, which back-end, which Kinetic
// exchange, and (when tracing is enabled) the active span.
type LogContext struct {
	TraceID   string    // OpenTelemetry trace ID
	SpanID    string    // OpenTelemetry span ID
	Operation string    // "upload", "download", "removal", "listing"
	ChunkID   string    // chunk identifier being operated on
	Drive     string    // target drive/rawx/bucket URL
	SeqID     uint64    // Kinetic exchange sequence ID, when applicable
	StartTime time.Time // for duration calculation
}

// WithContext returns a new context with the given LogContext.
func WithContext(ctx context.Context, lc *LogContext) context.Context {
	return context.WithValue(ctx, logContextKey, lc)
}

// FromContext retrieves the LogContext from context, or nil if not present.
func FromContext(ctx context.Context) *LogContext {
	if ctx == nil {
		return nil
	}
	lc, _ := ctx.Value(logContextKey).(*LogContext)
	return lc
}

// NewLogContext creates a new LogContext for the given operation.
func NewLogContext(operation string) *LogContext {
	return &LogContext{
		Operation: operation,
		StartTime: time.Now(),
	}
}

// Clone creates a copy of the LogContext.
func (lc *LogContext) Clone() *LogContext {
	if lc == nil {
		return nil
	}
	clone := *lc
	return &clone
}

// WithChunk returns a copy with the chunk ID set.
func (lc *LogContext) WithChunk(chunkID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.ChunkID = chunkID
	}
	return clone
}

// WithDrive returns a copy with the target drive/URL set.
func (lc *LogContext) WithDrive(drive string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.Drive = drive
	}
	return clone
}

// WithSeqID returns a copy with the Kinetic sequence ID set.
func (lc *LogContext) WithSeqID(seq uint64) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.SeqID = seq
	}
	return clone
}

// WithTrace returns a copy with trace info set.
func (lc *LogContext) WithTrace(traceID, spanID string) *LogContext {
	clone := lc.Clone()
	if clone != nil {
		clone.TraceID = traceID
		clone.SpanID = spanID
	}
	return clone
}

// DurationMs returns the duration since StartTime in milliseconds.
func (lc *LogContext) DurationMs() float64 {
	if lc == nil || lc.StartTime.IsZero() {
		return 0
	}
	return float64(time.Since(lc.StartTime).Microseconds()) / 1000.0
}
