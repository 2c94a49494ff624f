package core

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// MetricsRecorder observes the outcome and latency of service operations.
type MetricsRecorder interface {
	Observe(ctx context.Context, operation string, success bool, duration time.Duration)
}

// Tracer starts spans around service operations.
type Tracer interface {
	Start(ctx context.Context, operation string) (context.Context, TraceSpan)
}

// TraceSpan is ended exactly once with the operation error, if any.
type TraceSpan interface {
	End(err error)
}

// AuditStatus is the outcome recorded in an audit entry.
type AuditStatus string

const (
	AuditStatusSuccess AuditStatus = "success"
	AuditStatusError   AuditStatus = "error"
)

// AuditEntry describes one service operation for the audit trail.
type AuditEntry struct {
	Operation string
	Entity    EntityType
	Action    Action
	EntityID  string
	Actor     string
	Status    AuditStatus
	Error     string
	Duration  time.Duration
	Timestamp time.Time
}

// AuditRecorder receives audit entries.
type AuditRecorder interface {
	Record(ctx context.Context, entry AuditEntry)
}

type noopMetricsRecorder struct{}

func (noopMetricsRecorder) Observe(context.Context, string, bool, time.Duration) {}

type noopTracer struct{}

func (noopTracer) Start(ctx context.Context, _ string) (context.Context, TraceSpan) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error) {}

type noopAuditRecorder struct{}

func (noopAuditRecorder) Record(context.Context, AuditEntry) {}

// LogAuditRecorder writes audit entries to a zap logger.
type LogAuditRecorder struct {
	logger *zap.Logger
}

// NewLogAuditRecorder returns a recorder logging under the "audit" name.
func NewLogAuditRecorder(logger *zap.Logger) *LogAuditRecorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogAuditRecorder{logger: logger.Named("audit")}
}

// Record logs entry; failed operations log at warn.
func (r *LogAuditRecorder) Record(_ context.Context, entry AuditEntry) {
	fields := []zap.Field{
		zap.String("operation", entry.Operation),
		zap.String("entity", string(entry.Entity)),
		zap.String("action", string(entry.Action)),
		zap.String("entity_id", entry.EntityID),
		zap.String("actor", entry.Actor),
		zap.String("status", string(entry.Status)),
		zap.Duration("duration", entry.Duration),
		zap.Time("timestamp", entry.Timestamp),
	}
	if entry.Status == AuditStatusError {
		r.logger.Warn("operation failed", append(fields, zap.String("error", entry.Error))...)
		return
	}
	r.logger.Info("operation completed", fields...)
}

// MultiMetricsRecorder fans observations out to several recorders.
type MultiMetricsRecorder []MetricsRecorder

// Observe forwards to each recorder.
func (m MultiMetricsRecorder) Observe(ctx context.Context, op string, success bool, d time.Duration) {
	for _, r := range m {
		if r != nil {
			r.Observe(ctx, op, success, d)
		}
	}
}

type actorKey struct{}

// WithActor attaches the acting username to ctx for audit entries.
func WithActor(ctx context.Context, username string) context.Context {
	return context.WithValue(ctx, actorKey{}, username)
}

// ActorFromContext returns the username attached by WithActor.
func ActorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(actorKey{}).(string)
	return actor
}
