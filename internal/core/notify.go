package core

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Success messages emitted after committed mutations.
const (
	MsgEmployeeAdded   = "Employee added successfully"
	MsgEmployeeUpdated = "Employee updated successfully"
	MsgEmployeeDeleted = "Employee deleted successfully"
)

// NotificationLevel classifies a user-facing notification.
type NotificationLevel string

const (
	NotifySuccess NotificationLevel = "success"
	NotifyError   NotificationLevel = "error"
)

// Notification is a short user-facing message about a completed action.
type Notification struct {
	Level    NotificationLevel `json:"level"`
	Message  string            `json:"message"`
	EntityID string            `json:"entityId,omitempty"`
}

// Notifier receives notifications. Implementations must not block.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(ctx context.Context, n Notification)

// Notify calls f(ctx, n).
func (f NotifierFunc) Notify(ctx context.Context, n Notification) { f(ctx, n) }

type noopNotifier struct{}

func (noopNotifier) Notify(context.Context, Notification) {}

// LogNotifier writes notifications to a zap logger.
type LogNotifier struct {
	logger *zap.Logger
}

// NewLogNotifier returns a notifier logging at info level, or error level for
// error notifications.
func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LogNotifier{logger: logger.Named("notify")}
}

// Notify logs n.
func (l *LogNotifier) Notify(_ context.Context, n Notification) {
	fields := []zap.Field{zap.String("level", string(n.Level))}
	if n.EntityID != "" {
		fields = append(fields, zap.String("entity_id", n.EntityID))
	}
	if n.Level == NotifyError {
		l.logger.Error(n.Message, fields...)
		return
	}
	l.logger.Info(n.Message, fields...)
}

// RecordingNotifier keeps every notification it receives.
type RecordingNotifier struct {
	mu      sync.Mutex
	entries []Notification
}

// Notify appends n.
func (r *RecordingNotifier) Notify(_ context.Context, n Notification) {
	r.mu.Lock()
	r.entries = append(r.entries, n)
	r.mu.Unlock()
}

// Notifications returns a copy of the recorded notifications.
func (r *RecordingNotifier) Notifications() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.entries...)
}

// Last returns the most recent notification.
func (r *RecordingNotifier) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.entries) == 0 {
		return Notification{}, false
	}
	return r.entries[len(r.entries)-1], true
}

// MultiNotifier fans a notification out to every notifier.
type MultiNotifier []Notifier

// Notify forwards n to each notifier in order.
func (m MultiNotifier) Notify(ctx context.Context, n Notification) {
	for _, notifier := range m {
		if notifier != nil {
			notifier.Notify(ctx, n)
		}
	}
}
