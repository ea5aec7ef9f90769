// internal/service/security_logger.go
package service

import (
	"context"
	"sync"

	"github.com/gurkanbulca/taskdesk/internal/middleware"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
	"github.com/gurkanbulca/taskdesk/pkg/security"
)

const recentEventsCap = 256

// SecurityLogger writes audit events to the log and keeps the most recent
// ones in memory.
type SecurityLogger struct {
	log logger.Logger

	mu     sync.Mutex
	recent []security.Event
}

func NewSecurityLogger(log logger.Logger) *SecurityLogger {
	return &SecurityLogger{log: log.With("channel", "security")}
}

// LogFromContext records an event for userID, taking client details from ctx.
func (sl *SecurityLogger) LogFromContext(ctx context.Context, userID string, eventType security.EventType, description string) {
	client := middleware.GetClientInfoFromContext(ctx)
	ev := security.Event{
		Type:        eventType,
		Severity:    eventType.DefaultSeverity(),
		UserID:      userID,
		Description: description,
		IPAddress:   client.IPAddress,
		UserAgent:   client.UserAgent,
	}

	keyvals := []any{
		"event", ev.Type,
		"severity", ev.Severity,
		"user_id", ev.UserID,
		"ip", ev.IPAddress,
		"user_agent", ev.UserAgent,
	}
	if ev.Severity.IsAlert() {
		sl.log.Warn(description, keyvals...)
	} else {
		sl.log.Info(description, keyvals...)
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()
	if len(sl.recent) == recentEventsCap {
		sl.recent = sl.recent[1:]
	}
	sl.recent = append(sl.recent, ev)
}

// LogCurrentUserFromContext records an event for the authenticated caller.
func (sl *SecurityLogger) LogCurrentUserFromContext(ctx context.Context, eventType security.EventType, description string) {
	userID, _ := middleware.GetUserIDFromContext(ctx)
	sl.LogFromContext(ctx, userID, eventType, description)
}

// Recent returns the buffered events, oldest first.
func (sl *SecurityLogger) Recent() []security.Event {
	sl.mu.Lock()
	defer sl.mu.Unlock()
	return append([]security.Event(nil), sl.recent...)
}

func (sl *SecurityLogger) LogLoginSuccess(ctx context.Context, userID string) {
	sl.LogFromContext(ctx, userID, security.EventTypeLoginSuccess, "user logged in")
}

func (sl *SecurityLogger) LogLoginFailed(ctx context.Context, username string) {
	sl.LogFromContext(ctx, "", security.EventTypeLoginFailed, "login failed for "+username)
}

func (sl *SecurityLogger) LogPasswordChanged(ctx context.Context, userID string) {
	sl.LogFromContext(ctx, userID, security.EventTypePasswordChanged, "password changed")
}

func (sl *SecurityLogger) LogPermissionDenied(ctx context.Context, action string) {
	sl.LogCurrentUserFromContext(ctx, security.EventTypePermissionDenied, "permission denied: "+action)
}
