// pkg/security/event_types.go
package security

import "fmt"

type EventType string

const (
	EventTypeLoginSuccess     EventType = "login_success"
	EventTypeLoginFailed      EventType = "login_failed"
	EventTypeTokenRefreshed   EventType = "token_refreshed"
	EventTypePasswordChanged  EventType = "password_changed"
	EventTypePermissionDenied EventType = "permission_denied"
	EventTypeUserCreated      EventType = "user_created"
	EventTypeUserDeleted      EventType = "user_deleted"
	EventTypeSecurityAlert    EventType = "security_alert"
)

type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

var defaultSeverity = map[EventType]Severity{
	EventTypeLoginSuccess:     SeverityLow,
	EventTypeLoginFailed:      SeverityMedium,
	EventTypeTokenRefreshed:   SeverityLow,
	EventTypePasswordChanged:  SeverityMedium,
	EventTypePermissionDenied: SeverityMedium,
	EventTypeUserCreated:      SeverityLow,
	EventTypeUserDeleted:      SeverityHigh,
	EventTypeSecurityAlert:    SeverityHigh,
}

// ParseEventType validates a string event type.
func ParseEventType(s string) (EventType, error) {
	t := EventType(s)
	if _, ok := defaultSeverity[t]; !ok {
		return "", fmt.Errorf("unknown event type: %s", s)
	}
	return t, nil
}

// ParseSeverity validates a string severity.
func ParseSeverity(s string) (Severity, error) {
	switch sev := Severity(s); sev {
	case SeverityLow, SeverityMedium, SeverityHigh, SeverityCritical:
		return sev, nil
	default:
		return "", fmt.Errorf("unknown severity: %s", s)
	}
}

// DefaultSeverity is the severity an event is recorded with unless the
// caller overrides it.
func (t EventType) DefaultSeverity() Severity {
	if sev, ok := defaultSeverity[t]; ok {
		return sev
	}
	return SeverityMedium
}

// IsAlert reports whether the severity should surface above info level.
func (s Severity) IsAlert() bool {
	return s == SeverityHigh || s == SeverityCritical
}

// Event is one audit record.
type Event struct {
	Type        EventType
	Severity    Severity
	UserID      string
	Description string
	IPAddress   string
	UserAgent   string
}
