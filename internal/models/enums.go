package models

import (
	"slices"
	"strings"
)

// UserType is the role of an account.
type UserType string

const (
	UserTypeAdmin    UserType = "ADMIN"
	UserTypeEmployee UserType = "EMPLOYEE"
)

// TaskStatus is the lifecycle state of a task.
type TaskStatus string

// Task status constants
const (
	TaskStatusPending    TaskStatus = "PENDING"
	TaskStatusInProgress TaskStatus = "IN_PROGRESS"
	TaskStatusCompleted  TaskStatus = "COMPLETED"
	TaskStatusCancelled  TaskStatus = "CANCELLED"
)

// TaskPriority is the urgency of a task. Declaration order is significant:
// later values outrank earlier ones.
type TaskPriority string

// Priority constants
const (
	PriorityLow    TaskPriority = "LOW"
	PriorityMedium TaskPriority = "MEDIUM"
	PriorityHigh   TaskPriority = "HIGH"
	PriorityUrgent TaskPriority = "URGENT"
)

var (
	userTypes  = []UserType{UserTypeAdmin, UserTypeEmployee}
	statuses   = []TaskStatus{TaskStatusPending, TaskStatusInProgress, TaskStatusCompleted, TaskStatusCancelled}
	priorities = []TaskPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent}
)

// Parsed is the result of reading an enum from free text. Known is false when
// the text matched no member, in which case Value holds the fallback and Raw
// keeps the original text so callers can log or reject it.
type Parsed[T ~string] struct {
	Value T
	Raw   string
	Known bool
}

func parseEnum[T ~string](text string, members []T, fallback T) Parsed[T] {
	trimmed := strings.TrimSpace(text)
	for _, m := range members {
		if strings.EqualFold(string(m), trimmed) {
			return Parsed[T]{Value: m, Raw: text, Known: true}
		}
	}
	return Parsed[T]{Value: fallback, Raw: text}
}

// ParseUserType matches text case-insensitively, falling back to EMPLOYEE.
func ParseUserType(text string) Parsed[UserType] {
	return parseEnum(text, userTypes, UserTypeEmployee)
}

// ParseTaskStatus matches text case-insensitively, falling back to PENDING.
func ParseTaskStatus(text string) Parsed[TaskStatus] {
	return parseEnum(text, statuses, TaskStatusPending)
}

// ParseTaskPriority matches text case-insensitively, falling back to MEDIUM.
func ParseTaskPriority(text string) Parsed[TaskPriority] {
	return parseEnum(text, priorities, PriorityMedium)
}

// UserTypes returns every user type in declaration order.
func UserTypes() []UserType { return append([]UserType(nil), userTypes...) }

// TaskStatuses returns every status in declaration order.
func TaskStatuses() []TaskStatus { return append([]TaskStatus(nil), statuses...) }

// TaskPriorities returns every priority from lowest to highest.
func TaskPriorities() []TaskPriority { return append([]TaskPriority(nil), priorities...) }

func (t UserType) Valid() bool     { return slices.Contains(userTypes, t) }
func (s TaskStatus) Valid() bool   { return slices.Contains(statuses, s) }
func (p TaskPriority) Valid() bool { return slices.Contains(priorities, p) }

// Rank orders priorities: LOW=0 ... URGENT=3. Unknown values rank below LOW.
func (p TaskPriority) Rank() int {
	return slices.Index(priorities, p)
}

// DisplayName returns a human label for the role.
func (t UserType) DisplayName() string {
	switch t {
	case UserTypeAdmin:
		return "Administrator"
	case UserTypeEmployee:
		return "Employee"
	default:
		return string(t)
	}
}

// DisplayName returns a human label for the status.
func (s TaskStatus) DisplayName() string {
	switch s {
	case TaskStatusPending:
		return "Pending"
	case TaskStatusInProgress:
		return "In progress"
	case TaskStatusCompleted:
		return "Completed"
	case TaskStatusCancelled:
		return "Cancelled"
	default:
		return string(s)
	}
}

// DisplayName returns a human label for the priority.
func (p TaskPriority) DisplayName() string {
	switch p {
	case PriorityLow:
		return "Low"
	case PriorityMedium:
		return "Medium"
	case PriorityHigh:
		return "High"
	case PriorityUrgent:
		return "Urgent"
	default:
		return string(p)
	}
}
