package service

import (
	"context"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/gurkanbulca/taskdesk/internal/middleware"
	"github.com/gurkanbulca/taskdesk/internal/models"
)

// Field names follow the XML documents. Passwords never leave the server.

func userToMap(u models.User) map[string]any {
	return map[string]any{
		"id":          u.ID,
		"username":    u.Username,
		"userType":    string(u.UserType),
		"email":       u.Email,
		"fullName":    u.FullName,
		"createdDate": u.CreatedDate,
	}
}

func usersToList(users []models.User) []any {
	out := make([]any, 0, len(users))
	for _, u := range users {
		out = append(out, userToMap(u))
	}
	return out
}

func taskToMap(t models.Task) map[string]any {
	m := map[string]any{
		"id":          t.ID,
		"title":       t.Title,
		"description": t.Description,
		"assignedTo":  t.AssignedTo,
		"createdBy":   t.CreatedBy,
		"status":      string(t.Status),
		"priority":    string(t.Priority),
		"createdDate": t.CreatedDate,
		"dueDate":     t.DueDate,
	}
	if t.CompletedDate > 0 {
		m["completedDate"] = t.CompletedDate
	}
	return m
}

func tasksToList(tasks []models.Task) []any {
	out := make([]any, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, taskToMap(t))
	}
	return out
}

func statisticsToMap(s models.TaskStatistics) map[string]any {
	return map[string]any{
		"total":      s.Total,
		"pending":    s.Pending,
		"inProgress": s.InProgress,
		"completed":  s.Completed,
		"cancelled":  s.Cancelled,
		"overdue":    s.Overdue,
	}
}

// caller identifies the authenticated user of a request.
type caller struct {
	ID    string
	Admin bool
}

func callerFromContext(ctx context.Context) (caller, error) {
	id, ok := middleware.GetUserIDFromContext(ctx)
	if !ok {
		return caller{}, status.Error(codes.Unauthenticated, "user not authenticated")
	}
	role, _ := middleware.GetUserRoleFromContext(ctx)
	return caller{ID: id, Admin: role == string(models.UserTypeAdmin)}, nil
}

// canSee reports whether c may read or change t: admins see everything,
// employees their own assignments and what they created.
func (c caller) canSee(t models.Task) bool {
	return c.Admin || t.AssignedTo == c.ID || t.CreatedBy == c.ID
}
