package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestParseTaskStatus(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  TaskStatus
		known bool
	}{
		{"exact", "IN_PROGRESS", TaskStatusInProgress, true},
		{"lower case", "completed", TaskStatusCompleted, true},
		{"padded", "  cancelled\n", TaskStatusCancelled, true},
		{"unknown", "ARCHIVED", TaskStatusPending, false},
		{"empty", "", TaskStatusPending, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseTaskStatus(tt.input)
			assert.Equal(t, tt.want, got.Value)
			assert.Equal(t, tt.known, got.Known)
			assert.Equal(t, tt.input, got.Raw)
		})
	}
}

func TestParseFallbacks(t *testing.T) {
	assert.Equal(t, UserTypeEmployee, ParseUserType("superuser").Value)
	assert.Equal(t, UserTypeAdmin, ParseUserType("admin").Value)
	assert.Equal(t, PriorityMedium, ParseTaskPriority("whenever").Value)
	assert.Equal(t, PriorityUrgent, ParseTaskPriority("Urgent").Value)
}

func TestPriorityRank(t *testing.T) {
	assert.Less(t, PriorityLow.Rank(), PriorityMedium.Rank())
	assert.Less(t, PriorityMedium.Rank(), PriorityHigh.Rank())
	assert.Less(t, PriorityHigh.Rank(), PriorityUrgent.Rank())
	assert.Equal(t, -1, TaskPriority("NOPE").Rank())
}

func TestEnumListsAreCopies(t *testing.T) {
	list := TaskStatuses()
	list[0] = "MUTATED"
	assert.Equal(t, TaskStatusPending, TaskStatuses()[0])
	assert.Len(t, UserTypes(), 2)
	assert.Len(t, TaskPriorities(), 4)
}

func TestSetStatusStampsCompletionOnce(t *testing.T) {
	first := time.UnixMilli(1_000)
	later := time.UnixMilli(5_000)

	task := Task{Status: TaskStatusInProgress}
	task.SetStatusAt(TaskStatusCompleted, first)
	assert.Equal(t, int64(1_000), task.CompletedDate)

	task.SetStatusAt(TaskStatusCompleted, later)
	assert.Equal(t, int64(1_000), task.CompletedDate)

	task.SetStatusAt(TaskStatusPending, later)
	assert.Equal(t, int64(1_000), task.CompletedDate)
	assert.False(t, task.IsCompleted())
}

func TestIsOverdueAt(t *testing.T) {
	now := time.UnixMilli(10_000)

	tests := []struct {
		name   string
		status TaskStatus
		due    int64
		want   bool
	}{
		{"past due pending", TaskStatusPending, 9_999, true},
		{"past due in progress", TaskStatusInProgress, 1, true},
		{"due exactly now", TaskStatusPending, 10_000, false},
		{"future", TaskStatusPending, 20_000, false},
		{"completed", TaskStatusCompleted, 1, false},
		{"cancelled", TaskStatusCancelled, 1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{Status: tt.status, DueDate: tt.due}
			assert.Equal(t, tt.want, task.IsOverdueAt(now))
		})
	}
}

func TestCanTransition(t *testing.T) {
	assert.True(t, CanTransition(TaskStatusPending, TaskStatusInProgress))
	assert.True(t, CanTransition(TaskStatusPending, TaskStatusCancelled))
	assert.True(t, CanTransition(TaskStatusInProgress, TaskStatusCompleted))
	assert.True(t, CanTransition(TaskStatusCompleted, TaskStatusCompleted))

	assert.False(t, CanTransition(TaskStatusPending, TaskStatusCompleted))
	assert.False(t, CanTransition(TaskStatusCompleted, TaskStatusPending))
	assert.False(t, CanTransition(TaskStatusCancelled, TaskStatusInProgress))

	assert.True(t, TaskStatusCompleted.IsTerminal())
	assert.False(t, TaskStatusPending.IsTerminal())
}

func TestUserRoles(t *testing.T) {
	assert.True(t, User{UserType: UserTypeAdmin}.IsAdmin())
	assert.True(t, User{UserType: UserTypeEmployee}.IsEmployee())
	assert.False(t, User{UserType: UserTypeEmployee}.IsAdmin())
	assert.Equal(t, "users.xml", KindUsers.FileName())
}
