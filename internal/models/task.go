package models

import "time"

// Task is a unit of work stored in tasks.xml.
type Task struct {
	ID            string
	Title         string
	Description   string
	AssignedTo    string // User.ID
	CreatedBy     string // User.ID
	Status        TaskStatus
	Priority      TaskPriority
	CreatedDate   int64 // epoch milliseconds
	DueDate       int64
	CompletedDate int64 // zero until the first transition to COMPLETED
}

// RecordID implements Record.
func (t Task) RecordID() string { return t.ID }

// SetStatus changes the status, stamping CompletedDate with the current time
// the first time the task becomes COMPLETED.
func (t *Task) SetStatus(status TaskStatus) {
	t.SetStatusAt(status, time.Now())
}

// SetStatusAt is SetStatus with an explicit clock.
func (t *Task) SetStatusAt(status TaskStatus, now time.Time) {
	t.Status = status
	if status == TaskStatusCompleted && t.CompletedDate == 0 {
		t.CompletedDate = now.UnixMilli()
	}
}

func (t Task) IsCompleted() bool { return t.Status == TaskStatusCompleted }

// IsOverdue reports whether the due date has passed for a task that is
// neither completed nor cancelled.
func (t Task) IsOverdue() bool {
	return t.IsOverdueAt(time.Now())
}

func (t Task) IsOverdueAt(now time.Time) bool {
	return now.UnixMilli() > t.DueDate &&
		t.Status != TaskStatusCompleted &&
		t.Status != TaskStatusCancelled
}

// Due returns DueDate as a time.
func (t Task) Due() time.Time { return time.UnixMilli(t.DueDate) }

// NowMillis returns the current time in epoch milliseconds.
func NowMillis() int64 { return time.Now().UnixMilli() }
