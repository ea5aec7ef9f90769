package models

import "slices"

// statusTransitions lists the legal moves out of each status. COMPLETED and
// CANCELLED are terminal.
var statusTransitions = map[TaskStatus][]TaskStatus{
	TaskStatusPending:    {TaskStatusInProgress, TaskStatusCancelled},
	TaskStatusInProgress: {TaskStatusCompleted, TaskStatusCancelled},
	TaskStatusCompleted:  {},
	TaskStatusCancelled:  {},
}

// CanTransition reports whether a task may move from one status to another.
// Staying in the same status is always allowed so records can be re-saved.
func CanTransition(from, to TaskStatus) bool {
	if from == to {
		return true
	}
	return slices.Contains(statusTransitions[from], to)
}

// IsTerminal reports whether no transition leaves the status.
func (s TaskStatus) IsTerminal() bool {
	next, ok := statusTransitions[s]
	return ok && len(next) == 0
}
