package models

// Kind selects which collection an operation targets.
type Kind string

const (
	KindUsers Kind = "users"
	KindTasks Kind = "tasks"
)

// FileName is the persisted document name for the kind.
func (k Kind) FileName() string { return string(k) + ".xml" }

// Record is implemented by every persisted entity.
type Record interface {
	User | Task
	RecordID() string
}

// TaskStatistics aggregates the tasks assigned to one user.
type TaskStatistics struct {
	Total      int
	Pending    int
	InProgress int
	Completed  int
	Cancelled  int
	Overdue    int
}
