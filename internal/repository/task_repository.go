package repository

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

// TaskOptions switches the integrity checks applied on writes.
type TaskOptions struct {
	// StrictReferences rejects tasks whose assignee or creator is not a
	// stored user.
	StrictReferences bool
	// StrictTransitions enforces models.CanTransition on status changes.
	StrictTransitions bool
}

type TaskRepository struct {
	store TaskStore
	users UserStore
	opts  TaskOptions
	log   logger.Logger
	now   func() time.Time
}

func NewTaskRepository(store TaskStore, users UserStore, opts TaskOptions, log logger.Logger) *TaskRepository {
	return &TaskRepository{
		store: store,
		users: users,
		opts:  opts,
		log:   log.With("repository", "tasks"),
		now:   time.Now,
	}
}

// Sort keys accepted by ListFilter.SortBy.
const (
	SortByCreatedDate = "created_date"
	SortByDueDate     = "due_date"
	SortByPriority    = "priority"
)

// ListFilter narrows List. Nil pointers and empty strings match everything.
type ListFilter struct {
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	AssignedTo  *string
	CreatedBy   *string
	UserID      *string // assignee or creator
	OverdueOnly bool
	Search      string // case-insensitive, title or description
	SortBy      string
	SortOrder   string // "asc" or "desc"; the default depends on SortBy
	Limit       int
	Offset      int
}

// TaskUpdate carries the fields to change; nil fields are left alone.
type TaskUpdate struct {
	Title       *string
	Description *string
	AssignedTo  *string
	Status      *models.TaskStatus
	Priority    *models.TaskPriority
	DueDate     *int64
}

func (r *TaskRepository) GetByID(id string) (models.Task, error) {
	t, ok := r.store.TaskByID(id)
	if !ok {
		return models.Task{}, fmt.Errorf("task %q: %w", id, ErrNotFound)
	}
	return t, nil
}

// List applies filter and returns the requested page together with the
// number of matches before paging.
func (r *TaskRepository) List(filter ListFilter) ([]models.Task, int) {
	now := r.now()
	search := strings.ToLower(strings.TrimSpace(filter.Search))

	tasks := slices.DeleteFunc(r.store.Tasks(), func(t models.Task) bool {
		switch {
		case filter.Status != nil && t.Status != *filter.Status:
			return true
		case filter.Priority != nil && t.Priority != *filter.Priority:
			return true
		case filter.AssignedTo != nil && t.AssignedTo != *filter.AssignedTo:
			return true
		case filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy:
			return true
		case filter.UserID != nil && t.AssignedTo != *filter.UserID && t.CreatedBy != *filter.UserID:
			return true
		case filter.OverdueOnly && !t.IsOverdueAt(now):
			return true
		case search != "" &&
			!strings.Contains(strings.ToLower(t.Title), search) &&
			!strings.Contains(strings.ToLower(t.Description), search):
			return true
		}
		return false
	})
	total := len(tasks)

	if filter.SortBy != "" {
		sortTasks(tasks, filter.SortBy, filter.SortOrder)
	}

	if filter.Offset > 0 {
		tasks = tasks[min(filter.Offset, len(tasks)):]
	}
	if filter.Limit > 0 && filter.Limit < len(tasks) {
		tasks = tasks[:filter.Limit]
	}
	return tasks, total
}

func sortTasks(tasks []models.Task, sortBy, order string) {
	var cmpFn func(a, b models.Task) int
	desc := false
	switch sortBy {
	case SortByCreatedDate:
		cmpFn = func(a, b models.Task) int { return cmp.Compare(a.CreatedDate, b.CreatedDate) }
		desc = order != "asc"
	case SortByDueDate:
		cmpFn = func(a, b models.Task) int { return cmp.Compare(a.DueDate, b.DueDate) }
		desc = order == "desc"
	case SortByPriority:
		cmpFn = func(a, b models.Task) int { return cmp.Compare(a.Priority.Rank(), b.Priority.Rank()) }
		desc = order != "asc"
	default:
		return
	}
	if desc {
		asc := cmpFn
		cmpFn = func(a, b models.Task) int { return asc(b, a) }
	}
	slices.SortStableFunc(tasks, cmpFn)
}

func (r *TaskRepository) filtered(filter ListFilter) []models.Task {
	tasks, _ := r.List(filter)
	return tasks
}

func (r *TaskRepository) ByAssignee(userID string) []models.Task {
	return r.filtered(ListFilter{AssignedTo: &userID})
}

func (r *TaskRepository) ByCreator(userID string) []models.Task {
	return r.filtered(ListFilter{CreatedBy: &userID})
}

func (r *TaskRepository) ByStatus(status models.TaskStatus) []models.Task {
	return r.filtered(ListFilter{Status: &status})
}

func (r *TaskRepository) ByPriority(priority models.TaskPriority) []models.Task {
	return r.filtered(ListFilter{Priority: &priority})
}

// Overdue returns tasks past their due date that are still open.
func (r *TaskRepository) Overdue() []models.Task {
	return r.filtered(ListFilter{OverdueOnly: true})
}

func (r *TaskRepository) OverdueByAssignee(userID string) []models.Task {
	return r.filtered(ListFilter{AssignedTo: &userID, OverdueOnly: true})
}

// SortedByCreatedDate returns every task, newest first.
func (r *TaskRepository) SortedByCreatedDate() []models.Task {
	return r.filtered(ListFilter{SortBy: SortByCreatedDate})
}

// SortedByDueDate returns every task, soonest due first.
func (r *TaskRepository) SortedByDueDate() []models.Task {
	return r.filtered(ListFilter{SortBy: SortByDueDate})
}

// SortedByPriority returns every task, URGENT first.
func (r *TaskRepository) SortedByPriority() []models.Task {
	return r.filtered(ListFilter{SortBy: SortByPriority})
}

// Statistics counts the tasks assigned to userID in one pass.
func (r *TaskRepository) Statistics(userID string) models.TaskStatistics {
	now := r.now()
	var stats models.TaskStatistics
	for _, t := range r.store.Tasks() {
		if t.AssignedTo != userID {
			continue
		}
		stats.Total++
		switch t.Status {
		case models.TaskStatusPending:
			stats.Pending++
		case models.TaskStatusInProgress:
			stats.InProgress++
		case models.TaskStatusCompleted:
			stats.Completed++
		case models.TaskStatusCancelled:
			stats.Cancelled++
		}
		if t.IsOverdueAt(now) {
			stats.Overdue++
		}
	}
	return stats
}

// Create builds and inserts a PENDING task with a generated id.
func (r *TaskRepository) Create(title, description, assignedTo, createdBy string, priority models.TaskPriority, dueDate int64) (models.Task, error) {
	return r.Insert(models.Task{
		Title:       title,
		Description: description,
		AssignedTo:  assignedTo,
		CreatedBy:   createdBy,
		Status:      models.TaskStatusPending,
		Priority:    priority,
		DueDate:     dueDate,
	})
}

// Insert stores t. Missing id, status, priority and creation date are filled
// in.
func (r *TaskRepository) Insert(t models.Task) (models.Task, error) {
	if t.Status == "" {
		t.Status = models.TaskStatusPending
	}
	if t.Priority == "" {
		t.Priority = models.PriorityMedium
	}
	if !t.Status.Valid() || !t.Priority.Valid() {
		return models.Task{}, fmt.Errorf("%w: status %q priority %q", ErrInvalidInput, t.Status, t.Priority)
	}
	if t.CreatedDate == 0 {
		t.CreatedDate = r.now().UnixMilli()
	}
	if t.Status == models.TaskStatusCompleted && t.CompletedDate == 0 {
		t.CompletedDate = r.now().UnixMilli()
	}
	if err := r.checkReferences(t); err != nil {
		return models.Task{}, err
	}

	generated := t.ID == ""
	var err error
	for attempt := 0; ; attempt++ {
		if generated {
			t.ID = newTaskID()
		}
		err = r.store.AddTask(t)
		if err == nil || !generated || !isDuplicateID(err) || attempt == idAttempts {
			break
		}
	}
	if err != nil {
		return models.Task{}, fmt.Errorf("insert task: %w", err)
	}
	r.log.Info("task created", "task_id", t.ID, "assigned_to", t.AssignedTo)
	return t, nil
}

// Update replaces the stored task with the same id.
func (r *TaskRepository) Update(t models.Task) (models.Task, error) {
	if !t.Status.Valid() || !t.Priority.Valid() {
		return models.Task{}, fmt.Errorf("%w: status %q priority %q", ErrInvalidInput, t.Status, t.Priority)
	}
	if err := r.checkReferences(t); err != nil {
		return models.Task{}, err
	}
	return r.modify(t.ID, func(cur *models.Task) error {
		from := cur.Status
		if t.CompletedDate == 0 {
			t.CompletedDate = cur.CompletedDate
		}
		*cur = t
		return r.applyStatus(cur, from, t.Status)
	})
}

// Apply changes the fields set in u.
func (r *TaskRepository) Apply(id string, u TaskUpdate) (models.Task, error) {
	if u.Status != nil && !u.Status.Valid() {
		return models.Task{}, fmt.Errorf("%w: status %q", ErrInvalidInput, *u.Status)
	}
	if u.Priority != nil && !u.Priority.Valid() {
		return models.Task{}, fmt.Errorf("%w: priority %q", ErrInvalidInput, *u.Priority)
	}
	if u.AssignedTo != nil {
		if err := r.checkUser(*u.AssignedTo); err != nil {
			return models.Task{}, err
		}
	}
	return r.modify(id, func(cur *models.Task) error {
		if u.Title != nil {
			cur.Title = *u.Title
		}
		if u.Description != nil {
			cur.Description = *u.Description
		}
		if u.AssignedTo != nil {
			cur.AssignedTo = *u.AssignedTo
		}
		if u.Priority != nil {
			cur.Priority = *u.Priority
		}
		if u.DueDate != nil {
			cur.DueDate = *u.DueDate
		}
		if u.Status != nil {
			return r.applyStatus(cur, cur.Status, *u.Status)
		}
		return nil
	})
}

func (r *TaskRepository) UpdateStatus(id string, status models.TaskStatus) (models.Task, error) {
	return r.Apply(id, TaskUpdate{Status: &status})
}

func (r *TaskRepository) Start(id string) (models.Task, error) {
	return r.UpdateStatus(id, models.TaskStatusInProgress)
}

func (r *TaskRepository) Complete(id string) (models.Task, error) {
	return r.UpdateStatus(id, models.TaskStatusCompleted)
}

func (r *TaskRepository) Cancel(id string) (models.Task, error) {
	return r.UpdateStatus(id, models.TaskStatusCancelled)
}

func (r *TaskRepository) UpdatePriority(id string, priority models.TaskPriority) (models.Task, error) {
	return r.Apply(id, TaskUpdate{Priority: &priority})
}

// Reassign hands the task to another user.
func (r *TaskRepository) Reassign(id, userID string) (models.Task, error) {
	return r.Apply(id, TaskUpdate{AssignedTo: &userID})
}

func (r *TaskRepository) Delete(id string) error {
	if err := r.store.DeleteTask(id); err != nil {
		return fmt.Errorf("delete task: %w", err)
	}
	r.log.Info("task deleted", "task_id", id)
	return nil
}

func (r *TaskRepository) Count() int {
	return len(r.store.Tasks())
}

func (r *TaskRepository) CountByStatus(status models.TaskStatus) int {
	return len(r.ByStatus(status))
}

func (r *TaskRepository) CountByAssignee(userID string) int {
	return len(r.ByAssignee(userID))
}

func (r *TaskRepository) modify(id string, fn func(*models.Task) error) (models.Task, error) {
	updated, err := r.store.ModifyTask(id, fn)
	if err != nil {
		return models.Task{}, fmt.Errorf("update task: %w", err)
	}
	return updated, nil
}

// applyStatus moves t to status, stamping the completion date the first
// time it completes.
func (r *TaskRepository) applyStatus(t *models.Task, from, to models.TaskStatus) error {
	if r.opts.StrictTransitions && !models.CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	t.SetStatusAt(to, r.now())
	return nil
}

func (r *TaskRepository) checkReferences(t models.Task) error {
	if err := r.checkUser(t.AssignedTo); err != nil {
		return err
	}
	return r.checkUser(t.CreatedBy)
}

func (r *TaskRepository) checkUser(id string) error {
	if !r.opts.StrictReferences {
		return nil
	}
	if _, ok := r.users.UserByID(id); !ok {
		return fmt.Errorf("%w: %q", ErrUnknownUser, id)
	}
	return nil
}
