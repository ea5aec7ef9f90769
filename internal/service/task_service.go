// internal/service/task_service.go
package service

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/gurkanbulca/taskdesk/internal/middleware"
	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/internal/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

type TaskService struct {
	tasks          *repository.TaskRepository
	securityLogger *SecurityLogger
	validator      *middleware.InputValidator
}

func NewTaskService(tasks *repository.TaskRepository, securityLogger *SecurityLogger, validator *middleware.InputValidator) *TaskService {
	return &TaskService{tasks: tasks, securityLogger: securityLogger, validator: validator}
}

var TaskServiceDesc = grpc.ServiceDesc{
	ServiceName: TaskServiceName,
	HandlerType: (*any)(nil),
	Methods: []grpc.MethodDesc{
		unaryMethod(TaskServiceName, "CreateTask", (*TaskService).CreateTask),
		unaryMethod(TaskServiceName, "GetTask", (*TaskService).GetTask),
		unaryMethod(TaskServiceName, "ListTasks", (*TaskService).ListTasks),
		unaryMethod(TaskServiceName, "UpdateTask", (*TaskService).UpdateTask),
		unaryMethod(TaskServiceName, "UpdateTaskStatus", (*TaskService).UpdateTaskStatus),
		unaryMethod(TaskServiceName, "UpdateTaskPriority", (*TaskService).UpdateTaskPriority),
		unaryMethod(TaskServiceName, "ReassignTask", (*TaskService).ReassignTask),
		unaryMethod(TaskServiceName, "DeleteTask", (*TaskService).DeleteTask),
		unaryMethod(TaskServiceName, "GetUserTaskStatistics", (*TaskService).GetUserTaskStatistics),
		unaryMethod(TaskServiceName, "CountTasks", (*TaskService).CountTasks),
	},
	Metadata: "taskdesk/v1/task.proto",
}

type CreateTaskRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	AssignedTo  string `json:"assignedTo" validate:"required"`
	Priority    string `json:"priority" validate:"omitempty,task_priority"`
	DueDate     int64  `json:"dueDate" validate:"gte=0"`
}

type TaskIDRequest struct {
	ID string `json:"id" validate:"required"`
}

type ListTasksRequest struct {
	Status      *string `json:"status" validate:"omitempty,task_status"`
	Priority    *string `json:"priority" validate:"omitempty,task_priority"`
	AssignedTo  *string `json:"assignedTo"`
	CreatedBy   *string `json:"createdBy"`
	OverdueOnly bool    `json:"overdueOnly"`
	Search      string  `json:"search"`
	SortBy      string  `json:"sortBy" validate:"omitempty,oneof=created_date due_date priority"`
	SortOrder   string  `json:"sortOrder" validate:"omitempty,oneof=asc desc"`
	Limit       int     `json:"limit" validate:"gte=0"`
	Offset      int     `json:"offset" validate:"gte=0"`
}

type UpdateTaskRequest struct {
	ID          string  `json:"id" validate:"required"`
	Title       *string `json:"title" validate:"omitempty,min=1"`
	Description *string `json:"description"`
	Priority    *string `json:"priority" validate:"omitempty,task_priority"`
	DueDate     *int64  `json:"dueDate" validate:"omitempty,gte=0"`
}

type UpdateTaskStatusRequest struct {
	ID     string `json:"id" validate:"required"`
	Status string `json:"status" validate:"required,task_status"`
}

type UpdateTaskPriorityRequest struct {
	ID       string `json:"id" validate:"required"`
	Priority string `json:"priority" validate:"required,task_priority"`
}

type ReassignTaskRequest struct {
	ID         string `json:"id" validate:"required"`
	AssignedTo string `json:"assignedTo" validate:"required"`
}

type StatisticsRequest struct {
	UserID string `json:"userId"` // defaults to the caller
}

// CreateTask creates a PENDING task owned by the caller. Admin only.
func (s *TaskService) CreateTask(ctx context.Context, req *CreateTaskRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	priority := models.ParseTaskPriority(req.Priority).Value
	task, err := s.tasks.Create(req.Title, req.Description, req.AssignedTo, c.ID, priority, req.DueDate)
	if err != nil {
		return nil, toStatus(ctx, err, "create task")
	}
	return newStruct(map[string]any{"task": taskToMap(task)})
}

func (s *TaskService) GetTask(ctx context.Context, req *TaskIDRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	task, err := s.visibleTask(ctx, req.ID)
	if err != nil {
		return nil, err
	}
	return newStruct(map[string]any{"task": taskToMap(task)})
}

// ListTasks filters, sorts and pages tasks. Employees only see tasks they
// are assigned to or created.
func (s *TaskService) ListTasks(ctx context.Context, req *ListTasksRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultPageSize
	}
	limit = min(limit, maxPageSize)

	filter := repository.ListFilter{
		AssignedTo:  req.AssignedTo,
		CreatedBy:   req.CreatedBy,
		OverdueOnly: req.OverdueOnly,
		Search:      req.Search,
		SortBy:      req.SortBy,
		SortOrder:   req.SortOrder,
		Limit:       limit,
		Offset:      req.Offset,
	}
	if req.Status != nil {
		st := models.ParseTaskStatus(*req.Status).Value
		filter.Status = &st
	}
	if req.Priority != nil {
		p := models.ParseTaskPriority(*req.Priority).Value
		filter.Priority = &p
	}
	if !c.Admin {
		filter.UserID = &c.ID
	}

	tasks, total := s.tasks.List(filter)
	return newStruct(map[string]any{
		"tasks": tasksToList(tasks),
		"total": total,
	})
}

// UpdateTask changes title, description, priority or due date.
func (s *TaskService) UpdateTask(ctx context.Context, req *UpdateTaskRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.visibleTask(ctx, req.ID); err != nil {
		return nil, err
	}

	update := repository.TaskUpdate{
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
	}
	if req.Priority != nil {
		p := models.ParseTaskPriority(*req.Priority).Value
		update.Priority = &p
	}

	task, err := s.tasks.Apply(req.ID, update)
	if err != nil {
		return nil, toStatus(ctx, err, "update task")
	}
	return newStruct(map[string]any{"task": taskToMap(task)})
}

// UpdateTaskStatus starts, completes or cancels a task.
func (s *TaskService) UpdateTaskStatus(ctx context.Context, req *UpdateTaskStatusRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.visibleTask(ctx, req.ID); err != nil {
		return nil, err
	}

	task, err := s.tasks.UpdateStatus(req.ID, models.ParseTaskStatus(req.Status).Value)
	if err != nil {
		return nil, toStatus(ctx, err, "update task status")
	}
	return newStruct(map[string]any{"task": taskToMap(task)})
}

func (s *TaskService) UpdateTaskPriority(ctx context.Context, req *UpdateTaskPriorityRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if _, err := s.visibleTask(ctx, req.ID); err != nil {
		return nil, err
	}

	task, err := s.tasks.UpdatePriority(req.ID, models.ParseTaskPriority(req.Priority).Value)
	if err != nil {
		return nil, toStatus(ctx, err, "update task priority")
	}
	return newStruct(map[string]any{"task": taskToMap(task)})
}

// ReassignTask hands a task to another user. Admin only.
func (s *TaskService) ReassignTask(ctx context.Context, req *ReassignTaskRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	task, err := s.tasks.Reassign(req.ID, req.AssignedTo)
	if err != nil {
		return nil, toStatus(ctx, err, "reassign task")
	}
	return newStruct(map[string]any{"task": taskToMap(task)})
}

// DeleteTask removes a task. Admin only.
func (s *TaskService) DeleteTask(ctx context.Context, req *TaskIDRequest) (*structpb.Struct, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, err
	}
	if err := s.tasks.Delete(req.ID); err != nil {
		return nil, toStatus(ctx, err, "delete task")
	}
	return newStruct(map[string]any{"deleted": true})
}

// GetUserTaskStatistics aggregates the tasks assigned to a user. Employees
// may only ask about themselves.
func (s *TaskService) GetUserTaskStatistics(ctx context.Context, req *StatisticsRequest) (*structpb.Struct, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return nil, err
	}
	userID := req.UserID
	if userID == "" {
		userID = c.ID
	}
	if userID != c.ID && !c.Admin {
		s.securityLogger.LogPermissionDenied(ctx, "statistics of "+userID)
		return nil, status.Error(codes.PermissionDenied, "cannot read another user's statistics")
	}

	return newStruct(map[string]any{
		"userId":     userID,
		"statistics": statisticsToMap(s.tasks.Statistics(userID)),
	})
}

// CountTasks returns the number of tasks per status.
func (s *TaskService) CountTasks(_ context.Context, _ *Empty) (*structpb.Struct, error) {
	byStatus := make(map[string]any, 4)
	for _, st := range models.TaskStatuses() {
		byStatus[string(st)] = s.tasks.CountByStatus(st)
	}
	return newStruct(map[string]any{
		"total":    s.tasks.Count(),
		"byStatus": byStatus,
	})
}

// visibleTask loads a task and checks that the caller may act on it.
func (s *TaskService) visibleTask(ctx context.Context, id string) (models.Task, error) {
	c, err := callerFromContext(ctx)
	if err != nil {
		return models.Task{}, err
	}
	task, err := s.tasks.GetByID(id)
	if err != nil {
		return models.Task{}, toStatus(ctx, err, "get task")
	}
	if !c.canSee(task) {
		s.securityLogger.LogPermissionDenied(ctx, fmt.Sprintf("access task %s", id))
		return models.Task{}, status.Error(codes.PermissionDenied, "task is not assigned to you")
	}
	return task, nil
}
