package repository

import (
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/gurkanbulca/taskdesk/internal/database"
	"github.com/gurkanbulca/taskdesk/internal/models"
)

// UserStore is the part of the record store the user repository needs.
type UserStore interface {
	Users() []models.User
	UserByID(id string) (models.User, bool)
	AddUser(u models.User) error
	ModifyUser(id string, fn func(*models.User) error) (models.User, error)
	DeleteUser(id string) error
}

// TaskStore is the part of the record store the task repository needs.
type TaskStore interface {
	Tasks() []models.Task
	TaskByID(id string) (models.Task, bool)
	AddTask(t models.Task) error
	ModifyTask(id string, fn func(*models.Task) error) (models.Task, error)
	DeleteTask(id string) error
}

const idAttempts = 5

// newUserID returns 8 lowercase hex characters.
func newUserID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// newTaskID returns "TASK-" followed by 8 uppercase hex characters.
func newTaskID() string {
	return "TASK-" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
}

func isDuplicateID(err error) bool {
	return errors.Is(err, database.ErrDuplicateID)
}
