package database

import (
	"fmt"
	"slices"

	"github.com/gurkanbulca/taskdesk/internal/models"
)

// Users returns a copy of every user.
func (db *XMLDatabase) Users() []models.User {
	return all(db, &db.users)
}

// UserByID looks a user up by id.
func (db *XMLDatabase) UserByID(id string) (models.User, bool) {
	return byID(db, &db.users, id)
}

// AddUser appends u and persists users.xml.
func (db *XMLDatabase) AddUser(u models.User) error {
	return insert(db, &db.users, u, func(items []models.User) error {
		return usernameFree(items, u.Username, -1)
	})
}

// UpdateUser replaces the user with the same id.
func (db *XMLDatabase) UpdateUser(u models.User) error {
	_, err := db.ModifyUser(u.ID, func(cur *models.User) error {
		*cur = u
		return nil
	})
	return err
}

// ModifyUser applies fn to the stored user under the write lock and returns
// the committed result.
func (db *XMLDatabase) ModifyUser(id string, fn func(*models.User) error) (models.User, error) {
	return modify(db, &db.users, id, fn, func(items []models.User, i int) error {
		return usernameFree(items, items[i].Username, i)
	})
}

// DeleteUser removes the user with id.
func (db *XMLDatabase) DeleteUser(id string) error {
	return remove(db, &db.users, id)
}

func usernameFree(items []models.User, username string, self int) error {
	i := slices.IndexFunc(items, func(u models.User) bool { return u.Username == username })
	if i >= 0 && i != self {
		return fmt.Errorf("%w: %q", ErrDuplicateUsername, username)
	}
	return nil
}

// Tasks returns a copy of every task.
func (db *XMLDatabase) Tasks() []models.Task {
	return all(db, &db.tasks)
}

// TaskByID looks a task up by id.
func (db *XMLDatabase) TaskByID(id string) (models.Task, bool) {
	return byID(db, &db.tasks, id)
}

// AddTask appends t and persists tasks.xml.
func (db *XMLDatabase) AddTask(t models.Task) error {
	return insert(db, &db.tasks, t, nil)
}

// UpdateTask replaces the task with the same id.
func (db *XMLDatabase) UpdateTask(t models.Task) error {
	_, err := db.ModifyTask(t.ID, func(cur *models.Task) error {
		*cur = t
		return nil
	})
	return err
}

func (db *XMLDatabase) ModifyTask(id string, fn func(*models.Task) error) (models.Task, error) {
	return modify(db, &db.tasks, id, fn, nil)
}

// DeleteTask removes the task with id.
func (db *XMLDatabase) DeleteTask(id string) error {
	return remove(db, &db.tasks, id)
}
