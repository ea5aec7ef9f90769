package repository

import (
	"errors"

	"github.com/gurkanbulca/taskdesk/internal/database"
)

var (
	ErrNotFound      = database.ErrNotFound
	ErrUsernameTaken = database.ErrDuplicateUsername
	// ErrInvalidCredentials covers both an unknown username and a wrong
	// password so callers cannot tell them apart.
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidTransition  = errors.New("invalid status transition")
	ErrUnknownUser        = errors.New("referenced user does not exist")
	ErrInvalidInput       = errors.New("invalid input")
)
