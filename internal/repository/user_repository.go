package repository

import (
	"errors"
	"fmt"
	"time"

	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/pkg/auth"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

type UserRepository struct {
	store     UserStore
	passwords *auth.PasswordManager
	log       logger.Logger
	now       func() time.Time
}

func NewUserRepository(store UserStore, passwords *auth.PasswordManager, log logger.Logger) *UserRepository {
	return &UserRepository{
		store:     store,
		passwords: passwords,
		log:       log.With("repository", "users"),
		now:       time.Now,
	}
}

func (r *UserRepository) GetByID(id string) (models.User, error) {
	u, ok := r.store.UserByID(id)
	if !ok {
		return models.User{}, fmt.Errorf("user %q: %w", id, ErrNotFound)
	}
	return u, nil
}

// GetByUsername matches exactly; the first match wins.
func (r *UserRepository) GetByUsername(username string) (models.User, error) {
	for _, u := range r.store.Users() {
		if u.Username == username {
			return u, nil
		}
	}
	return models.User{}, fmt.Errorf("username %q: %w", username, ErrNotFound)
}

func (r *UserRepository) List() []models.User {
	return r.store.Users()
}

func (r *UserRepository) ListByType(userType models.UserType) []models.User {
	var out []models.User
	for _, u := range r.store.Users() {
		if u.UserType == userType {
			out = append(out, u)
		}
	}
	return out
}

func (r *UserRepository) Employees() []models.User { return r.ListByType(models.UserTypeEmployee) }
func (r *UserRepository) Admins() []models.User    { return r.ListByType(models.UserTypeAdmin) }

// Authenticate returns the user whose username and password match. A stored
// plaintext password is replaced by its hash after the first good login.
func (r *UserRepository) Authenticate(username, password string) (models.User, error) {
	u, err := r.GetByUsername(username)
	if err != nil {
		return models.User{}, ErrInvalidCredentials
	}
	upgraded, err := r.passwords.Verify(u.Password, password)
	if err != nil {
		if errors.Is(err, auth.ErrPasswordMismatch) {
			return models.User{}, ErrInvalidCredentials
		}
		return models.User{}, err
	}
	if upgraded == "" {
		return u, nil
	}

	stored, err := r.store.ModifyUser(u.ID, func(cur *models.User) error {
		cur.Password = upgraded
		return nil
	})
	if err != nil {
		// the login itself succeeded; the next one retries the upgrade
		r.log.Warn("could not upgrade legacy password", "user_id", u.ID, "error", err)
		return u, nil
	}
	r.log.Info("upgraded legacy password to bcrypt", "user_id", u.ID)
	return stored, nil
}

// NewUser builds an unsaved user with a fresh id. Password is plaintext until
// Insert hashes it.
func (r *UserRepository) NewUser(userType models.UserType, username, password, email, fullName string) models.User {
	return models.User{
		ID:          newUserID(),
		Username:    username,
		Password:    password,
		UserType:    userType,
		Email:       email,
		FullName:    fullName,
		CreatedDate: r.now().UnixMilli(),
	}
}

// Insert hashes the plaintext password and stores u. An empty id is
// generated.
func (r *UserRepository) Insert(u models.User) (models.User, error) {
	if !u.UserType.Valid() {
		return models.User{}, fmt.Errorf("%w: user type %q", ErrInvalidInput, u.UserType)
	}
	if r.UsernameExists(u.Username) {
		return models.User{}, fmt.Errorf("%q: %w", u.Username, ErrUsernameTaken)
	}

	hash, err := r.passwords.HashPassword(u.Password)
	if err != nil {
		return models.User{}, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}
	u.Password = hash
	if u.CreatedDate == 0 {
		u.CreatedDate = r.now().UnixMilli()
	}

	generated := u.ID == ""
	for attempt := 0; ; attempt++ {
		if generated {
			u.ID = newUserID()
		}
		err = r.store.AddUser(u)
		if err == nil || !generated || !isDuplicateID(err) || attempt == idAttempts {
			break
		}
	}
	if err != nil {
		return models.User{}, fmt.Errorf("insert user: %w", err)
	}
	r.log.Info("user created", "user_id", u.ID, "username", u.Username, "type", u.UserType)
	return u, nil
}

// Update replaces the profile of the stored user with the same id. The stored
// password is kept; use ChangePassword to change it.
func (r *UserRepository) Update(u models.User) (models.User, error) {
	if !u.UserType.Valid() {
		return models.User{}, fmt.Errorf("%w: user type %q", ErrInvalidInput, u.UserType)
	}
	updated, err := r.store.ModifyUser(u.ID, func(cur *models.User) error {
		u.Password = cur.Password
		u.CreatedDate = cur.CreatedDate
		*cur = u
		return nil
	})
	if err != nil {
		return models.User{}, fmt.Errorf("update user: %w", err)
	}
	return updated, nil
}

// UpdateProfile changes the contact details of a user.
func (r *UserRepository) UpdateProfile(id, email, fullName string) (models.User, error) {
	updated, err := r.store.ModifyUser(id, func(cur *models.User) error {
		cur.Email = email
		cur.FullName = fullName
		return nil
	})
	if err != nil {
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}
	return updated, nil
}

func (r *UserRepository) Delete(id string) error {
	if err := r.store.DeleteUser(id); err != nil {
		return fmt.Errorf("delete user: %w", err)
	}
	r.log.Info("user deleted", "user_id", id)
	return nil
}

// errStalePassword means the stored hash moved between the check and the
// write; ChangePassword starts over.
var errStalePassword = errors.New("stored password changed")

const passwordAttempts = 3

// ChangePassword replaces the password once oldPassword verifies. The bcrypt
// comparison runs against a snapshot outside the store lock; the write only
// goes through if the stored hash is still the one that was checked.
func (r *UserRepository) ChangePassword(id, oldPassword, newPassword string) error {
	hash, err := r.passwords.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	for range passwordAttempts {
		snapshot, err := r.GetByID(id)
		if err != nil {
			return fmt.Errorf("change password: %w", err)
		}
		if _, err := r.passwords.Verify(snapshot.Password, oldPassword); err != nil {
			return fmt.Errorf("change password: %w", ErrInvalidCredentials)
		}

		_, err = r.store.ModifyUser(id, func(cur *models.User) error {
			if cur.Password != snapshot.Password {
				return errStalePassword
			}
			cur.Password = hash
			return nil
		})
		if errors.Is(err, errStalePassword) {
			r.log.Debug("password changed concurrently, retrying", "user_id", id)
			continue
		}
		if err != nil {
			return fmt.Errorf("change password: %w", err)
		}
		return nil
	}
	return fmt.Errorf("change password: %w", errStalePassword)
}

func (r *UserRepository) UsernameExists(username string) bool {
	_, err := r.GetByUsername(username)
	return err == nil
}

func (r *UserRepository) Count() int {
	return len(r.store.Users())
}

func (r *UserRepository) CountByType(userType models.UserType) int {
	return len(r.ListByType(userType))
}
