package repository

import (
	"path"
	"regexp"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/gurkanbulca/taskdesk/internal/database"
	"github.com/gurkanbulca/taskdesk/internal/models"
	"github.com/gurkanbulca/taskdesk/internal/xmlschema"
	"github.com/gurkanbulca/taskdesk/pkg/auth"
	"github.com/gurkanbulca/taskdesk/pkg/logger"
)

var fixedNow = time.Date(2025, time.March, 10, 12, 0, 0, 0, time.UTC)

type testRepos struct {
	db    *database.XMLDatabase
	users *UserRepository
	tasks *TaskRepository
}

func setupTestRepos(t *testing.T, opts TaskOptions) *testRepos {
	t.Helper()

	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(fs, path.Join("/data", "users.xml"), []byte("<users/>"), 0o644))
	require.NoError(t, afero.WriteFile(fs, path.Join("/data", "tasks.xml"), []byte("<tasks/>"), 0o644))

	log := logger.NewForTests()
	db, err := database.NewXMLDatabase(database.Config{
		Fs:        fs,
		Dir:       "/data",
		Validator: xmlschema.MustNew(),
		Logger:    log,
	})
	require.NoError(t, err)

	users := NewUserRepository(db, auth.NewPasswordManager(6, bcrypt.MinCost), log)
	tasks := NewTaskRepository(db, db, opts, log)
	users.now = func() time.Time { return fixedNow }
	tasks.now = func() time.Time { return fixedNow }
	return &testRepos{db: db, users: users, tasks: tasks}
}

func strict() TaskOptions { return TaskOptions{StrictReferences: true, StrictTransitions: true} }

func (r *testRepos) seedAliceAndBob(t *testing.T) {
	t.Helper()
	_, err := r.users.Insert(models.User{ID: "1", Username: "alice", Password: "secret", UserType: models.UserTypeAdmin, Email: "alice@example.com", FullName: "Alice"})
	require.NoError(t, err)
	_, err = r.users.Insert(models.User{ID: "2", Username: "bob", Password: "pw123456", UserType: models.UserTypeEmployee, Email: "bob@example.com", FullName: "Bob"})
	require.NoError(t, err)
}

func TestUserRepository_Authenticate(t *testing.T) {
	r := setupTestRepos(t, strict())
	r.seedAliceAndBob(t)

	tests := []struct {
		name     string
		username string
		password string
		wantID   string
		wantErr  error
	}{
		{name: "valid", username: "alice", password: "secret", wantID: "1"},
		{name: "wrong password", username: "alice", password: "wrong", wantErr: ErrInvalidCredentials},
		{name: "unknown user", username: "carol", password: "x", wantErr: ErrInvalidCredentials},
		{name: "username is case sensitive", username: "Alice", password: "secret", wantErr: ErrInvalidCredentials},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			u, err := r.users.Authenticate(tt.username, tt.password)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, u.ID)
		})
	}
}

func TestUserRepository_InsertHashesPassword(t *testing.T) {
	r := setupTestRepos(t, strict())
	r.seedAliceAndBob(t)

	stored, ok := r.db.UserByID("1")
	require.True(t, ok)
	assert.True(t, auth.IsHash(stored.Password))
	assert.Equal(t, fixedNow.UnixMilli(), stored.CreatedDate)
}

func TestUserRepository_LegacyPasswordUpgrade(t *testing.T) {
	r := setupTestRepos(t, strict())
	require.NoError(t, r.db.AddUser(models.User{ID: "9", Username: "legacy", Password: "plain123", UserType: models.UserTypeEmployee}))

	_, err := r.users.Authenticate("legacy", "nope")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
	stored, _ := r.db.UserByID("9")
	assert.Equal(t, "plain123", stored.Password)

	u, err := r.users.Authenticate("legacy", "plain123")
	require.NoError(t, err)
	assert.True(t, auth.IsHash(u.Password))

	require.NoError(t, r.db.Reload())
	stored, _ = r.db.UserByID("9")
	assert.True(t, auth.IsHash(stored.Password))

	_, err = r.users.Authenticate("legacy", "plain123")
	assert.NoError(t, err)
}

func TestUserRepository_Insert(t *testing.T) {
	r := setupTestRepos(t, strict())
	r.seedAliceAndBob(t)

	t.Run("username taken", func(t *testing.T) {
		_, err := r.users.Insert(models.User{Username: "alice", Password: "another", UserType: models.UserTypeEmployee})
		assert.ErrorIs(t, err, ErrUsernameTaken)
	})

	t.Run("weak password", func(t *testing.T) {
		_, err := r.users.Insert(models.User{Username: "carol", Password: "123", UserType: models.UserTypeEmployee})
		assert.ErrorIs(t, err, ErrInvalidInput)
		assert.ErrorIs(t, err, auth.ErrWeakPassword)
	})

	t.Run("generated id", func(t *testing.T) {
		u := r.users.NewUser(models.UserTypeEmployee, "dave", "davepass", "dave@example.com", "Dave")
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), u.ID)

		u.ID = ""
		created, err := r.users.Insert(u)
		require.NoError(t, err)
		assert.Regexp(t, regexp.MustCompile(`^[0-9a-f]{8}$`), created.ID)

		got, err := r.users.GetByID(created.ID)
		require.NoError(t, err)
		assert.Equal(t, created, got)
	})
}

func TestUserRepository_Queries(t *testing.T) {
	r := setupTestRepos(t, strict())
	r.seedAliceAndBob(t)

	assert.Equal(t, 2, r.users.Count())
	assert.Equal(t, 1, r.users.CountByType(models.UserTypeAdmin))
	assert.Len(t, r.users.Employees(), 1)
	assert.Equal(t, "alice", r.users.Admins()[0].Username)
	assert.True(t, r.users.UsernameExists("bob"))
	assert.False(t, r.users.UsernameExists("carol"))

	_, err := r.users.GetByID("404")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestUserRepository_UpdateAndPassword(t *testing.T) {
	r := setupTestRepos(t, strict())
	r.seedAliceAndBob(t)

	updated, err := r.users.UpdateProfile("2", "robert@example.com", "Robert")
	require.NoError(t, err)
	assert.Equal(t, "Robert", updated.FullName)

	bob, _ := r.users.GetByID("2")
	bob.Username = "alice"
	_, err = r.users.Update(bob)
	assert.ErrorIs(t, err, ErrUsernameTaken)

	bob.Username = "robert"
	bob.Password = "ignored"
	saved, err := r.users.Update(bob)
	require.NoError(t, err)
	assert.True(t, auth.IsHash(saved.Password))

	assert.ErrorIs(t, r.users.ChangePassword("2", "wrong", "newpass1"), ErrInvalidCredentials)
	require.NoError(t, r.users.ChangePassword("2", "pw123456", "newpass1"))
	_, err = r.users.Authenticate("robert", "newpass1")
	assert.NoError(t, err)

	require.NoError(t, r.users.Delete("2"))
	assert.ErrorIs(t, r.users.Delete("2"), ErrNotFound)
}

func TestTaskRepository_OverdueScenario(t *testing.T) {
	r := setupTestRepos(t, strict())
	r.seedAliceAndBob(t)

	task, err := r.tasks.Create("Report", "", "2", "1", models.PriorityHigh, fixedNow.Add(-24*time.Hour).UnixMilli())
	require.NoError(t, err)
	assert.Regexp(t, regexp.MustCompile(`^TASK-[0-9A-F]{8}$`), task.ID)
	assert.True(t, task.IsOverdueAt(fixedNow))
	assert.Len(t, r.tasks.Overdue(), 1)

	_, err = r.tasks.Complete(task.ID)
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = r.tasks.Start(task.ID)
	require.NoError(t, err)
	done, err := r.tasks.Complete(task.ID)
	require.NoError(t, err)

	assert.False(t, done.IsOverdueAt(fixedNow))
	assert.Equal(t, fixedNow.UnixMilli(), done.CompletedDate)
	assert.Empty(t, r.tasks.OverdueByAssignee("2"))

	// re-saving a completed task keeps the original completion date
	r.tasks.now = func() time.Time { return fixedNow.Add(time.Hour) }
	resaved, err := r.tasks.Update(done)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.UnixMilli(), resaved.CompletedDate)
}

func TestTaskRepository_LenientTransitions(t *testing.T) {
	r := setupTestRepos(t, TaskOptions{})

	task, err := r.tasks.Create("Report", "", "ghost", "nobody", models.PriorityLow, 0)
	require.NoError(t, err)

	done, err := r.tasks.Complete(task.ID)
	require.NoError(t, err)
	assert.NotZero(t, done.CompletedDate)

	reopened, err := r.tasks.UpdateStatus(task.ID, models.TaskStatusPending)
	require.NoError(t, err)
	assert.Equal(t, models.TaskStatusPending, reopened.Status)
}

func TestTaskRepository_StrictReferences(t *testing.T) {
	r := setupTestRepos(t, strict())
	r.seedAliceAndBob(t)

	_, err := r.tasks.Create("Report", "", "ghost", "1", models.PriorityLow, 0)
	assert.ErrorIs(t, err, ErrUnknownUser)
	assert.Zero(t, r.tasks.Count())

	task, err := r.tasks.Create("Report", "", "2", "1", models.PriorityLow, 0)
	require.NoError(t, err)

	_, err = r.tasks.Reassign(task.ID, "ghost")
	assert.ErrorIs(t, err, ErrUnknownUser)

	moved, err := r.tasks.Reassign(task.ID, "1")
	require.NoError(t, err)
	assert.Equal(t, "1", moved.AssignedTo)
}

func TestTaskRepository_Statistics(t *testing.T) {
	r := setupTestRepos(t, TaskOptions{})
	past := fixedNow.Add(-time.Hour).UnixMilli()
	future := fixedNow.Add(time.Hour).UnixMilli()

	for _, tc := range []struct {
		status models.TaskStatus
		due    int64
	}{
		{models.TaskStatusPending, past},
		{models.TaskStatusInProgress, future},
		{models.TaskStatusCompleted, past},
	} {
		_, err := r.tasks.Insert(models.Task{Title: "t", AssignedTo: "2", CreatedBy: "1", Status: tc.status, DueDate: tc.due})
		require.NoError(t, err)
	}
	_, err := r.tasks.Insert(models.Task{Title: "other", AssignedTo: "3", CreatedBy: "1", DueDate: past})
	require.NoError(t, err)

	stats := r.tasks.Statistics("2")
	assert.Equal(t, models.TaskStatistics{Total: 3, Pending: 1, InProgress: 1, Completed: 1, Cancelled: 0, Overdue: 1}, stats)
	assert.Equal(t, models.TaskStatistics{}, r.tasks.Statistics("nobody"))
	assert.Equal(t, 3, r.tasks.CountByAssignee("2"))
	assert.Equal(t, 2, r.tasks.CountByStatus(models.TaskStatusPending))
}

func TestTaskRepository_ListAndSort(t *testing.T) {
	r := setupTestRepos(t, TaskOptions{})

	insert := func(id, title string, p models.TaskPriority, created, due int64, assignee string) {
		_, err := r.tasks.Insert(models.Task{ID: id, Title: title, Description: "desc " + id,
			AssignedTo: assignee, CreatedBy: "1", Priority: p, CreatedDate: created, DueDate: due})
		require.NoError(t, err)
	}
	insert("A", "Fix login bug", models.PriorityLow, 100, 3000, "2")
	insert("B", "Write docs", models.PriorityUrgent, 300, 1000, "2")
	insert("C", "Deploy", models.PriorityHigh, 200, 2000, "3")
	insert("D", "Review LOGIN flow", models.PriorityMedium, 400, 4000, "3")

	ids := func(tasks []models.Task) []string {
		out := make([]string, 0, len(tasks))
		for _, task := range tasks {
			out = append(out, task.ID)
		}
		return out
	}

	assert.Equal(t, []string{"D", "B", "C", "A"}, ids(r.tasks.SortedByCreatedDate()))
	assert.Equal(t, []string{"B", "C", "A", "D"}, ids(r.tasks.SortedByDueDate()))
	assert.Equal(t, []string{"B", "C", "D", "A"}, ids(r.tasks.SortedByPriority()))

	tests := []struct {
		name      string
		filter    ListFilter
		wantIDs   []string
		wantTotal int
	}{
		{name: "all", filter: ListFilter{}, wantIDs: []string{"A", "B", "C", "D"}, wantTotal: 4},
		{name: "search is case insensitive", filter: ListFilter{Search: "login"}, wantIDs: []string{"A", "D"}, wantTotal: 2},
		{name: "search description", filter: ListFilter{Search: "desc c"}, wantIDs: []string{"C"}, wantTotal: 1},
		{name: "assignee", filter: ListFilter{AssignedTo: ptr("3")}, wantIDs: []string{"C", "D"}, wantTotal: 2},
		{name: "priority", filter: ListFilter{Priority: ptr(models.PriorityUrgent)}, wantIDs: []string{"B"}, wantTotal: 1},
		{name: "overdue", filter: ListFilter{OverdueOnly: true}, wantIDs: []string{"A", "B", "C", "D"}, wantTotal: 4},
		{name: "due asc paged", filter: ListFilter{SortBy: SortByDueDate, Limit: 2, Offset: 1}, wantIDs: []string{"C", "A"}, wantTotal: 4},
		{name: "created asc", filter: ListFilter{SortBy: SortByCreatedDate, SortOrder: "asc"}, wantIDs: []string{"A", "C", "B", "D"}, wantTotal: 4},
		{name: "offset past end", filter: ListFilter{Offset: 10}, wantIDs: []string{}, wantTotal: 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, total := r.tasks.List(tt.filter)
			assert.Equal(t, tt.wantIDs, ids(got))
			assert.Equal(t, tt.wantTotal, total)
		})
	}
}

func TestTaskRepository_ApplyAndDelete(t *testing.T) {
	r := setupTestRepos(t, strict())
	r.seedAliceAndBob(t)

	task, err := r.tasks.Create("Old", "", "2", "1", models.PriorityLow, 0)
	require.NoError(t, err)

	updated, err := r.tasks.Apply(task.ID, TaskUpdate{Title: ptr("New"), DueDate: ptr(int64(5))})
	require.NoError(t, err)
	assert.Equal(t, "New", updated.Title)
	assert.Equal(t, int64(5), updated.DueDate)
	assert.Equal(t, models.PriorityLow, updated.Priority)

	urgent, err := r.tasks.UpdatePriority(task.ID, models.PriorityUrgent)
	require.NoError(t, err)
	assert.Equal(t, models.PriorityUrgent, urgent.Priority)

	_, err = r.tasks.UpdatePriority(task.ID, "SOMEDAY")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = r.tasks.UpdateStatus("TASK-MISSING", models.TaskStatusInProgress)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, r.tasks.Delete(task.ID))
	assert.ErrorIs(t, r.tasks.Delete(task.ID), ErrNotFound)
	_, err = r.tasks.GetByID(task.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func ptr[T any](v T) *T { return &v }

// racingUserStore runs before once, ahead of the first ModifyUser.
type racingUserStore struct {
	UserStore
	before func()
	calls  int
}

func (s *racingUserStore) ModifyUser(id string, fn func(*models.User) error) (models.User, error) {
	s.calls++
	if s.calls == 1 && s.before != nil {
		s.before()
	}
	return s.UserStore.ModifyUser(id, fn)
}

func TestUserRepository_ChangePasswordRacesStoredHash(t *testing.T) {
	tests := []struct {
		name       string
		concurrent string
		wantErr    error
		wantLogin  string
	}{
		{
			// a login upgrading the same legacy password keeps the old password valid
			name:       "hash rewritten for the same password",
			concurrent: "pw123456",
			wantLogin:  "newpass1",
		},
		{
			name:       "password changed by someone else",
			concurrent: "otherpass",
			wantErr:    ErrInvalidCredentials,
			wantLogin:  "otherpass",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := setupTestRepos(t, strict())
			r.seedAliceAndBob(t)

			store := &racingUserStore{UserStore: r.db}
			store.before = func() {
				hash, err := bcrypt.GenerateFromPassword([]byte(tt.concurrent), bcrypt.MinCost)
				require.NoError(t, err)
				_, err = r.db.ModifyUser("2", func(u *models.User) error {
					u.Password = string(hash)
					return nil
				})
				require.NoError(t, err)
			}
			users := NewUserRepository(store, auth.NewPasswordManager(6, bcrypt.MinCost), logger.NewForTests())

			err := users.ChangePassword("2", "pw123456", "newpass1")
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, 2, store.calls)
			}

			_, err = r.users.Authenticate("bob", tt.wantLogin)
			assert.NoError(t, err)
		})
	}
}
