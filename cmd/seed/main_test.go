package main

import (
	"bytes"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, fs afero.Fs, args ...string) (string, error) {
	t.Helper()
	cmd := rootCmd(fs)
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--data-dir", "/data"}, args...))
	err := cmd.Execute()
	return out.String(), err
}

func TestInitSeedsDataFiles(t *testing.T) {
	fs := afero.NewMemMapFs()

	out, err := execute(t, fs, "init")
	require.NoError(t, err)
	assert.Contains(t, out, "users")
	assert.Contains(t, out, "tasks")

	users, err := afero.ReadFile(fs, "/data/users.xml")
	require.NoError(t, err)
	assert.Contains(t, string(users), "<username>admin</username>")
}

func TestInitForceRestoresSeed(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/data/users.xml", []byte("<users/>"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/tasks.xml", []byte("<tasks/>"), 0o644))

	_, err := execute(t, fs, "init")
	require.NoError(t, err)
	users, _ := afero.ReadFile(fs, "/data/users.xml")
	assert.Equal(t, "<users/>", string(users))

	_, err = execute(t, fs, "init", "--force")
	require.NoError(t, err)
	users, _ = afero.ReadFile(fs, "/data/users.xml")
	assert.Contains(t, string(users), "<username>employee</username>")
}

func TestValidateReportsBrokenFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	require.NoError(t, fs.MkdirAll("/data", 0o755))
	require.NoError(t, afero.WriteFile(fs, "/data/users.xml", []byte("<people/>"), 0o644))
	require.NoError(t, afero.WriteFile(fs, "/data/tasks.xml", []byte("<tasks/>"), 0o644))

	out, err := execute(t, fs, "validate")
	assert.Error(t, err)
	assert.Contains(t, out, "FAILED")
	assert.Contains(t, out, "tasks  ok")
}

func TestCreateAdmin(t *testing.T) {
	fs := afero.NewMemMapFs()

	out, err := execute(t, fs, "create-admin",
		"--username", "root", "--password", "rootpass", "--email", "root@example.com", "--name", "Root")
	require.NoError(t, err)
	assert.Contains(t, out, "created admin root")

	users, err := afero.ReadFile(fs, "/data/users.xml")
	require.NoError(t, err)
	assert.Contains(t, string(users), "<username>root</username>")
	assert.NotContains(t, string(users), "rootpass")

	_, err = execute(t, fs, "create-admin",
		"--username", "root", "--password", "other1", "--email", "r@example.com", "--name", "R")
	assert.Error(t, err)
}

func TestSchemaPrintsXSD(t *testing.T) {
	out, err := execute(t, afero.NewMemMapFs(), "schema", "tasks")
	require.NoError(t, err)
	assert.Contains(t, out, "xs:schema")

	_, err = execute(t, afero.NewMemMapFs(), "schema", "projects")
	assert.Error(t, err)
}
