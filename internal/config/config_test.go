package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "repobackup.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `
drive:
  root_folder_id: abc123
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Repository.Path)
	assert.Equal(t, "HEAD", cfg.Repository.Revision)
	assert.NotEmpty(t, cfg.Repository.Name)
	assert.Equal(t, "credentials.json", cfg.Drive.CredentialsFile)
	assert.Equal(t, "token.json", cfg.Drive.TokenFile)
	assert.Equal(t, "CHANGELOG.txt", cfg.Changelog.Filename)
	assert.Equal(t, 3, cfg.Upload.MaxRetries)
	assert.Equal(t, RetryBackoffExponential, cfg.Upload.RetryBackoff)
	assert.Equal(t, "repobackup.db", cfg.Catalog.Path)
	assert.Equal(t, "1h", cfg.Daemon.Interval)
	assert.Equal(t, "repobackup.runs", cfg.Daemon.Events.Subject)
}

func TestLoadKeepsNegativeMaxRetries(t *testing.T) {
	path := writeConfig(t, `
drive:
  root_folder_id: abc123
upload:
  max_retries: -1
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, -1, cfg.Upload.MaxRetries, "the no-retries sentinel must survive defaulting")
}

func TestLoadExpandsEnvironment(t *testing.T) {
	t.Setenv("TEST_FOLDER_ID", "folder-from-env")
	path := writeConfig(t, `
drive:
  root_folder_id: ${TEST_FOLDER_ID}
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "folder-from-env", cfg.Drive.RootFolderID)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not found")
}

func TestValidateRequiresRootFolder(t *testing.T) {
	cfg := &Config{}
	cfg.applyDefaults()
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "root_folder_id")

	cfg.Drive.RootFolderID = "abc"
	assert.NoError(t, cfg.Validate())
}

func TestInitRefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "repobackup.yaml")
	require.NoError(t, Init(path, false))

	err := Init(path, false)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already exists")

	require.NoError(t, Init(path, true))
}

func TestInitProducesLoadableConfig(t *testing.T) {
	t.Setenv("REPOBACKUP_FOLDER_ID", "root-id")
	path := filepath.Join(t.TempDir(), "repobackup.yaml")
	require.NoError(t, Init(path, false))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "root-id", cfg.Drive.RootFolderID)
	assert.NoError(t, cfg.Validate())
}
