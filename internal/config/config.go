package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Repository RepositoryConfig `yaml:"repository"`
	Drive      DriveConfig      `yaml:"drive"`
	Changelog  ChangelogConfig  `yaml:"changelog"`
	Upload     UploadConfig     `yaml:"upload"`
	Catalog    CatalogConfig    `yaml:"catalog"`
	Daemon     DaemonConfig     `yaml:"daemon"`
}

// RepositoryConfig identifies the Git repository to back up
type RepositoryConfig struct {
	Path     string `yaml:"path"`               // Local path to the repository
	Name     string `yaml:"name,omitempty"`     // Folder name on Drive, defaults to base of path
	Revision string `yaml:"revision,omitempty"` // Commit hash, tag, or HEAD
}

// DriveConfig holds Google Drive settings
type DriveConfig struct {
	RootFolderID    string `yaml:"root_folder_id"`             // Parent folder for all backups
	CredentialsFile string `yaml:"credentials_file,omitempty"` // OAuth client secret JSON
	TokenFile       string `yaml:"token_file,omitempty"`       // Cached OAuth token
	SharedDrives    bool   `yaml:"shared_drives"`              // Include shared drives in queries
}

// ChangelogConfig controls the generated changelog document
type ChangelogConfig struct {
	Filename string `yaml:"filename,omitempty"`
}

// UploadConfig controls retry behaviour for Drive calls
type UploadConfig struct {
	MaxRetries        int              `yaml:"max_retries"` // 0 applies the default of 3, -1 disables retries
	RetryBackoff      RetryBackoffMode `yaml:"retry_backoff,omitempty"`
	RetryInitialDelay string           `yaml:"retry_initial_delay,omitempty"`
	RetryMaxDelay     string           `yaml:"retry_max_delay,omitempty"`
}

// CatalogConfig locates the local backup catalog database
type CatalogConfig struct {
	Path string `yaml:"path,omitempty"`
}

// DaemonConfig holds settings for scheduled backup mode
type DaemonConfig struct {
	Interval      string       `yaml:"interval,omitempty"`       // Backup interval (Go duration)
	MetricsListen string       `yaml:"metrics_listen,omitempty"` // Address for the Prometheus endpoint, empty disables
	Events        EventsConfig `yaml:"events,omitempty"`
}

// EventsConfig controls optional NATS publishing of completed runs
type EventsConfig struct {
	Enabled bool   `yaml:"enabled"`
	NATSURL string `yaml:"nats_url,omitempty"`
	Subject string `yaml:"subject,omitempty"`
}

// Load loads configuration from the specified file
func Load(configPath string) (*Config, error) {
	// Load .env file if it exists
	loadEnvFiles()

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("configuration file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath) // #nosec G304 - path comes from the CLI flag
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	config.applyDefaults()
	return &config, nil
}

// applyDefaults fills zero values with working defaults.
func (c *Config) applyDefaults() {
	if c.Repository.Path == "" {
		c.Repository.Path = "."
	}
	if c.Repository.Name == "" {
		if abs, err := filepath.Abs(c.Repository.Path); err == nil {
			c.Repository.Name = filepath.Base(abs)
		}
	}
	if c.Repository.Revision == "" {
		c.Repository.Revision = "HEAD"
	}
	if c.Drive.CredentialsFile == "" {
		c.Drive.CredentialsFile = "credentials.json"
	}
	if c.Drive.TokenFile == "" {
		c.Drive.TokenFile = "token.json"
	}
	if c.Changelog.Filename == "" {
		c.Changelog.Filename = "CHANGELOG.txt"
	}
	if c.Upload.MaxRetries == 0 {
		c.Upload.MaxRetries = 3
	}
	if c.Upload.RetryBackoff == "" {
		c.Upload.RetryBackoff = RetryBackoffExponential
	}
	if c.Upload.RetryInitialDelay == "" {
		c.Upload.RetryInitialDelay = "500ms"
	}
	if c.Upload.RetryMaxDelay == "" {
		c.Upload.RetryMaxDelay = "10s"
	}
	if c.Catalog.Path == "" {
		c.Catalog.Path = "repobackup.db"
	}
	if c.Daemon.Interval == "" {
		c.Daemon.Interval = "1h"
	}
	if c.Daemon.Events.Subject == "" {
		c.Daemon.Events.Subject = "repobackup.runs"
	}
}

// Validate checks that settings required for a backup run are present.
func (c *Config) Validate() error {
	if c.Drive.RootFolderID == "" {
		return fmt.Errorf("drive.root_folder_id is required")
	}
	if c.Repository.Path == "" {
		return fmt.Errorf("repository.path is required")
	}
	return nil
}
