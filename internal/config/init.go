package config

import (
	"fmt"
	"os"
)

const exampleConfig = `# repobackup configuration
repository:
  path: .
  # name: my-project        # defaults to the directory name
  revision: HEAD

drive:
  root_folder_id: "${REPOBACKUP_FOLDER_ID}"
  credentials_file: credentials.json
  token_file: token.json
  shared_drives: false

changelog:
  filename: CHANGELOG.txt

upload:
  max_retries: 3   # -1 disables retries
  retry_backoff: exponential
  retry_initial_delay: 500ms
  retry_max_delay: 10s

catalog:
  path: repobackup.db

daemon:
  interval: 1h
  # metrics_listen: ":9090"
  events:
    enabled: false
    nats_url: nats://localhost:4222
    subject: repobackup.runs
`

// Init creates a new configuration file with example content
func Init(configPath string, force bool) error {
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("configuration file already exists: %s (use --force to overwrite)", configPath)
	}

	if err := os.WriteFile(configPath, []byte(exampleConfig), 0o600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}
