package config

import (
	"log/slog"
	"os"

	"github.com/joho/godotenv"
)

// loadEnvFiles loads environment variables from .env/.env.local files.
// It attempts each supported filename in order and stops at the first
// successfully parsed file. Existing process environment is not overwritten.
func loadEnvFiles() {
	for _, envPath := range []string{".env", ".env.local"} {
		if _, err := os.Stat(envPath); err != nil {
			continue
		}
		if err := godotenv.Load(envPath); err != nil {
			slog.Warn("Failed to load env file", "path", envPath, "error", err)
			continue
		}
		slog.Debug("Loaded environment variables", "path", envPath)
		return
	}
}
