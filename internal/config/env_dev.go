//go:build dev

package config

import (
	"errors"
	"os"

	"github.com/joho/godotenv"
)

// loadDotEnv reads .env, or the file named by DOTENV_FILE, without overriding
// variables already set in the process environment.
func loadDotEnv() error {
	path := os.Getenv("DOTENV_FILE")
	if path == "" {
		path = ".env"
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return godotenv.Load(path)
}
