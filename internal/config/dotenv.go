package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
)

// DefaultEnvFile is read from the working directory when no env file is named.
const DefaultEnvFile = ".env"

// LoadDotEnv loads variables from an env file into the process environment.
// Variables already set in the environment win over the file.
// An empty path reads DefaultEnvFile if it exists; a named file must exist.
func LoadDotEnv(path string) error {
	explicit := path != ""
	if !explicit {
		path = DefaultEnvFile
	}

	if _, err := os.Stat(path); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("env file %s: %w", path, err)
	}

	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("parse env file %s: %w", path, err)
	}
	return nil
}

// LoadConfig loads configuration from an env file and environment variables.
// The env file is loaded first, then environment variables override.
func LoadConfig(envPath string) (AppConfig, error) {
	if err := LoadDotEnv(envPath); err != nil {
		return AppConfig{}, err
	}

	envCfg, err := LoadFromEnv()
	if err != nil {
		return AppConfig{}, fmt.Errorf("parse environment: %w", err)
	}

	return envCfg.ToAppConfig(), nil
}
