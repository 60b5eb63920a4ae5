package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
)

// Environment variables that override the stored credentials.
const (
	EnvToken            = "ANNOUNCEBOT_TOKEN"
	EnvAuthorizedUserID = "ANNOUNCEBOT_AUTHORIZED_USER_ID"
)

// LoadEnvFile loads KEY=VALUE pairs from path into the process environment.
// Variables already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return err
	}
	return nil
}

// ApplyEnv returns a copy of cfg with credentials overridden from the
// environment. The result is never persisted.
func ApplyEnv(cfg *Config) *Config {
	out := Default()
	if cfg != nil {
		cp := *cfg
		out = &cp
	}
	if v := strings.TrimSpace(os.Getenv(EnvToken)); v != "" {
		out.Token = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvAuthorizedUserID)); v != "" {
		out.AuthorizedUserID = v
	}
	return out
}
