package config

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/joho/godotenv"
)

// readDotEnv loads secrets from a .env file beside the config file without
// touching the process environment. A missing file yields an empty map.
func readDotEnv(dir string) (map[string]string, error) {
	if dir == "" {
		return map[string]string{}, nil
	}
	path := filepath.Join(dir, ".env")
	values, err := godotenv.Read(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return values, nil
}
