// Package env loads environment variables from .env files.
package env

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadEnvironmentVariables loads the given .env files, `.env` by default.
//
// Missing files are skipped so the programs can be configured with plain
// environment variables. Variables already set in the environment win.
func LoadEnvironmentVariables(filenames ...string) error {
	if len(filenames) == 0 {
		filenames = []string{".env"}
	}

	for _, filename := range filenames {
		if err := godotenv.Load(filename); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}

			return fmt.Errorf("%s: %w", filename, err)
		}
	}

	return nil
}
