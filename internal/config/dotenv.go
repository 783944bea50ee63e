package config

import (
	"errors"
	"io/fs"

	"github.com/joho/godotenv"
)

// LoadDotEnv loads the given env files in order. Existing environment
// variables are never overridden, so the first file to set a key wins.
// Missing files are skipped; the number of files actually loaded is returned.
func LoadDotEnv(paths ...string) (int, error) {
	loaded := 0
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return loaded, err
		}
		loaded++
	}
	return loaded, nil
}
