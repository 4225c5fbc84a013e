package platform

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ConfigFileNames are the config files FindConfig looks for, in order.
var ConfigFileNames = []string{"alertidx.yaml", ".alertidx.yaml"}

// ErrConfigNotFound is returned when no config file exists up to the
// filesystem root.
var ErrConfigNotFound = errors.New("config file not found")

// FindConfig looks upwards from startDir for a config file and returns its
// absolute path.
func FindConfig(startDir string) (string, error) {
	abs, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	dir := abs
	for {
		for _, name := range ConfigFileNames {
			if hasFile(dir, name) {
				return filepath.Join(dir, name), nil
			}
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			// Reached filesystem root
			break
		}
		dir = parent
	}

	return "", fmt.Errorf("%w from %s", ErrConfigNotFound, abs)
}

func hasFile(dir, name string) bool {
	info, err := os.Stat(filepath.Join(dir, name))
	return err == nil && !info.IsDir()
}
