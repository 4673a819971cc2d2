package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// DirPerm is the mode used for directories created for data, config and logs
const DirPerm = 0755

// ExpandPath expands environment variables and a leading ~ in a path.
// Examples:
//   - "~/.local/share/tasksync/tasks.db" -> "/home/user/.local/share/tasksync/tasks.db"
//   - "$XDG_DATA_HOME/tasks.db" -> "/data/tasks.db"
//   - "/abs/path" -> "/abs/path" (unchanged)
func ExpandPath(path string) (string, error) {
	if path == "" {
		return path, nil
	}

	// Variables first, so a variable may itself start with ~
	path = os.ExpandEnv(path)

	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}

	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	if path == "~" {
		return homeDir, nil
	}
	return filepath.Join(homeDir, path[2:]), nil
}

// EnsureParentDir creates the directory that will hold the file at path
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, DirPerm); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}
