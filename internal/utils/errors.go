package utils

import (
	"fmt"
	"strings"
)

// ErrorWithSuggestion wraps an error with a helpful suggestion for the user
type ErrorWithSuggestion struct {
	Err        error
	Suggestion string
}

// Error implements the error interface
func (e *ErrorWithSuggestion) Error() string {
	if e.Suggestion != "" {
		return fmt.Sprintf("%v\n\nSuggestion: %s", e.Err, e.Suggestion)
	}
	return e.Err.Error()
}

// Unwrap allows errors.Is and errors.As to work
func (e *ErrorWithSuggestion) Unwrap() error {
	return e.Err
}

// Common error constructors with suggestions

// ErrProviderNotSynced creates an error when a provider has no stored data yet
func ErrProviderNotSynced(provider string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("provider '%s' has never been synced", provider),
		Suggestion: fmt.Sprintf("Run 'tasksync sync full %s --snapshot <file>' first", provider),
	}
}

// ErrSnapshotNotFound creates an error when a snapshot file does not exist
func ErrSnapshotNotFound(path string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("snapshot file not found: %s", path),
		Suggestion: "Pass an existing .json, .yaml or .yml file with --snapshot",
	}
}

// ErrInvalidSnapshot creates an error when a snapshot file cannot be parsed
func ErrInvalidSnapshot(path string, err error) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid snapshot %s: %w", path, err),
		Suggestion: "A snapshot is a document with 'tasks', 'projects' and 'labels' lists",
	}
}

// ErrUnsupportedSnapshotFormat creates an error for unknown snapshot file extensions
func ErrUnsupportedSnapshotFormat(path string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("unsupported snapshot format: %s", path),
		Suggestion: "Use a .json, .yaml or .yml file",
	}
}

// ErrCompletionNotFound creates an error when an outbox record does not exist
func ErrCompletionNotFound(id string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("pending completion '%s' not found", id),
		Suggestion: "Run 'tasksync outbox list <provider>' to see pending completions",
	}
}

// ErrInvalidOutputFormat creates an error for unknown --output values
func ErrInvalidOutputFormat(format string, validFormats []string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid output format: %s", format),
		Suggestion: fmt.Sprintf("Valid formats: %s", strings.Join(validFormats, ", ")),
	}
}

// ErrDatabaseLocked creates an error when another writer holds the database
func ErrDatabaseLocked(path string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("database %s is locked by another process", path),
		Suggestion: "Wait for the other sync to finish or raise busy_timeout_ms in the config",
	}
}

// ErrConfigFileNotFound creates an error when config file is not found
func ErrConfigFileNotFound(path string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("config file not found at %s", path),
		Suggestion: "Run 'tasksync config init' to create a default configuration file",
	}
}

// ErrInvalidConfig creates an error for invalid configuration
func ErrInvalidConfig(field string, reason string) error {
	return &ErrorWithSuggestion{
		Err:        fmt.Errorf("invalid configuration for '%s': %s", field, reason),
		Suggestion: fmt.Sprintf("Check ~/.config/tasksync/config.json and fix the '%s' field", field),
	}
}

// WrapWithSuggestion wraps an existing error with a suggestion
func WrapWithSuggestion(err error, suggestion string) error {
	if err == nil {
		return nil
	}
	return &ErrorWithSuggestion{
		Err:        err,
		Suggestion: suggestion,
	}
}
