package utils

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output and the config file
const (
	FormatText = "text"
	FormatJSON = "json"
	FormatYAML = "yaml"
)

// ValidOutputFormats lists the accepted output formats
var ValidOutputFormats = []string{FormatText, FormatJSON, FormatYAML}

// IsValidOutputFormat reports whether format is one of ValidOutputFormats
func IsValidOutputFormat(format string) bool {
	for _, f := range ValidOutputFormats {
		if f == format {
			return true
		}
	}
	return false
}

// OutputJSON marshals the provided data as indented JSON and prints it to stdout.
// Returns an error if marshaling fails.
func OutputJSON(data interface{}) error {
	return WriteJSON(os.Stdout, data)
}

// OutputYAML marshals the provided data as YAML and prints it to stdout.
// Returns an error if marshaling fails.
func OutputYAML(data interface{}) error {
	return WriteYAML(os.Stdout, data)
}

// WriteJSON writes data as indented JSON followed by a newline
func WriteJSON(w io.Writer, data interface{}) error {
	jsonData, err := MarshalJSON(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(jsonData))
	return err
}

// WriteYAML writes data as YAML
func WriteYAML(w io.Writer, data interface{}) error {
	yamlData, err := MarshalYAML(data)
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, string(yamlData))
	return err
}

// MarshalJSON marshals the provided data as indented JSON.
// Returns the JSON bytes or an error if marshaling fails.
func MarshalJSON(data interface{}) ([]byte, error) {
	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return jsonData, nil
}

// MarshalYAML marshals the provided data as YAML.
// Returns the YAML bytes or an error if marshaling fails.
func MarshalYAML(data interface{}) ([]byte, error) {
	yamlData, err := yaml.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal YAML: %w", err)
	}
	return yamlData, nil
}

// JSONToYAMLValue converts a JSON-tagged value into a generic tree so YAML
// output uses the same snake_case keys as JSON output.
func JSONToYAMLValue(data interface{}) (interface{}, error) {
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	var tree interface{}
	if err := json.Unmarshal(raw, &tree); err != nil {
		return nil, fmt.Errorf("failed to decode JSON: %w", err)
	}
	return tree, nil
}
