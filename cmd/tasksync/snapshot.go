package main

import (
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"tasksync/backend"
	"tasksync/internal/utils"
)

// Snapshot is one provider export as read from disk
type Snapshot struct {
	Tasks    []backend.Task    `json:"tasks"`
	Projects []backend.Project `json:"projects"`
	Labels   []backend.Label   `json:"labels"`
}

// loadSnapshot reads a JSON or YAML snapshot file. YAML documents are
// converted to JSON first so both formats share the same field defaults.
func loadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, utils.ErrSnapshotNotFound(path)
		}
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
	case ".yaml", ".yml":
		if data, err = yamlToJSON(data); err != nil {
			return nil, utils.ErrInvalidSnapshot(path, err)
		}
	default:
		return nil, utils.ErrUnsupportedSnapshotFormat(path)
	}

	snap, err := decodeSnapshot(data)
	if err != nil {
		return nil, utils.ErrInvalidSnapshot(path, err)
	}
	utils.Debugf("Loaded snapshot %s: %d tasks, %d projects, %d labels",
		path, len(snap.Tasks), len(snap.Projects), len(snap.Labels))
	return snap, nil
}

func decodeSnapshot(data []byte) (*Snapshot, error) {
	snap := &Snapshot{}
	if len(strings.TrimSpace(string(data))) == 0 {
		return snap, nil
	}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc == nil {
		return nil, nil
	}
	return json.Marshal(normalizeYAML(doc))
}

// normalizeYAML turns map[interface{}]interface{} nodes into string-keyed
// maps so the tree can be marshalled as JSON
func normalizeYAML(v interface{}) interface{} {
	switch node := v.(type) {
	case map[string]interface{}:
		for k, child := range node {
			node[k] = normalizeYAML(child)
		}
		return node
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(node))
		for k, child := range node {
			out[toString(k)] = normalizeYAML(child)
		}
		return out
	case []interface{}:
		for i, child := range node {
			node[i] = normalizeYAML(child)
		}
		return node
	default:
		return v
	}
}

func toString(v interface{}) string {
	if s, ok := v.(string); ok {
		return s
	}
	b, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return strings.Trim(string(b), `"`)
}
