package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"tasksync/backend"
	"tasksync/backend/reconcile"
	"tasksync/backend/sqlite"
	"tasksync/internal/api"
)

func createTestHostService(t *testing.T) *api.Service {
	t.Helper()
	store, err := sqlite.Open(sqlite.Options{DBPath: filepath.Join(t.TempDir(), "host.db")})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return api.NewService(reconcile.New(store))
}

func TestServeHost(t *testing.T) {
	svc := createTestHostService(t)

	input := strings.Join([]string{
		`{"id":1,"op":"full_replace_sync","provider":"todoist","tasks":[{"id":"t1","title":"One"}],"projects":[],"labels":[]}`,
		``,
		`{"id":"two","op":"set_sync_token","provider":"todoist","sync_token":"abc"}`,
		`{"id":3,"op":"get_sync_token","provider":"todoist"}`,
		`{"id":4,"op":"explode"}`,
		`not json`,
	}, "\n")

	var out bytes.Buffer
	if err := serveHost(svc, strings.NewReader(input), &out); err != nil {
		t.Fatalf("serveHost failed: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 5 {
		t.Fatalf("Expected 5 responses, got %d:\n%s", len(lines), out.String())
	}

	responses := make([]hostResponse, len(lines))
	for i, line := range lines {
		if err := json.Unmarshal([]byte(line), &responses[i]); err != nil {
			t.Fatalf("Response %d is not JSON: %v", i, err)
		}
	}

	var summary backend.SyncSummary
	if err := json.Unmarshal(responses[0].Result, &summary); err != nil {
		t.Fatalf("Invalid summary: %v", err)
	}
	if !summary.Success || summary.TasksAdded != 1 {
		t.Errorf("Unexpected summary: %+v", summary)
	}
	if string(responses[0].ID) != "1" {
		t.Errorf("Expected id 1 to be echoed, got %s", responses[0].ID)
	}

	if string(responses[1].Result) != "true" || string(responses[1].ID) != `"two"` {
		t.Errorf("Unexpected set_sync_token response: %+v", responses[1])
	}
	if string(responses[2].Result) != `"abc"` {
		t.Errorf("Expected token abc, got %s", responses[2].Result)
	}
	if !strings.Contains(responses[3].Error, "unknown op") {
		t.Errorf("Expected unknown op error, got %+v", responses[3])
	}
	if !strings.Contains(responses[4].Error, "invalid request") {
		t.Errorf("Expected invalid request error, got %+v", responses[4])
	}
}
