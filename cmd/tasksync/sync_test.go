package main

import (
	"path/filepath"
	"testing"

	"tasksync/backend"
	"tasksync/backend/sqlite"
)

func TestResolveDeleteOrphans(t *testing.T) {
	tests := []struct {
		name       string
		flagSet    bool
		flagValue  bool
		configured bool
		token      *string
		want       bool
	}{
		{"no token keeps config off", false, false, false, nil, false},
		{"no token uses config on", false, false, true, nil, true},
		{"star token forces comparison", false, false, false, backend.StringPtr("*"), true},
		{"real token uses config default", false, false, false, backend.StringPtr("abc"), false},
		{"real token with config enabled", false, false, true, backend.StringPtr("abc"), true},
		{"explicit flag off wins over star", true, false, true, backend.StringPtr("*"), false},
		{"explicit flag on", true, true, false, backend.StringPtr("abc"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := resolveDeleteOrphans(tt.flagSet, tt.flagValue, tt.configured, tt.token)
			if got != tt.want {
				t.Errorf("resolveDeleteOrphans() = %v, want %v", got, tt.want)
			}
		})
	}
}

// runCLI executes the root command against dbPath and closes the app afterwards
func runCLI(t *testing.T, dbPath string, args ...string) error {
	t.Helper()
	rootCmd, app := newRootCmd()
	configPath := filepath.Join(filepath.Dir(dbPath), "missing-config.json")
	rootCmd.SetArgs(append(args, "--db", dbPath, "--config", configPath, "--output", "json"))
	err := rootCmd.Execute()
	if closeErr := app.close(); closeErr != nil {
		t.Errorf("Failed to close app: %v", closeErr)
	}
	return err
}

func TestSyncCommands(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "tasks.db")

	full := writeSnapshot(t, "full.json", `{
  "tasks": [
    {"id": "t1", "title": "One"},
    {"id": "t2", "title": "Two"},
    {"id": "t3", "title": "Done", "status": "completed"}
  ],
  "projects": [],
  "labels": []
}`)
	if err := runCLI(t, dbPath, "sync", "full", "todoist", "--snapshot", full); err != nil {
		t.Fatalf("sync full failed: %v", err)
	}

	// Only t1 remains remotely; the '*' token marks the snapshot as complete
	incremental := writeSnapshot(t, "incremental.json", `{"tasks": [{"id": "t1", "title": "One renamed"}]}`)
	if err := runCLI(t, dbPath, "sync", "incremental", "todoist", "--snapshot", incremental, "--token", "*"); err != nil {
		t.Fatalf("sync incremental failed: %v", err)
	}

	store, err := sqlite.Open(sqlite.Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()

	tasks, err := store.ListTasksForProvider("todoist")
	if err != nil {
		t.Fatalf("ListTasksForProvider failed: %v", err)
	}
	got := make(map[string]string)
	for _, task := range tasks {
		got[task.ID] = task.Title
	}
	if len(got) != 2 {
		t.Fatalf("Expected t1 and the completed t3 to remain, got %v", got)
	}
	if got["t1"] != "One renamed" {
		t.Errorf("Expected t1 to be updated, got %q", got["t1"])
	}
	if _, ok := got["t3"]; !ok {
		t.Error("Expected completed task t3 to survive orphan deletion")
	}
}

func TestSyncIncrementalOrphanDefaults(t *testing.T) {
	tests := []struct {
		provider   string
		wantOrphan bool
	}{
		{"obsidian", true},
		{"todoist", false},
		{"msToDo", false},
		{"custom", true},
	}

	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			dbPath := filepath.Join(t.TempDir(), "tasks.db")
			full := writeSnapshot(t, "full.json", `{"tasks": [{"id": "keep", "title": "Keep"}, {"id": "orphan", "title": "Orphan"}]}`)
			if err := runCLI(t, dbPath, "sync", "full", tt.provider, "--snapshot", full); err != nil {
				t.Fatalf("sync full failed: %v", err)
			}

			partial := writeSnapshot(t, "partial.json", `{"tasks": [{"id": "keep", "title": "Keep"}]}`)
			if err := runCLI(t, dbPath, "sync", "incremental", tt.provider, "--snapshot", partial); err != nil {
				t.Fatalf("sync incremental failed: %v", err)
			}

			store, err := sqlite.Open(sqlite.Options{DBPath: dbPath})
			if err != nil {
				t.Fatalf("Failed to reopen store: %v", err)
			}
			defer store.Close()

			tasks, err := store.ListTasksForProvider(tt.provider)
			if err != nil {
				t.Fatalf("ListTasksForProvider failed: %v", err)
			}
			found := false
			for _, task := range tasks {
				if task.ID == "orphan" {
					found = true
				}
			}
			if found != tt.wantOrphan {
				t.Errorf("Orphan kept = %v, want %v", found, tt.wantOrphan)
			}
		})
	}
}

func TestStatsVacuum(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	snap := writeSnapshot(t, "snap.json", `{"tasks": [{"id": "t1", "title": "One"}]}`)
	if err := runCLI(t, dbPath, "sync", "full", "todoist", "--snapshot", snap); err != nil {
		t.Fatalf("sync full failed: %v", err)
	}
	if err := runCLI(t, dbPath, "clear", "todoist", "--yes"); err != nil {
		t.Fatalf("clear failed: %v", err)
	}
	if err := runCLI(t, dbPath, "stats", "--vacuum"); err != nil {
		t.Fatalf("stats --vacuum failed: %v", err)
	}
}

func TestSyncIncrementalSaveToken(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	snap := writeSnapshot(t, "snap.json", `{"tasks": [{"id": "t1", "title": "One"}]}`)

	if err := runCLI(t, dbPath, "sync", "incremental", "msToDo", "--snapshot", snap, "--token", "cursor-7", "--save-token"); err != nil {
		t.Fatalf("sync incremental failed: %v", err)
	}

	store, err := sqlite.Open(sqlite.Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()

	token, err := store.GetSyncToken("msToDo")
	if err != nil {
		t.Fatalf("GetSyncToken failed: %v", err)
	}
	if backend.StringValue(token) != "cursor-7" {
		t.Errorf("Expected stored token cursor-7, got %v", backend.StringValue(token))
	}
}

func TestClearUnknownProvider(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	err := runCLI(t, dbPath, "clear", "never-synced")
	if err == nil {
		t.Fatal("Expected clearing an unknown provider to fail")
	}
}

func TestOutboxAckUnknownID(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	if err := runCLI(t, dbPath, "outbox", "ack", "no-such-id"); err == nil {
		t.Fatal("Expected acking an unknown completion to fail")
	}
}

func TestOutboxEnqueueAndList(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "tasks.db")
	if err := runCLI(t, dbPath, "outbox", "enqueue", "todoist", "t1", "remote-1"); err != nil {
		t.Fatalf("outbox enqueue failed: %v", err)
	}
	if err := runCLI(t, dbPath, "outbox", "enqueue", "todoist", "t2", "remote-2", "--undo"); err != nil {
		t.Fatalf("outbox enqueue --undo failed: %v", err)
	}

	store, err := sqlite.Open(sqlite.Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("Failed to reopen store: %v", err)
	}
	defer store.Close()

	pending, err := store.ListCompletions("todoist")
	if err != nil {
		t.Fatalf("ListCompletions failed: %v", err)
	}
	if len(pending) != 2 {
		t.Fatalf("Expected 2 pending completions, got %d", len(pending))
	}
	if !pending[0].Completed || pending[1].Completed {
		t.Errorf("Expected a completion then a reopen, got %+v", pending)
	}
}
