package sqlite

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tasksync/backend"
)

// createTestStore opens a store backed by a temp file
func createTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := Open(Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	cleanup := func() {
		store.Close()
	}
	return store, cleanup
}

// withTx runs fn in a transaction and commits it
func withTx(t *testing.T, store *Store, fn func(tx backend.Tx)) {
	t.Helper()
	tx, err := store.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback()

	fn(tx)

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "nested", "dir", "tasks.db")

	store, err := Open(Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	defer store.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Errorf("Database file was not created")
	}

	version, err := store.DB().GetSchemaVersion()
	if err != nil {
		t.Fatalf("GetSchemaVersion failed: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("Expected schema version %d, got %d", SchemaVersion, version)
	}

	var mode string
	if err := store.DB().QueryRow("PRAGMA journal_mode").Scan(&mode); err != nil {
		t.Fatalf("Failed to read journal mode: %v", err)
	}
	if strings.ToLower(mode) != "wal" {
		t.Errorf("Expected WAL journal mode, got %q", mode)
	}

	var fk int
	if err := store.DB().QueryRow("PRAGMA foreign_keys").Scan(&fk); err != nil {
		t.Fatalf("Failed to read foreign_keys: %v", err)
	}
	if fk != 1 {
		t.Errorf("Expected foreign keys enabled, got %d", fk)
	}
}

func TestBuildDSN(t *testing.T) {
	dsn := buildDSN("/tmp/x.db", 1234)

	if !strings.HasPrefix(dsn, "/tmp/x.db?") {
		t.Errorf("Unexpected DSN prefix: %s", dsn)
	}
	for _, want := range []string{"busy_timeout%281234%29", "journal_mode%28WAL%29", "_txlock=immediate"} {
		if !strings.Contains(dsn, want) {
			t.Errorf("DSN %s missing %s", dsn, want)
		}
	}
}

func TestGetDatabasePathXDG(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/xdg/data")

	path, err := GetDatabasePath("")
	if err != nil {
		t.Fatalf("GetDatabasePath failed: %v", err)
	}
	if path != filepath.Join("/xdg/data", "tasksync", "tasks.db") {
		t.Errorf("Unexpected path %s", path)
	}

	path, err = GetDatabasePath("/custom.db")
	if err != nil {
		t.Fatalf("GetDatabasePath failed: %v", err)
	}
	if path != "/custom.db" {
		t.Errorf("Expected custom path to win, got %s", path)
	}
}

func TestEnsureProviderRowKeepsExistingRow(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	if err := store.SetSyncToken("todoist", "cursor"); err != nil {
		t.Fatalf("SetSyncToken failed: %v", err)
	}
	if err := store.EnsureProviderRow("todoist"); err != nil {
		t.Fatalf("EnsureProviderRow failed: %v", err)
	}

	token, err := store.GetSyncToken("todoist")
	if err != nil {
		t.Fatalf("GetSyncToken failed: %v", err)
	}
	if backend.StringValue(token) != "cursor" {
		t.Errorf("Expected token to survive, got %v", token)
	}

	var displayName string
	if err := store.DB().QueryRow("SELECT display_name FROM integrations WHERE id = ?", "todoist").Scan(&displayName); err != nil {
		t.Fatalf("Failed to read provider row: %v", err)
	}
	if displayName != "Todoist" {
		t.Errorf("Expected display name Todoist, got %q", displayName)
	}

	exists, err := store.ProviderExists("nope")
	if err != nil {
		t.Fatalf("ProviderExists failed: %v", err)
	}
	if exists {
		t.Error("Expected unknown provider not to exist")
	}
}

func TestTaskRoundTrip(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	task := backend.NewTask("t1", "Title")
	task.Description = backend.StringPtr("desc")
	task.DueTime = backend.StringPtr("09:30")
	task.ProviderMetadata = json.RawMessage(`{"k":"v"}`)

	withTx(t, store, func(tx backend.Tx) {
		if err := tx.InsertTask("todoist", task); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	})

	tasks, err := store.ListTasksForProvider("todoist")
	if err != nil {
		t.Fatalf("ListTasksForProvider failed: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("Expected 1 task, got %d", len(tasks))
	}

	got := tasks[0]
	if got.IntegrationID != "todoist" || got.Title != "Title" || got.Priority != backend.DefaultPriority {
		t.Errorf("Unexpected task: %+v", got)
	}
	if backend.StringValue(got.Description) != "desc" || backend.StringValue(got.DueTime) != "09:30" {
		t.Errorf("Optional fields lost: %+v", got)
	}
	if string(got.ProviderMetadata) != `{"k":"v"}` {
		t.Errorf("Metadata lost: %s", got.ProviderMetadata)
	}
	if got.UpdatedAt == nil || got.UpdatedAt.Unix() != task.CreatedAt.Unix() {
		t.Errorf("Expected updated_at to default to created_at, got %v", got.UpdatedAt)
	}
	if got.Labels == nil {
		t.Error("Expected non-nil labels")
	}
}

func TestUpdateTaskWritesOnlySelectedFields(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	task := backend.NewTask("t1", "Title")
	task.Notes = backend.StringPtr("notes")
	withTx(t, store, func(tx backend.Tx) {
		if err := tx.InsertTask("obsidian", task); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	})

	changed := backend.NewTask("t1", "Changed")
	changed.Notes = backend.StringPtr("other notes")
	changed.ProviderMetadata = json.RawMessage(`{"line":3}`)
	withTx(t, store, func(tx backend.Tx) {
		if err := tx.UpdateTask(changed, backend.FieldProviderMetadata); err != nil {
			t.Fatalf("UpdateTask failed: %v", err)
		}
	})

	tasks, err := store.ListTasksForProvider("obsidian")
	if err != nil {
		t.Fatalf("ListTasksForProvider failed: %v", err)
	}
	got := tasks[0]
	if got.Title != "Title" {
		t.Errorf("Title should not change, got %q", got.Title)
	}
	if backend.StringValue(got.Notes) != "notes" {
		t.Errorf("Notes should never be written by an update, got %v", got.Notes)
	}
	if string(got.ProviderMetadata) != `{"line":3}` {
		t.Errorf("Expected metadata update, got %s", got.ProviderMetadata)
	}
}

func TestUpdateTaskNotFound(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	tx, err := store.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback()

	err = tx.UpdateTask(backend.NewTask("missing", "x"), backend.FieldTitle)
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Expected not found, got %v", err)
	}
}

func TestUpsertProjectKeepsTaskReferences(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	task := backend.NewTask("t1", "Task")
	task.ProjectID = backend.StringPtr("p1")

	withTx(t, store, func(tx backend.Tx) {
		if err := tx.UpsertProject("todoist", backend.Project{ID: "p1", Name: "Old"}); err != nil {
			t.Fatalf("UpsertProject failed: %v", err)
		}
		if err := tx.InsertTask("todoist", task); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	})

	withTx(t, store, func(tx backend.Tx) {
		if err := tx.UpsertProject("todoist", backend.Project{ID: "p1", Name: "New"}); err != nil {
			t.Fatalf("UpsertProject failed: %v", err)
		}
	})

	tasks, err := store.ListTasksForProvider("todoist")
	if err != nil {
		t.Fatalf("ListTasksForProvider failed: %v", err)
	}
	if backend.StringValue(tasks[0].ProjectID) != "p1" {
		t.Errorf("Project upsert cleared the task reference")
	}

	var name, color string
	if err := store.DB().QueryRow("SELECT name, color FROM projects WHERE id = ?", "p1").Scan(&name, &color); err != nil {
		t.Fatalf("Failed to read project: %v", err)
	}
	if name != "New" || color != backend.DefaultColor {
		t.Errorf("Unexpected project row: %s %s", name, color)
	}
}

func TestInsertTaskLabelSkipsUnknownLabels(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	withTx(t, store, func(tx backend.Tx) {
		if err := tx.UpsertLabel("todoist", backend.Label{ID: "l1", Name: "one"}); err != nil {
			t.Fatalf("UpsertLabel failed: %v", err)
		}
		if err := tx.InsertTask("todoist", backend.NewTask("t1", "Task")); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
		for _, id := range []string{"l1", "ghost", "l1"} {
			if err := tx.InsertTaskLabel("t1", id); err != nil {
				t.Fatalf("InsertTaskLabel(%s) failed: %v", id, err)
			}
		}
	})

	tasks, err := store.ListTasksForProvider("todoist")
	if err != nil {
		t.Fatalf("ListTasksForProvider failed: %v", err)
	}
	if len(tasks[0].Labels) != 1 || tasks[0].Labels[0] != "l1" {
		t.Errorf("Expected labels [l1], got %v", tasks[0].Labels)
	}
}

func TestDeleteAllForProvider(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	withTx(t, store, func(tx backend.Tx) {
		for _, id := range []string{"a", "b"} {
			if err := tx.InsertTask("todoist", backend.NewTask(id, id)); err != nil {
				t.Fatalf("InsertTask failed: %v", err)
			}
		}
		if err := tx.InsertTask("msToDo", backend.NewTask("c", "c")); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	})

	tx, err := store.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	defer tx.Rollback()

	n, err := tx.DeleteAllForProvider(backend.KindTask, "todoist")
	if err != nil {
		t.Fatalf("DeleteAllForProvider failed: %v", err)
	}
	if n != 2 {
		t.Errorf("Expected 2 deleted, got %d", n)
	}

	if _, err := tx.DeleteAllForProvider(backend.EntityKind("bogus"), "todoist"); !errors.Is(err, backend.ErrInvalidState) {
		t.Errorf("Expected invalid state for unknown kind, got %v", err)
	}

	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Errorf("Rollback after commit should be a no-op, got %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, backend.ErrInvalidState) {
		t.Errorf("Expected invalid state on second commit, got %v", err)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	tx, err := store.Begin()
	if err != nil {
		t.Fatalf("Begin failed: %v", err)
	}
	if err := tx.InsertTask("todoist", backend.NewTask("t1", "Task")); err != nil {
		t.Fatalf("InsertTask failed: %v", err)
	}
	if err := tx.Rollback(); err != nil {
		t.Fatalf("Rollback failed: %v", err)
	}

	tasks, err := store.ListTasksForProvider("todoist")
	if err != nil {
		t.Fatalf("ListTasksForProvider failed: %v", err)
	}
	if len(tasks) != 0 {
		t.Errorf("Expected no tasks after rollback, got %d", len(tasks))
	}
}

func TestCompletionsAndStats(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	if err := store.EnsureOutboxTable(); err != nil {
		t.Fatalf("EnsureOutboxTable failed: %v", err)
	}
	record := backend.PendingCompletion{ID: "c1", TaskID: "t1", Provider: "todoist", ProviderTaskID: "r1", Completed: true}
	if err := store.EnqueueCompletion(record); err != nil {
		t.Fatalf("EnqueueCompletion failed: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.PendingCompletions != 1 {
		t.Errorf("Expected 1 pending completion, got %d", stats.PendingCompletions)
	}
	if stats.DatabaseSize <= 0 {
		t.Errorf("Expected positive database size")
	}

	removed, err := store.RemoveCompletion("c1")
	if err != nil || !removed {
		t.Errorf("Expected c1 removed, got %v, %v", removed, err)
	}
	removed, err = store.RemoveCompletion("c1")
	if err != nil || removed {
		t.Errorf("Expected second removal to report false, got %v, %v", removed, err)
	}
}

func TestVacuumKeepsData(t *testing.T) {
	store, cleanup := createTestStore(t)
	defer cleanup()

	withTx(t, store, func(tx backend.Tx) {
		for i := 0; i < 50; i++ {
			task := backend.NewTask(fmt.Sprintf("t%d", i), strings.Repeat("x", 512))
			if err := tx.InsertTask("todoist", task); err != nil {
				t.Fatalf("InsertTask failed: %v", err)
			}
		}
		if err := tx.InsertTask("msToDo", backend.NewTask("keep", "Keep me")); err != nil {
			t.Fatalf("InsertTask failed: %v", err)
		}
	})
	withTx(t, store, func(tx backend.Tx) {
		if _, err := tx.DeleteAllForProvider(backend.KindTask, "todoist"); err != nil {
			t.Fatalf("DeleteAllForProvider failed: %v", err)
		}
	})

	if err := store.Vacuum(); err != nil {
		t.Fatalf("Vacuum failed: %v", err)
	}

	stats, err := store.Stats()
	if err != nil {
		t.Fatalf("Stats failed: %v", err)
	}
	if stats.Tasks != 1 {
		t.Errorf("Expected 1 task after vacuum, got %d", stats.Tasks)
	}
	tasks, err := store.ListTasksForProvider("msToDo")
	if err != nil {
		t.Fatalf("ListTasksForProvider failed: %v", err)
	}
	if len(tasks) != 1 || tasks[0].Title != "Keep me" {
		t.Errorf("Expected surviving task after vacuum, got %+v", tasks)
	}
}
