package reconcile

import (
	"errors"
	"path/filepath"
	"testing"

	"tasksync/backend"
	"tasksync/backend/sqlite"
)

// createTestStore opens a fresh SQLite store in a temp directory
func createTestStore(t *testing.T) (*sqlite.Store, func()) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	store, err := sqlite.Open(sqlite.Options{DBPath: dbPath})
	if err != nil {
		t.Fatalf("Failed to open store: %v", err)
	}

	cleanup := func() {
		store.Close()
	}
	return store, cleanup
}

// createTestEngine returns an engine over a fresh store
func createTestEngine(t *testing.T) (*Engine, *sqlite.Store, func()) {
	t.Helper()
	store, cleanup := createTestStore(t)
	return New(store), store, cleanup
}

// task builds a remote task with optional parent and project
func task(id, title string, parent, project string, labels ...string) backend.Task {
	t := backend.NewTask(id, title)
	if parent != "" {
		t.ParentID = backend.StringPtr(parent)
	}
	if project != "" {
		t.ProjectID = backend.StringPtr(project)
	}
	if labels != nil {
		t.Labels = labels
	}
	return t
}

func project(id, name string) backend.Project {
	return backend.Project{ID: id, Name: name, Color: backend.DefaultColor}
}

func label(id, name string) backend.Label {
	return backend.Label{ID: id, Name: name, Color: backend.DefaultColor}
}

// tasksByID indexes stored tasks of provider
func tasksByID(t *testing.T, store backend.Store, provider string) map[string]backend.Task {
	t.Helper()
	tasks, err := store.ListTasksForProvider(provider)
	if err != nil {
		t.Fatalf("ListTasksForProvider failed: %v", err)
	}
	m := make(map[string]backend.Task, len(tasks))
	for _, task := range tasks {
		m[task.ID] = task
	}
	return m
}

// errInjected is returned by faultStore when its write budget runs out
var errInjected = errors.New("injected failure")

// faultStore wraps a Store so the Nth task write of a transaction fails
type faultStore struct {
	backend.Store
	failOnWrite int
}

func (s *faultStore) Begin() (backend.Tx, error) {
	tx, err := s.Store.Begin()
	if err != nil {
		return nil, err
	}
	return &faultTx{Tx: tx, failOnWrite: s.failOnWrite}, nil
}

type faultTx struct {
	backend.Tx
	failOnWrite int
	writes      int
}

func (tx *faultTx) countWrite() error {
	tx.writes++
	if tx.writes == tx.failOnWrite {
		return errInjected
	}
	return nil
}

func (tx *faultTx) InsertTask(provider string, task backend.Task) error {
	if err := tx.countWrite(); err != nil {
		return err
	}
	return tx.Tx.InsertTask(provider, task)
}

func (tx *faultTx) UpdateTask(task backend.Task, fields backend.TaskFields) error {
	if err := tx.countWrite(); err != nil {
		return err
	}
	return tx.Tx.UpdateTask(task, fields)
}
