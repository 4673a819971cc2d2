package reconcile

import (
	"errors"
	"testing"

	"tasksync/backend"
)

func TestEnqueueCompletion(t *testing.T) {
	engine, _, cleanup := createTestEngine(t)
	defer cleanup()

	record, err := engine.EnqueueCompletion("t1", "todoist", "remote-1", true)
	if err != nil {
		t.Fatalf("EnqueueCompletion failed: %v", err)
	}
	if record.ID == "" {
		t.Error("Expected a generated id")
	}
	if record.CompletedAt == nil {
		t.Error("Expected completed_at to be set for a completion")
	}
	if record.RetryCount != 0 {
		t.Errorf("Expected retry count 0, got %d", record.RetryCount)
	}

	undo, err := engine.EnqueueCompletion("t1", "todoist", "remote-1", false)
	if err != nil {
		t.Fatalf("EnqueueCompletion failed: %v", err)
	}
	if undo.CompletedAt != nil {
		t.Error("Expected no completed_at for an un-completion")
	}
	if undo.ID == record.ID {
		t.Error("Expected distinct ids")
	}
}

func TestEnqueueCompletionValidation(t *testing.T) {
	engine, _, cleanup := createTestEngine(t)
	defer cleanup()

	if _, err := engine.EnqueueCompletion("", "todoist", "r", true); !errors.Is(err, backend.ErrInvalidState) {
		t.Errorf("Expected invalid state for empty task id, got %v", err)
	}
	if _, err := engine.EnqueueCompletion("t1", "", "r", true); !errors.Is(err, backend.ErrInvalidState) {
		t.Errorf("Expected invalid state for empty provider, got %v", err)
	}
}

func TestListPendingCompletionsOrder(t *testing.T) {
	engine, _, cleanup := createTestEngine(t)
	defer cleanup()

	var ids []string
	for _, taskID := range []string{"t1", "t2", "t3"} {
		record, err := engine.EnqueueCompletion(taskID, "todoist", "r-"+taskID, true)
		if err != nil {
			t.Fatalf("EnqueueCompletion failed: %v", err)
		}
		ids = append(ids, record.ID)
	}
	if _, err := engine.EnqueueCompletion("m1", "msToDo", "r-m1", true); err != nil {
		t.Fatalf("EnqueueCompletion failed: %v", err)
	}

	pending, err := engine.ListPendingCompletions("todoist")
	if err != nil {
		t.Fatalf("ListPendingCompletions failed: %v", err)
	}
	if len(pending) != 3 {
		t.Fatalf("Expected 3 pending completions, got %d", len(pending))
	}
	for i, c := range pending {
		if c.ID != ids[i] {
			t.Errorf("Position %d: expected %s, got %s", i, ids[i], c.ID)
		}
		if c.Provider != "todoist" {
			t.Errorf("Unexpected provider %q", c.Provider)
		}
	}

	empty, err := engine.ListPendingCompletions("obsidian")
	if err != nil {
		t.Fatalf("ListPendingCompletions failed: %v", err)
	}
	if empty == nil || len(empty) != 0 {
		t.Errorf("Expected empty non-nil list, got %v", empty)
	}
}

func TestMarkCompletionSynced(t *testing.T) {
	engine, _, cleanup := createTestEngine(t)
	defer cleanup()

	record, err := engine.EnqueueCompletion("t1", "todoist", "r1", true)
	if err != nil {
		t.Fatalf("EnqueueCompletion failed: %v", err)
	}

	if err := engine.MarkCompletionSynced(record.ID); err != nil {
		t.Fatalf("MarkCompletionSynced failed: %v", err)
	}

	pending, err := engine.ListPendingCompletions("todoist")
	if err != nil {
		t.Fatalf("ListPendingCompletions failed: %v", err)
	}
	if len(pending) != 0 {
		t.Errorf("Expected empty outbox, got %d", len(pending))
	}

	err = engine.MarkCompletionSynced(record.ID)
	if !errors.Is(err, backend.ErrNotFound) {
		t.Errorf("Expected not found on second ack, got %v", err)
	}
}
