package reconcile

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"tasksync/backend"
	"tasksync/internal/utils"
)

// EnqueueCompletion records a local completion (or un-completion) that still
// has to be pushed to provider.
func (e *Engine) EnqueueCompletion(taskID, provider, providerTaskID string, completed bool) (*backend.PendingCompletion, error) {
	const op = "EnqueueCompletion"

	if strings.TrimSpace(taskID) == "" {
		return nil, backend.NewInvalidStateError(op, "task id is empty").WithProvider(provider)
	}
	if err := validateProvider(op, provider); err != nil {
		return nil, err
	}
	if err := e.store.EnsureOutboxTable(); err != nil {
		return nil, withProvider(op, err, provider)
	}

	now := time.Now()
	record := backend.PendingCompletion{
		ID:             uuid.NewString(),
		TaskID:         taskID,
		Provider:       provider,
		ProviderTaskID: providerTaskID,
		Completed:      completed,
		CreatedAt:      now,
		RetryCount:     0,
	}
	if completed {
		record.CompletedAt = &now
	}

	if err := e.store.EnqueueCompletion(record); err != nil {
		return nil, withProvider(op, err, provider)
	}

	utils.Debugf("Queued completion %s for task %s (%s, completed=%v)", record.ID, taskID, provider, completed)
	return &record, nil
}

// ListPendingCompletions returns the outbox of provider, oldest first
func (e *Engine) ListPendingCompletions(provider string) ([]backend.PendingCompletion, error) {
	const op = "ListPendingCompletions"

	if err := validateProvider(op, provider); err != nil {
		return nil, err
	}
	if err := e.store.EnsureOutboxTable(); err != nil {
		return nil, withProvider(op, err, provider)
	}

	completions, err := e.store.ListCompletions(provider)
	if err != nil {
		return nil, withProvider(op, err, provider)
	}
	return completions, nil
}

// MarkCompletionSynced removes an outbox record once it has been pushed
func (e *Engine) MarkCompletionSynced(id string) error {
	const op = "MarkCompletionSynced"

	if err := e.store.EnsureOutboxTable(); err != nil {
		return backend.AsSyncError(op, err)
	}

	removed, err := e.store.RemoveCompletion(id)
	if err != nil {
		return backend.AsSyncError(op, err)
	}
	if !removed {
		return backend.NewNotFoundError(op, id)
	}

	utils.Debugf("Completion %s marked as synced", id)
	return nil
}
