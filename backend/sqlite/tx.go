package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"tasksync/backend"
)

// tx implements backend.Tx on a *sql.Tx
type tx struct {
	tx   *sql.Tx
	done bool
}

// Commit commits the transaction
func (t *tx) Commit() error {
	if t.done {
		return backend.NewInvalidStateError("Commit", "transaction already finished")
	}
	t.done = true
	if err := t.tx.Commit(); err != nil {
		return backend.NewStorageError("Commit", err)
	}
	return nil
}

// Rollback aborts the transaction. It is a no-op once the transaction has finished.
func (t *tx) Rollback() error {
	if t.done {
		return nil
	}
	t.done = true
	if err := t.tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
		return backend.NewStorageError("Rollback", err)
	}
	return nil
}

// UpsertProject inserts a project or updates it in place. ON CONFLICT is used
// instead of INSERT OR REPLACE because REPLACE deletes the old row first,
// which would null out every task's project_id through the foreign key.
func (t *tx) UpsertProject(provider string, p backend.Project) error {
	_, err := t.tx.Exec(`
		INSERT INTO projects (id, external_id, integration_id, name, description,
		                      color, icon, parent_id, sort_order, is_favorite,
		                      is_archived, provider_metadata, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			integration_id = excluded.integration_id,
			name = excluded.name,
			description = excluded.description,
			color = excluded.color,
			icon = excluded.icon,
			parent_id = excluded.parent_id,
			sort_order = excluded.sort_order,
			is_favorite = excluded.is_favorite,
			is_archived = excluded.is_archived,
			provider_metadata = excluded.provider_metadata,
			updated_at = excluded.updated_at
	`,
		p.ID,
		nullStringPtr(p.ExternalID),
		provider,
		p.Name,
		nullStringPtr(p.Description),
		colorOrDefault(p.Color),
		nullStringPtr(p.Icon),
		nullStringPtr(p.ParentID),
		p.SortOrder,
		boolToInt(p.IsFavorite),
		boolToInt(p.IsArchived),
		rawToNullString(p.ProviderMetadata),
		createdOrNow(p.CreatedAt),
		timeToNullInt64(p.UpdatedAt),
	)
	if err != nil {
		return backend.NewStorageError("UpsertProject", err).WithProvider(provider).WithID(p.ID)
	}
	return nil
}

// UpsertLabel inserts a label or updates it in place, keeping task links intact
func (t *tx) UpsertLabel(provider string, l backend.Label) error {
	_, err := t.tx.Exec(`
		INSERT INTO labels (id, external_id, integration_id, name, color,
		                    description, sort_order, is_favorite,
		                    provider_metadata, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			external_id = excluded.external_id,
			integration_id = excluded.integration_id,
			name = excluded.name,
			color = excluded.color,
			description = excluded.description,
			sort_order = excluded.sort_order,
			is_favorite = excluded.is_favorite,
			provider_metadata = excluded.provider_metadata
	`,
		l.ID,
		nullStringPtr(l.ExternalID),
		provider,
		l.Name,
		colorOrDefault(l.Color),
		nullStringPtr(l.Description),
		l.SortOrder,
		boolToInt(l.IsFavorite),
		rawToNullString(l.ProviderMetadata),
		createdOrNow(l.CreatedAt),
	)
	if err != nil {
		return backend.NewStorageError("UpsertLabel", err).WithProvider(provider).WithID(l.ID)
	}
	return nil
}

// InsertTask inserts a new task attributed to provider
func (t *tx) InsertTask(provider string, task backend.Task) error {
	created := task.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	updated := task.UpdatedAt
	if updated == nil {
		updated = &created
	}

	_, err := t.tx.Exec(`
		INSERT INTO tasks (id, external_id, integration_id, title, description, project_id,
		                   parent_id, priority, status, due_date, due_time, notes,
		                   provider_metadata, created_at, updated_at, completed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		task.ID,
		nullStringPtr(task.ExternalID),
		provider,
		task.Title,
		nullStringPtr(task.Description),
		nullStringPtr(task.ProjectID),
		nullStringPtr(task.ParentID),
		task.Priority,
		statusOrDefault(task.Status),
		timeToNullInt64(task.DueDate),
		nullStringPtr(task.DueTime),
		nullStringPtr(task.Notes),
		rawToNullString(task.ProviderMetadata),
		created.Unix(),
		timeToNullInt64(updated),
		timeToNullInt64(task.CompletedAt),
	)
	if err != nil {
		return backend.NewStorageError("InsertTask", err).WithProvider(provider).WithID(task.ID)
	}
	return nil
}

// UpdateTask writes the selected sync-owned columns of an existing task.
// Host-owned columns (notes, created_at, external_id) are never touched.
func (t *tx) UpdateTask(task backend.Task, fields backend.TaskFields) error {
	var sets []string
	var args []interface{}

	add := func(f backend.TaskFields, column string, value interface{}) {
		if fields.Has(f) {
			sets = append(sets, column+" = ?")
			args = append(args, value)
		}
	}

	add(backend.FieldTitle, "title", task.Title)
	add(backend.FieldDescription, "description", nullStringPtr(task.Description))
	add(backend.FieldProject, "project_id", nullStringPtr(task.ProjectID))
	add(backend.FieldParent, "parent_id", nullStringPtr(task.ParentID))
	add(backend.FieldPriority, "priority", task.Priority)
	add(backend.FieldStatus, "status", statusOrDefault(task.Status))
	add(backend.FieldDueDate, "due_date", timeToNullInt64(task.DueDate))
	add(backend.FieldDueTime, "due_time", nullStringPtr(task.DueTime))
	add(backend.FieldProviderMetadata, "provider_metadata", rawToNullString(task.ProviderMetadata))
	if fields.Has(backend.FieldUpdatedAt) {
		updated := task.UpdatedAt
		if updated == nil {
			updated = &task.CreatedAt
		}
		add(backend.FieldUpdatedAt, "updated_at", timeToNullInt64(updated))
	}
	add(backend.FieldCompletedAt, "completed_at", timeToNullInt64(task.CompletedAt))

	if len(sets) == 0 {
		return nil
	}

	query := fmt.Sprintf("UPDATE tasks SET %s WHERE id = ?", strings.Join(sets, ", "))
	args = append(args, task.ID)

	result, err := t.tx.Exec(query, args...)
	if err != nil {
		return backend.NewStorageError("UpdateTask", err).WithID(task.ID)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return backend.NewStorageError("UpdateTask", err).WithID(task.ID)
	}
	if n == 0 {
		return backend.NewNotFoundError("UpdateTask", task.ID)
	}
	return nil
}

// DeleteTask deletes a task by id. Label links cascade; children keep
// existing with parent_id cleared.
func (t *tx) DeleteTask(id string) error {
	if _, err := t.tx.Exec("DELETE FROM tasks WHERE id = ?", id); err != nil {
		return backend.NewStorageError("DeleteTask", err).WithID(id)
	}
	return nil
}

// DeleteTaskLabels removes all label links of a task
func (t *tx) DeleteTaskLabels(taskID string) error {
	if _, err := t.tx.Exec("DELETE FROM task_labels WHERE task_id = ?", taskID); err != nil {
		return backend.NewStorageError("DeleteTaskLabels", err).WithID(taskID)
	}
	return nil
}

// InsertTaskLabel links a task to a label. The SELECT form skips label ids
// that do not exist, so a dangling reference never violates the foreign key.
func (t *tx) InsertTaskLabel(taskID, labelID string) error {
	_, err := t.tx.Exec(`
		INSERT OR IGNORE INTO task_labels (task_id, label_id)
		SELECT ?, id FROM labels WHERE id = ?
	`, taskID, labelID)
	if err != nil {
		return backend.NewStorageError("InsertTaskLabel", err).WithID(taskID)
	}
	return nil
}

// DeleteAllForProvider removes every row of kind attributed to provider
func (t *tx) DeleteAllForProvider(kind backend.EntityKind, provider string) (int, error) {
	var query string
	switch kind {
	case backend.KindTask:
		query = "DELETE FROM tasks WHERE integration_id = ?"
	case backend.KindProject:
		query = "DELETE FROM projects WHERE integration_id = ?"
	case backend.KindLabel:
		query = "DELETE FROM labels WHERE integration_id = ?"
	default:
		return 0, backend.NewInvalidStateError("DeleteAllForProvider", fmt.Sprintf("unknown entity kind %q", kind))
	}

	result, err := t.tx.Exec(query, provider)
	if err != nil {
		return 0, backend.NewStorageError("DeleteAllForProvider", fmt.Errorf("%s: %w", kind, err)).WithProvider(provider)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, backend.NewStorageError("DeleteAllForProvider", err).WithProvider(provider)
	}
	return int(n), nil
}

func colorOrDefault(color string) string {
	if color == "" {
		return backend.DefaultColor
	}
	return color
}

func statusOrDefault(status string) string {
	if status == "" {
		return backend.DefaultStatus
	}
	return status
}

func createdOrNow(t time.Time) int64 {
	if t.IsZero() {
		return time.Now().Unix()
	}
	return t.Unix()
}
