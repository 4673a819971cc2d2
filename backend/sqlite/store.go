package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"tasksync/backend"
)

// Options configures a Store
type Options struct {
	// DBPath is the database file. Empty selects the XDG data location.
	DBPath string
	// BusyTimeoutMS bounds how long a writer waits for another writer's lock.
	// Zero selects DefaultBusyTimeoutMS.
	BusyTimeoutMS int
}

// providerInfo is the display metadata recorded when a provider row is first created
type providerInfo struct {
	displayName string
	color       string
	icon        string
}

var knownProviders = map[string]providerInfo{
	"todoist":  {displayName: "Todoist", color: "#E44332", icon: "check-circle"},
	"msToDo":   {displayName: "Microsoft To-Do", color: "#00A4EF", icon: "layout-grid"},
	"obsidian": {displayName: "Obsidian", color: "#7C3AED", icon: "file-text"},
}

// Store implements backend.Store on a local SQLite database
type Store struct {
	db *Database
}

var _ backend.Store = (*Store)(nil)

// Open creates a Store, initializing the schema if needed
func Open(opts Options) (*Store, error) {
	db, err := InitDatabase(opts.DBPath, opts.BusyTimeoutMS)
	if err != nil {
		return nil, backend.NewStorageError("Open", err)
	}
	return &Store{db: db}, nil
}

// DB exposes the underlying database, mainly for tests and maintenance commands
func (s *Store) DB() *Database {
	return s.db
}

// Path returns the database file path
func (s *Store) Path() string {
	return s.db.Path()
}

// Close closes the database connection
func (s *Store) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Vacuum compacts the database file
func (s *Store) Vacuum() error {
	if err := s.db.Vacuum(); err != nil {
		return backend.NewStorageError("Vacuum", err)
	}
	return nil
}

// Begin opens a write transaction
func (s *Store) Begin() (backend.Tx, error) {
	sqlTx, err := s.db.Begin()
	if err != nil {
		return nil, backend.NewStorageError("Begin", err)
	}
	return &tx{tx: sqlTx}, nil
}

// ListTasksForProvider returns every task attributed to provider, with label ids
func (s *Store) ListTasksForProvider(provider string) ([]backend.Task, error) {
	rows, err := s.db.Query(`
		SELECT id, external_id, integration_id, title, description, project_id, parent_id,
		       priority, status, due_date, due_time, notes, provider_metadata,
		       created_at, updated_at, completed_at
		FROM tasks
		WHERE integration_id = ?
		ORDER BY created_at ASC, id ASC
	`, provider)
	if err != nil {
		return nil, backend.NewStorageError("ListTasksForProvider", err).WithProvider(provider)
	}
	defer rows.Close()

	tasks, err := scanTasks(rows)
	if err != nil {
		return nil, backend.NewStorageError("ListTasksForProvider", err).WithProvider(provider)
	}

	labels, err := s.taskLabelsForProvider(provider)
	if err != nil {
		return nil, backend.NewStorageError("ListTasksForProvider", err).WithProvider(provider)
	}
	for i := range tasks {
		if ids, ok := labels[tasks[i].ID]; ok {
			tasks[i].Labels = ids
		}
	}

	return tasks, nil
}

// scanTasks scans task rows from a query result
func scanTasks(rows *sql.Rows) ([]backend.Task, error) {
	var tasks []backend.Task

	for rows.Next() {
		var task backend.Task
		var externalID, description, projectID, parentID, dueTime, notes, metadata sql.NullString
		var createdAt, updatedAt, dueDate, completedAt sql.NullInt64

		err := rows.Scan(
			&task.ID,
			&externalID,
			&task.IntegrationID,
			&task.Title,
			&description,
			&projectID,
			&parentID,
			&task.Priority,
			&task.Status,
			&dueDate,
			&dueTime,
			&notes,
			&metadata,
			&createdAt,
			&updatedAt,
			&completedAt,
		)
		if err != nil {
			return nil, err
		}

		task.ExternalID = stringPtr(externalID)
		task.Description = stringPtr(description)
		task.ProjectID = stringPtr(projectID)
		task.ParentID = stringPtr(parentID)
		task.DueTime = stringPtr(dueTime)
		task.Notes = stringPtr(notes)
		task.ProviderMetadata = nullStringToRaw(metadata)
		task.Labels = []string{}

		if createdAt.Valid {
			task.CreatedAt = time.Unix(createdAt.Int64, 0)
		}
		task.DueDate = timePtr(dueDate)
		task.UpdatedAt = timePtr(updatedAt)
		task.CompletedAt = timePtr(completedAt)

		tasks = append(tasks, task)
	}

	return tasks, rows.Err()
}

// taskLabelsForProvider maps task id to its label ids for one provider
func (s *Store) taskLabelsForProvider(provider string) (map[string][]string, error) {
	rows, err := s.db.Query(`
		SELECT tl.task_id, tl.label_id
		FROM task_labels tl
		INNER JOIN tasks t ON t.id = tl.task_id
		WHERE t.integration_id = ?
		ORDER BY tl.task_id, tl.label_id
	`, provider)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	labels := make(map[string][]string)
	for rows.Next() {
		var taskID, labelID string
		if err := rows.Scan(&taskID, &labelID); err != nil {
			return nil, err
		}
		labels[taskID] = append(labels[taskID], labelID)
	}
	return labels, rows.Err()
}

// ListProjectIDsForProvider returns the ids of all persisted projects of provider
func (s *Store) ListProjectIDsForProvider(provider string) (map[string]struct{}, error) {
	rows, err := s.db.Query("SELECT id FROM projects WHERE integration_id = ?", provider)
	if err != nil {
		return nil, backend.NewStorageError("ListProjectIDsForProvider", err).WithProvider(provider)
	}
	defer rows.Close()

	ids := make(map[string]struct{})
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, backend.NewStorageError("ListProjectIDsForProvider", err).WithProvider(provider)
		}
		ids[id] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, backend.NewStorageError("ListProjectIDsForProvider", err).WithProvider(provider)
	}
	return ids, nil
}

// EnsureProviderRow inserts the provider metadata row if it does not exist
func (s *Store) EnsureProviderRow(provider string) error {
	info, ok := knownProviders[provider]
	if !ok {
		info = providerInfo{displayName: provider, color: backend.DefaultColor, icon: "database"}
	}

	_, err := s.db.Exec(`
		INSERT OR IGNORE INTO integrations (id, name, display_name, color, icon, is_active, is_configured, created_at)
		VALUES (?, ?, ?, ?, ?, 1, 1, ?)
	`, provider, provider, info.displayName, info.color, info.icon, time.Now().Unix())
	if err != nil {
		return backend.NewStorageError("EnsureProviderRow", err).WithProvider(provider)
	}
	return nil
}

// ProviderExists reports whether a provider row has been created
func (s *Store) ProviderExists(provider string) (bool, error) {
	n, err := s.db.countRows("SELECT COUNT(*) FROM integrations WHERE id = ?", provider)
	if err != nil {
		return false, backend.NewStorageError("ProviderExists", err).WithProvider(provider)
	}
	return n > 0, nil
}

// GetSyncToken returns the stored cursor, or nil when none is stored
func (s *Store) GetSyncToken(provider string) (*string, error) {
	var token sql.NullString
	err := s.db.QueryRow("SELECT sync_token FROM integrations WHERE id = ?", provider).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, backend.NewStorageError("GetSyncToken", err).WithProvider(provider)
	}
	return stringPtr(token), nil
}

// SetSyncToken stores the cursor and stamps the last sync time
func (s *Store) SetSyncToken(provider, token string) error {
	if err := s.EnsureProviderRow(provider); err != nil {
		return err
	}
	_, err := s.db.Exec(
		"UPDATE integrations SET sync_token = ?, last_sync_at = ? WHERE id = ?",
		token, time.Now().Unix(), provider,
	)
	if err != nil {
		return backend.NewStorageError("SetSyncToken", err).WithProvider(provider)
	}
	return nil
}

// EnsureOutboxTable creates the pending completions table if it is missing
func (s *Store) EnsureOutboxTable() error {
	if _, err := s.db.Exec(PendingCompletionsTableSQL); err != nil {
		return backend.NewStorageError("EnsureOutboxTable", err)
	}
	if _, err := s.db.Exec(PendingCompletionsIndexesSQL); err != nil {
		return backend.NewStorageError("EnsureOutboxTable", err)
	}
	return nil
}

// EnqueueCompletion stores an outbox record, replacing any record with the same id
func (s *Store) EnqueueCompletion(record backend.PendingCompletion) error {
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO pending_completions
		(id, task_id, provider, provider_task_id, completed, completed_at, created_at, retry_count)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		record.ID,
		record.TaskID,
		record.Provider,
		record.ProviderTaskID,
		boolToInt(record.Completed),
		timeToNullInt64(record.CompletedAt),
		record.CreatedAt.Unix(),
		record.RetryCount,
	)
	if err != nil {
		return backend.NewStorageError("EnqueueCompletion", err).WithProvider(record.Provider).WithID(record.ID)
	}
	return nil
}

// ListCompletions returns the provider's outbox in creation order
func (s *Store) ListCompletions(provider string) ([]backend.PendingCompletion, error) {
	rows, err := s.db.Query(`
		SELECT id, task_id, provider, provider_task_id, completed, completed_at, created_at, retry_count
		FROM pending_completions
		WHERE provider = ?
		ORDER BY created_at ASC, rowid ASC
	`, provider)
	if err != nil {
		return nil, backend.NewStorageError("ListCompletions", err).WithProvider(provider)
	}
	defer rows.Close()

	completions := []backend.PendingCompletion{}
	for rows.Next() {
		var c backend.PendingCompletion
		var completed int
		var completedAt sql.NullInt64
		var createdAt int64
		var retryCount sql.NullInt64

		if err := rows.Scan(&c.ID, &c.TaskID, &c.Provider, &c.ProviderTaskID,
			&completed, &completedAt, &createdAt, &retryCount); err != nil {
			return nil, backend.NewStorageError("ListCompletions", err).WithProvider(provider)
		}
		c.Completed = completed != 0
		c.CompletedAt = timePtr(completedAt)
		c.CreatedAt = time.Unix(createdAt, 0)
		c.RetryCount = int(retryCount.Int64)
		completions = append(completions, c)
	}
	if err := rows.Err(); err != nil {
		return nil, backend.NewStorageError("ListCompletions", err).WithProvider(provider)
	}
	return completions, nil
}

// RemoveCompletion deletes one outbox record and reports whether it existed
func (s *Store) RemoveCompletion(id string) (bool, error) {
	result, err := s.db.Exec("DELETE FROM pending_completions WHERE id = ?", id)
	if err != nil {
		return false, backend.NewStorageError("RemoveCompletion", err).WithID(id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, backend.NewStorageError("RemoveCompletion", err).WithID(id)
	}
	return n > 0, nil
}

// Stats returns basic database statistics
func (s *Store) Stats() (backend.Stats, error) {
	stats := backend.Stats{}

	counts := []struct {
		query string
		dst   *int
	}{
		{"SELECT COUNT(*) FROM integrations", &stats.Providers},
		{"SELECT COUNT(*) FROM tasks", &stats.Tasks},
		{"SELECT COUNT(*) FROM projects", &stats.Projects},
		{"SELECT COUNT(*) FROM labels", &stats.Labels},
		{"SELECT COUNT(*) FROM pending_completions", &stats.PendingCompletions},
	}
	for _, c := range counts {
		n, err := s.db.countRows(c.query)
		if err != nil {
			return stats, backend.NewStorageError("Stats", fmt.Errorf("%s: %w", c.query, err))
		}
		*c.dst = n
	}

	fileInfo, err := os.Stat(s.db.Path())
	if err != nil {
		return stats, backend.NewStorageError("Stats", fmt.Errorf("failed to stat database file: %w", err))
	}
	stats.DatabaseSize = fileInfo.Size()

	return stats, nil
}
