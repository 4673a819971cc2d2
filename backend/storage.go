package backend

import "fmt"

// EntityKind names a provider-attributed table for bulk operations
type EntityKind string

const (
	KindTask    EntityKind = "tasks"
	KindProject EntityKind = "projects"
	KindLabel   EntityKind = "labels"
)

// TaskFields is a set of task columns an update is allowed to write.
// Columns outside the set keep their stored value.
type TaskFields uint16

const (
	FieldTitle TaskFields = 1 << iota
	FieldDescription
	FieldProject
	FieldParent
	FieldPriority
	FieldStatus
	FieldDueDate
	FieldDueTime
	FieldProviderMetadata
	FieldUpdatedAt
	FieldCompletedAt
)

// Has reports whether every field in f2 is in f
func (f TaskFields) Has(f2 TaskFields) bool {
	return f&f2 == f2
}

// Stats holds basic statistics about the local store
type Stats struct {
	Providers          int
	Tasks              int
	Projects           int
	Labels             int
	PendingCompletions int
	DatabaseSize       int64 // in bytes
}

// String returns a human-readable representation of store statistics
func (s Stats) String() string {
	sizeMB := float64(s.DatabaseSize) / (1024 * 1024)
	return fmt.Sprintf(
		"Providers: %d | Tasks: %d | Projects: %d | Labels: %d | Pending completions: %d | Size: %.2f MB",
		s.Providers, s.Tasks, s.Projects, s.Labels, s.PendingCompletions, sizeMB,
	)
}

// Store is the transactional storage surface the reconciliation engine needs.
// Implementations must serialize concurrent writers and let readers proceed
// while a write transaction is open.
type Store interface {
	// Begin opens a write transaction. The caller must Commit or Rollback it.
	Begin() (Tx, error)

	ListTasksForProvider(provider string) ([]Task, error)
	ListProjectIDsForProvider(provider string) (map[string]struct{}, error)

	// EnsureProviderRow creates the provider metadata row if it is missing.
	// An existing row is never modified.
	EnsureProviderRow(provider string) error
	ProviderExists(provider string) (bool, error)
	GetSyncToken(provider string) (*string, error)
	SetSyncToken(provider, token string) error

	EnsureOutboxTable() error
	EnqueueCompletion(record PendingCompletion) error
	// ListCompletions returns the provider's outbox, oldest first
	ListCompletions(provider string) ([]PendingCompletion, error)
	// RemoveCompletion deletes one record and reports whether it existed
	RemoveCompletion(id string) (bool, error)

	Stats() (Stats, error)
	Close() error
}

// Tx is a single write transaction. Rollback after Commit is a no-op, so
// callers can always defer it.
type Tx interface {
	UpsertProject(provider string, project Project) error
	UpsertLabel(provider string, label Label) error
	InsertTask(provider string, task Task) error
	// UpdateTask writes only the given fields of an existing task
	UpdateTask(task Task, fields TaskFields) error
	DeleteTask(id string) error
	DeleteTaskLabels(taskID string) error
	// InsertTaskLabel links a task to a label. Links to unknown labels are skipped.
	InsertTaskLabel(taskID, labelID string) error
	// DeleteAllForProvider removes every row of kind attributed to provider
	// and returns how many were removed.
	DeleteAllForProvider(kind EntityKind, provider string) (int, error)

	Commit() error
	Rollback() error
}
