package sqlite

import "fmt"

// Schema version for migration management
const SchemaVersion = 1

// DefaultBusyTimeoutMS is how long a connection waits on a locked database
// before giving up with SQLITE_BUSY.
const DefaultBusyTimeoutMS = 5000

// SQL statements for database schema creation

// SchemaVersionTableSQL creates the schema version table for migration tracking
const SchemaVersionTableSQL = `
CREATE TABLE IF NOT EXISTS schema_version (
    version INTEGER PRIMARY KEY,
    applied_at INTEGER NOT NULL
);
`

// IntegrationsTableSQL creates the per-provider metadata table holding the sync cursor
const IntegrationsTableSQL = `
CREATE TABLE IF NOT EXISTS integrations (
    id TEXT PRIMARY KEY,
    name TEXT NOT NULL,
    display_name TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '#808080',
    icon TEXT,
    is_active INTEGER NOT NULL DEFAULT 1,
    is_configured INTEGER NOT NULL DEFAULT 1,
    sync_token TEXT,
    last_sync_at INTEGER,
    created_at INTEGER NOT NULL
);
`

// ProjectsTableSQL creates the projects table
const ProjectsTableSQL = `
CREATE TABLE IF NOT EXISTS projects (
    id TEXT PRIMARY KEY,
    external_id TEXT,
    integration_id TEXT NOT NULL,
    name TEXT NOT NULL,
    description TEXT,
    color TEXT NOT NULL DEFAULT '#808080',
    icon TEXT,
    parent_id TEXT,
    sort_order INTEGER NOT NULL DEFAULT 0,
    is_favorite INTEGER NOT NULL DEFAULT 0,
    is_archived INTEGER NOT NULL DEFAULT 0,
    provider_metadata TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER
);
`

// LabelsTableSQL creates the labels table
const LabelsTableSQL = `
CREATE TABLE IF NOT EXISTS labels (
    id TEXT PRIMARY KEY,
    external_id TEXT,
    integration_id TEXT NOT NULL,
    name TEXT NOT NULL,
    color TEXT NOT NULL DEFAULT '#808080',
    description TEXT,
    sort_order INTEGER NOT NULL DEFAULT 0,
    is_favorite INTEGER NOT NULL DEFAULT 0,
    provider_metadata TEXT,
    created_at INTEGER NOT NULL
);
`

// TasksTableSQL creates the main tasks table. notes is host-owned: sync
// updates never write it.
const TasksTableSQL = `
CREATE TABLE IF NOT EXISTS tasks (
    id TEXT PRIMARY KEY,
    external_id TEXT,
    integration_id TEXT NOT NULL,
    title TEXT NOT NULL,
    description TEXT,
    project_id TEXT,
    parent_id TEXT,
    priority INTEGER NOT NULL DEFAULT 2,
    status TEXT NOT NULL DEFAULT 'pending',
    due_date INTEGER,
    due_time TEXT,
    notes TEXT,
    provider_metadata TEXT,
    created_at INTEGER NOT NULL,
    updated_at INTEGER,
    completed_at INTEGER,

    FOREIGN KEY(project_id) REFERENCES projects(id) ON DELETE SET NULL,
    FOREIGN KEY(parent_id) REFERENCES tasks(id) ON DELETE SET NULL
);
`

// TaskLabelsTableSQL creates the task/label junction table
const TaskLabelsTableSQL = `
CREATE TABLE IF NOT EXISTS task_labels (
    task_id TEXT NOT NULL,
    label_id TEXT NOT NULL,
    PRIMARY KEY (task_id, label_id),

    FOREIGN KEY(task_id) REFERENCES tasks(id) ON DELETE CASCADE,
    FOREIGN KEY(label_id) REFERENCES labels(id) ON DELETE CASCADE
);
`

// PendingCompletionsTableSQL creates the outbox of completions waiting to be pushed upstream
const PendingCompletionsTableSQL = `
CREATE TABLE IF NOT EXISTS pending_completions (
    id TEXT PRIMARY KEY,
    task_id TEXT NOT NULL,
    provider TEXT NOT NULL,
    provider_task_id TEXT NOT NULL,
    completed INTEGER NOT NULL,
    completed_at INTEGER,
    created_at INTEGER NOT NULL,
    retry_count INTEGER DEFAULT 0
);
`

// Index creation statements for performance optimization

// TasksIndexesSQL creates indexes on tasks table for common queries
const TasksIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_tasks_integration_id ON tasks(integration_id);
CREATE INDEX IF NOT EXISTS idx_tasks_project_id ON tasks(project_id);
CREATE INDEX IF NOT EXISTS idx_tasks_parent_id ON tasks(parent_id);
CREATE INDEX IF NOT EXISTS idx_tasks_status ON tasks(status);
`

// EntityIndexesSQL creates indexes for per-provider project and label lookups
const EntityIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_projects_integration_id ON projects(integration_id);
CREATE INDEX IF NOT EXISTS idx_labels_integration_id ON labels(integration_id);
CREATE INDEX IF NOT EXISTS idx_task_labels_label_id ON task_labels(label_id);
`

// PendingCompletionsIndexesSQL creates indexes on the outbox table
const PendingCompletionsIndexesSQL = `
CREATE INDEX IF NOT EXISTS idx_pending_completions_provider ON pending_completions(provider, created_at);
`

// AllTableSchemas returns all table creation statements in dependency order
func AllTableSchemas() []string {
	return []string{
		SchemaVersionTableSQL,
		IntegrationsTableSQL,
		ProjectsTableSQL,
		LabelsTableSQL,
		TasksTableSQL,
		TaskLabelsTableSQL,
		PendingCompletionsTableSQL,
	}
}

// AllIndexes returns all index creation statements
func AllIndexes() []string {
	return []string{
		TasksIndexesSQL,
		EntityIndexesSQL,
		PendingCompletionsIndexesSQL,
	}
}

// PragmaStatements returns the pragmas every connection runs, in the
// modernc.org/sqlite "_pragma" DSN form.
func PragmaStatements(busyTimeoutMS int) []string {
	if busyTimeoutMS <= 0 {
		busyTimeoutMS = DefaultBusyTimeoutMS
	}
	return []string{
		"foreign_keys(1)",
		"journal_mode(WAL)",   // Write-Ahead Logging: readers are not blocked by a writer
		"synchronous(NORMAL)", // Balance between safety and performance
		fmt.Sprintf("busy_timeout(%d)", busyTimeoutMS),
	}
}
