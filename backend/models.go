package backend

import (
	"encoding/json"
	"time"
)

// Defaults applied when a field is missing from a provider payload
const (
	DefaultPriority      = 2
	DefaultStatus        = StatusPending
	DefaultColor         = "#808080"
	DefaultIntegrationID = "local_tasks"
)

// Task statuses with special meaning to the engine. Any other status string
// is stored as-is.
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
)

// Task is a single to-do item as delivered by a provider or read back from storage.
type Task struct {
	ID               string          `json:"id"`
	ExternalID       *string         `json:"external_id,omitempty"`
	IntegrationID    string          `json:"integration_id"`
	Title            string          `json:"title"`
	Description      *string         `json:"description,omitempty"`
	ProjectID        *string         `json:"project_id,omitempty"`
	ParentID         *string         `json:"parent_id,omitempty"`
	Priority         int             `json:"priority"`
	Status           string          `json:"status"`
	DueDate          *time.Time      `json:"due_date,omitempty"`
	DueTime          *string         `json:"due_time,omitempty"`
	Notes            *string         `json:"notes,omitempty"`
	ProviderMetadata json.RawMessage `json:"provider_metadata,omitempty"`
	Labels           []string        `json:"labels"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
	CompletedAt      *time.Time      `json:"completed_at,omitempty"`
}

// NewTask returns a task with all defaults applied
func NewTask(id, title string) Task {
	return Task{
		ID:            id,
		IntegrationID: DefaultIntegrationID,
		Title:         title,
		Priority:      DefaultPriority,
		Status:        DefaultStatus,
		Labels:        []string{},
		CreatedAt:     time.Now(),
	}
}

// UnmarshalJSON decodes a task, filling in defaults for absent fields
func (t *Task) UnmarshalJSON(data []byte) error {
	type rawTask Task
	tmp := rawTask(NewTask("", ""))
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.Labels == nil {
		tmp.Labels = []string{}
	}
	*t = Task(tmp)
	return nil
}

// IsCompleted reports whether the task carries the completed status
func (t Task) IsCompleted() bool {
	return t.Status == StatusCompleted
}

// Clone returns a copy that shares no mutable state with t
func (t Task) Clone() Task {
	c := t
	c.ExternalID = cloneString(t.ExternalID)
	c.Description = cloneString(t.Description)
	c.ProjectID = cloneString(t.ProjectID)
	c.ParentID = cloneString(t.ParentID)
	c.DueTime = cloneString(t.DueTime)
	c.Notes = cloneString(t.Notes)
	c.DueDate = cloneTime(t.DueDate)
	c.UpdatedAt = cloneTime(t.UpdatedAt)
	c.CompletedAt = cloneTime(t.CompletedAt)
	if t.ProviderMetadata != nil {
		c.ProviderMetadata = append(json.RawMessage(nil), t.ProviderMetadata...)
	}
	if t.Labels != nil {
		c.Labels = append([]string(nil), t.Labels...)
	}
	return c
}

// Project groups tasks. Projects carry no referential checks beyond id uniqueness.
type Project struct {
	ID               string          `json:"id"`
	ExternalID       *string         `json:"external_id,omitempty"`
	IntegrationID    string          `json:"integration_id"`
	Name             string          `json:"name"`
	Description      *string         `json:"description,omitempty"`
	Color            string          `json:"color"`
	Icon             *string         `json:"icon,omitempty"`
	ParentID         *string         `json:"parent_id,omitempty"`
	SortOrder        int             `json:"sort_order"`
	IsFavorite       bool            `json:"is_favorite"`
	IsArchived       bool            `json:"is_archived"`
	ProviderMetadata json.RawMessage `json:"provider_metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        *time.Time      `json:"updated_at,omitempty"`
}

// UnmarshalJSON decodes a project, accepting "order" as an alias of "sort_order"
func (p *Project) UnmarshalJSON(data []byte) error {
	type rawProject Project
	tmp := struct {
		rawProject
		Order *int `json:"order"`
	}{
		rawProject: rawProject{
			IntegrationID: DefaultIntegrationID,
			Color:         DefaultColor,
			CreatedAt:     time.Now(),
		},
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.Order != nil && !hasKey(data, "sort_order") {
		tmp.SortOrder = *tmp.Order
	}
	*p = Project(tmp.rawProject)
	return nil
}

// Label is a tag that tasks reference by id
type Label struct {
	ID               string          `json:"id"`
	ExternalID       *string         `json:"external_id,omitempty"`
	IntegrationID    string          `json:"integration_id"`
	Name             string          `json:"name"`
	Color            string          `json:"color"`
	Description      *string         `json:"description,omitempty"`
	SortOrder        int             `json:"sort_order"`
	IsFavorite       bool            `json:"is_favorite"`
	ProviderMetadata json.RawMessage `json:"provider_metadata,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
}

// UnmarshalJSON decodes a label, accepting "order" as an alias of "sort_order"
func (l *Label) UnmarshalJSON(data []byte) error {
	type rawLabel Label
	tmp := struct {
		rawLabel
		Order *int `json:"order"`
	}{
		rawLabel: rawLabel{
			IntegrationID: DefaultIntegrationID,
			Color:         DefaultColor,
			CreatedAt:     time.Now(),
		},
	}
	if err := json.Unmarshal(data, &tmp); err != nil {
		return err
	}
	if tmp.Order != nil && !hasKey(data, "sort_order") {
		tmp.SortOrder = *tmp.Order
	}
	*l = Label(tmp.rawLabel)
	return nil
}

// PendingCompletion is an outbox record: a local completion waiting to be
// pushed to its provider.
type PendingCompletion struct {
	ID             string     `json:"id"`
	TaskID         string     `json:"task_id"`
	Provider       string     `json:"provider"`
	ProviderTaskID string     `json:"provider_task_id"`
	Completed      bool       `json:"completed"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	RetryCount     int        `json:"retry_count"`
}

// SyncSummary is the result of one reconciliation call
type SyncSummary struct {
	TasksAdded     int     `json:"tasks_added"`
	TasksUpdated   int     `json:"tasks_updated"`
	TasksDeleted   int     `json:"tasks_deleted"`
	ProjectsSynced int     `json:"projects_synced"`
	LabelsSynced   int     `json:"labels_synced"`
	Success        bool    `json:"success"`
	Error          *string `json:"error,omitempty"`
	NewSyncToken   *string `json:"new_sync_token,omitempty"`
}

// FailedSummary builds the summary returned to a host when a call fails
func FailedSummary(err error) SyncSummary {
	msg := err.Error()
	return SyncSummary{Success: false, Error: &msg}
}

// StringPtr returns a pointer to s
func StringPtr(s string) *string {
	return &s
}

// StringValue dereferences p, returning "" for nil
func StringValue(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

func cloneString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneTime(p *time.Time) *time.Time {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// hasKey reports whether the top-level JSON object in data contains key
func hasKey(data []byte, key string) bool {
	var m map[string]json.RawMessage
	if err := json.Unmarshal(data, &m); err != nil {
		return false
	}
	_, ok := m[key]
	return ok
}
