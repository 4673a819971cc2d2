package reconcile

import (
	"strings"

	"tasksync/backend"
	"tasksync/internal/utils"
)

// FullComparisonToken is the cursor value meaning "compare against the whole
// local set this cycle". Callers that see it should request orphan deletion.
const FullComparisonToken = "*"

// Engine reconciles provider snapshots with a local store
type Engine struct {
	store backend.Store
}

// New creates an engine on top of store
func New(store backend.Store) *Engine {
	return &Engine{store: store}
}

// IncrementalOptions controls an incremental sync
type IncrementalOptions struct {
	// SyncToken is echoed back as SyncSummary.NewSyncToken
	SyncToken *string
	// DeleteOrphans removes local tasks missing from the batch, except
	// completed ones.
	DeleteOrphans bool
}

// taskOp is one planned task write
type taskOp struct {
	task   backend.Task
	update bool
}

// plan is the full set of task mutations for one incremental sync
type plan struct {
	writes  []taskOp
	deletes []string
	added   int
	updated int
}

// FullReplaceSync drops everything stored for provider and inserts the remote
// snapshot in its place, inside one transaction.
func (e *Engine) FullReplaceSync(provider string, tasks []backend.Task, projects []backend.Project, labels []backend.Label) (*backend.SyncSummary, error) {
	const op = "FullReplaceSync"

	if err := e.ensureProvider(op, provider); err != nil {
		return nil, err
	}

	utils.Debugf("Full replace sync for %s: %d tasks, %d projects, %d labels",
		provider, len(tasks), len(projects), len(labels))

	ordered := PrepareTasks(dedupeTasks(provider, tasks), projectIDSet(projects))

	tx, err := e.store.Begin()
	if err != nil {
		return nil, withProvider(op, err, provider)
	}
	defer tx.Rollback()

	deleted, err := tx.DeleteAllForProvider(backend.KindTask, provider)
	if err != nil {
		return nil, withProvider(op, err, provider)
	}
	if _, err := tx.DeleteAllForProvider(backend.KindProject, provider); err != nil {
		return nil, withProvider(op, err, provider)
	}
	if _, err := tx.DeleteAllForProvider(backend.KindLabel, provider); err != nil {
		return nil, withProvider(op, err, provider)
	}

	if err := writeProjectsAndLabels(tx, provider, projects, labels); err != nil {
		return nil, withProvider(op, err, provider)
	}

	for _, task := range ordered {
		if err := tx.InsertTask(provider, task); err != nil {
			return nil, withProvider(op, err, provider)
		}
		if err := refreshLabels(tx, task); err != nil {
			return nil, withProvider(op, err, provider)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, withProvider(op, err, provider)
	}

	summary := &backend.SyncSummary{
		TasksAdded:     len(ordered),
		TasksUpdated:   0,
		TasksDeleted:   deleted,
		ProjectsSynced: len(projects),
		LabelsSynced:   len(labels),
		Success:        true,
	}
	utils.Infof("Full replace sync for %s: %d added, %d deleted", provider, summary.TasksAdded, summary.TasksDeleted)
	return summary, nil
}

// IncrementalSync merges the remote snapshot into the stored data for
// provider. Existing tasks are updated according to the provider's policy,
// new tasks are inserted, and orphans are removed only when requested.
func (e *Engine) IncrementalSync(provider string, tasks []backend.Task, projects []backend.Project, labels []backend.Label, opts IncrementalOptions) (*backend.SyncSummary, error) {
	const op = "IncrementalSync"

	if err := e.ensureProvider(op, provider); err != nil {
		return nil, err
	}

	policy := PolicyFor(provider)
	utils.Debugf("Incremental sync for %s (%s policy): %d tasks, %d projects, %d labels, delete orphans: %v",
		provider, policy, len(tasks), len(projects), len(labels), opts.DeleteOrphans)

	// Projects persisted by earlier syncs stay valid targets even when this
	// batch does not resend them.
	validProjects := projectIDSet(projects)
	persisted, err := e.store.ListProjectIDsForProvider(provider)
	if err != nil {
		return nil, withProvider(op, err, provider)
	}
	for id := range persisted {
		validProjects[id] = struct{}{}
	}

	ordered := PrepareTasks(dedupeTasks(provider, tasks), validProjects)

	local, err := e.store.ListTasksForProvider(provider)
	if err != nil {
		return nil, withProvider(op, err, provider)
	}

	p := computePlan(ordered, local, opts.DeleteOrphans)
	fields := policy.UpdateFields()

	tx, err := e.store.Begin()
	if err != nil {
		return nil, withProvider(op, err, provider)
	}
	defer tx.Rollback()

	if err := writeProjectsAndLabels(tx, provider, projects, labels); err != nil {
		return nil, withProvider(op, err, provider)
	}

	for _, w := range p.writes {
		if w.update {
			err = tx.UpdateTask(w.task, fields)
		} else {
			err = tx.InsertTask(provider, w.task)
		}
		if err != nil {
			return nil, withProvider(op, err, provider)
		}
		if err := refreshLabels(tx, w.task); err != nil {
			return nil, withProvider(op, err, provider)
		}
	}

	for _, id := range p.deletes {
		if err := tx.DeleteTask(id); err != nil {
			return nil, withProvider(op, err, provider)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, withProvider(op, err, provider)
	}

	summary := &backend.SyncSummary{
		TasksAdded:     p.added,
		TasksUpdated:   p.updated,
		TasksDeleted:   len(p.deletes),
		ProjectsSynced: len(projects),
		LabelsSynced:   len(labels),
		Success:        true,
		NewSyncToken:   opts.SyncToken,
	}
	utils.Infof("Incremental sync for %s: %d added, %d updated, %d deleted",
		provider, summary.TasksAdded, summary.TasksUpdated, summary.TasksDeleted)
	return summary, nil
}

// ClearProviderData removes all tasks, projects and labels of provider and
// returns the number of tasks removed. The provider row and its cursor are kept.
func (e *Engine) ClearProviderData(provider string) (int, error) {
	const op = "ClearProviderData"

	if err := validateProvider(op, provider); err != nil {
		return 0, err
	}
	exists, err := e.store.ProviderExists(provider)
	if err != nil {
		return 0, withProvider(op, err, provider)
	}
	if !exists {
		return 0, backend.NewInvalidStateError(op, "provider has never been synced").WithProvider(provider)
	}

	tx, err := e.store.Begin()
	if err != nil {
		return 0, withProvider(op, err, provider)
	}
	defer tx.Rollback()

	deleted, err := tx.DeleteAllForProvider(backend.KindTask, provider)
	if err != nil {
		return 0, withProvider(op, err, provider)
	}
	if _, err := tx.DeleteAllForProvider(backend.KindProject, provider); err != nil {
		return 0, withProvider(op, err, provider)
	}
	if _, err := tx.DeleteAllForProvider(backend.KindLabel, provider); err != nil {
		return 0, withProvider(op, err, provider)
	}

	if err := tx.Commit(); err != nil {
		return 0, withProvider(op, err, provider)
	}

	utils.Infof("Cleared %d tasks for %s", deleted, provider)
	return deleted, nil
}

// GetSyncToken returns the stored cursor of provider, or nil when none is stored
func (e *Engine) GetSyncToken(provider string) (*string, error) {
	if err := validateProvider("GetSyncToken", provider); err != nil {
		return nil, err
	}
	token, err := e.store.GetSyncToken(provider)
	if err != nil {
		return nil, withProvider("GetSyncToken", err, provider)
	}
	return token, nil
}

// SetSyncToken stores the cursor of provider
func (e *Engine) SetSyncToken(provider, token string) error {
	if err := validateProvider("SetSyncToken", provider); err != nil {
		return err
	}
	if err := e.store.SetSyncToken(provider, token); err != nil {
		return withProvider("SetSyncToken", err, provider)
	}
	return nil
}

// Stats returns statistics about the underlying store
func (e *Engine) Stats() (backend.Stats, error) {
	return e.store.Stats()
}

// computePlan diffs the prepared remote batch against the local snapshot.
// It performs no I/O.
func computePlan(ordered, local []backend.Task, deleteOrphans bool) plan {
	localByID := make(map[string]backend.Task, len(local))
	for _, t := range local {
		localByID[t.ID] = t
	}

	var p plan
	remoteIDs := make(map[string]struct{}, len(ordered))
	for _, t := range ordered {
		remoteIDs[t.ID] = struct{}{}
		_, exists := localByID[t.ID]
		p.writes = append(p.writes, taskOp{task: t, update: exists})
		if exists {
			p.updated++
		} else {
			p.added++
		}
	}

	if !deleteOrphans {
		return p
	}

	// local is ordered, so deletions are deterministic
	for _, t := range local {
		if _, ok := remoteIDs[t.ID]; ok {
			continue
		}
		if t.IsCompleted() {
			continue
		}
		p.deletes = append(p.deletes, t.ID)
	}
	return p
}

// ensureProvider validates the provider id and makes sure the outbox table
// and provider row exist before a sync writes anything.
func (e *Engine) ensureProvider(op, provider string) error {
	if err := validateProvider(op, provider); err != nil {
		return err
	}
	if err := e.store.EnsureOutboxTable(); err != nil {
		return withProvider(op, err, provider)
	}
	if err := e.store.EnsureProviderRow(provider); err != nil {
		return withProvider(op, err, provider)
	}
	return nil
}

func validateProvider(op, provider string) error {
	if strings.TrimSpace(provider) == "" {
		return backend.NewInvalidStateError(op, "provider id is empty")
	}
	return nil
}

// writeProjectsAndLabels upserts projects before labels, both before any task
func writeProjectsAndLabels(tx backend.Tx, provider string, projects []backend.Project, labels []backend.Label) error {
	for _, p := range projects {
		if err := tx.UpsertProject(provider, p); err != nil {
			return err
		}
	}
	for _, l := range labels {
		if err := tx.UpsertLabel(provider, l); err != nil {
			return err
		}
	}
	return nil
}

// refreshLabels replaces the label links of task with its current label set
func refreshLabels(tx backend.Tx, task backend.Task) error {
	if err := tx.DeleteTaskLabels(task.ID); err != nil {
		return err
	}
	for _, labelID := range task.Labels {
		if err := tx.InsertTaskLabel(task.ID, labelID); err != nil {
			return err
		}
	}
	return nil
}

// dedupeTasks keeps the last occurrence of each task id, preserving the
// position of the first.
func dedupeTasks(provider string, tasks []backend.Task) []backend.Task {
	index := make(map[string]int, len(tasks))
	result := make([]backend.Task, 0, len(tasks))
	for _, t := range tasks {
		if i, ok := index[t.ID]; ok {
			utils.Warnf("Duplicate task %s in %s batch, keeping the last copy", t.ID, provider)
			result[i] = t
			continue
		}
		index[t.ID] = len(result)
		result = append(result, t)
	}
	return result
}

// withProvider converts err to a SyncError tagged with provider. Errors that
// already carry a provider keep it.
func withProvider(op string, err error, provider string) error {
	se := backend.AsSyncError(op, err)
	if se.Provider == "" {
		se.Provider = provider
	}
	return se
}
