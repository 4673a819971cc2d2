// Package api is the host boundary of the sync core. Every operation takes
// and returns JSON text and reports failures in the payload instead of
// returning Go errors, so it can sit behind any foreign-function or RPC layer.
package api

import (
	"encoding/json"
	"fmt"
	"strings"

	"tasksync/backend"
	"tasksync/backend/reconcile"
	"tasksync/internal/utils"
)

// Service exposes the engine through JSON in/out operations
type Service struct {
	engine *reconcile.Engine
}

// NewService creates a Service on top of engine
func NewService(engine *reconcile.Engine) *Service {
	return &Service{engine: engine}
}

// ClearResult is the payload of ClearProviderData
type ClearResult struct {
	Success bool    `json:"success"`
	Deleted int     `json:"deleted"`
	Error   *string `json:"error,omitempty"`
}

// snapshot holds one decoded remote payload
type snapshot struct {
	tasks    []backend.Task
	projects []backend.Project
	labels   []backend.Label
}

// FullReplaceSync decodes the payloads and runs a full replace sync.
// It always returns a SyncSummary document.
func (s *Service) FullReplaceSync(provider, tasksJSON, projectsJSON, labelsJSON string) (out string) {
	defer recoverSummary("FullReplaceSync", &out)

	snap, err := decodeSnapshot("FullReplaceSync", tasksJSON, projectsJSON, labelsJSON)
	if err != nil {
		return failedSummary(err)
	}

	summary, err := s.engine.FullReplaceSync(provider, snap.tasks, snap.projects, snap.labels)
	if err != nil {
		return failedSummary(err)
	}
	return encode(summary)
}

// IncrementalSync decodes the payloads and runs an incremental sync.
// It always returns a SyncSummary document.
func (s *Service) IncrementalSync(provider, tasksJSON, projectsJSON, labelsJSON string, syncToken *string, deleteOrphans bool) (out string) {
	defer recoverSummary("IncrementalSync", &out)

	snap, err := decodeSnapshot("IncrementalSync", tasksJSON, projectsJSON, labelsJSON)
	if err != nil {
		return failedSummary(err)
	}

	summary, err := s.engine.IncrementalSync(provider, snap.tasks, snap.projects, snap.labels, reconcile.IncrementalOptions{
		SyncToken:     syncToken,
		DeleteOrphans: deleteOrphans,
	})
	if err != nil {
		return failedSummary(err)
	}
	return encode(summary)
}

// ClearProviderData removes all data of provider and returns a ClearResult document
func (s *Service) ClearProviderData(provider string) string {
	deleted, err := s.engine.ClearProviderData(provider)
	if err != nil {
		utils.Warnf("Clear provider data failed: %v", err)
		msg := err.Error()
		return encode(ClearResult{Success: false, Error: &msg})
	}
	return encode(ClearResult{Success: true, Deleted: deleted})
}

// ListPendingCompletions returns the outbox of provider as a JSON array.
// Failures yield "[]".
func (s *Service) ListPendingCompletions(provider string) string {
	completions, err := s.engine.ListPendingCompletions(provider)
	if err != nil {
		utils.Warnf("List pending completions failed: %v", err)
		return "[]"
	}
	return encode(completions)
}

// EnqueueCompletion adds an outbox record and reports success
func (s *Service) EnqueueCompletion(taskID, provider, providerTaskID string, completed bool) bool {
	if _, err := s.engine.EnqueueCompletion(taskID, provider, providerTaskID, completed); err != nil {
		utils.Warnf("Enqueue completion failed: %v", err)
		return false
	}
	return true
}

// MarkCompletionSynced removes an outbox record and reports success
func (s *Service) MarkCompletionSynced(id string) bool {
	if err := s.engine.MarkCompletionSynced(id); err != nil {
		utils.Warnf("Mark completion synced failed: %v", err)
		return false
	}
	return true
}

// SetSyncToken stores the cursor of provider and reports success
func (s *Service) SetSyncToken(provider, token string) bool {
	if err := s.engine.SetSyncToken(provider, token); err != nil {
		utils.Warnf("Set sync token failed: %v", err)
		return false
	}
	return true
}

// GetSyncToken returns the stored cursor of provider, or nil
func (s *Service) GetSyncToken(provider string) *string {
	token, err := s.engine.GetSyncToken(provider)
	if err != nil {
		utils.Warnf("Get sync token failed: %v", err)
		return nil
	}
	return token
}

// decodeSnapshot parses all three payloads before anything touches storage
func decodeSnapshot(op, tasksJSON, projectsJSON, labelsJSON string) (snapshot, error) {
	var snap snapshot
	var err error

	if snap.tasks, err = decodeList[backend.Task](op, "tasks", tasksJSON); err != nil {
		return snap, err
	}
	if snap.projects, err = decodeList[backend.Project](op, "projects", projectsJSON); err != nil {
		return snap, err
	}
	if snap.labels, err = decodeList[backend.Label](op, "labels", labelsJSON); err != nil {
		return snap, err
	}
	return snap, nil
}

// decodeList parses a JSON array. Blank input is an empty list.
func decodeList[T any](op, what, data string) ([]T, error) {
	items := []T{}
	if strings.TrimSpace(data) == "" {
		return items, nil
	}
	if err := json.Unmarshal([]byte(data), &items); err != nil {
		return nil, backend.NewDeserializationError(op, what, err)
	}
	if items == nil {
		items = []T{}
	}
	return items, nil
}

func failedSummary(err error) string {
	utils.Warnf("Sync failed: %v", err)
	return encode(backend.FailedSummary(err))
}

// recoverSummary turns a panic into a failure summary
func recoverSummary(op string, out *string) {
	if r := recover(); r != nil {
		*out = failedSummary(backend.NewInvalidStateError(op, fmt.Sprintf("internal error: %v", r)))
	}
}

func encode(v interface{}) string {
	data, err := utils.MarshalJSON(v)
	if err != nil {
		msg := err.Error()
		data, _ = json.Marshal(backend.SyncSummary{Success: false, Error: &msg})
	}
	return string(data)
}
