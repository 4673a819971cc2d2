package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"tasksync/backend"
	"tasksync/internal/api"
	"tasksync/internal/utils"
)

// hostRequest is one line of the host protocol. Payload lists are passed
// through to the api package unparsed.
type hostRequest struct {
	ID             json.RawMessage `json:"id,omitempty"`
	Op             string          `json:"op"`
	Provider       string          `json:"provider"`
	Tasks          json.RawMessage `json:"tasks,omitempty"`
	Projects       json.RawMessage `json:"projects,omitempty"`
	Labels         json.RawMessage `json:"labels,omitempty"`
	SyncToken      *string         `json:"sync_token,omitempty"`
	DeleteOrphans  bool            `json:"delete_orphans"`
	TaskID         string          `json:"task_id"`
	ProviderTaskID string          `json:"provider_task_id"`
	Completed      bool            `json:"completed"`
	CompletionID   string          `json:"completion_id"`
}

// hostResponse echoes the request id next to the operation's result document
type hostResponse struct {
	ID     json.RawMessage `json:"id,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
}

const maxHostLine = 64 * 1024 * 1024

func newHostCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "host",
		Short: "Serve the sync API as line-delimited JSON on stdin and stdout",
		Long: `Read one JSON request per line from stdin and write one JSON response per
line to stdout, until stdin is closed.

Operations: full_replace_sync, incremental_sync, clear_provider_data,
list_pending_completions, enqueue_completion, mark_completion_synced,
get_sync_token, set_sync_token.

Example:
  {"id":1,"op":"full_replace_sync","provider":"todoist","tasks":[],"projects":[],"labels":[]}`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serveHost(api.NewService(app.engine), cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

// serveHost answers requests from r on w until r is exhausted
func serveHost(svc *api.Service, r io.Reader, w io.Writer) error {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxHostLine)
	enc := json.NewEncoder(w)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var req hostRequest
		resp := hostResponse{}
		if err := json.Unmarshal(line, &req); err != nil {
			resp.Error = fmt.Sprintf("invalid request: %v", err)
		} else {
			resp.ID = req.ID
			result, err := dispatchHost(svc, req)
			if err != nil {
				resp.Error = err.Error()
			} else {
				resp.Result = result
			}
		}

		if err := enc.Encode(resp); err != nil {
			return fmt.Errorf("failed to write response: %w", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read request: %w", err)
	}
	return nil
}

func dispatchHost(svc *api.Service, req hostRequest) (json.RawMessage, error) {
	utils.Debugf("Host request %s for %q", req.Op, req.Provider)

	switch req.Op {
	case "full_replace_sync":
		return json.RawMessage(svc.FullReplaceSync(req.Provider, string(req.Tasks), string(req.Projects), string(req.Labels))), nil
	case "incremental_sync":
		return json.RawMessage(svc.IncrementalSync(req.Provider, string(req.Tasks), string(req.Projects), string(req.Labels),
			req.SyncToken, req.DeleteOrphans)), nil
	case "clear_provider_data":
		return json.RawMessage(svc.ClearProviderData(req.Provider)), nil
	case "list_pending_completions":
		return json.RawMessage(svc.ListPendingCompletions(req.Provider)), nil
	case "enqueue_completion":
		return json.Marshal(svc.EnqueueCompletion(req.TaskID, req.Provider, req.ProviderTaskID, req.Completed))
	case "mark_completion_synced":
		return json.Marshal(svc.MarkCompletionSynced(req.CompletionID))
	case "get_sync_token":
		return json.Marshal(svc.GetSyncToken(req.Provider))
	case "set_sync_token":
		return json.Marshal(svc.SetSyncToken(req.Provider, backend.StringValue(req.SyncToken)))
	default:
		return nil, fmt.Errorf("unknown op %q", req.Op)
	}
}
