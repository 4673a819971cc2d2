package reconcile

import "tasksync/backend"

// Policy decides which task fields a sync may overwrite on a task that
// already exists locally.
type Policy int

const (
	// PolicyAuthoritativeRemote: the provider's data replaces the local copy
	// of every sync-owned field on each sync (remote wins).
	PolicyAuthoritativeRemote Policy = iota
	// PolicyWrapper: after the first import the host application owns the
	// task; later syncs refresh only the provider metadata snapshot.
	PolicyWrapper
)

// String returns the policy name
func (p Policy) String() string {
	switch p {
	case PolicyAuthoritativeRemote:
		return "authoritative_remote"
	case PolicyWrapper:
		return "wrapper"
	default:
		return "unknown"
	}
}

// authoritativeFields is everything a remote-wins update writes
const authoritativeFields = backend.FieldTitle |
	backend.FieldDescription |
	backend.FieldProject |
	backend.FieldParent |
	backend.FieldPriority |
	backend.FieldStatus |
	backend.FieldDueDate |
	backend.FieldDueTime |
	backend.FieldProviderMetadata |
	backend.FieldUpdatedAt |
	backend.FieldCompletedAt

// UpdateFields returns the task fields an update under p writes
func (p Policy) UpdateFields() backend.TaskFields {
	if p == PolicyWrapper {
		return backend.FieldProviderMetadata
	}
	return authoritativeFields
}

// providerPolicies is the static ownership table. Providers not listed are
// treated as authoritative.
var providerPolicies = map[string]Policy{
	"todoist":  PolicyAuthoritativeRemote,
	"msToDo":   PolicyAuthoritativeRemote,
	"obsidian": PolicyWrapper,
}

// PolicyFor returns the field-ownership policy of provider
func PolicyFor(provider string) Policy {
	if p, ok := providerPolicies[provider]; ok {
		return p
	}
	return PolicyAuthoritativeRemote
}
