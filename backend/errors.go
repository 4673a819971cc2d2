package backend

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a SyncError
type ErrorKind int

const (
	// ErrKindStorage means the underlying store rejected an operation; the
	// transaction for the call has been rolled back.
	ErrKindStorage ErrorKind = iota
	// ErrKindDeserialization means an input payload was malformed. Nothing was written.
	ErrKindDeserialization
	// ErrKindInvalidState means the call is not valid for the current state,
	// e.g. an unknown or empty provider id.
	ErrKindInvalidState
	// ErrKindNotFound means a referenced record does not exist
	ErrKindNotFound
)

// String returns a human-readable name for the kind
func (k ErrorKind) String() string {
	switch k {
	case ErrKindStorage:
		return "storage"
	case ErrKindDeserialization:
		return "deserialization"
	case ErrKindInvalidState:
		return "invalid state"
	case ErrKindNotFound:
		return "not found"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is matching against a SyncError's kind
var (
	ErrStorage         = errors.New("storage error")
	ErrDeserialization = errors.New("deserialization error")
	ErrInvalidState    = errors.New("invalid sync state")
	ErrNotFound        = errors.New("not found")
)

// SyncError is the error type returned by every engine and storage operation.
// It records which operation failed and, when known, the provider and the id
// of the affected record.
type SyncError struct {
	Kind     ErrorKind
	Op       string // e.g. "IncrementalSync", "InsertTask"
	Provider string // Optional: provider being synced
	ID       string // Optional: affected task, project, label or completion id
	Message  string // Optional: human-readable detail
	Err      error  // Optional: underlying error
}

// Error implements the error interface
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s failed (%s)", e.Op, e.Kind)
	if e.Provider != "" {
		msg += fmt.Sprintf(" for provider %s", e.Provider)
	}
	if e.ID != "" {
		msg += fmt.Sprintf(" on %s", e.ID)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for error wrapping
func (e *SyncError) Unwrap() error {
	return e.Err
}

// Is matches the kind sentinels so callers can write errors.Is(err, ErrNotFound)
func (e *SyncError) Is(target error) bool {
	switch target {
	case ErrStorage:
		return e.Kind == ErrKindStorage
	case ErrDeserialization:
		return e.Kind == ErrKindDeserialization
	case ErrInvalidState:
		return e.Kind == ErrKindInvalidState
	case ErrNotFound:
		return e.Kind == ErrKindNotFound
	}
	return false
}

// NewStorageError wraps a store failure
func NewStorageError(op string, err error) *SyncError {
	return &SyncError{Kind: ErrKindStorage, Op: op, Err: err}
}

// NewDeserializationError wraps a payload decoding failure
func NewDeserializationError(op, what string, err error) *SyncError {
	return &SyncError{Kind: ErrKindDeserialization, Op: op, Message: "invalid " + what, Err: err}
}

// NewInvalidStateError reports a call that is not valid in the current state
func NewInvalidStateError(op, message string) *SyncError {
	return &SyncError{Kind: ErrKindInvalidState, Op: op, Message: message}
}

// NewNotFoundError reports a missing record
func NewNotFoundError(op, id string) *SyncError {
	return &SyncError{Kind: ErrKindNotFound, Op: op, ID: id}
}

// WithProvider adds the provider id to the error for context
func (e *SyncError) WithProvider(provider string) *SyncError {
	e.Provider = provider
	return e
}

// WithID adds the affected record id to the error for context
func (e *SyncError) WithID(id string) *SyncError {
	e.ID = id
	return e
}

// AsSyncError converts err into a SyncError, treating anything unknown as a
// storage failure of op.
func AsSyncError(op string, err error) *SyncError {
	if err == nil {
		return nil
	}
	var se *SyncError
	if errors.As(err, &se) {
		return se
	}
	return NewStorageError(op, err)
}
