package sqlite

import (
	"bytes"
	"database/sql"
	"encoding/json"
	"time"
)

// nullStringPtr converts an optional string to sql.NullString
func nullStringPtr(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: *s, Valid: true}
}

// stringPtr converts sql.NullString back to an optional string
func stringPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

// timeToNullInt64 converts *time.Time to sql.NullInt64
func timeToNullInt64(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{Valid: false}
	}
	return sql.NullInt64{Int64: t.Unix(), Valid: true}
}

// timePtr converts sql.NullInt64 Unix seconds back to an optional time
func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := time.Unix(n.Int64, 0)
	return &t
}

// rawToNullString stores an opaque JSON value as TEXT. Absent and JSON null
// both become SQL NULL.
func rawToNullString(raw json.RawMessage) sql.NullString {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return sql.NullString{Valid: false}
	}
	return sql.NullString{String: string(trimmed), Valid: true}
}

// nullStringToRaw is the inverse of rawToNullString. Stored text that is not
// valid JSON is dropped rather than failing the whole read.
func nullStringToRaw(ns sql.NullString) json.RawMessage {
	if !ns.Valid || !json.Valid([]byte(ns.String)) {
		return nil
	}
	return json.RawMessage(ns.String)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
