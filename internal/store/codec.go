package store

import (
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// NewID returns a fresh record id.
func NewID() string {
	return uuid.NewString()
}

// idOr returns id, or a fresh one when id is empty.
func idOr(id string) string {
	if id == "" {
		return NewID()
	}
	return id
}

// ToMillis converts t to the stored Unix-millisecond representation.
func ToMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// FromMillis converts a stored Unix-millisecond value back to UTC time.
func FromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// ToNanos converts a caller-supplied instant (due dates) to Unix nanoseconds so it
// reads back Equal to what was written.
func ToNanos(t time.Time) int64 {
	return t.UnixNano()
}

// FromNanos converts stored Unix nanoseconds back to UTC time.
func FromNanos(ns int64) time.Time {
	return time.Unix(0, ns).UTC()
}

func nullNanos(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ToNanos(*t), Valid: true}
}

func nanosPtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromNanos(n.Int64)
	return &t
}

func nullMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: ToMillis(*t), Valid: true}
}

func timePtr(n sql.NullInt64) *time.Time {
	if !n.Valid {
		return nil
	}
	t := FromMillis(n.Int64)
	return &t
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}

func strPtr(n sql.NullString) *string {
	if !n.Valid {
		return nil
	}
	s := n.String
	return &s
}

// EncodeIDs serializes an id list for a JSON text column.
func EncodeIDs(ids []string) string {
	if len(ids) == 0 {
		return "[]"
	}
	b, err := json.Marshal(ids)
	if err != nil {
		return "[]"
	}
	return string(b)
}

// DecodeIDs parses a JSON text column into an id list (never nil).
func DecodeIDs(s string) []string {
	out := []string{}
	if s == "" {
		return out
	}
	_ = json.Unmarshal([]byte(s), &out)
	if out == nil {
		out = []string{}
	}
	return out
}

type rowScanner interface {
	Scan(dest ...any) error
}
