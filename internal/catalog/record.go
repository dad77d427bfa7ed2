// Package catalog is the persistent file-record store: one row per
// uploaded blob, describing where it lives on disk, who uploaded it and
// under which name it should be offered for download.
//
// Two backends share the same queries: a single-file SQLite catalog
// (the default) and PostgreSQL, selected by a DATABASE_URL.
package catalog

import (
	"errors"
	"time"
)

// ErrNotFound is returned by Get when no record has the requested id.
var ErrNotFound = errors.New("file record not found")

// Record is one catalog row.
type Record struct {
	ID           int64
	StoredName   string
	OriginalName string
	UploadTime   time.Time
	FilePath     string
	// OwnerEmail is nil for rows written before ownership was tracked.
	// Such rows can never be deleted through the service.
	OwnerEmail *string
	// SizeBytes is nil when the size was never recorded.
	SizeBytes *int64
}

// HasOwner reports whether the record carries owner information.
func (r Record) HasOwner() bool {
	return r.OwnerEmail != nil
}

// OwnedBy reports whether email uploaded the record.
func (r Record) OwnedBy(email string) bool {
	return email != "" && r.OwnerEmail != nil && *r.OwnerEmail == email
}

// NewRecord carries the caller-supplied fields of Create.
type NewRecord struct {
	StoredName   string
	OriginalName string
	FilePath     string
	OwnerEmail   *string
	SizeBytes    *int64
}
