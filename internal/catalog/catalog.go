// Package catalog exposes the authoritative relational records for files and
// their project/meeting membership. The vector store holds a denormalized
// snapshot of this data; every access decision must come back here.
package catalog

import (
	"context"
	"errors"
)

// ErrFileNotFound indicates the file record does not exist.
var ErrFileNotFound = errors.New("file not found")

// File is the relational file record.
type File struct {
	ID       string
	Name     string
	MimeType string
	Size     int64

	// ProjectID and MeetingID are the file's current scope. Empty means
	// unattached.
	ProjectID string
	MeetingID string

	// UploadedBy is the owning user.
	UploadedBy string

	// StorageKey locates the raw bytes in the object store.
	StorageKey string
}

// Store is the read surface over the relational catalog.
type Store interface {
	// FileByID resolves a file record. Returns ErrFileNotFound when the
	// record does not exist.
	FileByID(ctx context.Context, id string) (*File, error)

	// HasAccess reports whether userID may read the file: the owner, or a
	// member of the file's project or meeting.
	HasAccess(ctx context.Context, file *File, userID string) (bool, error)
}
