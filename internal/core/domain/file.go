package domain

import (
	"time"

	"github.com/google/uuid"
)

// MaxFileSize is the upload cap in bytes.
const MaxFileSize int64 = 100 << 20

var allowedFileTypes = map[string]struct{}{
	"application/pdf": {},
	"image/jpeg":      {},
	"image/png":       {},
	"text/plain":      {},
}

// FileTypeAllowed reports whether contentType may be uploaded.
func FileTypeAllowed(contentType string) bool {
	_, ok := allowedFileTypes[contentType]
	return ok
}

// File is the metadata of an uploaded blob. OwnerID is cleared when the owner
// row is removed.
type File struct {
	ID          uuid.UUID  `json:"id"`
	Name        string     `json:"name"`
	DownloadURL string     `json:"download_url"`
	StorageKey  string     `json:"-"`
	ContentType string     `json:"content_type"`
	SizeBytes   int64      `json:"size_bytes"`
	OwnerID     *uuid.UUID `json:"owner_id"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"-"`
}

// OwnedBy reports whether userID owns f.
func (f *File) OwnedBy(userID uuid.UUID) bool {
	return f.OwnerID != nil && *f.OwnerID == userID
}
