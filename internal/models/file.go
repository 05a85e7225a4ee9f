package models

import (
	"strings"
	"time"
)

// FileRecord is one entry in a wallet's metadata document. The document is a
// JSON array of these records pinned as a single object per wallet, so field
// names must stay stable: documents written by earlier deployments are still
// read back from the pinning service.
type FileRecord struct {
	ID         string  `json:"id"`
	Filename   string  `json:"filename"`
	Size       int64   `json:"size"`
	Owner      string  `json:"owner"` // case preserved for display, compared case-insensitively
	Hash       string  `json:"hash,omitempty"`
	Project    string  `json:"project"`
	CreatedAt  string  `json:"created_at"`
	IPFSCid    string  `json:"ipfs_cid,omitempty"` // iv:tag:ciphertext blob, never the plaintext CID
	IsDeleted  bool    `json:"is_deleted"`
	DeletedAt  *string `json:"deleted_at"`
	Analysis   string  `json:"analysis,omitempty"`
	RestoredAt *string `json:"restored_at,omitempty"`
}

// OwnedBy reports whether the record belongs to the wallet. Clients checksum
// addresses inconsistently, so ownership comparison is case-insensitive.
func (f *FileRecord) OwnedBy(wallet string) bool {
	return strings.EqualFold(f.Owner, wallet)
}

// Active reports whether the record is live (not soft-deleted).
func (f *FileRecord) Active() bool {
	return !f.IsDeleted
}

// SanitizedFile is the client-facing view of a FileRecord. The encrypted CID
// and the content hash are withheld from every response.
type SanitizedFile struct {
	ID        string  `json:"id"`
	Filename  string  `json:"filename"`
	Size      int64   `json:"size"`
	Owner     string  `json:"owner"`
	Project   string  `json:"project"`
	CreatedAt string  `json:"created_at"`
	IsDeleted bool    `json:"is_deleted"`
	DeletedAt *string `json:"deleted_at"`
	Analysis  string  `json:"analysis,omitempty"`
}

// Sanitize strips server-side fields before a record goes out to a client.
func (f *FileRecord) Sanitize() SanitizedFile {
	project := f.Project
	if project == "" {
		project = "default"
	}
	return SanitizedFile{
		ID:        f.ID,
		Filename:  f.Filename,
		Size:      f.Size,
		Owner:     f.Owner,
		Project:   project,
		CreatedAt: f.CreatedAt,
		IsDeleted: f.IsDeleted,
		DeletedAt: f.DeletedAt,
		Analysis:  f.Analysis,
	}
}

// Timestamp formats t the way metadata documents store times.
func Timestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}
