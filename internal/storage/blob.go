// Package storage holds uploaded deliverables (submission attachments,
// note evidence) behind a small blob interface so the filesystem store
// can later be swapped for an object store.
package storage

import (
	"fmt"
	"io"
	"path"
	"strings"
)

type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	Delete(key string) error
	SignedURL(key string) (string, error) // fs returns "file://..." for dev
}

// SubmissionKey builds the canonical key for a submission attachment;
// ownerID is the team (or student) the deliverable belongs to.
func SubmissionKey(assessmentID, ownerID, filename string) string {
	return path.Join("submissions", assessmentID, ownerID, sanitizeName(filename))
}

// EvidenceKey builds the canonical key for a file attached to a note.
func EvidenceKey(noteID, filename string) string {
	return path.Join("evidence", noteID, sanitizeName(filename))
}

func sanitizeName(name string) string {
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		name = "bestand"
	}
	return name
}

// ErrInvalidKey is returned for keys that escape the store root.
var ErrInvalidKey = fmt.Errorf("storage: invalid key")
