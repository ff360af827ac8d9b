// Package storage defines interfaces for certificate blob storage backends.
package storage

import (
	"path"
	"strings"

	"github.com/google/uuid"
)

// NewBlobPath generates an opaque storage path for a certificate upload.
// The path embeds the owning course id for operability (stray blobs can be
// traced back to their course) and a fresh uuid so repeated uploads of the
// same filename never collide. The original filename only contributes its
// extension.
//
// Example:
//
//	courseID: "9d2f..."
//	filename: "acls-renewal.pdf"
//	result:   "certificates/9d2f.../c1a4....pdf"
func NewBlobPath(courseID uuid.UUID, filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if len(ext) > 16 {
		// Not a real extension, just a dotted filename.
		ext = ""
	}
	return path.Join("certificates", courseID.String(), uuid.New().String()+ext)
}
