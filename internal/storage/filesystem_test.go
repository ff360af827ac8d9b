package storage

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/domain"
)

func newTestBackend(t *testing.T) *FilesystemBackend {
	t.Helper()
	b, err := NewFilesystemBackend(t.TempDir(), zerolog.Nop())
	if err != nil {
		t.Fatalf("NewFilesystemBackend() error = %v", err)
	}
	return b
}

func TestFilesystemRoundTrip(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()
	blobPath := NewBlobPath(uuid.New(), "cert.pdf")

	size, err := b.Save(ctx, blobPath, strings.NewReader("certificate bytes"))
	if err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	if size != int64(len("certificate bytes")) {
		t.Errorf("size = %d, want %d", size, len("certificate bytes"))
	}

	exists, err := b.Exists(ctx, blobPath)
	if err != nil {
		t.Fatalf("Exists() error = %v", err)
	}
	if !exists {
		t.Error("Exists() = false after save")
	}

	rc, err := b.Load(ctx, blobPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("reading blob: %v", err)
	}
	if string(data) != "certificate bytes" {
		t.Errorf("content = %q, want %q", data, "certificate bytes")
	}

	if err := b.Delete(ctx, blobPath); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := b.Load(ctx, blobPath); !errors.Is(err, domain.ErrBlobNotFound) {
		t.Errorf("Load() after delete = %v, want ErrBlobNotFound", err)
	}
}

func TestFilesystemDeleteMissing(t *testing.T) {
	b := newTestBackend(t)

	if err := b.Delete(context.Background(), "certificates/none/gone.pdf"); err != nil {
		t.Errorf("Delete() on missing blob = %v, want nil", err)
	}
}

func TestFilesystemRejectsEscapingPaths(t *testing.T) {
	b := newTestBackend(t)
	ctx := context.Background()

	for _, p := range []string{"../outside.pdf", "certificates/../../escape"} {
		if _, err := b.Save(ctx, p, strings.NewReader("x")); err == nil {
			t.Errorf("Save(%q) accepted a path outside the base directory", p)
		}
	}
}

func TestNewBlobPath(t *testing.T) {
	courseID := uuid.New()

	tests := []struct {
		name     string
		filename string
		wantExt  string
	}{
		{"keeps extension", "ACLS-Renewal.PDF", ".pdf"},
		{"no extension", "certificate", ""},
		{"dotted filename", "archive.tar.gz.backup-2024-06-01-final", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewBlobPath(courseID, tt.filename)
			if !strings.HasPrefix(p, "certificates/"+courseID.String()+"/") {
				t.Errorf("path = %q, want certificates/%s/ prefix", p, courseID)
			}
			if tt.wantExt == "" {
				if strings.Contains(p[len("certificates/")+len(courseID.String())+1:], ".") {
					t.Errorf("path = %q, want no extension", p)
				}
			} else if !strings.HasSuffix(p, tt.wantExt) {
				t.Errorf("path = %q, want %q suffix", p, tt.wantExt)
			}
		})
	}
}
