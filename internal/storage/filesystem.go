package storage

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog"

	"github.com/prn-tf/cetrack/internal/domain"
)

// FilesystemBackend stores blobs under a base directory on local disk.
type FilesystemBackend struct {
	basePath string
	logger   zerolog.Logger
}

// NewFilesystemBackend creates a filesystem backend rooted at basePath.
// The base directory is created if missing.
func NewFilesystemBackend(basePath string, logger zerolog.Logger) (*FilesystemBackend, error) {
	if err := os.MkdirAll(basePath, 0o750); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	return &FilesystemBackend{
		basePath: basePath,
		logger:   logger.With().Str("storage", "filesystem").Logger(),
	}, nil
}

// Save stores content under the given path, creating parent directories
// as needed. The write goes to a temp file first and is renamed into
// place so a crashed upload never leaves a partial blob at the final path.
func (b *FilesystemBackend) Save(ctx context.Context, blobPath string, reader io.Reader) (int64, error) {
	full, err := b.resolve(blobPath)
	if err != nil {
		return 0, err
	}

	if err := os.MkdirAll(filepath.Dir(full), 0o750); err != nil {
		return 0, fmt.Errorf("failed to create blob directory: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".upload-*")
	if err != nil {
		return 0, fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	size, err := io.Copy(tmp, reader)
	if err != nil {
		tmp.Close()
		return 0, fmt.Errorf("failed to write blob: %w", err)
	}

	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("failed to close temp file: %w", err)
	}

	if err := os.Rename(tmp.Name(), full); err != nil {
		return 0, fmt.Errorf("failed to finalize blob: %w", err)
	}

	b.logger.Debug().Str("path", blobPath).Int64("size", size).Msg("blob stored")

	return size, nil
}

// Load retrieves content by path.
func (b *FilesystemBackend) Load(ctx context.Context, blobPath string) (io.ReadCloser, error) {
	full, err := b.resolve(blobPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(full)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, domain.ErrBlobNotFound
		}
		return nil, fmt.Errorf("failed to open blob: %w", err)
	}

	return f, nil
}

// Delete removes content by path. Missing blobs are ignored.
func (b *FilesystemBackend) Delete(ctx context.Context, blobPath string) error {
	full, err := b.resolve(blobPath)
	if err != nil {
		return err
	}

	if err := os.Remove(full); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete blob: %w", err)
	}

	return nil
}

// Exists checks whether content is stored under the path.
func (b *FilesystemBackend) Exists(ctx context.Context, blobPath string) (bool, error) {
	full, err := b.resolve(blobPath)
	if err != nil {
		return false, err
	}

	if _, err := os.Stat(full); err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("failed to stat blob: %w", err)
	}

	return true, nil
}

// resolve joins the blob path onto the base directory and rejects paths
// that would escape it.
func (b *FilesystemBackend) resolve(blobPath string) (string, error) {
	full := filepath.Join(b.basePath, filepath.FromSlash(blobPath))
	if !strings.HasPrefix(full, filepath.Clean(b.basePath)+string(os.PathSeparator)) {
		return "", fmt.Errorf("invalid blob path: %s", blobPath)
	}
	return full, nil
}
