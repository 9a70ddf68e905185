package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/google/uuid"
)

// AttachmentStore is the external file storage collaborator. The engine only
// records the returned path on the run step. Remove undoes a Store whose
// completion was rejected, so no orphaned files accumulate.
type AttachmentStore interface {
	Store(ctx context.Context, name string, data []byte) (string, error)
	Remove(ctx context.Context, path string) error
}

// LocalAttachmentStore writes attachments to a directory on disk.
type LocalAttachmentStore struct {
	root string
}

// NewLocalAttachmentStore creates a store rooted at the given directory.
func NewLocalAttachmentStore(root string) *LocalAttachmentStore {
	return &LocalAttachmentStore{root: root}
}

// Store writes the data under a unique name and returns the relative path.
func (s *LocalAttachmentStore) Store(_ context.Context, name string, data []byte) (string, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return "", fmt.Errorf("failed to generate attachment ID: %w", err)
	}

	relative := filepath.Join("attachments", id.String()+"-"+filepath.Base(name))
	full := filepath.Join(s.root, relative)

	err = os.MkdirAll(filepath.Dir(full), 0o755)
	if err != nil {
		return "", fmt.Errorf("failed to create attachment directory: %w", err)
	}

	err = os.WriteFile(full, data, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to write attachment: %w", err)
	}

	return relative, nil
}

// Remove deletes a previously stored attachment by its relative path.
func (s *LocalAttachmentStore) Remove(_ context.Context, path string) error {
	err := os.Remove(filepath.Join(s.root, path))
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove attachment: %w", err)
	}

	return nil
}
