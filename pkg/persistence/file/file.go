// Package file provides file-based persistence for flows, forms and runs,
// used by unit tests and local development.
package file

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/runline/runline/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface on top of JSON
// files under a root directory. A single process-wide RWMutex stands in for
// the database row locks: coarser than Postgres, but it preserves the same
// serialization guarantee the engine relies on.
type Persistence struct {
	root string
	mu   sync.RWMutex

	flowRepo *FlowRepository
	formRepo *FormRepository
	runRepo  *RunRepository
}

// NewPersistence creates a new instance rooted at the given directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	p := &Persistence{root: cleanRoot}
	p.flowRepo = &FlowRepository{p: p}
	p.formRepo = &FormRepository{p: p}
	p.runRepo = &RunRepository{p: p}

	return p
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (p *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (p *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(p.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

// FlowRepository returns the flow repository.
func (p *Persistence) FlowRepository() persistence.FlowRepository {
	return p.flowRepo
}

// FormRepository returns the form repository.
func (p *Persistence) FormRepository() persistence.FormRepository {
	return p.formRepo
}

// RunRepository returns the run repository.
func (p *Persistence) RunRepository() persistence.RunRepository {
	return p.runRepo
}

// Transaction runs fn under the store's write lock. Writes are buffered on the
// UpdateTx and flushed to disk only when fn returns nil, so a failing fn
// leaves the store untouched.
func (p *Persistence) Transaction(ctx context.Context, fn func(ctx context.Context, tx persistence.UpdateTx) error) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	tx := newUpdateTx(p)

	err := fn(ctx, tx)
	if err != nil {
		return err
	}

	return tx.flush()
}

func (p *Persistence) path(parts ...string) string {
	return filepath.Join(append([]string{p.root}, parts...)...)
}

func (p *Persistence) readJSON(path string, v any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return false, nil
		}

		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}

	err = json.Unmarshal(data, v)
	if err != nil {
		return false, fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}

	return true, nil
}

func (p *Persistence) writeJSON(path string, v any) error {
	err := os.MkdirAll(filepath.Dir(path), 0o755)
	if err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", path, err)
	}

	err = os.WriteFile(path, data, 0o644)
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}

	return nil
}

// listIDs returns the ids of all documents in a collection directory.
func (p *Persistence) listIDs(collection string) ([]string, error) {
	entries, err := os.ReadDir(p.path(collection))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to list %s: %w", collection, err)
	}

	ids := make([]string, 0, len(entries))

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		ids = append(ids, strings.TrimSuffix(name, ".json"))
	}

	return ids, nil
}
