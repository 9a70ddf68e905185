// Package cmd wires shared infrastructure for the runline binaries.
package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/runline/runline/pkg/persistence"
	"github.com/runline/runline/pkg/persistence/file"
	"github.com/runline/runline/pkg/persistence/postgresql"
)

// NewPersistence selects a persistence provider from the database URL scheme.
// postgres:// and postgresql:// use PostgreSQL; anything else falls back to
// the file store, which keeps local development dependency-free.
func NewPersistence(ctx context.Context, logger *slog.Logger, databaseURL string) persistence.Persistence {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		p, err := postgresql.NewPersistence(ctx, logger, databaseURL)
		if err != nil {
			panic(err)
		}

		return p
	default:
		return file.NewPersistence(databaseURL)
	}
}
