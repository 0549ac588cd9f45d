// Package storage removes staged artifact files that restatements have
// superseded. Deletion is allow-listed by folder: the cleaner only ever
// touches paths under the folders it was configured with, so a bad
// restatement match cannot reach outside the staging area.
package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/adwire/conveyor/workitem"
)

// Remover deletes one staged object by path.
type Remover interface {
	Remove(ctx context.Context, path string) error
}

// Cleaner deletes superseded artifact files inside allow-listed folders.
type Cleaner struct {
	remover Remover
	folders []string
	logger  *slog.Logger
}

// Option configures a Cleaner.
type Option func(*Cleaner)

// WithLogger sets the cleaner's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cleaner) { c.logger = logger }
}

// NewCleaner creates a Cleaner restricted to the given folders. A file is
// removable when its path starts with one of the folders; everything else
// is silently skipped.
func NewCleaner(remover Remover, folders []string, opts ...Option) *Cleaner {
	c := &Cleaner{
		remover: remover,
		folders: normalizeFolders(folders),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Clean removes the removable files and returns how many were deleted.
// Per-file failures are joined; the remaining files are still attempted.
func (c *Cleaner) Clean(ctx context.Context, files []workitem.FileItem) (int, error) {
	removed := 0
	var errs []error
	for _, f := range files {
		if !c.removable(f.Path) {
			c.logger.Debug("skipping file outside cleanup folders",
				slog.String("path", f.Path))
			continue
		}
		if err := c.remover.Remove(ctx, f.Path); err != nil {
			errs = append(errs, fmt.Errorf("storage: remove %s: %w", f.Path, err))
			continue
		}
		removed++
	}
	return removed, errors.Join(errs...)
}

// removable reports whether path falls under one of the allowed folders.
func (c *Cleaner) removable(path string) bool {
	for _, folder := range c.folders {
		if strings.HasPrefix(path, folder) {
			return true
		}
	}
	return false
}

// normalizeFolders drops empties and guarantees a trailing slash, so
// "inbound" cannot accidentally match "inbound-archive/x".
func normalizeFolders(folders []string) []string {
	out := make([]string, 0, len(folders))
	for _, f := range folders {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if !strings.HasSuffix(f, "/") {
			f += "/"
		}
		out = append(out, f)
	}
	return out
}
