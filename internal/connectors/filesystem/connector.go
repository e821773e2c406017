// Package filesystem loads corpus documents from a local directory and
// watches it for changes.
package filesystem

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/custodia-labs/testforge/internal/core/domain"
	"github.com/custodia-labs/testforge/internal/logger"
)

// DefaultMaxFileSize is the largest file read into the corpus.
const DefaultMaxFileSize = 20 << 20

// ChangeType classifies a filesystem change.
type ChangeType string

// Change types.
const (
	ChangeCreated ChangeType = "created"
	ChangeUpdated ChangeType = "updated"
	ChangeDeleted ChangeType = "deleted"
)

// Change is one relevant filesystem event.
type Change struct {
	Type ChangeType
	Path string
}

// Connector reads every accepted file below a root directory.
type Connector struct {
	root        string
	accept      func(path string) bool
	maxFileSize int64

	mu      sync.Mutex
	watcher *fsnotify.Watcher
}

// Option configures a Connector.
type Option func(*Connector)

// WithFilter restricts the connector to paths for which accept returns true.
// Hidden files are always skipped.
func WithFilter(accept func(path string) bool) Option {
	return func(c *Connector) { c.accept = accept }
}

// WithMaxFileSize skips files larger than n bytes.
func WithMaxFileSize(n int64) Option {
	return func(c *Connector) { c.maxFileSize = n }
}

// New creates a connector rooted at root.
func New(root string, opts ...Option) *Connector {
	c := &Connector{
		root:        filepath.Clean(root),
		maxFileSize: DefaultMaxFileSize,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Root returns the watched directory.
func (c *Connector) Root() string {
	return c.root
}

// Validate checks that the root exists and is a directory.
func (c *Connector) Validate() error {
	info, err := os.Stat(c.root)
	if err != nil {
		return fmt.Errorf("corpus directory: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("%w: %s is not a directory", domain.ErrInvalidInput, c.root)
	}
	return nil
}

// Load reads all accepted files, sorted by path. URIs are relative to the
// root so chunk ids do not depend on where the corpus is checked out.
func (c *Connector) Load(ctx context.Context) ([]domain.RawDocument, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	var docs []domain.RawDocument
	err := filepath.WalkDir(c.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if path != c.root && isHidden(d.Name()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() || !c.wants(path) {
			return nil
		}

		doc, ok, err := c.read(path)
		if err != nil {
			return err
		}
		if ok {
			docs = append(docs, doc)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", c.root, err)
	}

	sort.Slice(docs, func(i, j int) bool { return docs[i].URI < docs[j].URI })
	logger.Debug("Loaded %d documents from %s", len(docs), c.root)
	return docs, nil
}

// Watch reports relevant changes below the root until ctx is cancelled.
// New subdirectories are watched as they appear.
func (c *Connector) Watch(ctx context.Context) (<-chan Change, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}
	if err := addRecursive(watcher, c.root); err != nil {
		watcher.Close()
		return nil, err
	}

	c.mu.Lock()
	c.watcher = watcher
	c.mu.Unlock()

	changes := make(chan Change, 64)
	go func() {
		defer close(changes)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && !isHidden(filepath.Base(event.Name)) {
					if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
						if err := addRecursive(watcher, event.Name); err != nil {
							logger.Warn("Failed to watch %s: %v", event.Name, err)
						}
					}
				}
				change := c.handleFsEvent(event)
				if change == nil {
					continue
				}
				select {
				case changes <- *change:
				case <-ctx.Done():
					return
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logger.Warn("Watcher error: %v", err)
			}
		}
	}()

	return changes, nil
}

// Close stops watching.
func (c *Connector) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.watcher == nil {
		return nil
	}
	err := c.watcher.Close()
	c.watcher = nil
	return err
}

// handleFsEvent converts an event into a change, or nil when it is irrelevant.
func (c *Connector) handleFsEvent(event fsnotify.Event) *Change {
	if c.hiddenBelowRoot(event.Name) {
		return nil
	}

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		if !c.wants(event.Name) {
			return nil
		}
		return &Change{Type: ChangeDeleted, Path: event.Name}
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil || info.IsDir() || !c.wants(event.Name) {
			return nil
		}
		if event.Has(fsnotify.Create) {
			return &Change{Type: ChangeCreated, Path: event.Name}
		}
		return &Change{Type: ChangeUpdated, Path: event.Name}
	default:
		return nil
	}
}

func (c *Connector) wants(path string) bool {
	return c.accept == nil || c.accept(path)
}

func (c *Connector) hiddenBelowRoot(path string) bool {
	rel, err := filepath.Rel(c.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return isHidden(path)
	}
	return isHidden(rel)
}

func (c *Connector) read(path string) (domain.RawDocument, bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		return domain.RawDocument{}, false, err
	}
	if c.maxFileSize > 0 && info.Size() > c.maxFileSize {
		logger.Warn("Skipping %s: %d bytes exceeds limit of %d", path, info.Size(), c.maxFileSize)
		return domain.RawDocument{}, false, nil
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return domain.RawDocument{}, false, err
	}

	uri, err := filepath.Rel(c.root, path)
	if err != nil {
		uri = path
	}
	return domain.RawDocument{
		URI:     filepath.ToSlash(uri),
		Content: content,
		Metadata: map[string]any{
			"path":        path,
			"modified_at": info.ModTime(),
		},
	}, true, nil
}

// LoadFiles reads explicit file paths. Directories are expanded with New.
// URIs are the base names of the files.
func LoadFiles(ctx context.Context, paths []string, opts ...Option) ([]domain.RawDocument, error) {
	var docs []domain.RawDocument
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			dirDocs, err := New(p, opts...).Load(ctx)
			if err != nil {
				return nil, err
			}
			docs = append(docs, dirDocs...)
			continue
		}
		content, err := os.ReadFile(p)
		if err != nil {
			return nil, err
		}
		docs = append(docs, domain.RawDocument{
			URI:      filepath.Base(p),
			Content:  content,
			Metadata: map[string]any{"path": p, "modified_at": info.ModTime()},
		})
	}
	if len(docs) == 0 {
		return nil, errors.New("no files to index")
	}
	return docs, nil
}

// addRecursive watches dir and every non-hidden directory below it.
func addRecursive(w *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && isHidden(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.Add(path); err != nil {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
}

// isHidden reports whether any element of path starts with a dot.
// "." and ".." are not hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}
