package audioindex

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"audioindex/internal/audio"
	"audioindex/internal/logging"
)

// CacheOptions configures a Cache.
type CacheOptions struct {
	Lock    LockOptions
	Logger  *slog.Logger
	Metrics *Metrics
	// Now stamps lastUpdated. Defaults to time.Now.
	Now func() time.Time
}

// Cache is the file-backed index. The file is loaded on first use; every
// mutation runs one locked read-modify-write cycle against the file.
type Cache struct {
	path    string
	lock    *flock.Flock
	opts    LockOptions
	logger  *slog.Logger
	metrics *Metrics
	now     func() time.Time

	mu  sync.Mutex
	doc *Document
}

// NewCache returns a cache for the index file at path. Nothing is read until
// the first call.
func NewCache(path string, opts CacheOptions) *Cache {
	metrics := opts.Metrics
	if metrics == nil {
		metrics = NewMetrics(nil)
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Cache{
		path:    path,
		lock:    flock.New(path + ".lock"),
		opts:    opts.Lock.normalized(),
		logger:  logging.NewComponentLogger(opts.Logger, "audioindex"),
		metrics: metrics,
		now:     now,
	}
}

// Path returns the index file location.
func (c *Cache) Path() string { return c.path }

// Add inserts or replaces rec and persists the index.
func (c *Cache) Add(ctx context.Context, rec audio.Record) error {
	if err := rec.Metadata.Normalize().Validate(); err != nil {
		return err
	}
	return c.mutate(ctx, "add", func(doc *Document) (bool, error) {
		return true, doc.Put(rec)
	})
}

// Remove deletes id from the index. Removing an unknown id succeeds without
// rewriting the file; removed reports whether anything changed.
func (c *Cache) Remove(ctx context.Context, id string) (removed bool, err error) {
	err = c.mutate(ctx, "remove", func(doc *Document) (bool, error) {
		removed = doc.Delete(id)
		return removed, nil
	})
	return removed, err
}

// Replace swaps the whole index for records in one locked cycle.
func (c *Cache) Replace(ctx context.Context, records []audio.Record) error {
	fresh := NewDocument()
	for _, rec := range records {
		if err := fresh.Put(rec); err != nil {
			return audio.Wrap(audio.ErrValidation, "audioindex", "replace", fmt.Sprintf("record %s", rec.ID), err)
		}
	}
	return c.mutate(ctx, "replace", func(doc *Document) (bool, error) {
		*doc = *fresh
		return true, nil
	})
}

// Get returns the record with id, or nil when absent.
func (c *Cache) Get(_ context.Context, id string) (*audio.Record, error) {
	doc, err := c.loaded()
	if err != nil {
		return nil, err
	}
	rec, ok := doc.Get(id)
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

// List returns matching records newest first.
func (c *Cache) List(_ context.Context, filter audio.Filter) ([]audio.Record, error) {
	doc, err := c.loaded()
	if err != nil {
		return nil, err
	}
	return doc.List(filter), nil
}

// Stats aggregates the loaded index.
func (c *Cache) Stats(_ context.Context) (audio.Stats, error) {
	doc, err := c.loaded()
	if err != nil {
		return audio.NewStats(), err
	}
	return doc.Stats(), nil
}

// Document returns a copy of the loaded index.
func (c *Cache) Document(_ context.Context) (*Document, error) {
	doc, err := c.loaded()
	if err != nil {
		return nil, err
	}
	return doc.Clone(), nil
}

// Verify re-reads the file from disk and reports stored inconsistencies.
func (c *Cache) Verify(_ context.Context) ([]Issue, error) {
	doc, _, err := ReadFile(c.path)
	if err != nil {
		return nil, audio.Wrap(audio.ErrPersistence, "audioindex", "verify", "", err)
	}
	return doc.Verify(), nil
}

// Invalidate drops the in-memory copy so the next call reloads the file.
func (c *Cache) Invalidate() {
	c.mu.Lock()
	c.doc = nil
	c.mu.Unlock()
}

// Reload reads the file now, replacing the in-memory copy.
func (c *Cache) Reload(_ context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	doc, err := c.readLocked()
	if err != nil {
		return err
	}
	c.doc = doc
	return nil
}

func (c *Cache) loaded() (*Document, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.doc != nil {
		return c.doc, nil
	}
	doc, err := c.readLocked()
	if err != nil {
		return nil, err
	}
	c.doc = doc
	return doc, nil
}

// readLocked reads the file; callers hold c.mu.
func (c *Cache) readLocked() (*Document, error) {
	doc, exists, err := ReadFile(c.path)
	if err != nil {
		return nil, audio.Wrap(audio.ErrPersistence, "audioindex", "load", "", err)
	}
	if issues := doc.Verify(); len(issues) > 0 {
		logging.WarnWithContext(c.logger, "index file is inconsistent", "index_inconsistent",
			logging.String(logging.FieldIndexPath, c.path),
			logging.Int("issue_count", len(issues)),
			logging.String("first_issue", issues[0].String()),
			logging.String(logging.FieldImpact, "buckets were rebuilt from records in memory"),
			logging.String(logging.FieldErrorHint, "run 'audioindex index verify' and rewrite the index"),
		)
	}
	c.logger.Debug("loaded index",
		logging.String(logging.FieldIndexPath, c.path),
		logging.Bool("exists", exists),
		logging.Int("record_count", doc.Len()))
	return doc, nil
}

// mutate runs lock, re-read, apply, write, unlock. The in-memory copy is
// replaced by the freshly written document so changes made by other
// processes since the last load are kept.
func (c *Cache) mutate(ctx context.Context, operation string, apply func(*Document) (bool, error)) error {
	if ctx == nil {
		ctx = context.Background()
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return audio.Wrap(audio.ErrPersistence, "audioindex", operation, "create index directory", err)
	}
	if err := acquireLock(ctx, c.lock, c.opts, c.metrics); err != nil {
		return err
	}
	defer func() {
		if err := c.lock.Unlock(); err != nil {
			c.logger.Warn("failed to release index lock",
				logging.String(logging.FieldEventType, "index_unlock_failed"),
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "remove the stale .lock file if writes keep timing out"),
				logging.String(logging.FieldImpact, "other writers may wait until this process exits"))
		}
	}()

	doc, err := c.readLocked()
	if err != nil {
		return err
	}
	changed, err := apply(doc)
	if err != nil {
		return err
	}
	if !changed {
		c.doc = doc
		return nil
	}

	doc.Version = FormatVersion
	doc.LastUpdated = c.now().UTC()
	doc.issues = nil
	if err := WriteFile(c.path, doc); err != nil {
		// The file still holds the previous state; force a reload next time.
		c.doc = nil
		return audio.Wrap(audio.ErrPersistence, "audioindex", operation, "write index file", err)
	}
	c.doc = doc
	c.logger.Debug("index saved",
		logging.String("operation", operation),
		logging.Int("record_count", doc.Len()))
	return nil
}
