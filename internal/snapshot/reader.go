package snapshot

import (
	"context"
	"log/slog"
	"sync"

	"audioindex/internal/audio"
	"audioindex/internal/audioindex"
	"audioindex/internal/logging"
)

// Reader answers lookups from a snapshot file loaded at most once.
type Reader struct {
	path   string
	logger *slog.Logger
	load   func() (*audioindex.Document, error)
}

// NewReader prepares a reader for path. The file is read on first use; every
// later call, including concurrent ones, shares that single load.
func NewReader(path string, logger *slog.Logger) *Reader {
	r := &Reader{
		path:   path,
		logger: logging.NewComponentLogger(logger, "snapshot"),
	}
	r.load = sync.OnceValues(r.readFile)
	return r
}

// Path returns the snapshot file location.
func (r *Reader) Path() string { return r.path }

func (r *Reader) readFile() (*audioindex.Document, error) {
	doc, exists, err := audioindex.ReadFile(r.path)
	if err != nil {
		return nil, audio.Wrap(audio.ErrPersistence, "snapshot", "load", "", err)
	}
	if !exists {
		r.logger.Info("snapshot file not found; serving an empty index",
			logging.String(logging.FieldIndexPath, r.path))
		return doc, nil
	}
	r.logger.Debug("snapshot loaded",
		logging.String(logging.FieldIndexPath, r.path),
		logging.Int("record_count", doc.Len()))
	return doc, nil
}

// Get returns the record with id, or nil when absent.
func (r *Reader) Get(_ context.Context, id string) (*audio.Record, error) {
	doc, err := r.load()
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
func (r *Reader) List(_ context.Context, filter audio.Filter) ([]audio.Record, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.List(filter), nil
}

// Stats aggregates the snapshot.
func (r *Reader) Stats(_ context.Context) (audio.Stats, error) {
	doc, err := r.load()
	if err != nil {
		return audio.NewStats(), err
	}
	return doc.Stats(), nil
}

// HasAudioForEntry reports whether entryID has at least one recording.
func (r *Reader) HasAudioForEntry(_ context.Context, entryID string) (bool, error) {
	doc, err := r.load()
	if err != nil {
		return false, err
	}
	return doc.HasEntry(entryID), nil
}

// EntriesWithAudio lists entry ids that have recordings, sorted.
func (r *Reader) EntriesWithAudio(_ context.Context) ([]string, error) {
	doc, err := r.load()
	if err != nil {
		return nil, err
	}
	return doc.EntriesWithAudio(), nil
}
