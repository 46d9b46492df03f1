package audioindex

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"audioindex/internal/audio"
	"audioindex/internal/logging"
)

// PrimaryStore is the authoritative record collection mirrored by the index.
// Get returns nil, nil when the record does not exist. Errors that mean the
// store could not be reached must carry audio.ErrConnectivity.
type PrimaryStore interface {
	Upsert(ctx context.Context, rec audio.Record) error
	Remove(ctx context.Context, id string) error
	Get(ctx context.Context, id string) (*audio.Record, error)
	Query(ctx context.Context, filter audio.Filter) ([]audio.Record, error)
	Stats(ctx context.Context) (audio.Stats, error)
}

// Outcome is the result of one side of a dual write.
type Outcome string

const (
	OutcomeOK      Outcome = "ok"
	OutcomeFailed  Outcome = "failed"
	OutcomeSkipped Outcome = "skipped"
)

// WriteResult records what happened on each side of a dual write. Failures are
// logged and kept here rather than returned, so callers decide which side must
// succeed.
type WriteResult struct {
	Primary      Outcome
	Secondary    Outcome
	PrimaryErr   error
	SecondaryErr error
}

// Err joins both failures, or returns nil when neither side failed.
func (r WriteResult) Err() error {
	return errors.Join(r.PrimaryErr, r.SecondaryErr)
}

// ReadSource names where a read was served from.
type ReadSource string

const (
	SourcePrimary ReadSource = "primary"
	SourceIndex   ReadSource = "index"
)

// Store writes through to the primary store and the index cache, and reads
// from the primary with the index as fallback. A nil primary makes the index
// the only, authoritative store.
type Store struct {
	primary PrimaryStore
	cache   *Cache
	logger  *slog.Logger
	metrics *Metrics
}

// NewStore wires primary (may be nil) and cache together.
func NewStore(primary PrimaryStore, cache *Cache, logger *slog.Logger, metrics *Metrics) *Store {
	if metrics == nil {
		metrics = cache.metrics
	}
	return &Store{
		primary: primary,
		cache:   cache,
		logger:  logging.NewComponentLogger(logger, "audioindex"),
		metrics: metrics,
	}
}

// Cache exposes the underlying index cache.
func (s *Store) Cache() *Cache { return s.cache }

// HasPrimary reports whether a primary store is wired.
func (s *Store) HasPrimary() bool { return s.primary != nil }

// Save mirrors rec into the primary store, then adds it to the index. A
// primary failure does not stop the index write.
func (s *Store) Save(ctx context.Context, rec audio.Record) WriteResult {
	result := WriteResult{Primary: OutcomeSkipped, Secondary: OutcomeOK}
	if s.primary != nil {
		if err := s.primary.Upsert(ctx, rec); err != nil {
			result.Primary, result.PrimaryErr = OutcomeFailed, err
			s.writeFailed("primary", "save", rec.ID, err,
				"record saved to the index file only; the primary store is missing it",
				"re-save the record once the database is reachable")
		} else {
			result.Primary = OutcomeOK
		}
	}
	if err := s.cache.Add(ctx, rec); err != nil {
		result.Secondary, result.SecondaryErr = OutcomeFailed, err
		s.writeFailed("index", "save", rec.ID, err,
			"index file is missing the record; fallback reads will not see it",
			"run 'audioindex index rebuild' once the lock is free")
	}
	return result
}

// Delete removes id from the primary store, then from the index.
func (s *Store) Delete(ctx context.Context, id string) WriteResult {
	result := WriteResult{Primary: OutcomeSkipped, Secondary: OutcomeOK}
	if s.primary != nil {
		if err := s.primary.Remove(ctx, id); err != nil {
			result.Primary, result.PrimaryErr = OutcomeFailed, err
			s.writeFailed("primary", "delete", id, err,
				"record still exists in the primary store",
				"delete the record again once the database is reachable")
		} else {
			result.Primary = OutcomeOK
		}
	}
	if _, err := s.cache.Remove(ctx, id); err != nil {
		result.Secondary, result.SecondaryErr = OutcomeFailed, err
		s.writeFailed("index", "delete", id, err,
			"index file still lists the record; fallback reads may return it",
			"run 'audioindex index rebuild' once the lock is free")
	}
	return result
}

// Get returns the record with id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*audio.Record, error) {
	rec, _, err := s.GetFrom(ctx, id)
	return rec, err
}

// GetFrom is Get that also reports which store answered.
func (s *Store) GetFrom(ctx context.Context, id string) (*audio.Record, ReadSource, error) {
	if s.primary != nil {
		rec, err := s.primary.Get(ctx, id)
		if !s.shouldFallBack("get", err) {
			return rec, SourcePrimary, err
		}
	}
	rec, err := s.cache.Get(ctx, id)
	return rec, SourceIndex, err
}

// List returns matching records newest first. The result is never nil on success.
func (s *Store) List(ctx context.Context, filter audio.Filter) ([]audio.Record, error) {
	records, _, err := s.ListFrom(ctx, filter)
	return records, err
}

// ListFrom is List that also reports which store answered.
func (s *Store) ListFrom(ctx context.Context, filter audio.Filter) ([]audio.Record, ReadSource, error) {
	if s.primary != nil {
		records, err := s.primary.Query(ctx, filter)
		if !s.shouldFallBack("list", err) {
			if err == nil && records == nil {
				records = []audio.Record{}
			}
			return records, SourcePrimary, err
		}
	}
	records, err := s.cache.List(ctx, filter)
	return records, SourceIndex, err
}

// Stats aggregates record counts.
func (s *Store) Stats(ctx context.Context) (audio.Stats, error) {
	stats, _, err := s.StatsFrom(ctx)
	return stats, err
}

// StatsFrom is Stats that also reports which store answered.
func (s *Store) StatsFrom(ctx context.Context) (audio.Stats, ReadSource, error) {
	if s.primary != nil {
		stats, err := s.primary.Stats(ctx)
		if !s.shouldFallBack("stats", err) {
			return stats, SourcePrimary, err
		}
	}
	stats, err := s.cache.Stats(ctx)
	return stats, SourceIndex, err
}

// Rebuild replaces the index with the primary store's full contents and
// returns the number of records written.
func (s *Store) Rebuild(ctx context.Context) (int, error) {
	if s.primary == nil {
		return 0, fmt.Errorf("rebuild: no primary store configured; the index file is authoritative")
	}
	records, err := s.primary.Query(ctx, audio.Filter{})
	if err != nil {
		return 0, err
	}
	if err := s.cache.Replace(ctx, records); err != nil {
		return 0, err
	}
	s.logger.Info("index rebuilt from primary store",
		logging.Int("record_count", len(records)),
		logging.String(logging.FieldIndexPath, s.cache.Path()))
	return len(records), nil
}

// shouldFallBack reports whether err is a connectivity failure, logging and
// counting the fallback when it is.
func (s *Store) shouldFallBack(operation string, err error) bool {
	if err == nil || !errors.Is(err, audio.ErrConnectivity) {
		return false
	}
	s.metrics.FallbackReads.WithLabelValues(operation).Inc()
	logging.WarnWithContext(s.logger, "primary store unreachable; serving from index file", "index_fallback_read",
		logging.String("operation", operation),
		logging.Error(err),
		logging.String(logging.FieldImpact, "results may miss writes made while the index was unavailable"),
		logging.String(logging.FieldErrorHint, "check database connectivity"),
	)
	return true
}

func (s *Store) writeFailed(store, operation, id string, err error, impact, hint string) {
	s.metrics.FailedWrites.WithLabelValues(store, operation).Inc()
	logging.WarnWithContext(s.logger, store+" write failed", store+"_write_failed",
		logging.String(logging.FieldRecordID, id),
		logging.String("operation", operation),
		logging.Error(err),
		logging.String(logging.FieldImpact, impact),
		logging.String(logging.FieldErrorHint, hint),
	)
}
