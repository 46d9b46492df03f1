package audioservice

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"audioindex/internal/audio"
	"audioindex/internal/audioindex"
	"audioindex/internal/blobstore"
	"audioindex/internal/logging"
)

// Options configures a Service.
type Options struct {
	Logger *slog.Logger
	// Now stamps createdAt and updatedAt. Defaults to time.Now.
	Now func() time.Time
	// NewID generates record ids. Defaults to random UUIDs.
	NewID func() string
}

// Service coordinates the blob store and the record stores of one backend.
type Service struct {
	backend Backend
	blobs   blobstore.Store
	store   *audioindex.Store
	logger  *slog.Logger
	now     func() time.Time
	newID   func() string
}

// New builds a Service on backend.
func New(backend Backend, opts Options) (*Service, error) {
	if backend == nil {
		return nil, errNoBackend
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	newID := opts.NewID
	if newID == nil {
		newID = uuid.NewString
	}
	return &Service{
		backend: backend,
		blobs:   backend.Blobs(),
		store:   backend.Records(),
		logger:  logging.NewComponentLogger(opts.Logger, "audioservice").With(logging.String(logging.FieldBackend, backend.Mode())),
		now:     now,
		newID:   newID,
	}, nil
}

// Mode reports the backend selected at construction.
func (s *Service) Mode() string { return s.backend.Mode() }

// Backend returns the wiring behind the service.
func (s *Service) Backend() Backend { return s.backend }

// Close releases backend resources.
func (s *Service) Close() error { return s.backend.Close() }

// UploadRequest is one recording to store.
type UploadRequest struct {
	Body     io.ReadSeeker
	Filename string
	MimeType string
	Metadata audio.Metadata
}

// UploadBytes is a convenience wrapper around Upload for in-memory payloads.
func (s *Service) UploadBytes(ctx context.Context, data []byte, filename, mimeType string, meta audio.Metadata) (audio.Record, error) {
	return s.Upload(ctx, UploadRequest{
		Body:     bytes.NewReader(data),
		Filename: filename,
		MimeType: mimeType,
		Metadata: meta,
	})
}

// Upload stores the blob, then the record in the primary store and the
// index, strictly in that order. A blob failure leaves nothing behind. A
// record failure after the blob was stored leaves the blob in place and
// returns an error carrying audio.ErrPersistence.
func (s *Service) Upload(ctx context.Context, req UploadRequest) (audio.Record, error) {
	meta := req.Metadata.Normalize()
	if err := meta.Validate(); err != nil {
		return audio.Record{}, err
	}
	if req.Body == nil {
		return audio.Record{}, fmt.Errorf("%w: audio payload is required", audio.ErrValidation)
	}

	id := s.newID()
	originalName := path.Base(strings.ReplaceAll(strings.TrimSpace(req.Filename), "\\", "/"))
	if originalName == "." || originalName == "/" {
		originalName = ""
	}
	key := blobstore.Key(meta.EntryID, meta.Level, id, originalName)
	logger := s.logger.With(
		logging.String(logging.FieldRecordID, id),
		logging.String(logging.FieldEntryID, meta.EntryID),
		logging.String(logging.FieldAudioLevel, string(meta.Level)),
	)

	obj, err := s.blobs.Put(ctx, key, req.Body, req.MimeType)
	if err != nil {
		if !errors.Is(err, audio.ErrStorage) {
			err = audio.Wrap(audio.ErrStorage, "audioservice", "upload", "store blob", err)
		}
		return audio.Record{}, err
	}

	now := s.now().UTC()
	rec := audio.Record{
		ID:           id,
		Filename:     path.Base(obj.Key),
		OriginalName: originalName,
		MimeType:     strings.TrimSpace(req.MimeType),
		Size:         obj.Size,
		Metadata:     meta,
		URL:          obj.URL,
		StorageKey:   obj.Key,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.persist(rec.ID, "upload", s.store.Save(ctx, rec)); err != nil {
		logging.WarnWithContext(logger, "record not stored; blob left in place", "upload_orphaned_blob",
			logging.String(logging.FieldStorageKey, obj.Key),
			logging.Error(err),
			logging.String(logging.FieldImpact, "the uploaded blob is not referenced by any record"),
			logging.String(logging.FieldErrorHint, "retry the upload; the orphaned blob can be removed by hand"),
		)
		return audio.Record{}, err
	}

	logger.Info("audio uploaded",
		logging.String(logging.FieldStorageKey, rec.StorageKey),
		logging.Int64("size_bytes", rec.Size))
	return rec, nil
}

// Delete removes the blob, then the record from the primary store and the
// index. Unknown ids are treated as already deleted.
func (s *Service) Delete(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil
	}
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return audio.Wrap(audio.ErrPersistence, "audioservice", "delete", "look up record", err)
	}
	if rec == nil {
		s.logger.Debug("delete of unknown record ignored", logging.String(logging.FieldRecordID, id))
		return nil
	}

	target := rec.StorageKey
	if target == "" {
		target = rec.URL
	}
	if err := s.blobs.Remove(ctx, target); err != nil {
		if !errors.Is(err, audio.ErrStorage) {
			err = audio.Wrap(audio.ErrStorage, "audioservice", "delete", "remove blob", err)
		}
		return err
	}

	if err := s.persist(id, "delete", s.store.Delete(ctx, id)); err != nil {
		return err
	}
	s.logger.Info("audio deleted",
		logging.String(logging.FieldRecordID, id),
		logging.String(logging.FieldEntryID, rec.Metadata.EntryID))
	return nil
}

// List returns records matching filter, newest first. No matches is an empty
// slice, never an error.
func (s *Service) List(ctx context.Context, filter audio.Filter) ([]audio.Record, error) {
	return s.store.List(ctx, filter)
}

// GetRecord returns the record with id, or nil when it does not exist.
func (s *Service) GetRecord(ctx context.Context, id string) (*audio.Record, error) {
	return s.store.Get(ctx, strings.TrimSpace(id))
}

// GetStats aggregates record counts.
func (s *Service) GetStats(ctx context.Context) (audio.Stats, error) {
	return s.store.Stats(ctx)
}

// Patch lists the fields that may change after upload. Nil fields are left alone.
type Patch struct {
	Duration *float64
	Notes    *string
}

// IsZero reports whether the patch changes nothing.
func (p Patch) IsZero() bool { return p.Duration == nil && p.Notes == nil }

// UpdateMetadata applies patch to the record with id and refreshes updatedAt.
// The blob and the indexed fields are never touched.
func (s *Service) UpdateMetadata(ctx context.Context, id string, patch Patch) (audio.Record, error) {
	id = strings.TrimSpace(id)
	rec, err := s.store.Get(ctx, id)
	if err != nil {
		return audio.Record{}, err
	}
	if rec == nil {
		return audio.Record{}, fmt.Errorf("%w: record %q", audio.ErrNotFound, id)
	}
	if patch.IsZero() {
		return *rec, nil
	}
	if patch.Duration != nil {
		if *patch.Duration < 0 {
			return audio.Record{}, fmt.Errorf("%w: duration must not be negative", audio.ErrValidation)
		}
		d := *patch.Duration
		rec.Duration = &d
	}
	if patch.Notes != nil {
		rec.Metadata.Notes = strings.TrimSpace(*patch.Notes)
	}
	rec.UpdatedAt = s.now().UTC()

	if err := s.persist(id, "update", s.store.Save(ctx, *rec)); err != nil {
		return audio.Record{}, err
	}
	s.logger.Info("audio metadata updated", logging.String(logging.FieldRecordID, id))
	return *rec, nil
}

// RebuildIndex rewrites the index file from the primary store.
func (s *Service) RebuildIndex(ctx context.Context) (int, error) {
	return s.store.Rebuild(ctx)
}

// VerifyIndex reports structural problems in the index file.
func (s *Service) VerifyIndex(ctx context.Context) ([]audioindex.Issue, error) {
	return s.store.Cache().Verify(ctx)
}

// persist turns a dual-write outcome into the caller-visible result. The
// operation fails only when no attempted store holds the change: with a
// primary store that means both sides failed, without one it means the index
// write failed.
func (s *Service) persist(id, operation string, result audioindex.WriteResult) error {
	if result.Primary == audioindex.OutcomeOK || result.Secondary == audioindex.OutcomeOK {
		return nil
	}
	return audio.Wrap(audio.ErrPersistence, "audioservice", operation, "record "+id, result.Err())
}
