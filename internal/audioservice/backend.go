package audioservice

import (
	"errors"
	"log/slog"

	"audioindex/internal/audioindex"
	"audioindex/internal/blobstore"
	"audioindex/internal/config"
	"audioindex/internal/records"
)

// Backend is the storage wiring behind a Service. The set of implementations
// is closed: LocalBackend and ProductionBackend.
type Backend interface {
	// Mode returns config.ModeLocal or config.ModeProduction.
	Mode() string
	Blobs() blobstore.Store
	Records() *audioindex.Store
	Close() error

	sealed()
}

// LocalBackend stores blobs on the filesystem and records only in the index file.
type LocalBackend struct {
	blobs *blobstore.Local
	store *audioindex.Store
}

// NewLocalBackend wires a filesystem blob store with an index-only record store.
func NewLocalBackend(blobs *blobstore.Local, cache *audioindex.Cache, logger *slog.Logger) *LocalBackend {
	return &LocalBackend{blobs: blobs, store: audioindex.NewStore(nil, cache, logger, nil)}
}

func (b *LocalBackend) Mode() string               { return config.ModeLocal }
func (b *LocalBackend) Blobs() blobstore.Store     { return b.blobs }
func (b *LocalBackend) Records() *audioindex.Store { return b.store }
func (b *LocalBackend) Close() error               { return nil }
func (b *LocalBackend) sealed()                    {}

// ProductionBackend stores blobs remotely and records in the primary store,
// with the index file as fallback.
type ProductionBackend struct {
	blobs   blobstore.Store
	primary audioindex.PrimaryStore
	store   *audioindex.Store
}

// NewProductionBackend wires a remote blob store, the primary record store and
// the index cache.
func NewProductionBackend(blobs blobstore.Store, primary audioindex.PrimaryStore, cache *audioindex.Cache, logger *slog.Logger) *ProductionBackend {
	return &ProductionBackend{
		blobs:   blobs,
		primary: primary,
		store:   audioindex.NewStore(primary, cache, logger, nil),
	}
}

func (b *ProductionBackend) Mode() string               { return config.ModeProduction }
func (b *ProductionBackend) Blobs() blobstore.Store     { return b.blobs }
func (b *ProductionBackend) Records() *audioindex.Store { return b.store }
func (b *ProductionBackend) sealed()                    {}

// Close releases the primary store connection when it holds one.
func (b *ProductionBackend) Close() error {
	if closer, ok := b.primary.(interface{ Close() error }); ok {
		return closer.Close()
	}
	return nil
}

// Primary returns the database-backed store when the backend was opened from
// config, or nil for other PrimaryStore implementations.
func (b *ProductionBackend) Primary() *records.Store {
	store, _ := b.primary.(*records.Store)
	return store
}

var errNoBackend = errors.New("audioservice: backend is required")
