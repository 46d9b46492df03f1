package audioservice

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"audioindex/internal/audio"
	"audioindex/internal/audioindex"
	"audioindex/internal/blobstore"
	"audioindex/internal/config"
	"audioindex/internal/records"
)

// Open builds the Service selected by cfg.Backend.Mode. The choice is made
// here once; nothing downstream inspects the mode again. reg receives the
// index metrics and may be nil.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (*Service, error) {
	if cfg == nil {
		return nil, errors.New("audioservice: config is required")
	}
	backend, err := OpenBackend(ctx, cfg, logger, reg)
	if err != nil {
		return nil, err
	}
	return New(backend, Options{Logger: logger})
}

// OpenBackend wires the backend named by cfg.Backend.Mode.
func OpenBackend(ctx context.Context, cfg *config.Config, logger *slog.Logger, reg prometheus.Registerer) (Backend, error) {
	cache := NewCacheFromConfig(cfg, logger, audioindex.NewMetrics(reg))

	switch cfg.Backend.Mode {
	case config.ModeLocal:
		blobs, err := blobstore.NewLocal(cfg.Paths.BlobDir, cfg.Storage.LocalBaseURL)
		if err != nil {
			return nil, err
		}
		return NewLocalBackend(blobs, cache, logger), nil
	case config.ModeProduction:
		blobs, err := blobstore.NewS3FromConfig(cfg.Storage)
		if err != nil {
			return nil, err
		}
		primary, err := records.OpenFromConfig(ctx, cfg, logger)
		if err != nil && !errors.Is(err, audio.ErrConnectivity) {
			return nil, err
		}
		// An unreachable database is tolerated; reads use the index until it returns.
		return NewProductionBackend(blobs, primary, cache, logger), nil
	default:
		return nil, fmt.Errorf("audioservice: unknown backend mode %q", cfg.Backend.Mode)
	}
}

// NewCacheFromConfig returns the index cache described by the [paths] and
// [index] sections.
func NewCacheFromConfig(cfg *config.Config, logger *slog.Logger, metrics *audioindex.Metrics) *audioindex.Cache {
	initial, max := cfg.LockBackoff()
	return audioindex.NewCache(cfg.Paths.IndexPath, audioindex.CacheOptions{
		Lock: audioindex.LockOptions{
			Attempts:       cfg.Index.LockAttempts,
			InitialBackoff: initial,
			MaxBackoff:     max,
		},
		Logger:  logger,
		Metrics: metrics,
	})
}
