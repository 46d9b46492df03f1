package testsupport

import (
	"path/filepath"
	"testing"

	"audioindex/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a local-mode config rooted in a unique temp directory.
// Every path is absolute and the lock budget is short so contention tests
// finish quickly.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = base
	cfgVal.Paths.BlobDir = filepath.Join(base, "audio")
	cfgVal.Paths.IndexPath = filepath.Join(base, "audio-index.json")
	cfgVal.Paths.SnapshotPath = filepath.Join(base, "audio-snapshot.json")
	cfgVal.Database.DSN = filepath.Join(base, "audio.db")
	cfgVal.Index.LockAttempts = 3
	cfgVal.Index.LockInitialBackoffMS = 1
	cfgVal.Index.LockMaxBackoffMS = 4

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	if err := builder.cfg.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return builder.cfg
}

// WithProduction selects the production backend against a placeholder bucket
// and the sqlite database under the temp directory.
func WithProduction() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Backend.Mode = config.ModeProduction
		b.cfg.Storage.Bucket = "test-audio"
		b.cfg.Storage.AccessKeyID = "test"
		b.cfg.Storage.SecretKey = "test"
		b.cfg.Storage.Endpoint = "http://127.0.0.1:1"
		b.cfg.Storage.ForcePathStyle = true
	}
}

// WithLockAttempts overrides the index lock retry budget.
func WithLockAttempts(n int) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Index.LockAttempts = n
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return cfg.Paths.DataDir
}
