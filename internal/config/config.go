package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Backend modes. The mode is fixed for the lifetime of a process.
const (
	ModeLocal      = "local"
	ModeProduction = "production"
)

// Database drivers accepted by [database].driver.
const (
	DriverSQLite = "sqlite"
	DriverPgx    = "pgx"
)

// Paths contains on-disk locations.
type Paths struct {
	DataDir      string `toml:"data_dir"`
	BlobDir      string `toml:"blob_dir"`
	IndexPath    string `toml:"index_path"`
	SnapshotPath string `toml:"snapshot_path"`
}

// Backend selects the storage strategy.
type Backend struct {
	Mode string `toml:"mode"`
}

// Storage contains remote object store settings used in production mode.
type Storage struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	Prefix         string `toml:"prefix"`
	AccessKeyID    string `toml:"access_key_id"`
	SecretKey      string `toml:"secret_access_key"`
	PublicBaseURL  string `toml:"public_base_url"`
	ForcePathStyle bool   `toml:"force_path_style"`
	// LocalBaseURL is the URL prefix used for blobs written by the local backend.
	LocalBaseURL   string `toml:"local_base_url"`
}

// Database contains primary record store settings used in production mode.
type Database struct {
	Driver         string `toml:"driver"`
	DSN            string `toml:"dsn"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Index contains index file locking settings.
type Index struct {
	LockAttempts         int `toml:"lock_attempts"`
	LockInitialBackoffMS int `toml:"lock_initial_backoff_ms"`
	LockMaxBackoffMS     int `toml:"lock_max_backoff_ms"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	Dir    string `toml:"dir"`
}

// Config encapsulates all configuration values for audioindex.
//
// Configuration sections by subsystem:
//   - Paths: data, blob, index and snapshot locations
//   - Backend: local or production wiring
//   - Storage: remote object store (production)
//   - Database: primary record store (production)
//   - Index: index file lock retry budget
//   - Logging: log format, level, and optional log directory
type Config struct {
	Paths    Paths    `toml:"paths"`
	Backend  Backend  `toml:"backend"`
	Storage  Storage  `toml:"storage"`
	Database Database `toml:"database"`
	Index    Index    `toml:"index"`
	Logging  Logging  `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("audioindex.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the data directory, the blob directory for the
// local backend, and the parent directory of the index file.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, filepath.Dir(c.Paths.IndexPath)}
	if c.IsLocal() {
		dirs = append(dirs, c.Paths.BlobDir)
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// IsLocal reports whether the local backend is selected.
func (c *Config) IsLocal() bool {
	return c.Backend.Mode == ModeLocal
}

// DatabaseTimeout returns the per-call timeout applied to primary store operations.
func (c *Config) DatabaseTimeout() time.Duration {
	return time.Duration(c.Database.TimeoutSeconds) * time.Second
}

// LockBackoff returns the initial and maximum wait between index lock attempts.
func (c *Config) LockBackoff() (initial, max time.Duration) {
	return time.Duration(c.Index.LockInitialBackoffMS) * time.Millisecond,
		time.Duration(c.Index.LockMaxBackoffMS) * time.Millisecond
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
