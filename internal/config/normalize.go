package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeBackend()
	c.normalizeStorage()
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.BlobDir) == "" {
		c.Paths.BlobDir = filepath.Join(c.Paths.DataDir, defaultBlobDirName)
	}
	if c.Paths.BlobDir, err = expandPath(c.Paths.BlobDir); err != nil {
		return fmt.Errorf("paths.blob_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.IndexPath) == "" {
		c.Paths.IndexPath = filepath.Join(c.Paths.DataDir, defaultIndexFileName)
	}
	if c.Paths.IndexPath, err = expandPath(c.Paths.IndexPath); err != nil {
		return fmt.Errorf("paths.index_path: %w", err)
	}
	if strings.TrimSpace(c.Paths.SnapshotPath) == "" {
		c.Paths.SnapshotPath = filepath.Join(c.Paths.DataDir, defaultSnapshotFileName)
	}
	if c.Paths.SnapshotPath, err = expandPath(c.Paths.SnapshotPath); err != nil {
		return fmt.Errorf("paths.snapshot_path: %w", err)
	}
	return nil
}

func (c *Config) normalizeBackend() {
	if value, ok := os.LookupEnv("AUDIOINDEX_MODE"); ok && strings.TrimSpace(value) != "" {
		c.Backend.Mode = value
	}
	c.Backend.Mode = strings.ToLower(strings.TrimSpace(c.Backend.Mode))
	if c.Backend.Mode == "" {
		c.Backend.Mode = defaultMode
	}
}

func (c *Config) normalizeStorage() {
	if value, ok := os.LookupEnv("AUDIOINDEX_S3_ACCESS_KEY_ID"); ok {
		c.Storage.AccessKeyID = value
	}
	if value, ok := os.LookupEnv("AUDIOINDEX_S3_SECRET_ACCESS_KEY"); ok {
		c.Storage.SecretKey = value
	}
	c.Storage.Endpoint = strings.TrimRight(strings.TrimSpace(c.Storage.Endpoint), "/")
	c.Storage.Region = strings.TrimSpace(c.Storage.Region)
	if c.Storage.Region == "" {
		c.Storage.Region = defaultRegion
	}
	c.Storage.Bucket = strings.TrimSpace(c.Storage.Bucket)
	c.Storage.Prefix = strings.Trim(strings.TrimSpace(c.Storage.Prefix), "/")
	c.Storage.AccessKeyID = strings.TrimSpace(c.Storage.AccessKeyID)
	c.Storage.SecretKey = strings.TrimSpace(c.Storage.SecretKey)
	c.Storage.PublicBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.PublicBaseURL), "/")
	c.Storage.LocalBaseURL = strings.TrimRight(strings.TrimSpace(c.Storage.LocalBaseURL), "/")
	if c.Storage.LocalBaseURL == "" {
		c.Storage.LocalBaseURL = defaultLocalBaseURL
	}
}

func (c *Config) normalizeDatabase() error {
	if value, ok := os.LookupEnv("AUDIOINDEX_DATABASE_DSN"); ok && strings.TrimSpace(value) != "" {
		c.Database.DSN = value
	}
	c.Database.Driver = strings.ToLower(strings.TrimSpace(c.Database.Driver))
	if c.Database.Driver == "" {
		c.Database.Driver = defaultDriver
	}
	c.Database.DSN = strings.TrimSpace(c.Database.DSN)
	if c.Database.DSN == "" && c.Database.Driver == DriverSQLite {
		c.Database.DSN = filepath.Join(c.Paths.DataDir, defaultDatabaseFileName)
	}
	if c.Database.Driver == DriverSQLite && strings.HasPrefix(c.Database.DSN, "~") {
		expanded, err := expandPath(c.Database.DSN)
		if err != nil {
			return fmt.Errorf("database.dsn: %w", err)
		}
		c.Database.DSN = expanded
	}
	return nil
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if dir := strings.TrimSpace(c.Logging.Dir); dir != "" {
		if expanded, err := expandPath(dir); err == nil {
			c.Logging.Dir = expanded
		}
	}
}
