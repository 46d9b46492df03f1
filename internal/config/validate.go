package config

import (
	"errors"
	"fmt"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateBackend(); err != nil {
		return err
	}
	if err := c.validateStorage(); err != nil {
		return err
	}
	if err := c.validateDatabase(); err != nil {
		return err
	}
	if err := c.validateIndex(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateBackend() error {
	switch c.Backend.Mode {
	case ModeLocal, ModeProduction:
		return nil
	default:
		return fmt.Errorf("backend.mode must be %q or %q, got %q", ModeLocal, ModeProduction, c.Backend.Mode)
	}
}

func (c *Config) validateStorage() error {
	if c.IsLocal() {
		return nil
	}
	if c.Storage.Bucket == "" {
		return errors.New("storage.bucket must be set when backend.mode is production")
	}
	if c.Storage.Region == "" {
		return errors.New("storage.region must be set when backend.mode is production")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	if c.IsLocal() {
		return nil
	}
	switch c.Database.Driver {
	case DriverSQLite, DriverPgx:
	default:
		return fmt.Errorf("database.driver must be %q or %q, got %q", DriverSQLite, DriverPgx, c.Database.Driver)
	}
	if c.Database.DSN == "" {
		return errors.New("database.dsn must be set when backend.mode is production (or export AUDIOINDEX_DATABASE_DSN)")
	}
	if c.Database.TimeoutSeconds <= 0 {
		return errors.New("database.timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateIndex() error {
	if c.Index.LockAttempts <= 0 {
		return errors.New("index.lock_attempts must be positive")
	}
	if c.Index.LockInitialBackoffMS <= 0 {
		return errors.New("index.lock_initial_backoff_ms must be positive")
	}
	if c.Index.LockMaxBackoffMS < c.Index.LockInitialBackoffMS {
		return errors.New("index.lock_max_backoff_ms must be at least index.lock_initial_backoff_ms")
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	return nil
}
