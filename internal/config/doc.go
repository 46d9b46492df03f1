// Package config loads, normalizes, and validates audioindex configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// AUDIOINDEX_MODE, AUDIOINDEX_DATABASE_DSN and the S3 credential variables. The
// Config type centralizes the backend selection (local or production) so it is
// decided once per process instead of being inferred in several places.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths and clear validation errors.
package config
