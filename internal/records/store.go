package records

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"

	"audioindex/internal/audio"
	"audioindex/internal/config"
	"audioindex/internal/logging"
)

// Options tunes a Store.
type Options struct {
	// Timeout bounds each call. Zero disables the per-call deadline.
	Timeout time.Duration
	Logger  *slog.Logger
}

// Store is the authoritative record collection.
type Store struct {
	db      *sql.DB
	driver  string
	timeout time.Duration
	logger  *slog.Logger

	schemaMu    sync.Mutex
	schemaReady bool
}

// Open connects to driver ("sqlite" or "pgx") at dsn and creates the schema.
// When the database is unreachable the store is still returned together with
// an ErrConnectivity error; schema creation is retried on the next call.
func Open(ctx context.Context, driverName, dsn string, opts Options) (*Store, error) {
	if driverName != config.DriverSQLite && driverName != config.DriverPgx {
		return nil, fmt.Errorf("records: unsupported driver %q", driverName)
	}
	if driverName == config.DriverSQLite {
		if dir := filepath.Dir(dsn); dir != "" && !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("records: ensure database directory: %w", err)
			}
		}
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("records: open %s db: %w", driverName, err)
	}
	if driverName == config.DriverSQLite {
		// One writer connection avoids SQLITE_BUSY between pooled connections.
		db.SetMaxOpenConns(1)
	}

	store := &Store{
		db:      db,
		driver:  driverName,
		timeout: opts.Timeout,
		logger:  logging.NewComponentLogger(opts.Logger, "records"),
	}

	if driverName == config.DriverSQLite {
		pragmas := []string{
			"PRAGMA journal_mode=WAL",
			"PRAGMA busy_timeout = 5000",
		}
		for _, pragma := range pragmas {
			if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
				_ = db.Close()
				return nil, classify("open", fmt.Errorf("apply pragma %q: %w", pragma, execErr))
			}
		}
	}

	schemaCtx, cancel := store.withTimeout(ctx)
	defer cancel()
	if err := store.ensureSchema(schemaCtx); err != nil {
		if errors.Is(err, audio.ErrConnectivity) {
			logging.WarnWithContext(store.logger, "primary store unreachable at startup", "records_unreachable",
				logging.Error(err),
				logging.String(logging.FieldImpact, "reads fall back to the index file until the database returns"),
				logging.String(logging.FieldErrorHint, "check database.dsn and that the database is running"),
			)
			return store, err
		}
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// OpenFromConfig opens the store described by the [database] section.
func OpenFromConfig(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	return Open(ctx, cfg.Database.Driver, cfg.Database.DSN, Options{
		Timeout: cfg.DatabaseTimeout(),
		Logger:  logger,
	})
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Driver returns the database/sql driver name.
func (s *Store) Driver() string { return s.driver }

// Ping checks that the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	return classify("ping", s.db.PingContext(ctx))
}

// Upsert inserts rec or replaces the row with the same id.
func (s *Store) Upsert(ctx context.Context, rec audio.Record) error {
	if strings.TrimSpace(rec.ID) == "" {
		return audio.Wrap(audio.ErrValidation, "records", "upsert", "record id is required", nil)
	}
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}

	query := s.rebind(`INSERT INTO audio_records (` + recordColumns + `)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
        ON CONFLICT (id) DO UPDATE SET
            filename = excluded.filename,
            original_name = excluded.original_name,
            mime_type = excluded.mime_type,
            size = excluded.size,
            duration = excluded.duration,
            entry_id = excluded.entry_id,
            level = excluded.level,
            level_id = excluded.level_id,
            speaker = excluded.speaker,
            dialect = excluded.dialect,
            quality = excluded.quality,
            notes = excluded.notes,
            url = excluded.url,
            storage_key = excluded.storage_key,
            created_at = excluded.created_at,
            updated_at = excluded.updated_at`)
	m := rec.Metadata
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query,
			rec.ID,
			rec.Filename,
			rec.OriginalName,
			rec.MimeType,
			rec.Size,
			nullableFloat(rec.Duration),
			m.EntryID,
			string(m.Level),
			nullableString(m.LevelID),
			nullableString(m.Speaker),
			nullableString(m.Dialect),
			nullableString(m.Quality),
			nullableString(m.Notes),
			rec.URL,
			rec.StorageKey,
			formatTime(rec.CreatedAt),
			formatTime(rec.UpdatedAt),
		)
		return execErr
	})
	return classify("upsert", err)
}

// Remove deletes the row with id. Missing rows are not an error.
func (s *Store) Remove(ctx context.Context, id string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	query := s.rebind("DELETE FROM audio_records WHERE id = ?")
	err := retryOnBusy(ctx, func() error {
		_, execErr := s.db.ExecContext(ctx, query, id)
		return execErr
	})
	return classify("remove", err)
}

// Get returns the record with id, or nil when absent.
func (s *Store) Get(ctx context.Context, id string) (*audio.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	row := s.db.QueryRowContext(ctx, s.rebind(`SELECT `+recordColumns+` FROM audio_records WHERE id = ?`), id)
	rec, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, classify("get", err)
	}
	return rec, nil
}

// Query returns records matching every populated filter field, newest first.
func (s *Store) Query(ctx context.Context, filter audio.Filter) ([]audio.Record, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}

	filter = filter.Normalize()
	var (
		clauses []string
		args    []any
	)
	add := func(column, value string) {
		if value == "" {
			return
		}
		clauses = append(clauses, column+" = ?")
		args = append(args, value)
	}
	add("entry_id", filter.EntryID)
	add("level", string(filter.Level))
	add("level_id", filter.LevelID)
	add("speaker", filter.Speaker)
	add("dialect", filter.Dialect)

	query := `SELECT ` + recordColumns + ` FROM audio_records`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id ASC"

	rows, err := s.db.QueryContext(ctx, s.rebind(query), args...)
	if err != nil {
		return nil, classify("query", err)
	}
	defer rows.Close()

	var result []audio.Record
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, classify("query", err)
		}
		result = append(result, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, classify("query", err)
	}
	return result, nil
}

// Stats aggregates totals over the whole collection.
func (s *Store) Stats(ctx context.Context) (audio.Stats, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()
	stats := audio.NewStats()
	if err := s.ensureSchema(ctx); err != nil {
		return stats, err
	}

	row := s.db.QueryRowContext(ctx, `SELECT COUNT(*), COUNT(DISTINCT entry_id) FROM audio_records`)
	if err := row.Scan(&stats.TotalRecords, &stats.EntriesWithAudio); err != nil {
		return audio.NewStats(), classify("stats", err)
	}

	rows, err := s.db.QueryContext(ctx, `SELECT level, COUNT(*) FROM audio_records GROUP BY level`)
	if err != nil {
		return audio.NewStats(), classify("stats", err)
	}
	defer rows.Close()
	for rows.Next() {
		var (
			level string
			count int
		)
		if err := rows.Scan(&level, &count); err != nil {
			return audio.NewStats(), classify("stats", err)
		}
		stats.RecordsByLevel[audio.Level(level)] = count
	}
	if err := rows.Err(); err != nil {
		return audio.NewStats(), classify("stats", err)
	}
	return stats, nil
}

func (s *Store) ensureSchema(ctx context.Context) error {
	s.schemaMu.Lock()
	defer s.schemaMu.Unlock()
	if s.schemaReady {
		return nil
	}
	if err := s.initSchema(ctx); err != nil {
		if errors.Is(err, ErrSchemaMismatch) {
			return audio.Wrap(audio.ErrPersistence, "records", "schema", "", err)
		}
		return classify("schema", err)
	}
	s.schemaReady = true
	return nil
}

func (s *Store) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Store) rebind(query string) string {
	return rebind(s.driver, query)
}
