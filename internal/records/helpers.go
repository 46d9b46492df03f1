package records

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"audioindex/internal/audio"
)

// timeLayout is fixed width so text comparison orders timestamps correctly.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const recordColumns = "id, filename, original_name, mime_type, size, duration, entry_id, level, level_id, speaker, dialect, quality, notes, url, storage_key, created_at, updated_at"

const (
	sqliteBusyCode          = 5
	sqliteIOErrCode         = 10
	sqliteCantOpenCode      = 14
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*audio.Record, error) {
	var (
		rec        audio.Record
		level      string
		duration   sql.NullFloat64
		levelID    sql.NullString
		speaker    sql.NullString
		dialect    sql.NullString
		quality    sql.NullString
		notes      sql.NullString
		createdRaw string
		updatedRaw string
	)
	if err := scanner.Scan(
		&rec.ID,
		&rec.Filename,
		&rec.OriginalName,
		&rec.MimeType,
		&rec.Size,
		&duration,
		&rec.Metadata.EntryID,
		&level,
		&levelID,
		&speaker,
		&dialect,
		&quality,
		&notes,
		&rec.URL,
		&rec.StorageKey,
		&createdRaw,
		&updatedRaw,
	); err != nil {
		return nil, err
	}
	rec.Metadata.Level = audio.Level(level)
	rec.Metadata.LevelID = levelID.String
	rec.Metadata.Speaker = speaker.String
	rec.Metadata.Dialect = dialect.String
	rec.Metadata.Quality = quality.String
	rec.Metadata.Notes = notes.String
	if duration.Valid {
		d := duration.Float64
		rec.Duration = &d
	}
	if created, err := parseTime(createdRaw); err == nil {
		rec.CreatedAt = created
	}
	if updated, err := parseTime(updatedRaw); err == nil {
		rec.UpdatedAt = updated
	}
	return &rec, nil
}

func formatTime(value time.Time) string {
	return value.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if t, err := time.Parse(timeLayout, value); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339Nano, value)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableFloat(value *float64) any {
	if value == nil {
		return nil
	}
	return *value
}

// rebind rewrites "?" placeholders to "$n" for PostgreSQL.
func rebind(driverName, query string) string {
	if driverName != "pgx" || !strings.Contains(query, "?") {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func sqliteCode(err error) (int, bool) {
	var coder interface{ Code() int }
	if errors.As(err, &coder) {
		return coder.Code() & 0xff, true
	}
	return 0, false
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	if code, ok := sqliteCode(err); ok && code == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

// isConnectivity reports whether err means the database could not be reached,
// as opposed to a query that ran and failed.
func isConnectivity(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, sql.ErrConnDone) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var connectErr *pgconn.ConnectError
	if errors.As(err, &connectErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, "08") || strings.HasPrefix(pgErr.Code, "57P")
	}
	if code, ok := sqliteCode(err); ok {
		switch code {
		case sqliteBusyCode, sqliteIOErrCode, sqliteCantOpenCode:
			return true
		}
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") || strings.Contains(msg, "database is locked")
}

// classify tags err with ErrConnectivity or ErrPersistence.
func classify(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isConnectivity(err) {
		return audio.Wrap(audio.ErrConnectivity, "records", operation, "", err)
	}
	return audio.Wrap(audio.ErrPersistence, "records", operation, "", err)
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
