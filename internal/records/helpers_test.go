package records

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestRebind(t *testing.T) {
	query := "SELECT x FROM t WHERE a = ? AND b = ?"
	if got := rebind("sqlite", query); got != query {
		t.Fatalf("sqlite query should be unchanged, got %q", got)
	}
	if got := rebind("pgx", query); got != "SELECT x FROM t WHERE a = $1 AND b = $2" {
		t.Fatalf("unexpected pgx query %q", got)
	}
}

type codedError struct{ code int }

func (e codedError) Error() string { return fmt.Sprintf("sqlite error %d", e.code) }
func (e codedError) Code() int     { return e.code }

func TestIsConnectivity(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"bad conn", fmt.Errorf("exec: %w", driver.ErrBadConn), true},
		{"deadline", context.DeadlineExceeded, true},
		{"pg connection exception", &pgconn.PgError{Code: "08006"}, true},
		{"pg admin shutdown", &pgconn.PgError{Code: "57P01"}, true},
		{"pg unique violation", &pgconn.PgError{Code: "23505"}, false},
		{"sqlite cantopen", codedError{code: 14}, true},
		{"sqlite extended ioerr", codedError{code: 10 | (1 << 8)}, true},
		{"sqlite constraint", codedError{code: 19}, false},
		{"closed", errors.New("sql: database is closed"), true},
		{"syntax", errors.New("near \"SELEC\": syntax error"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isConnectivity(tt.err); got != tt.want {
				t.Fatalf("isConnectivity(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestSortableTimeLayout(t *testing.T) {
	early, _ := parseTime("2026-01-01T00:00:04.000000000Z")
	late, _ := parseTime("2026-01-01T00:00:04.500000000Z")
	if !(formatTime(early) < formatTime(late)) {
		t.Fatalf("expected fixed-width layout to sort lexically: %s vs %s", formatTime(early), formatTime(late))
	}
}
