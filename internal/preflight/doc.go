// Package preflight provides readiness checks for the paths and services
// audioindex depends on.
//
// The CLI "audioindex check" command runs RunAll and prints one line per
// result. Production-only checks (database, object store) are skipped for the
// local backend.
package preflight
