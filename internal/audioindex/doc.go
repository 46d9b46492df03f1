// Package audioindex keeps the secondary index of audio records: a JSON file
// holding every record plus two denormalized lookup tables (entry id to
// record ids, level to record ids).
//
// Document is the in-memory model and the on-disk format shared with the
// build-time snapshot. Cache loads the file lazily and persists every
// mutation inside an exclusive file lock, re-reading the file under the lock
// so concurrent processes never lose each other's writes. Store layers the
// cache under the primary record store: writes go to both, reads prefer the
// primary and fall back to the cache only when the primary is unreachable.
package audioindex
