// Package audio defines the records, metadata, filters, and error markers shared
// by every layer of the audio asset index.
//
// An AudioRecord describes one uploaded recording that illustrates part of a
// dictionary entry (the headword, one of its meanings, or one of its examples).
// The blob itself is opaque; records only carry descriptive metadata and a URL
// that resolves to the stored payload.
//
// Errors returned by the storage layers are tagged with the sentinel markers in
// errors.go so callers can classify failures with errors.Is without depending on
// a concrete backend.
package audio
