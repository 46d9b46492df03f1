// Package blobstore persists opaque audio payloads and resolves their public URLs.
//
// Two interchangeable implementations exist: Local writes under a directory
// tree on disk and S3 uploads to a bucket. Both lay blobs out with the same
// key scheme (see Key) so switching backends only changes where bytes live.
package blobstore

import (
	"context"
	"io"
	"path"
	"strings"

	"audioindex/internal/audio"
)

// Object describes a stored payload.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// Store is the contract shared by the filesystem and object store backends.
type Store interface {
	// Put writes body under key and returns its retrieval URL. Writing the
	// same key twice replaces the payload.
	Put(ctx context.Context, key string, body io.ReadSeeker, contentType string) (Object, error)
	// Remove deletes the payload addressed by a storage key or a URL returned
	// by ResolveURL. Missing payloads are not an error.
	Remove(ctx context.Context, keyOrURL string) error
	// ResolveURL maps a storage key to its retrieval URL without I/O.
	ResolveURL(key string) string
}

// Key builds the deterministic storage key <entryId>/<level>/<id><ext>.
func Key(entryID string, level audio.Level, id, filename string) string {
	ext := strings.ToLower(path.Ext(strings.ReplaceAll(filename, "\\", "/")))
	if len(ext) > 10 || strings.ContainsAny(ext, " /?#%") {
		ext = ""
	}
	return sanitizeSegment(entryID) + "/" + sanitizeSegment(string(level)) + "/" + sanitizeSegment(id) + ext
}

// sanitizeSegment keeps a key segment from escaping its directory.
func sanitizeSegment(value string) string {
	value = strings.TrimSpace(value)
	if value == "" || value == "." || value == ".." {
		return "_"
	}
	var b strings.Builder
	b.Grow(len(value))
	for _, r := range value {
		switch {
		case r == '/' || r == '\\' || r == '?' || r == '#' || r == '%':
			b.WriteByte('_')
		case r < 0x20 || r == 0x7f:
			continue
		default:
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "_"
	}
	return b.String()
}

// contentLength measures body and rewinds it to the start.
func contentLength(body io.ReadSeeker) (int64, error) {
	size, err := body.Seek(0, io.SeekEnd)
	if err != nil {
		return 0, err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return 0, err
	}
	return size, nil
}
