package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"audioindex/internal/audio"
)

// Local stores blobs under Root and serves them below BaseURL.
type Local struct {
	root    string
	baseURL string
}

// NewLocal creates the root directory when missing.
func NewLocal(root, baseURL string) (*Local, error) {
	if strings.TrimSpace(root) == "" {
		return nil, audio.Wrap(audio.ErrStorage, "blobstore", "open", "blob directory is empty", nil)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, audio.Wrap(audio.ErrStorage, "blobstore", "open", "create blob directory", err)
	}
	return &Local{root: root, baseURL: strings.TrimRight(baseURL, "/")}, nil
}

// Root returns the blob directory.
func (l *Local) Root() string { return l.root }

// Put writes into a temp file, fsyncs, and renames into place so readers
// never observe a partial payload.
func (l *Local) Put(ctx context.Context, key string, body io.ReadSeeker, _ string) (Object, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, audio.Wrap(audio.ErrStorage, "blobstore", "put", "context done", err)
	}
	full, err := l.pathFor(key)
	if err != nil {
		return Object{}, err
	}
	if _, err := body.Seek(0, io.SeekStart); err != nil {
		return Object{}, audio.Wrap(audio.ErrStorage, "blobstore", "put", "rewind payload", err)
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return Object{}, audio.Wrap(audio.ErrStorage, "blobstore", "put", "create blob directory", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(full), ".blob-*.tmp")
	if err != nil {
		return Object{}, audio.Wrap(audio.ErrStorage, "blobstore", "put", "create temp file", err)
	}
	tmpPath := tmp.Name()
	size, err := io.Copy(tmp, body)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		os.Remove(tmpPath)
		return Object{}, audio.Wrap(audio.ErrStorage, "blobstore", "put", "write payload", err)
	}
	if err := os.Rename(tmpPath, full); err != nil {
		os.Remove(tmpPath)
		return Object{}, audio.Wrap(audio.ErrStorage, "blobstore", "put", "rename payload", err)
	}

	return Object{Key: key, URL: l.ResolveURL(key), Size: size}, nil
}

// Remove deletes the blob. A missing file counts as already removed.
func (l *Local) Remove(_ context.Context, keyOrURL string) error {
	key := l.keyFrom(keyOrURL)
	if key == "" {
		return nil
	}
	full, err := l.pathFor(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return audio.Wrap(audio.ErrStorage, "blobstore", "remove", fmt.Sprintf("remove %s", key), err)
	}
	l.pruneEmptyParents(filepath.Dir(full))
	return nil
}

// Ping checks that the blob directory still exists.
func (l *Local) Ping(_ context.Context) error {
	info, err := os.Stat(l.root)
	if err != nil {
		return audio.Wrap(audio.ErrStorage, "blobstore", "ping", "stat blob directory", err)
	}
	if !info.IsDir() {
		return audio.Wrap(audio.ErrStorage, "blobstore", "ping", l.root+" is not a directory", nil)
	}
	return nil
}

// ResolveURL returns BaseURL/key.
func (l *Local) ResolveURL(key string) string {
	return l.baseURL + "/" + strings.TrimLeft(key, "/")
}

// Path returns the on-disk location of key.
func (l *Local) Path(key string) (string, error) {
	return l.pathFor(key)
}

func (l *Local) keyFrom(keyOrURL string) string {
	value := strings.TrimSpace(keyOrURL)
	if l.baseURL != "" && strings.HasPrefix(value, l.baseURL+"/") {
		value = strings.TrimPrefix(value, l.baseURL+"/")
	}
	return strings.TrimLeft(value, "/")
}

func (l *Local) pathFor(key string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(strings.TrimLeft(key, "/")))
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, ".."+string(filepath.Separator)) {
		return "", audio.Wrap(audio.ErrStorage, "blobstore", "resolve", fmt.Sprintf("invalid key %q", key), nil)
	}
	return filepath.Join(l.root, cleaned), nil
}

// pruneEmptyParents removes directories left empty by Remove, stopping at root.
func (l *Local) pruneEmptyParents(dir string) {
	root := filepath.Clean(l.root)
	for dir = filepath.Clean(dir); dir != root && strings.HasPrefix(dir, root); dir = filepath.Dir(dir) {
		if err := os.Remove(dir); err != nil {
			return
		}
	}
}
