package audioindex

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// ReadFile loads an index file. A missing or empty file yields an empty
// document and exists=false.
func ReadFile(path string) (doc *Document, exists bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return NewDocument(), false, nil
		}
		return nil, false, fmt.Errorf("read index file: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return NewDocument(), false, nil
	}
	doc = NewDocument()
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, true, fmt.Errorf("parse index file %s: %w", path, err)
	}
	return doc, true, nil
}

// WriteFile writes doc to path through a temp file in the same directory,
// fsyncs it, and renames it into place so readers never see a partial file.
func WriteFile(path string, doc *Document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal index: %w", err)
	}
	data = append(data, '\n')

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err == nil {
		err = os.Chmod(tmpPath, 0o644)
	}
	if err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
