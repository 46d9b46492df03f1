package snapshot

import (
	"context"
	"fmt"
	"time"

	"audioindex/internal/audio"
	"audioindex/internal/audioindex"
)

// Lister is any live source of records, such as the audio service.
type Lister interface {
	List(ctx context.Context, filter audio.Filter) ([]audio.Record, error)
}

// Export writes every record from source to path in the index file layout
// and returns the number of records written.
func Export(ctx context.Context, source Lister, path string) (int, error) {
	records, err := source.List(ctx, audio.Filter{})
	if err != nil {
		return 0, fmt.Errorf("export: list records: %w", err)
	}
	doc := audioindex.NewDocument()
	for _, rec := range records {
		if err := doc.Put(rec); err != nil {
			return 0, fmt.Errorf("export: record %s: %w", rec.ID, err)
		}
	}
	doc.LastUpdated = time.Now().UTC()
	if err := audioindex.WriteFile(path, doc); err != nil {
		return 0, audio.Wrap(audio.ErrPersistence, "snapshot", "export", path, err)
	}
	return doc.Len(), nil
}
