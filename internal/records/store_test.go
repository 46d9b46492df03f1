package records_test

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"audioindex/internal/audio"
	"audioindex/internal/records"
)

func openStore(t *testing.T) *records.Store {
	t.Helper()
	store, err := records.Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "audio.db"), records.Options{Timeout: 5 * time.Second})
	if err != nil {
		t.Fatalf("records.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func newRecord(id, entryID string, level audio.Level, created time.Time) audio.Record {
	return audio.Record{
		ID:           id,
		Filename:     id + ".mp3",
		OriginalName: "take.mp3",
		MimeType:     "audio/mpeg",
		Size:         42,
		Metadata:     audio.Metadata{EntryID: entryID, Level: level},
		URL:          "/audio/" + id,
		StorageKey:   entryID + "/" + string(level) + "/" + id + ".mp3",
		CreatedAt:    created,
		UpdatedAt:    created,
	}
}

func TestUpsertGetRoundTrip(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()

	created := time.Date(2026, 3, 1, 12, 0, 0, 123456789, time.UTC)
	rec := newRecord("r1", "mvura", audio.LevelWord, created)
	duration := 1.5
	rec.Duration = &duration
	rec.Metadata.LevelID = "meaning-0"
	rec.Metadata.Speaker = "Tendai"

	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	got, err := store.Get(ctx, "r1")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got == nil {
		t.Fatal("expected record")
	}
	if got.Metadata != rec.Metadata || got.URL != rec.URL || got.Size != rec.Size {
		t.Fatalf("round trip mismatch: got %+v want %+v", got, rec)
	}
	if !got.CreatedAt.Equal(created) {
		t.Fatalf("created_at mismatch: %v vs %v", got.CreatedAt, created)
	}
	if got.Duration == nil || *got.Duration != 1.5 {
		t.Fatalf("duration mismatch: %v", got.Duration)
	}

	// Upsert replaces by id.
	rec.Metadata.Notes = "clearer take"
	rec.UpdatedAt = created.Add(time.Minute)
	if err := store.Upsert(ctx, rec); err != nil {
		t.Fatalf("Upsert replace: %v", err)
	}
	got, err = store.Get(ctx, "r1")
	if err != nil || got == nil {
		t.Fatalf("Get after replace: %v %v", got, err)
	}
	if got.Metadata.Notes != "clearer take" {
		t.Fatalf("expected notes updated, got %q", got.Metadata.Notes)
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRecords != 1 {
		t.Fatalf("expected one row after replace, got %d", stats.TotalRecords)
	}
}

func TestGetMissingReturnsNil(t *testing.T) {
	store := openStore(t)
	got, err := store.Get(context.Background(), "nope")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != nil {
		t.Fatalf("expected nil, got %+v", got)
	}
}

func TestRemoveIsIdempotent(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	if err := store.Upsert(ctx, newRecord("r1", "mvura", audio.LevelWord, time.Now())); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	for i := 0; i < 2; i++ {
		if err := store.Remove(ctx, "r1"); err != nil {
			t.Fatalf("Remove #%d: %v", i+1, err)
		}
	}
	if got, _ := store.Get(ctx, "r1"); got != nil {
		t.Fatalf("expected record removed, got %+v", got)
	}
}

func TestQueryFiltersAndOrdersNewestFirst(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	fixtures := []audio.Record{
		newRecord("a-word-1", "A", audio.LevelWord, base.Add(1*time.Second)),
		newRecord("a-word-2", "A", audio.LevelWord, base.Add(3*time.Second)),
		newRecord("a-example", "A", audio.LevelExample, base.Add(2*time.Second)),
		newRecord("b-word", "B", audio.LevelWord, base.Add(4*time.Second)),
		// Sub-second precision must sort correctly.
		newRecord("b-example", "B", audio.LevelExample, base.Add(4*time.Second+500*time.Millisecond)),
	}
	for _, rec := range fixtures {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert %s: %v", rec.ID, err)
		}
	}

	all, err := store.Query(ctx, audio.Filter{})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	wantAll := []string{"b-example", "b-word", "a-word-2", "a-example", "a-word-1"}
	assertIDs(t, all, wantAll)

	filtered, err := store.Query(ctx, audio.Filter{EntryID: "A", Level: audio.LevelWord})
	if err != nil {
		t.Fatalf("Query filtered: %v", err)
	}
	assertIDs(t, filtered, []string{"a-word-2", "a-word-1"})

	none, err := store.Query(ctx, audio.Filter{EntryID: "C"})
	if err != nil {
		t.Fatalf("Query none: %v", err)
	}
	if len(none) != 0 {
		t.Fatalf("expected empty result, got %d", len(none))
	}
}

func TestStatsCountsEntriesAndLevels(t *testing.T) {
	store := openStore(t)
	ctx := context.Background()
	now := time.Now()
	for _, rec := range []audio.Record{
		newRecord("1", "A", audio.LevelWord, now),
		newRecord("2", "A", audio.LevelExample, now),
		newRecord("3", "B", audio.LevelWord, now),
	} {
		if err := store.Upsert(ctx, rec); err != nil {
			t.Fatalf("Upsert: %v", err)
		}
	}
	stats, err := store.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.TotalRecords != 3 || stats.EntriesWithAudio != 2 {
		t.Fatalf("unexpected totals: %+v", stats)
	}
	if stats.RecordsByLevel[audio.LevelWord] != 2 || stats.RecordsByLevel[audio.LevelExample] != 1 || stats.RecordsByLevel[audio.LevelMeaning] != 0 {
		t.Fatalf("unexpected level counts: %+v", stats.RecordsByLevel)
	}
	if _, ok := stats.RecordsByLevel[audio.LevelMeaning]; !ok {
		t.Fatal("expected zero-filled meaning level")
	}
}

func TestClosedStoreReportsConnectivity(t *testing.T) {
	store := openStore(t)
	if err := store.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	_, err := store.Get(context.Background(), "x")
	if !errors.Is(err, audio.ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity, got %v", err)
	}
	_, err = store.Query(context.Background(), audio.Filter{})
	if !errors.Is(err, audio.ErrConnectivity) {
		t.Fatalf("expected ErrConnectivity from Query, got %v", err)
	}
}

func TestReopenKeepsData(t *testing.T) {
	dsn := filepath.Join(t.TempDir(), "audio.db")
	ctx := context.Background()
	first, err := records.Open(ctx, "sqlite", dsn, records.Options{})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if err := first.Upsert(ctx, newRecord("r1", "mvura", audio.LevelWord, time.Now())); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	_ = first.Close()

	second, err := records.Open(ctx, "sqlite", dsn, records.Options{})
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer second.Close()
	got, err := second.Get(ctx, "r1")
	if err != nil || got == nil {
		t.Fatalf("expected record after reopen, got %v %v", got, err)
	}
}

func TestOpenRejectsUnknownDriver(t *testing.T) {
	if _, err := records.Open(context.Background(), "mysql", "dsn", records.Options{}); err == nil {
		t.Fatal("expected error for unknown driver")
	}
}

func assertIDs(t *testing.T, got []audio.Record, want []string) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("got %d records, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].ID != want[i] {
			ids := make([]string, len(got))
			for j := range got {
				ids[j] = got[j].ID
			}
			t.Fatalf("order mismatch: got %v want %v", ids, want)
		}
	}
}
