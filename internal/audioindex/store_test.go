package audioindex_test

import (
	"context"
	"errors"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/gofrs/flock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"audioindex/internal/audio"
	"audioindex/internal/audioindex"
)

// memoryPrimary is an in-memory PrimaryStore whose failures can be toggled.
type memoryPrimary struct {
	records  map[string]audio.Record
	down     bool
	writeErr error
}

func newMemoryPrimary() *memoryPrimary {
	return &memoryPrimary{records: make(map[string]audio.Record)}
}

func (m *memoryPrimary) unreachable(op string) error {
	return audio.Wrap(audio.ErrConnectivity, "memory", op, "connection refused", nil)
}

func (m *memoryPrimary) Upsert(_ context.Context, rec audio.Record) error {
	if m.down {
		return m.unreachable("upsert")
	}
	if m.writeErr != nil {
		return m.writeErr
	}
	m.records[rec.ID] = rec
	return nil
}

func (m *memoryPrimary) Remove(_ context.Context, id string) error {
	if m.down {
		return m.unreachable("remove")
	}
	delete(m.records, id)
	return nil
}

func (m *memoryPrimary) Get(_ context.Context, id string) (*audio.Record, error) {
	if m.down {
		return nil, m.unreachable("get")
	}
	rec, ok := m.records[id]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memoryPrimary) Query(_ context.Context, filter audio.Filter) ([]audio.Record, error) {
	if m.down {
		return nil, m.unreachable("query")
	}
	var out []audio.Record
	for _, rec := range m.records {
		if filter.Normalize().Matches(rec) {
			out = append(out, rec)
		}
	}
	audio.SortNewestFirst(out)
	return out, nil
}

func (m *memoryPrimary) Stats(_ context.Context) (audio.Stats, error) {
	if m.down {
		return audio.NewStats(), m.unreachable("stats")
	}
	stats := audio.NewStats()
	entries := map[string]struct{}{}
	for _, rec := range m.records {
		stats.TotalRecords++
		stats.RecordsByLevel[rec.Metadata.Level]++
		entries[rec.Metadata.EntryID] = struct{}{}
	}
	stats.EntriesWithAudio = len(entries)
	return stats, nil
}

func newDualStore(t *testing.T, primary audioindex.PrimaryStore) (*audioindex.Store, *audioindex.Metrics) {
	t.Helper()
	cache, metrics := newCache(t, filepath.Join(t.TempDir(), "audio-index.json"))
	return audioindex.NewStore(primary, cache, nil, metrics), metrics
}

func TestSaveWritesBothStores(t *testing.T) {
	primary := newMemoryPrimary()
	store, _ := newDualStore(t, primary)
	ctx := context.Background()

	result := store.Save(ctx, record("1", "A", audio.LevelWord, 0))
	if result.Primary != audioindex.OutcomeOK || result.Secondary != audioindex.OutcomeOK || result.Err() != nil {
		t.Fatalf("unexpected result %+v", result)
	}
	if _, ok := primary.records["1"]; !ok {
		t.Fatal("primary missing record")
	}
	if rec, _ := store.Cache().Get(ctx, "1"); rec == nil {
		t.Fatal("index missing record")
	}
}

func TestSaveContinuesWhenPrimaryFails(t *testing.T) {
	primary := newMemoryPrimary()
	primary.down = true
	store, metrics := newDualStore(t, primary)
	ctx := context.Background()

	result := store.Save(ctx, record("1", "A", audio.LevelWord, 0))
	if result.Primary != audioindex.OutcomeFailed || !errors.Is(result.PrimaryErr, audio.ErrConnectivity) {
		t.Fatalf("expected primary failure recorded, got %+v", result)
	}
	if result.Secondary != audioindex.OutcomeOK {
		t.Fatalf("expected index write to proceed, got %+v", result)
	}
	if rec, _ := store.Cache().Get(ctx, "1"); rec == nil {
		t.Fatal("index must still receive the record")
	}
	if got := testutil.ToFloat64(metrics.FailedWrites.WithLabelValues("primary", "save")); got != 1 {
		t.Fatalf("failed primary writes = %v", got)
	}

	// Non-connectivity failures follow the same policy.
	primary.down = false
	primary.writeErr = errors.New("constraint violation")
	result = store.Save(ctx, record("2", "A", audio.LevelWord, time.Second))
	if result.Primary != audioindex.OutcomeFailed || result.Secondary != audioindex.OutcomeOK {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestSaveReportsIndexFailure(t *testing.T) {
	primary := newMemoryPrimary()
	store, metrics := newDualStore(t, primary)

	holder := flock.New(store.Cache().Path() + ".lock")
	if err := holder.Lock(); err != nil {
		t.Fatalf("hold lock: %v", err)
	}
	defer holder.Unlock()

	result := store.Save(context.Background(), record("1", "A", audio.LevelWord, 0))
	if result.Primary != audioindex.OutcomeOK {
		t.Fatalf("primary should succeed, got %+v", result)
	}
	if result.Secondary != audioindex.OutcomeFailed || !errors.Is(result.SecondaryErr, audio.ErrLockTimeout) {
		t.Fatalf("expected lock timeout on index, got %+v", result)
	}
	if !errors.Is(result.Err(), audio.ErrLockTimeout) {
		t.Fatalf("Err() should expose the lock timeout, got %v", result.Err())
	}
	if got := testutil.ToFloat64(metrics.FailedWrites.WithLabelValues("index", "save")); got != 1 {
		t.Fatalf("failed index writes = %v", got)
	}
}

func TestReadsFallBackOnlyOnConnectivity(t *testing.T) {
	primary := newMemoryPrimary()
	store, metrics := newDualStore(t, primary)
	ctx := context.Background()

	seed := []audio.Record{
		record("1", "A", audio.LevelWord, 0),
		record("2", "A", audio.LevelExample, time.Second),
		record("3", "B", audio.LevelWord, 2*time.Second),
	}
	for _, rec := range seed {
		if res := store.Save(ctx, rec); res.Err() != nil {
			t.Fatalf("Save: %v", res.Err())
		}
	}

	wantList, source, err := store.ListFrom(ctx, audio.Filter{EntryID: "A"})
	if err != nil || source != audioindex.SourcePrimary {
		t.Fatalf("ListFrom primary = %v, %v", source, err)
	}
	wantStats, _ := store.Stats(ctx)
	wantRec, _ := store.Get(ctx, "3")

	primary.down = true

	gotList, source, err := store.ListFrom(ctx, audio.Filter{EntryID: "A"})
	if err != nil {
		t.Fatalf("List during outage: %v", err)
	}
	if source != audioindex.SourceIndex {
		t.Fatalf("expected index fallback, got %s", source)
	}
	if !reflect.DeepEqual(ids(gotList), ids(wantList)) {
		t.Fatalf("fallback list = %v, want %v", ids(gotList), ids(wantList))
	}

	gotRec, source, err := store.GetFrom(ctx, "3")
	if err != nil || source != audioindex.SourceIndex || gotRec == nil || gotRec.ID != wantRec.ID {
		t.Fatalf("fallback get = %+v, %s, %v", gotRec, source, err)
	}
	gotStats, err := store.Stats(ctx)
	if err != nil || !reflect.DeepEqual(gotStats, wantStats) {
		t.Fatalf("fallback stats = %+v (%v), want %+v", gotStats, err, wantStats)
	}

	if got := testutil.ToFloat64(metrics.FallbackReads.WithLabelValues("list")); got != 1 {
		t.Fatalf("fallback list count = %v", got)
	}
	if got := testutil.ToFloat64(metrics.FallbackReads.WithLabelValues("get")); got != 1 {
		t.Fatalf("fallback get count = %v", got)
	}

	// A primary miss is an answer, not an outage.
	primary.down = false
	rec, source, err := store.GetFrom(ctx, "missing")
	if err != nil || rec != nil || source != audioindex.SourcePrimary {
		t.Fatalf("missing record = %+v, %s, %v", rec, source, err)
	}
}

func TestNonConnectivityReadErrorsPropagate(t *testing.T) {
	primary := &brokenPrimary{memoryPrimary: newMemoryPrimary(), err: errors.New("syntax error")}
	store, metrics := newDualStore(t, primary)

	if _, err := store.List(context.Background(), audio.Filter{}); err == nil {
		t.Fatal("expected query error to propagate")
	}
	if got := testutil.ToFloat64(metrics.FallbackReads.WithLabelValues("list")); got != 0 {
		t.Fatalf("fallback must not fire, count = %v", got)
	}
}

type brokenPrimary struct {
	*memoryPrimary
	err error
}

func (b *brokenPrimary) Query(context.Context, audio.Filter) ([]audio.Record, error) {
	return nil, b.err
}

func TestDeleteIsIdempotentAcrossStores(t *testing.T) {
	primary := newMemoryPrimary()
	store, _ := newDualStore(t, primary)
	ctx := context.Background()
	store.Save(ctx, record("1", "A", audio.LevelWord, 0))

	for i := 0; i < 2; i++ {
		result := store.Delete(ctx, "1")
		if result.Err() != nil {
			t.Fatalf("Delete #%d: %v", i+1, result.Err())
		}
	}
	if len(primary.records) != 0 {
		t.Fatal("primary still holds the record")
	}
	stats, _ := store.Cache().Stats(ctx)
	if stats.TotalRecords != 0 {
		t.Fatalf("index still holds %d records", stats.TotalRecords)
	}
}

func TestIndexOnlyStore(t *testing.T) {
	store, _ := newDualStore(t, nil)
	ctx := context.Background()

	result := store.Save(ctx, record("1", "A", audio.LevelWord, 0))
	if result.Primary != audioindex.OutcomeSkipped || result.Secondary != audioindex.OutcomeOK {
		t.Fatalf("unexpected result %+v", result)
	}
	list, source, err := store.ListFrom(ctx, audio.Filter{})
	if err != nil || source != audioindex.SourceIndex || len(list) != 1 {
		t.Fatalf("ListFrom = %v, %s, %v", ids(list), source, err)
	}
	if _, err := store.Rebuild(ctx); err == nil {
		t.Fatal("expected Rebuild to fail without a primary store")
	}
}

func TestRebuildCopiesPrimary(t *testing.T) {
	primary := newMemoryPrimary()
	primary.records["p1"] = record("p1", "A", audio.LevelWord, 0)
	primary.records["p2"] = record("p2", "B", audio.LevelExample, time.Second)
	store, _ := newDualStore(t, primary)
	ctx := context.Background()

	n, err := store.Rebuild(ctx)
	if err != nil || n != 2 {
		t.Fatalf("Rebuild = %d, %v", n, err)
	}
	list, _ := store.Cache().List(ctx, audio.Filter{})
	if !reflect.DeepEqual(ids(list), []string{"p2", "p1"}) {
		t.Fatalf("index after rebuild = %v", ids(list))
	}
}
