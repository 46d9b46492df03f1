package audio_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"audioindex/internal/audio"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := audio.Wrap(audio.ErrStorage, "blobstore", "put", "write failed", base)
	if !errors.Is(err, audio.ErrStorage) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	for _, fragment := range []string{"blobstore", "put", "write failed"} {
		if !strings.Contains(err.Error(), fragment) {
			t.Fatalf("expected %q in error string %q", fragment, err.Error())
		}
	}
}

func TestMetadataValidate(t *testing.T) {
	cases := []struct {
		name    string
		meta    audio.Metadata
		wantErr bool
	}{
		{"complete", audio.Metadata{EntryID: "mvura", Level: audio.LevelWord}, false},
		{"missing entry", audio.Metadata{Level: audio.LevelWord}, true},
		{"missing level", audio.Metadata{EntryID: "mvura"}, true},
		{"unknown level", audio.Metadata{EntryID: "mvura", Level: "sentence"}, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.meta.Normalize().Validate()
			if tc.wantErr {
				if !errors.Is(err, audio.ErrValidation) {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestMetadataNormalizeComposesEntryID(t *testing.T) {
	decomposed := audio.Metadata{EntryID: "  cafe\u0301 ", Level: " WORD "}.Normalize()
	composed := audio.Metadata{EntryID: "caf\u00e9", Level: audio.LevelWord}.Normalize()
	if decomposed.EntryID != composed.EntryID {
		t.Fatalf("expected NFC entry ids to match, got %q and %q", decomposed.EntryID, composed.EntryID)
	}
	if decomposed.Level != audio.LevelWord {
		t.Fatalf("expected level to be lowercased, got %q", decomposed.Level)
	}
}

func TestFilterMatchesAllPopulatedFields(t *testing.T) {
	rec := audio.Record{ID: "1", Metadata: audio.Metadata{EntryID: "A", Level: audio.LevelWord, Dialect: "zezuru"}}
	cases := []struct {
		filter audio.Filter
		want   bool
	}{
		{audio.Filter{}, true},
		{audio.Filter{EntryID: "A"}, true},
		{audio.Filter{EntryID: "A", Level: audio.LevelWord}, true},
		{audio.Filter{EntryID: "A", Level: audio.LevelExample}, false},
		{audio.Filter{EntryID: "B", Level: audio.LevelWord}, false},
		{audio.Filter{Dialect: "karanga"}, false},
	}
	for _, tc := range cases {
		if got := tc.filter.Matches(rec); got != tc.want {
			t.Fatalf("filter %+v: got %v want %v", tc.filter, got, tc.want)
		}
	}
}

func TestSortNewestFirst(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	records := []audio.Record{
		{ID: "t1", CreatedAt: base},
		{ID: "t3", CreatedAt: base.Add(2 * time.Minute)},
		{ID: "t2", CreatedAt: base.Add(time.Minute)},
	}
	audio.SortNewestFirst(records)
	got := []string{records[0].ID, records[1].ID, records[2].ID}
	want := []string{"t3", "t2", "t1"}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("unexpected order %v, want %v", got, want)
		}
	}
}

func TestRecordCloneCopiesDuration(t *testing.T) {
	d := 1.5
	rec := audio.Record{ID: "x", Duration: &d}
	clone := rec.Clone()
	*clone.Duration = 9
	if *rec.Duration != 1.5 {
		t.Fatalf("expected original duration untouched, got %v", *rec.Duration)
	}
}

func TestParseLevel(t *testing.T) {
	level, err := audio.ParseLevel(" Example ")
	if err != nil || level != audio.LevelExample {
		t.Fatalf("ParseLevel returned %q, %v", level, err)
	}
	if _, err := audio.ParseLevel("phrase"); !errors.Is(err, audio.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
