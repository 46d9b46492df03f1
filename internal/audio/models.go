package audio

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"golang.org/x/text/unicode/norm"
)

// Level identifies which part of a dictionary entry a recording illustrates.
type Level string

const (
	LevelWord    Level = "word"
	LevelMeaning Level = "meaning"
	LevelExample Level = "example"
)

// Levels lists every valid level in display order.
var Levels = []Level{LevelWord, LevelMeaning, LevelExample}

// Valid reports whether the level is one of the known values.
func (l Level) Valid() bool {
	switch l {
	case LevelWord, LevelMeaning, LevelExample:
		return true
	default:
		return false
	}
}

// ParseLevel converts user input into a Level.
func ParseLevel(value string) (Level, error) {
	level := Level(strings.ToLower(strings.TrimSpace(value)))
	if !level.Valid() {
		return "", fmt.Errorf("%w: unknown level %q (expected word, meaning, or example)", ErrValidation, value)
	}
	return level, nil
}

// Metadata describes what a recording is of. Only EntryID and Level are indexed.
type Metadata struct {
	EntryID string `json:"entryId"`
	Level   Level  `json:"level"`
	LevelID string `json:"levelId,omitempty"` // e.g. "meaning-0", "example-1-0-0"
	Speaker string `json:"speaker,omitempty"`
	Dialect string `json:"dialect,omitempty"`
	Quality string `json:"quality,omitempty"`
	Notes   string `json:"notes,omitempty"`
}

// Normalize trims whitespace and canonicalizes the entry id to NFC so the same
// headword typed with composed or decomposed diacritics lands in one bucket.
func (m Metadata) Normalize() Metadata {
	m.EntryID = normalizeKey(m.EntryID)
	m.Level = Level(strings.ToLower(strings.TrimSpace(string(m.Level))))
	m.LevelID = strings.TrimSpace(m.LevelID)
	m.Speaker = strings.TrimSpace(m.Speaker)
	m.Dialect = strings.TrimSpace(m.Dialect)
	m.Quality = strings.TrimSpace(m.Quality)
	m.Notes = strings.TrimSpace(m.Notes)
	return m
}

// Validate checks the fields required for indexing.
func (m Metadata) Validate() error {
	if m.EntryID == "" {
		return fmt.Errorf("%w: metadata.entryId is required", ErrValidation)
	}
	if m.Level == "" {
		return fmt.Errorf("%w: metadata.level is required", ErrValidation)
	}
	if !m.Level.Valid() {
		return fmt.Errorf("%w: metadata.level %q is not one of word, meaning, example", ErrValidation, m.Level)
	}
	return nil
}

// Record is one stored audio asset.
type Record struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	OriginalName string    `json:"originalName"`
	MimeType     string    `json:"mimeType"`
	Size         int64     `json:"size"`
	Duration     *float64  `json:"duration,omitempty"`
	Metadata     Metadata  `json:"metadata"`
	URL          string    `json:"url"`
	StorageKey   string    `json:"storageKey"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Clone returns a copy that shares no pointers with r.
func (r Record) Clone() Record {
	if r.Duration != nil {
		d := *r.Duration
		r.Duration = &d
	}
	return r
}

// Filter selects records. Empty fields are ignored; set fields must all match.
type Filter struct {
	EntryID string `json:"entryId,omitempty"`
	Level   Level  `json:"level,omitempty"`
	LevelID string `json:"levelId,omitempty"`
	Speaker string `json:"speaker,omitempty"`
	Dialect string `json:"dialect,omitempty"`
}

// Normalize applies the same canonicalization as Metadata.Normalize.
func (f Filter) Normalize() Filter {
	f.EntryID = normalizeKey(f.EntryID)
	f.Level = Level(strings.ToLower(strings.TrimSpace(string(f.Level))))
	f.LevelID = strings.TrimSpace(f.LevelID)
	f.Speaker = strings.TrimSpace(f.Speaker)
	f.Dialect = strings.TrimSpace(f.Dialect)
	return f
}

// IsZero reports whether the filter matches every record.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Matches reports whether r satisfies every populated field of f.
func (f Filter) Matches(r Record) bool {
	m := r.Metadata
	if f.EntryID != "" && m.EntryID != f.EntryID {
		return false
	}
	if f.Level != "" && m.Level != f.Level {
		return false
	}
	if f.LevelID != "" && m.LevelID != f.LevelID {
		return false
	}
	if f.Speaker != "" && m.Speaker != f.Speaker {
		return false
	}
	if f.Dialect != "" && m.Dialect != f.Dialect {
		return false
	}
	return true
}

// Stats aggregates record counts.
type Stats struct {
	TotalRecords     int           `json:"totalRecords"`
	EntriesWithAudio int           `json:"entriesWithAudio"`
	RecordsByLevel   map[Level]int `json:"recordsByLevel"`
}

// NewStats returns zeroed stats with every level present in RecordsByLevel.
func NewStats() Stats {
	byLevel := make(map[Level]int, len(Levels))
	for _, level := range Levels {
		byLevel[level] = 0
	}
	return Stats{RecordsByLevel: byLevel}
}

// SortNewestFirst orders records by CreatedAt descending. Equal timestamps
// fall back to id order so results are deterministic.
func SortNewestFirst(records []Record) {
	sort.SliceStable(records, func(i, j int) bool {
		if !records[i].CreatedAt.Equal(records[j].CreatedAt) {
			return records[i].CreatedAt.After(records[j].CreatedAt)
		}
		return records[i].ID < records[j].ID
	})
}

func normalizeKey(value string) string {
	return norm.NFC.String(strings.TrimSpace(value))
}
