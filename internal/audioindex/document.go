package audioindex

import (
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"audioindex/internal/audio"
)

// FormatVersion is written to the "version" field of index files.
const FormatVersion = "1.0"

type idSet map[string]struct{}

func (s idSet) sorted() []string {
	ids := make([]string, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Document is the three-part index: records by id, record ids by entry, and
// record ids by level. Every record is reachable from both of its buckets and
// no bucket is ever empty.
type Document struct {
	Version     string
	LastUpdated time.Time

	records    map[string]audio.Record
	entryIndex map[string]idSet
	levelIndex map[audio.Level]idSet

	issues []Issue
}

// NewDocument returns an empty, valid index.
func NewDocument() *Document {
	return &Document{
		Version:    FormatVersion,
		records:    make(map[string]audio.Record),
		entryIndex: make(map[string]idSet),
		levelIndex: make(map[audio.Level]idSet),
	}
}

// Len returns the number of records.
func (d *Document) Len() int { return len(d.records) }

// Put inserts rec or replaces the record with the same id, moving it between
// buckets when its entry or level changed.
func (d *Document) Put(rec audio.Record) error {
	rec.Metadata = rec.Metadata.Normalize()
	if rec.ID == "" {
		return fmt.Errorf("%w: record id is required", audio.ErrValidation)
	}
	if err := rec.Metadata.Validate(); err != nil {
		return err
	}
	if existing, ok := d.records[rec.ID]; ok {
		d.unlink(existing)
	}
	d.records[rec.ID] = rec.Clone()
	d.link(rec)
	return nil
}

// Delete removes id from records and both buckets, pruning emptied buckets.
// It reports whether the record existed.
func (d *Document) Delete(id string) bool {
	existing, ok := d.records[id]
	if !ok {
		return false
	}
	delete(d.records, id)
	d.unlink(existing)
	return true
}

// Get returns a copy of the record with id.
func (d *Document) Get(id string) (audio.Record, bool) {
	rec, ok := d.records[id]
	if !ok {
		return audio.Record{}, false
	}
	return rec.Clone(), true
}

// List narrows candidates by intersecting the entry and level buckets, applies
// the remaining filter fields linearly, and sorts newest first. The result is
// never nil.
func (d *Document) List(filter audio.Filter) []audio.Record {
	filter = filter.Normalize()

	var candidates idSet
	if filter.EntryID != "" {
		candidates = d.entryIndex[filter.EntryID]
		if len(candidates) == 0 {
			return []audio.Record{}
		}
	}
	if filter.Level != "" {
		byLevel := d.levelIndex[filter.Level]
		if len(byLevel) == 0 {
			return []audio.Record{}
		}
		if candidates == nil {
			candidates = byLevel
		} else {
			candidates = intersect(candidates, byLevel)
		}
	}

	result := make([]audio.Record, 0, len(candidates))
	if candidates == nil {
		for _, rec := range d.records {
			if filter.Matches(rec) {
				result = append(result, rec.Clone())
			}
		}
	} else {
		for id := range candidates {
			rec, ok := d.records[id]
			if ok && filter.Matches(rec) {
				result = append(result, rec.Clone())
			}
		}
	}
	audio.SortNewestFirst(result)
	return result
}

// Stats derives totals from the buckets.
func (d *Document) Stats() audio.Stats {
	stats := audio.NewStats()
	stats.TotalRecords = len(d.records)
	stats.EntriesWithAudio = len(d.entryIndex)
	for level, ids := range d.levelIndex {
		stats.RecordsByLevel[level] = len(ids)
	}
	return stats
}

// HasEntry reports whether any record belongs to entryID.
func (d *Document) HasEntry(entryID string) bool {
	return len(d.entryIndex[audio.Filter{EntryID: entryID}.Normalize().EntryID]) > 0
}

// EntriesWithAudio returns every entry id that has at least one record, sorted.
func (d *Document) EntriesWithAudio() []string {
	entries := make([]string, 0, len(d.entryIndex))
	for entryID := range d.entryIndex {
		entries = append(entries, entryID)
	}
	sort.Strings(entries)
	return entries
}

// EntryIDs returns the sorted ids in the bucket for entryID. ok is false when
// no bucket exists.
func (d *Document) EntryIDs(entryID string) (ids []string, ok bool) {
	set, ok := d.entryIndex[entryID]
	if !ok {
		return nil, false
	}
	return set.sorted(), true
}

// LevelIDs returns the sorted ids in the bucket for level.
func (d *Document) LevelIDs(level audio.Level) (ids []string, ok bool) {
	set, ok := d.levelIndex[level]
	if !ok {
		return nil, false
	}
	return set.sorted(), true
}

// Clone returns a deep copy.
func (d *Document) Clone() *Document {
	out := NewDocument()
	out.Version = d.Version
	out.LastUpdated = d.LastUpdated
	for id, rec := range d.records {
		out.records[id] = rec.Clone()
	}
	for key, ids := range d.entryIndex {
		out.entryIndex[key] = cloneSet(ids)
	}
	for key, ids := range d.levelIndex {
		out.levelIndex[key] = cloneSet(ids)
	}
	out.issues = append([]Issue(nil), d.issues...)
	return out
}

func (d *Document) link(rec audio.Record) {
	entry := d.entryIndex[rec.Metadata.EntryID]
	if entry == nil {
		entry = make(idSet)
		d.entryIndex[rec.Metadata.EntryID] = entry
	}
	entry[rec.ID] = struct{}{}

	level := d.levelIndex[rec.Metadata.Level]
	if level == nil {
		level = make(idSet)
		d.levelIndex[rec.Metadata.Level] = level
	}
	level[rec.ID] = struct{}{}
}

func (d *Document) unlink(rec audio.Record) {
	if entry, ok := d.entryIndex[rec.Metadata.EntryID]; ok {
		delete(entry, rec.ID)
		if len(entry) == 0 {
			delete(d.entryIndex, rec.Metadata.EntryID)
		}
	}
	if level, ok := d.levelIndex[rec.Metadata.Level]; ok {
		delete(level, rec.ID)
		if len(level) == 0 {
			delete(d.levelIndex, rec.Metadata.Level)
		}
	}
}

func intersect(a, b idSet) idSet {
	if len(b) < len(a) {
		a, b = b, a
	}
	out := make(idSet, len(a))
	for id := range a {
		if _, ok := b[id]; ok {
			out[id] = struct{}{}
		}
	}
	return out
}

func cloneSet(s idSet) idSet {
	out := make(idSet, len(s))
	for id := range s {
		out[id] = struct{}{}
	}
	return out
}

// fileFormat is the JSON layout shared by index and snapshot files.
type fileFormat struct {
	Version     string                  `json:"version"`
	LastUpdated time.Time               `json:"lastUpdated"`
	Records     map[string]audio.Record `json:"records"`
	EntryIndex  map[string][]string     `json:"entryIndex"`
	LevelIndex  map[string][]string     `json:"levelIndex"`
}

// MarshalJSON writes buckets as sorted id arrays so output is deterministic.
func (d *Document) MarshalJSON() ([]byte, error) {
	out := fileFormat{
		Version:     d.Version,
		LastUpdated: d.LastUpdated.UTC(),
		Records:     d.records,
		EntryIndex:  make(map[string][]string, len(d.entryIndex)),
		LevelIndex:  make(map[string][]string, len(d.levelIndex)),
	}
	if out.Version == "" {
		out.Version = FormatVersion
	}
	if out.Records == nil {
		out.Records = map[string]audio.Record{}
	}
	for key, ids := range d.entryIndex {
		out.EntryIndex[key] = ids.sorted()
	}
	for key, ids := range d.levelIndex {
		out.LevelIndex[string(key)] = ids.sorted()
	}
	return json.Marshal(out)
}

// UnmarshalJSON loads records and re-derives both buckets from them. Any
// disagreement between the stored buckets and the derived ones is kept as an
// Issue and reported by Verify.
func (d *Document) UnmarshalJSON(data []byte) error {
	var in fileFormat
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	fresh := NewDocument()
	if in.Version != "" {
		fresh.Version = in.Version
	}
	fresh.LastUpdated = in.LastUpdated

	ids := make([]string, 0, len(in.Records))
	for id := range in.Records {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, key := range ids {
		rec := in.Records[key]
		if rec.ID == "" {
			rec.ID = key
		}
		if rec.ID != key {
			fresh.issues = append(fresh.issues, Issue{Kind: IssueKeyMismatch, ID: rec.ID, Key: key})
		}
		if err := fresh.Put(rec); err != nil {
			fresh.issues = append(fresh.issues, Issue{Kind: IssueInvalidRecord, ID: rec.ID, Key: key, Detail: err.Error()})
		}
	}
	fresh.issues = append(fresh.issues, compareBuckets("entryIndex", in.EntryIndex, fresh.entryIndex)...)
	fresh.issues = append(fresh.issues, compareBuckets("levelIndex", in.LevelIndex, fresh.levelIndexStrings())...)

	*d = *fresh
	return nil
}

func (d *Document) levelIndexStrings() map[string]idSet {
	out := make(map[string]idSet, len(d.levelIndex))
	for level, ids := range d.levelIndex {
		out[string(level)] = ids
	}
	return out
}
