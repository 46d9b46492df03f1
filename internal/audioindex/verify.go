package audioindex

import (
	"fmt"
	"sort"
)

// IssueKind classifies a disagreement found while loading an index file.
type IssueKind string

const (
	// IssueDanglingID is an id listed in a bucket with no matching record.
	IssueDanglingID IssueKind = "dangling_id"
	// IssueMissingID is a record absent from the bucket it belongs to.
	IssueMissingID IssueKind = "missing_id"
	// IssueEmptyBucket is a bucket stored as an empty array.
	IssueEmptyBucket IssueKind = "empty_bucket"
	// IssueKeyMismatch is a record stored under a key other than its id.
	IssueKeyMismatch IssueKind = "key_mismatch"
	// IssueInvalidRecord is a record whose metadata cannot be indexed. It is
	// dropped on load.
	IssueInvalidRecord IssueKind = "invalid_record"
)

// Issue describes one inconsistency in a stored index file.
type Issue struct {
	Kind   IssueKind `json:"kind"`
	Table  string    `json:"table,omitempty"`
	Key    string    `json:"key,omitempty"`
	ID     string    `json:"id,omitempty"`
	Detail string    `json:"detail,omitempty"`
}

func (i Issue) String() string {
	msg := string(i.Kind)
	if i.Table != "" {
		msg += fmt.Sprintf(" %s[%s]", i.Table, i.Key)
	} else if i.Key != "" {
		msg += fmt.Sprintf(" key=%s", i.Key)
	}
	if i.ID != "" {
		msg += " id=" + i.ID
	}
	if i.Detail != "" {
		msg += ": " + i.Detail
	}
	return msg
}

// Verify returns the inconsistencies found in the file this document was
// decoded from. The in-memory buckets are always re-derived from records, so
// a non-empty result means the file on disk should be rewritten.
func (d *Document) Verify() []Issue {
	return append([]Issue(nil), d.issues...)
}

// compareBuckets diffs stored bucket arrays against buckets derived from records.
func compareBuckets(table string, stored map[string][]string, derived map[string]idSet) []Issue {
	var issues []Issue
	keys := make([]string, 0, len(stored)+len(derived))
	seen := make(map[string]struct{}, len(stored)+len(derived))
	for key := range stored {
		keys = append(keys, key)
		seen[key] = struct{}{}
	}
	for key := range derived {
		if _, ok := seen[key]; !ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)

	for _, key := range keys {
		ids, present := stored[key]
		if present && len(ids) == 0 {
			issues = append(issues, Issue{Kind: IssueEmptyBucket, Table: table, Key: key})
		}
		storedSet := make(idSet, len(ids))
		for _, id := range ids {
			storedSet[id] = struct{}{}
		}
		want := derived[key]
		for _, id := range storedSet.sorted() {
			if _, ok := want[id]; !ok {
				issues = append(issues, Issue{Kind: IssueDanglingID, Table: table, Key: key, ID: id})
			}
		}
		for _, id := range want.sorted() {
			if _, ok := storedSet[id]; !ok {
				issues = append(issues, Issue{Kind: IssueMissingID, Table: table, Key: key, ID: id})
			}
		}
	}
	return issues
}
