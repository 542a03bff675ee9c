// Package diff computes which keys of a flattened source tree were added,
// modified or deleted between two snapshots.
package diff

import (
	"sort"
)

// Result holds three disjoint, sorted key sets.
type Result struct {
	// Added keys exist only in the newer snapshot.
	Added []string
	// Modified keys exist in both snapshots with different values.
	Modified []string
	// Deleted keys exist only in the older snapshot.
	Deleted []string
}

// Compute compares before and after.
func Compute(before, after map[string]string) Result {
	var r Result
	for key, value := range after {
		prev, ok := before[key]
		switch {
		case !ok:
			r.Added = append(r.Added, key)
		case prev != value:
			r.Modified = append(r.Modified, key)
		}
	}
	for key := range before {
		if _, ok := after[key]; !ok {
			r.Deleted = append(r.Deleted, key)
		}
	}
	r.sort()
	return r
}

// FromChecksums compares after against a snapshot of source checksums
// (key -> hash(value)), as stored in a lock file.
func FromChecksums(previous map[string]string, after map[string]string, hash func(string) string) Result {
	var r Result
	for key, value := range after {
		sum, ok := previous[key]
		switch {
		case !ok:
			r.Added = append(r.Added, key)
		case sum != hash(value):
			r.Modified = append(r.Modified, key)
		}
	}
	for key := range previous {
		if _, ok := after[key]; !ok {
			r.Deleted = append(r.Deleted, key)
		}
	}
	r.sort()
	return r
}

func (r *Result) sort() {
	sort.Strings(r.Added)
	sort.Strings(r.Modified)
	sort.Strings(r.Deleted)
}

// Empty reports whether nothing changed.
func (r Result) Empty() bool {
	return len(r.Added) == 0 && len(r.Modified) == 0 && len(r.Deleted) == 0
}

// Changed returns the added and modified keys, sorted.
func (r Result) Changed() []string {
	keys := make([]string, 0, len(r.Added)+len(r.Modified))
	keys = append(keys, r.Added...)
	keys = append(keys, r.Modified...)
	sort.Strings(keys)
	return keys
}

// Payload returns the added and modified keys with their values in after.
func (r Result) Payload(after map[string]string) map[string]string {
	out := make(map[string]string, len(r.Added)+len(r.Modified))
	for _, key := range r.Changed() {
		out[key] = after[key]
	}
	return out
}

// Union merges o into r. A key added or modified in either result stays
// added or modified; keys present in both lists keep r's classification.
func (r Result) Union(o Result) Result {
	seen := make(map[string]bool, len(r.Added)+len(r.Modified)+len(r.Deleted))
	out := Result{
		Added:    append([]string(nil), r.Added...),
		Modified: append([]string(nil), r.Modified...),
		Deleted:  append([]string(nil), r.Deleted...),
	}
	for _, list := range [][]string{r.Added, r.Modified, r.Deleted} {
		for _, key := range list {
			seen[key] = true
		}
	}
	add := func(dst *[]string, keys []string) {
		for _, key := range keys {
			if !seen[key] {
				seen[key] = true
				*dst = append(*dst, key)
			}
		}
	}
	add(&out.Added, o.Added)
	add(&out.Modified, o.Modified)
	add(&out.Deleted, o.Deleted)
	out.sort()
	return out
}
