// Package merge reconciles per-language translation mappings with the
// current source mapping.
package merge

import "sort"

// Sync compares an existing translation with the source it was made from.
// - Keys present in both keep their translation.
// - Source keys without a translation are reported as missing.
// - Translated keys no longer in the source are reported as obsolete and
//   dropped from the result.
func Sync(current, source map[string]string) (kept map[string]string, missing, obsolete []string) {
	kept = make(map[string]string, len(source))
	for key := range source {
		if value, ok := current[key]; ok {
			kept[key] = value
		} else {
			missing = append(missing, key)
		}
	}
	for key := range current {
		if _, ok := source[key]; !ok {
			obsolete = append(obsolete, key)
		}
	}
	sort.Strings(missing)
	sort.Strings(obsolete)
	return kept, missing, obsolete
}

// Prune returns a copy of m without the deleted keys.
func Prune(m map[string]string, deleted []string) map[string]string {
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	for _, k := range deleted {
		delete(out, k)
	}
	return out
}

// Apply prunes deleted keys from a copy of current and overlays updates.
// Keys absent from both updates and deleted keep their prior value.
func Apply(current, updates map[string]string, deleted []string) map[string]string {
	out := Prune(current, deleted)
	for k, v := range updates {
		out[k] = v
	}
	return out
}
