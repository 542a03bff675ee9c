// Package flatten converts nested JSON resource trees into flat
// key/value mappings and back.
//
// Given the delimiter ".", the tree
//
//	{
//	    "hello": "Hello",
//	    "nested": { "bye": "Bye", "list": ["a", "b"] }
//	}
//
// flattens to
//
//	hello         -> "Hello"
//	nested.bye    -> "Bye"
//	nested.list.0 -> "a"
//	nested.list.1 -> "b"
//
// Leaves keep their JSON type: strings, json.Number, bool and nil. Empty
// objects and arrays are kept as leaves so they survive a round trip.
//
// The round trip is lossy for two shapes. An object whose keys are exactly
// "0" to "n-1" comes back as an array, and a key that contains the
// delimiter comes back split into nested objects.
package flatten

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
)

// DefaultDelimiter joins path segments of flattened keys.
const DefaultDelimiter = "."

// ParseFile reads and decodes a JSON resource file.
func ParseFile(path string) (any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	tree, err := Decode(data)
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return tree, nil
}

// Decode parses JSON data. Numbers are kept as json.Number so they are
// written back byte for byte.
func Decode(data []byte) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var tree any
	if err := dec.Decode(&tree); err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("parsing JSON: unexpected data after top-level value")
	}
	return tree, nil
}

// Encode produces 4-space indented JSON with object keys in sorted order
// and a trailing newline.
func Encode(tree any) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(tree); err != nil {
		return nil, fmt.Errorf("encoding JSON: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile encodes tree and writes it to path, creating parent
// directories as needed.
func WriteFile(path string, tree any) error {
	data, err := Encode(tree)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	return os.WriteFile(path, data, 0644)
}

// Flatten walks tree and returns its leaves keyed by delimiter-joined path.
// A scalar at the top level is returned under the empty key.
func Flatten(tree any, delim string) map[string]any {
	if delim == "" {
		delim = DefaultDelimiter
	}
	out := make(map[string]any)
	walk(tree, "", delim, out)
	return out
}

func walk(node any, prefix, delim string, out map[string]any) {
	switch v := node.(type) {
	case map[string]any:
		if len(v) == 0 && prefix != "" {
			out[prefix] = map[string]any{}
			return
		}
		for k, child := range v {
			walk(child, join(prefix, k, delim), delim, out)
		}
	case []any:
		if len(v) == 0 && prefix != "" {
			out[prefix] = []any{}
			return
		}
		for i, child := range v {
			walk(child, join(prefix, strconv.Itoa(i), delim), delim, out)
		}
	default:
		out[prefix] = v
	}
}

func join(prefix, key, delim string) string {
	if prefix == "" {
		return key
	}
	return prefix + delim + key
}

// Unflatten rebuilds a nested tree from flat. A level whose keys are
// exactly 0..n-1 becomes an array.
func Unflatten(flat map[string]any, delim string) (any, error) {
	if delim == "" {
		delim = DefaultDelimiter
	}
	if v, ok := flat[""]; ok && len(flat) == 1 {
		return v, nil
	}

	root := map[string]any{}
	keys := SortedKeys(flat)
	for _, key := range keys {
		parts := strings.Split(key, delim)
		node := root
		for i, part := range parts[:len(parts)-1] {
			next, exists := node[part]
			if !exists {
				child := map[string]any{}
				node[part] = child
				node = child
				continue
			}
			child, ok := next.(map[string]any)
			if !ok || isEmptyLeaf(next) {
				return nil, fmt.Errorf("key %q conflicts with leaf %q", key, strings.Join(parts[:i+1], delim))
			}
			node = child
		}
		last := parts[len(parts)-1]
		if existing, exists := node[last]; exists {
			if _, isMap := existing.(map[string]any); isMap {
				return nil, fmt.Errorf("key %q conflicts with nested keys", key)
			}
		}
		node[last] = flat[key]
	}
	return arrays(root), nil
}

// isEmptyLeaf reports whether v is an empty container stored as a leaf.
func isEmptyLeaf(v any) bool {
	m, ok := v.(map[string]any)
	return ok && len(m) == 0
}

// arrays converts maps with exactly the keys 0..n-1 into slices.
func arrays(node any) any {
	m, ok := node.(map[string]any)
	if !ok {
		return node
	}
	for k, v := range m {
		m[k] = arrays(v)
	}
	if len(m) == 0 {
		return m
	}
	list := make([]any, len(m))
	for k, v := range m {
		i, err := strconv.Atoi(k)
		if err != nil || i < 0 || i >= len(m) || strconv.Itoa(i) != k {
			return m
		}
		list[i] = v
	}
	return list
}

// Strings returns the string leaves of flat.
func Strings(flat map[string]any) map[string]string {
	out := make(map[string]string, len(flat))
	for k, v := range flat {
		if s, ok := v.(string); ok {
			out[k] = s
		}
	}
	return out
}

// Merge builds a target tree from the source leaves in flat: non-string
// leaves are copied, string leaves are taken from values. A source string
// with no entry in values is left out rather than copied untranslated.
func Merge(flat map[string]any, values map[string]string) map[string]any {
	out := make(map[string]any, len(flat)+len(values))
	for k, v := range flat {
		if _, ok := v.(string); !ok {
			out[k] = v
		}
	}
	for k, v := range values {
		out[k] = v
	}
	return out
}

// SortedKeys returns the keys of m in lexicographic order.
func SortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
