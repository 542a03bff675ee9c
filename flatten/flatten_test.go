package flatten

import (
	"encoding/json"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
)

func TestFlattenNested(t *testing.T) {
	tree, err := Decode([]byte(`{"hello": "Hello", "nested": {"bye": "Bye", "list": ["a", "b"]}}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	got := Flatten(tree, ".")
	want := map[string]any{
		"hello":         "Hello",
		"nested.bye":    "Bye",
		"nested.list.0": "a",
		"nested.list.1": "b",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("Flatten = %v, want %v", got, want)
	}
}

func TestRoundTrip(t *testing.T) {
	inputs := []string{
		`{"a": "x"}`,
		`{"a": {"b": {"c": "deep"}}, "d": "top"}`,
		`{"n": 1.50, "t": true, "f": false, "z": null, "s": "str"}`,
		`{"list": ["one", {"two": "2"}, ["three"]]}`,
		`{"empty": {}, "none": [], "x": {"y": {}}}`,
		`{}`,
		`"scalar"`,
		`["a", "b", "c", "d", "e", "f", "g", "h", "i", "j", "k", "l"]`,
	}

	for _, in := range inputs {
		tree, err := Decode([]byte(in))
		if err != nil {
			t.Fatalf("Decode(%s): %v", in, err)
		}
		flat := Flatten(tree, "/")
		back, err := Unflatten(flat, "/")
		if err != nil {
			t.Fatalf("Unflatten(%s): %v", in, err)
		}
		if !reflect.DeepEqual(back, tree) {
			t.Errorf("round trip of %s: got %#v, want %#v", in, back, tree)
		}
	}
}

func TestRoundTripLossyShapes(t *testing.T) {
	tests := []struct {
		name, in, want string
	}{
		{"index keyed object becomes an array", `{"o": {"0": "a", "1": "b"}}`, `{"o": ["a", "b"]}`},
		{"dotted key becomes nested", `{"a.b": "x"}`, `{"a": {"b": "x"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tree, err := Decode([]byte(tt.in))
			if err != nil {
				t.Fatal(err)
			}
			got, err := Unflatten(Flatten(tree, "."), ".")
			if err != nil {
				t.Fatal(err)
			}
			want, _ := Decode([]byte(tt.want))
			if !reflect.DeepEqual(got, want) {
				t.Errorf("round trip = %v, want %v", got, want)
			}
		})
	}
}

func TestDecodeKeepsNumbers(t *testing.T) {
	tree, err := Decode([]byte(`{"price": 10.00}`))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	flat := Flatten(tree, ".")
	n, ok := flat["price"].(json.Number)
	if !ok {
		t.Fatalf("price is %T, want json.Number", flat["price"])
	}
	if n.String() != "10.00" {
		t.Errorf("price = %s, want 10.00", n)
	}
}

func TestDecodeRejectsTrailingData(t *testing.T) {
	if _, err := Decode([]byte(`{"a": "b"} {"c": "d"}`)); err == nil {
		t.Fatal("expected error for trailing data")
	}
}

func TestUnflattenConflict(t *testing.T) {
	_, err := Unflatten(map[string]any{"a": "leaf", "a.b": "child"}, ".")
	if err == nil {
		t.Fatal("expected conflict error")
	}
}

func TestEncodeSortedIndented(t *testing.T) {
	out, err := Encode(map[string]any{"b": "2", "a": "<1>"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := "{\n    \"a\": \"<1>\",\n    \"b\": \"2\"\n}\n"
	if string(out) != want {
		t.Errorf("Encode = %q, want %q", out, want)
	}
}

func TestStringsAndMerge(t *testing.T) {
	flat := map[string]any{"a": "x", "n": json.Number("3"), "b": true}
	s := Strings(flat)
	if len(s) != 1 || s["a"] != "x" {
		t.Fatalf("Strings = %v", s)
	}

	merged := Merge(flat, map[string]string{"a": "y"})
	if merged["a"] != "y" || merged["n"] != json.Number("3") || merged["b"] != true {
		t.Errorf("Merge = %v", merged)
	}

	flat["untranslated"] = "English"
	if _, ok := Merge(flat, map[string]string{"a": "y"})["untranslated"]; ok {
		t.Error("Merge copied a source string with no translation")
	}
	delete(flat, "untranslated")
	if flat["a"] != "x" {
		t.Error("Merge modified its input")
	}
}

func TestSortedKeysIdempotent(t *testing.T) {
	m := map[string]string{"b": "", "a.c": "", "a": "", "A": ""}
	first := SortedKeys(m)
	second := SortedKeys(m)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("SortedKeys not stable: %v vs %v", first, second)
	}
	if strings.Join(first, ",") != "A,a,a.c,b" {
		t.Errorf("SortedKeys = %v", first)
	}
}

func TestWriteAndParseFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "fr.json")
	tree := map[string]any{"hello": "Bonjour"}
	if err := WriteFile(path, tree); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	got, err := ParseFile(path)
	if err != nil {
		t.Fatalf("ParseFile: %v", err)
	}
	if !reflect.DeepEqual(got, tree) {
		t.Errorf("ParseFile = %v, want %v", got, tree)
	}
}
