package merge

import (
	"reflect"
	"testing"
)

func TestSyncKeepMissingObsolete(t *testing.T) {
	current := map[string]string{"keep": "garder", "gone": "parti"}
	source := map[string]string{"keep": "Keep", "new": "New", "another": "Another"}

	kept, missing, obsolete := Sync(current, source)

	if !reflect.DeepEqual(kept, map[string]string{"keep": "garder"}) {
		t.Errorf("kept = %v", kept)
	}
	if !reflect.DeepEqual(missing, []string{"another", "new"}) {
		t.Errorf("missing = %v", missing)
	}
	if !reflect.DeepEqual(obsolete, []string{"gone"}) {
		t.Errorf("obsolete = %v", obsolete)
	}
}

func TestSyncEmptyCurrent(t *testing.T) {
	kept, missing, obsolete := Sync(nil, map[string]string{"a": "A"})
	if len(kept) != 0 || !reflect.DeepEqual(missing, []string{"a"}) || obsolete != nil {
		t.Errorf("Sync(nil) = %v, %v, %v", kept, missing, obsolete)
	}
}

func TestPruneDoesNotModifyInput(t *testing.T) {
	in := map[string]string{"a": "1", "b": "2"}
	out := Prune(in, []string{"b", "missing"})

	if !reflect.DeepEqual(out, map[string]string{"a": "1"}) {
		t.Errorf("Prune = %v", out)
	}
	if len(in) != 2 {
		t.Error("Prune modified its input")
	}
}

func TestApply(t *testing.T) {
	current := map[string]string{"a": "Xfr", "b": "Yfr", "keep": "same"}
	got := Apply(current, map[string]string{"a": "X2fr", "c": "Zfr"}, []string{"b"})
	want := map[string]string{"a": "X2fr", "c": "Zfr", "keep": "same"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Apply = %v, want %v", got, want)
	}
}
