package translate

import (
	"context"
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"github.com/minios-linux/aitranslate/logging"
)

func makeUnits(originals ...string) []*Unit {
	out := make([]*Unit, len(originals))
	for i, o := range originals {
		out[i] = &Unit{ID: i + 1, Key: o, Original: o}
	}
	return out
}

func TestCSVBatch(t *testing.T) {
	pending := makeUnits("a", "b", "c")
	if got := csvBatch(pending, 2); len(got) != 2 || got[0].Key != "a" {
		t.Errorf("csvBatch(2) = %v", unitKeys(got))
	}
	if got := csvBatch(pending, 10); len(got) != 3 {
		t.Errorf("csvBatch(10) = %v", unitKeys(got))
	}
	if got := csvBatch(pending, 0); len(got) != 1 {
		t.Errorf("csvBatch(0) = %v", unitKeys(got))
	}
}

func TestJSONBatch_StarvingUnitsFirst(t *testing.T) {
	pending := makeUnits("a", "b", "c", "d")
	pending[2].TranslationAttempts = 3
	pending[2].VerificationAttempts = 2

	got := unitKeys(jsonBatch(pending, 1000, 5))
	if want := []string{"c", "a", "b", "d"}; !reflect.DeepEqual(got, want) {
		t.Errorf("order = %v, want %v", got, want)
	}
}

func TestJSONBatch_StopsAtBudget(t *testing.T) {
	pending := makeUnits(strings.Repeat("x", 40), strings.Repeat("y", 40), "z")
	// Each long unit costs 8 + 10 tokens.
	got := jsonBatch(pending, 36, 5)
	if len(got) != 2 {
		t.Errorf("batch = %d units, want 2", len(got))
	}
	got = jsonBatch(pending, 20, 5)
	if len(got) != 1 {
		t.Errorf("batch = %d units, want 1", len(got))
	}
}

func TestJSONBatch_NeverEmpty(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for i := 0; i < 300; i++ {
		n := 1 + rng.Intn(20)
		pending := make([]*Unit, n)
		for j := range pending {
			pending[j] = &Unit{
				ID:                  j + 1,
				Original:            strings.Repeat("w", rng.Intn(400)),
				TranslationAttempts: rng.Intn(8),
			}
		}
		budget := rng.Intn(200)
		batch := jsonBatch(pending, budget, 1+rng.Intn(6))
		if len(batch) == 0 || len(batch) > n {
			t.Fatalf("iteration %d: batch of %d from %d", i, len(batch), n)
		}
		if len(batch) > 1 {
			used := 0
			for _, u := range batch {
				used += unitTokens(u)
			}
			if used > budget {
				t.Fatalf("iteration %d: %d tokens over budget %d", i, used, budget)
			}
		}
	}
}

func TestMaxInputTokens(t *testing.T) {
	if got := maxInputTokens(4096, 96); got != 1800 {
		t.Errorf("maxInputTokens(4096, 96) = %d, want 1800", got)
	}
	if got := maxInputTokens(100, 500); got != 1 {
		t.Errorf("maxInputTokens(100, 500) = %d, want 1", got)
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := map[string]int{"": 0, "ab": 1, "abcd": 1, "abcdefgh": 2}
	for in, want := range cases {
		if got := estimateTokens(in); got != want {
			t.Errorf("estimateTokens(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestMissingTemplates(t *testing.T) {
	pattern := templatePattern("{{", "}}")
	templates := extractTemplates(pattern, "{{a}} and {{a}} or {{b}}")
	if !reflect.DeepEqual(templates, []string{"{{a}}", "{{a}}", "{{b}}"}) {
		t.Fatalf("templates = %v", templates)
	}
	if got := missingTemplates(templates, "{{b}} {{a}} {{a}}"); len(got) != 0 {
		t.Errorf("reordered: missing %v", got)
	}
	if got := missingTemplates(templates, "{{a}} {{b}}"); !reflect.DeepEqual(got, []string{"{{a}}"}) {
		t.Errorf("one copy dropped: missing %v", got)
	}
	if got := missingTemplates(nil, "anything"); got != nil {
		t.Errorf("no templates: missing %v", got)
	}
}

func TestTemplatePattern_ShortestMatch(t *testing.T) {
	got := extractTemplates(templatePattern("%{", "}"), "%{one} and %{two}")
	if !reflect.DeepEqual(got, []string{"%{one}", "%{two}"}) {
		t.Errorf("got %v", got)
	}
}

func TestValidateCSV(t *testing.T) {
	batch := makeUnits("Hello {{name}}", "Bye")
	batch[0].Templates = []string{"{{name}}"}

	lines, err := validateCSV(batch, "\r\n\"Salut {{name}}\"\r\n  \"\"Au revoir\"\"  \n")
	if err != nil {
		t.Fatalf("validateCSV: %v", err)
	}
	if want := []string{`"Salut {{name}}"`, `"Au revoir"`}; !reflect.DeepEqual(lines, want) {
		t.Errorf("lines = %v, want %v", lines, want)
	}

	if _, err := validateCSV(batch, "\"Salut\"\n\"Au revoir\""); err == nil || err.Kind != KindMissingPlaceholder {
		t.Errorf("missing placeholder: %v", err)
	}
	if _, err := validateCSV(batch, `"Salut {{name}}"`); err == nil || err.Kind != KindLineCountMismatch {
		t.Errorf("line count: %v", err)
	}
}

func TestStripFence(t *testing.T) {
	cases := map[string]string{
		"```\n\"a\"\n```":           `"a"`,
		"```csv\n\"a\"\n\"b\"\n```": "\"a\"\n\"b\"",
		`"plain"`:                   `"plain"`,
	}
	for in, want := range cases {
		if got := stripFence(in); got != want {
			t.Errorf("stripFence(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestParseVerdict(t *testing.T) {
	cases := []struct {
		reply   string
		ack, ok bool
	}{
		{"ACK", true, true},
		{" NAK\n", false, true},
		{"The translation is correct. ACK", true, true},
		{"NAK - the capitalization differs", false, true},
		{"ACK or NAK?", false, false},
		{"looks good", false, false},
	}
	for _, tc := range cases {
		ack, ok := parseVerdict(tc.reply)
		if ack != tc.ack || ok != tc.ok {
			t.Errorf("parseVerdict(%q) = %v, %v; want %v, %v", tc.reply, ack, ok, tc.ack, tc.ok)
		}
	}
}

func TestRetry_StopsOnSuccess(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 5, 0, logging.NoOp(), "job", func(attempt int) error {
		calls++
		if attempt < 3 {
			return reject(KindEmptyResponse, "empty")
		}
		return nil
	})
	if err != nil || calls != 3 {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetry_Exhausted(t *testing.T) {
	calls := 0
	err := retry(context.Background(), 3, 0, logging.NoOp(), "job", func(int) error {
		calls++
		return reject(KindInvalidQuoting, "bad")
	})
	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if KindOf(err) != KindAttemptsExhausted {
		t.Errorf("kind = %q", KindOf(err))
	}
	var re *RejectError
	if !errors.As(err, &re) || KindOf(re.Err) != KindInvalidQuoting {
		t.Errorf("last error not wrapped: %v", err)
	}
}

func TestRetry_FatalStopsImmediately(t *testing.T) {
	calls := 0
	boom := errors.New("boom")
	err := retry(context.Background(), 5, 0, logging.NoOp(), "job", func(int) error {
		calls++
		return fatal(boom)
	})
	if calls != 1 || !errors.Is(err, boom) {
		t.Errorf("err = %v, calls = %d", err, calls)
	}
}

func TestRetry_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	called := false
	err := retry(ctx, 5, 0, logging.NoOp(), "job", func(int) error {
		called = true
		return nil
	})
	if called || !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, called = %v", err, called)
	}
}
