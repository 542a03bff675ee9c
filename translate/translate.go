// Package translate implements the translation engine: it batches a
// flattened source mapping, drives the generation and verification chats
// through validated, retried rounds and reassembles the result. Diff mode
// translates only the keys that changed since a prior snapshot.
package translate

import (
	"context"
	"fmt"
	"math/rand"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/minios-linux/aitranslate/chat"
	"github.com/minios-linux/aitranslate/diff"
	"github.com/minios-linux/aitranslate/logging"
	"github.com/minios-linux/aitranslate/merge"
	"github.com/minios-linux/aitranslate/prompt"
)

// ChatFactory returns a new, unstarted chat for purpose.
type ChatFactory func(purpose chat.Purpose) chat.Chat

// Translator translates flat key/value mappings between languages.
// A Translator runs one translation at a time.
type Translator struct {
	chats   ChatFactory
	opts    Options
	prompts prompt.Builder
}

// New validates opts and the prompt overrides and returns a Translator.
// Configuration errors surface here, before any model call.
func New(chats ChatFactory, opts Options) (*Translator, error) {
	if chats == nil {
		return nil, fmt.Errorf("translate: chat factory is required")
	}
	if err := opts.Validate(); err != nil {
		return nil, fmt.Errorf("translate: invalid options: %w", err)
	}
	prefix, suffix := opts.delimiters()
	prompts, err := prompt.NewBuilder(opts.Prompts, prefix, suffix)
	if err != nil {
		return nil, err
	}
	return &Translator{chats: chats, opts: opts, prompts: prompts}, nil
}

// run is the state of one Translate call.
type run struct {
	opts    *Options
	prompts prompt.Builder
	log     logging.Logger

	lang    string
	inName  string
	outName string

	gen               chat.Chat
	verifyTranslation chat.Chat
	verifyStyling     chat.Chat

	// fixed caches repaired unchanged lines by quoted input line.
	fixed       map[string]string
	emptyStreak int
}

func (t *Translator) newRun(inLang, outLang string) *run {
	start := func(purpose chat.Purpose) chat.Chat {
		c := t.chats(purpose)
		c.StartChat(chat.Params{Purpose: purpose, Instructions: prompt.Instructions})
		return c
	}
	r := &run{
		opts:    &t.opts,
		prompts: t.prompts,
		lang:    outLang,
		inName:  t.opts.languageName(inLang),
		outName: t.opts.languageName(outLang),
		fixed:   make(map[string]string),
	}
	r.log = t.opts.logger().WithFields(map[string]any{"run": uuid.NewString(), "lang": outLang})
	r.gen = start(chat.PurposeGenerate)
	r.verifyTranslation = start(chat.PurposeVerifyTranslation)
	if t.opts.effectiveMode() == ModeCSV {
		r.verifyStyling = start(chat.PurposeVerifyStyling)
	}
	return r
}

// Translate translates every value of flat from inLang to outLang and
// returns the translations under the same keys. Any failed batch fails
// the whole call; no partial result is returned. Empty values are copied
// without a model call.
func (t *Translator) Translate(ctx context.Context, flat map[string]string, inLang, outLang string) (map[string]string, error) {
	if inLang == "" || outLang == "" {
		return nil, fmt.Errorf("translate: input and output languages are required")
	}
	out := make(map[string]string, len(flat))
	if len(flat) == 0 {
		return out, nil
	}

	newline := t.opts.newlineToken()
	prefix, suffix := t.opts.delimiters()
	pattern := templatePattern(prefix, suffix)

	var units []*Unit
	for _, key := range SortedKeys(flat) {
		value := flat[key]
		if value == "" {
			out[key] = value
			continue
		}
		original := strings.ReplaceAll(value, "\n", newline)
		units = append(units, &Unit{
			ID:        len(units) + 1,
			Key:       key,
			Original:  original,
			Context:   t.opts.Contexts[key],
			Templates: extractTemplates(pattern, original),
		})
	}
	if len(units) == 0 {
		return out, nil
	}

	shuffle(t.opts.rand(), units)

	r := t.newRun(inLang, outLang)
	r.log.Info("translating", "from", inLang, "units", len(units), "mode", t.opts.effectiveMode())

	var err error
	if t.opts.effectiveMode() == ModeJSON {
		err = r.translateJSON(ctx, units)
	} else {
		err = r.translateBatches(ctx, units)
	}
	if err != nil {
		return nil, err
	}

	for _, u := range units {
		out[u.Key] = strings.ReplaceAll(u.Translated, newline, "\n")
	}
	return out, nil
}

// translateBatches processes CSV batches strictly in order.
func (r *run) translateBatches(ctx context.Context, units []*Unit) error {
	size := r.opts.effectiveBatchSize()
	done := 0
	for pending := units; len(pending) > 0; {
		batch := csvBatch(pending, size)
		if err := r.translateCSV(ctx, batch); err != nil {
			return exhausted(r.lang, unitKeys(batch), err)
		}
		pending = pending[len(batch):]
		done += len(batch)
		r.log.Debug("batch accepted", "units", len(batch), "done", done, "total", len(units))
		r.opts.progress(r.lang, done, len(units))
	}
	return nil
}

// shuffle permutes units in place (Fisher-Yates).
func shuffle(rng *rand.Rand, units []*Unit) {
	for i := len(units) - 1; i > 0; i-- {
		j := rng.Intn(i + 1)
		units[i], units[j] = units[j], units[i]
	}
}

// TranslateDiff brings every language in current up to date with after,
// given the source mapping before it changed. Keys deleted from the source
// are pruned, added and modified keys are translated, and every other key
// keeps its existing translation.
func (t *Translator) TranslateDiff(ctx context.Context, before, after map[string]string, current map[string]map[string]string, inLang string) (map[string]map[string]string, error) {
	return t.ApplyDiff(ctx, diff.Compute(before, after), after, current, inLang)
}

// ApplyDiff is TranslateDiff for a precomputed diff, such as one derived
// from lock file checksums. Languages are processed one at a time in
// sorted order.
func (t *Translator) ApplyDiff(ctx context.Context, d diff.Result, after map[string]string, current map[string]map[string]string, inLang string) (map[string]map[string]string, error) {
	payload := d.Payload(after)
	result := make(map[string]map[string]string, len(current))

	for _, lang := range SortedKeys(current) {
		updates := map[string]string{}
		if len(payload) > 0 {
			var err error
			updates, err = t.Translate(ctx, payload, inLang, lang)
			if err != nil {
				return nil, err
			}
		}
		result[lang] = merge.Apply(current[lang], updates, d.Deleted)
	}
	return result, nil
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
