package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/minios-linux/aitranslate/chat"
)

// ---------------------------------------------------------------------------
// Response schemas
// ---------------------------------------------------------------------------

func itemsSchema(properties map[string]any) map[string]any {
	required := make([]any, 0, len(properties))
	for _, name := range []string{"id", "translated", "valid", "issue", "fixedTranslation"} {
		if _, ok := properties[name]; ok {
			required = append(required, name)
		}
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"properties":           properties,
					"required":             required,
					"additionalProperties": false,
				},
			},
		},
		"required":             []any{"items"},
		"additionalProperties": false,
	}
}

var (
	translationSchema = &chat.Schema{
		Name: "translations",
		Definition: itemsSchema(map[string]any{
			"id":         map[string]any{"type": "integer"},
			"translated": map[string]any{"type": "string"},
		}),
	}
	verificationSchema = &chat.Schema{
		Name: "verifications",
		Definition: itemsSchema(map[string]any{
			"id":               map[string]any{"type": "integer"},
			"valid":            map[string]any{"type": "boolean"},
			"issue":            map[string]any{"type": "string"},
			"fixedTranslation": map[string]any{"type": "string"},
		}),
	}

	translationValidator  = mustCompile(translationSchema)
	verificationValidator = mustCompile(verificationSchema)
)

func mustCompile(s *chat.Schema) *jsonschema.Schema {
	encoded, err := json.Marshal(s.Definition)
	if err != nil {
		panic(err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	url := s.Name + ".json"
	if err := compiler.AddResource(url, bytes.NewReader(encoded)); err != nil {
		panic(err)
	}
	return compiler.MustCompile(url)
}

type requestItem struct {
	ID         int    `json:"id"`
	Original   string `json:"original"`
	Translated string `json:"translated,omitempty"`
	Context    string `json:"context,omitempty"`
	Failure    string `json:"failure,omitempty"`
}

type translatedItem struct {
	ID         int    `json:"id"`
	Translated string `json:"translated"`
}

type verifiedItem struct {
	ID               int    `json:"id"`
	Valid            bool   `json:"valid"`
	Issue            string `json:"issue"`
	FixedTranslation string `json:"fixedTranslation"`
}

// parseItems decodes reply and validates it against schema. A bare array
// is accepted as the items list.
func parseItems[T any](schema *jsonschema.Schema, reply string) ([]T, error) {
	text := strings.TrimSpace(stripFence(reply))

	var doc any
	if err := json.Unmarshal([]byte(text), &doc); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	if list, ok := doc.([]any); ok {
		doc = map[string]any{"items": list}
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("response does not match schema: %w", err)
	}

	normalized, err := json.Marshal(doc)
	if err != nil {
		return nil, err
	}
	var out struct {
		Items []T `json:"items"`
	}
	if err := json.Unmarshal(normalized, &out); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return out.Items, nil
}

func marshalItems(items []requestItem) string {
	data, _ := json.Marshal(items)
	return string(data)
}

// ---------------------------------------------------------------------------
// JSON mode
// ---------------------------------------------------------------------------

// translateJSON drains units through token-budgeted rounds. A unit leaves
// the pending set once it is translated and verified; a unit over the
// attempt ceiling fails the whole job.
func (r *run) translateJSON(ctx context.Context, units []*Unit) error {
	pending := units
	budget := maxInputTokens(r.opts.effectiveBatchMaxTokens(), r.prompts.OverheadTokens(estimateTokens))
	done := 0

	for len(pending) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}

		batch := jsonBatch(pending, budget, r.opts.effectiveStarvingAttempts())
		accepted, err := r.jsonRound(ctx, batch)
		if err != nil {
			if isFatal(err) {
				return err
			}
			r.log.Warn("round rejected", "kind", string(KindOf(err)), "units", len(batch), "error", err.Error())
		}

		if over := r.overCeiling(batch); len(over) > 0 {
			last := over[0].Failure
			if err != nil {
				last = err.Error()
			}
			return exhausted(r.lang, unitKeys(over), &RejectError{
				Kind:   KindAttemptsExhausted,
				Detail: fmt.Sprintf("exceeded %d attempts, last failure: %s", r.opts.effectiveMaxUnitAttempts(), last),
				Err:    err,
			})
		}

		if len(accepted) == 0 {
			if r.opts.RetryDelay > 0 {
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(r.opts.RetryDelay):
				}
			}
			continue
		}

		done += len(accepted)
		pending = without(pending, accepted)
		r.log.Debug("batch accepted", "units", len(accepted), "done", done, "total", len(units))
		r.opts.progress(r.lang, done, len(units))
	}
	return nil
}

func (r *run) overCeiling(batch []*Unit) []*Unit {
	limit := r.opts.effectiveMaxUnitAttempts()
	var over []*Unit
	for _, u := range batch {
		if u.TranslationAttempts > limit || u.VerificationAttempts > limit {
			over = append(over, u)
		}
	}
	return over
}

func without(pending, accepted []*Unit) []*Unit {
	gone := make(map[*Unit]bool, len(accepted))
	for _, u := range accepted {
		gone[u] = true
	}
	out := pending[:0:0]
	for _, u := range pending {
		if !gone[u] {
			out = append(out, u)
		}
	}
	return out
}

// jsonRound runs the translate pass and, unless skipped, the verify pass on
// batch. It returns the units accepted in this round.
func (r *run) jsonRound(ctx context.Context, batch []*Unit) ([]*Unit, error) {
	items := make([]requestItem, len(batch))
	for i, u := range batch {
		u.TranslationAttempts++
		items[i] = requestItem{ID: u.ID, Original: u.Original, Context: u.Context, Failure: u.Failure}
	}

	reply, err := r.gen.SendMessage(ctx, r.prompts.GenerationJSON(r.inName, r.outName, marshalItems(items)), translationSchema)
	if err != nil && ctx.Err() != nil {
		r.gen.RollbackLastMessage()
		return nil, fatal(ctx.Err())
	}
	if err != nil || reply == "" {
		r.recoverEmpty()
		if err != nil {
			return nil, &RejectError{Kind: KindEmptyResponse, Detail: err.Error(), Err: err}
		}
		return nil, reject(KindEmptyResponse, "empty response")
	}
	r.emptyStreak = 0

	translated, err := parseItems[translatedItem](translationValidator, reply)
	if err != nil {
		r.gen.RollbackLastMessage()
		return nil, &RejectError{Kind: KindSchemaParseFailure, Detail: err.Error(), Err: err}
	}

	byID := make(map[int]translatedItem, len(translated))
	for _, item := range translated {
		byID[item.ID] = item
	}

	var candidates []*Unit
	for _, u := range batch {
		item, ok := byID[u.ID]
		switch {
		case !ok:
			u.Failure = "the item was missing from the response"
		case strings.TrimSpace(item.Translated) == "":
			u.Failure = "the translation was empty"
		default:
			if missing := missingTemplates(u.Templates, item.Translated); len(missing) > 0 {
				u.Failure = fmt.Sprintf("the translation dropped the placeholder %s", missing[0])
				continue
			}
			u.Translated = item.Translated
			candidates = append(candidates, u)
		}
	}

	if len(candidates) == 0 || r.opts.SkipTranslationVerification {
		for _, u := range candidates {
			u.Failure = ""
		}
		return candidates, nil
	}
	return r.verifyJSON(ctx, candidates)
}

// verifyJSON asks for a verdict on every candidate. Invalid candidates stay
// pending with the verifier's fix as their current translation and its
// issue as their failure.
func (r *run) verifyJSON(ctx context.Context, candidates []*Unit) ([]*Unit, error) {
	items := make([]requestItem, len(candidates))
	for i, u := range candidates {
		u.VerificationAttempts++
		items[i] = requestItem{ID: u.ID, Original: u.Original, Translated: u.Translated}
	}

	reply, err := r.verifyTranslation.SendMessage(ctx, r.prompts.VerificationJSON(r.inName, r.outName, marshalItems(items)), verificationSchema)
	if err != nil || reply == "" {
		r.verifyTranslation.RollbackLastMessage()
		if ctx.Err() != nil {
			return nil, fatal(ctx.Err())
		}
		if err != nil {
			return nil, &RejectError{Kind: KindEmptyResponse, Detail: err.Error(), Err: err}
		}
		return nil, reject(KindEmptyResponse, "empty verification response")
	}

	verdicts, err := parseItems[verifiedItem](verificationValidator, reply)
	if err != nil {
		r.verifyTranslation.RollbackLastMessage()
		return nil, &RejectError{Kind: KindSchemaParseFailure, Detail: err.Error(), Err: err}
	}

	byID := make(map[int]verifiedItem, len(verdicts))
	for _, v := range verdicts {
		byID[v.ID] = v
	}

	var accepted []*Unit
	for _, u := range candidates {
		v, ok := byID[u.ID]
		switch {
		case !ok:
			u.Failure = "the item was missing from the verification response"
		case v.Valid:
			u.Failure = ""
			accepted = append(accepted, u)
		default:
			if v.FixedTranslation != "" && len(missingTemplates(u.Templates, v.FixedTranslation)) == 0 {
				u.Translated = v.FixedTranslation
			}
			u.Failure = v.Issue
			if u.Failure == "" {
				u.Failure = "the translation was rejected by verification"
			}
		}
	}
	return accepted, nil
}
