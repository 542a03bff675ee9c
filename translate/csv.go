package translate

import (
	"context"
	"regexp"
	"strings"
)

var markdownCodeBlock = regexp.MustCompile("(?s)^\\s*```[A-Za-z]*\\s*\n?(.*?)\\s*```\\s*$")

// stripFence removes a surrounding triple-backtick fence.
func stripFence(s string) string {
	if m := markdownCodeBlock.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return s
}

func quote(s string) string {
	return `"` + s + `"`
}

func unquote(s string) string {
	return s[1 : len(s)-1]
}

func csvInput(batch []*Unit) (string, []string) {
	lines := make([]string, len(batch))
	for i, u := range batch {
		lines[i] = quote(u.Original)
	}
	return strings.Join(lines, "\n"), lines
}

// translateCSV runs rounds on batch until one is accepted or the
// generation ceiling is reached, then stores the translations.
func (r *run) translateCSV(ctx context.Context, batch []*Unit) error {
	input, inLines := csvInput(batch)

	var accepted []string
	err := retry(ctx, r.opts.effectiveGenerationAttempts(), r.opts.RetryDelay, r.log, "generate", func(attempt int) error {
		lines, err := r.csvRound(ctx, batch, input, inLines)
		if err != nil {
			return err
		}
		accepted = lines
		return nil
	})
	if err != nil {
		return err
	}

	for i, u := range batch {
		u.Translated = unquote(accepted[i])
		u.Failure = ""
	}
	return nil
}

// csvRound is one Send, validate, repair, verify pass. Every rejection
// leaves the generation history as it was before the round, plus any
// corrective turn.
func (r *run) csvRound(ctx context.Context, batch []*Unit, input string, inLines []string) ([]string, error) {
	for _, u := range batch {
		u.TranslationAttempts++
	}

	reply, err := r.gen.SendMessage(ctx, r.prompts.Generation(r.inName, r.outName, input), nil)
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

	lines, rerr := validateCSV(batch, stripFence(reply))
	if rerr != nil {
		r.gen.RollbackLastMessage()
		return nil, rerr
	}

	if r.opts.EnsureChangedTranslation {
		if err := r.repairUnchanged(ctx, batch, inLines, lines); err != nil {
			r.gen.RollbackLastMessage()
			return nil, err
		}
	}

	output := strings.Join(lines, "\n")

	if !r.opts.SkipTranslationVerification {
		ack, err := r.verifyACK(ctx, r.verifyTranslation, "verify-translation", r.prompts.TranslationVerification(r.inName, r.outName, input, output))
		if err != nil {
			r.gen.RollbackLastMessage()
			if isFatal(err) {
				return nil, err
			}
			return nil, &RejectError{Kind: KindInvalidVerification, Detail: err.Error(), Err: err}
		}
		if !ack {
			r.gen.RollbackLastMessage()
			r.gen.InvalidTranslation()
			return nil, reject(KindNAKTranslation, "translation verification answered NAK")
		}
	}

	if !r.opts.SkipStylingVerification {
		ack, err := r.verifyACK(ctx, r.verifyStyling, "verify-styling", r.prompts.StylingVerification(r.inName, r.outName, input, output))
		if err != nil {
			r.gen.RollbackLastMessage()
			if isFatal(err) {
				return nil, err
			}
			return nil, &RejectError{Kind: KindInvalidVerification, Detail: err.Error(), Err: err}
		}
		if !ack {
			r.gen.RollbackLastMessage()
			r.gen.InvalidStyling()
			return nil, reject(KindNAKStyling, "styling verification answered NAK")
		}
	}

	return lines, nil
}

// recoverEmpty undoes a failed send. After ResetAfterEmpty consecutive
// failures the conversation is assumed broken and reset instead.
func (r *run) recoverEmpty() {
	r.emptyStreak++
	if r.emptyStreak > r.opts.effectiveResetAfterEmpty() {
		r.gen.ResetChatHistory()
		r.emptyStreak = 0
		return
	}
	r.gen.RollbackLastMessage()
}

// validateCSV checks the reply line by line against batch and returns the
// normalized quoted lines.
func validateCSV(batch []*Unit, text string) ([]string, *RejectError) {
	text = strings.Trim(strings.ReplaceAll(text, "\r\n", "\n"), "\n")
	lines := strings.Split(text, "\n")
	if len(lines) != len(batch) {
		return nil, reject(KindLineCountMismatch, "expected %d lines, got %d", len(batch), len(lines))
	}

	for i, line := range lines {
		line = strings.TrimSpace(line)

		if missing := missingTemplates(batch[i].Templates, line); len(missing) > 0 {
			return nil, reject(KindMissingPlaceholder, "line %d is missing %s: %s", i+1, missing[0], line)
		}

		// Strip doubled quoting the model added, but not quotes that are
		// part of the source value.
		lead, trail := quoteRuns(quote(batch[i].Original))
		for len(line) >= 4 && strings.HasPrefix(line, `""`) && strings.HasSuffix(line, `""`) {
			l, t := quoteRuns(line)
			if l <= lead || t <= trail {
				break
			}
			line = line[1 : len(line)-1]
		}

		if len(line) < 2 || !strings.HasPrefix(line, `"`) || !strings.HasSuffix(line, `"`) || strings.HasSuffix(line, `\"`) {
			return nil, reject(KindInvalidQuoting, "line %d is not wrapped in quotes: %s", i+1, line)
		}
		lines[i] = line
	}
	return lines, nil
}

// quoteRuns counts the double quotes s starts and ends with.
func quoteRuns(s string) (lead, trail int) {
	lead = len(s) - len(strings.TrimLeft(s, `"`))
	trail = len(s) - len(strings.TrimRight(s, `"`))
	return lead, trail
}

// repairUnchanged re-asks for lines that came back identical to their
// input. Fix exchanges are rolled back out of the generation history;
// accepted fixes are cached for the rest of the run.
func (r *run) repairUnchanged(ctx context.Context, batch []*Unit, inLines, lines []string) error {
	for i, line := range lines {
		if line != inLines[i] || len(batch[i].Original) <= r.opts.effectiveUnchangedMinLength() {
			continue
		}
		if fixed, ok := r.fixed[inLines[i]]; ok {
			lines[i] = fixed
			continue
		}

		r.log.Debug("line returned unchanged", "kind", string(KindUntranslatedLine), "key", batch[i].Key)
		for attempt := 0; attempt < r.opts.effectiveUnchangedFixAttempts(); attempt++ {
			reply, err := r.gen.SendMessage(ctx, r.prompts.Fix(r.inName, r.outName, inLines[i]), nil)
			r.gen.RollbackLastMessage()
			if err != nil {
				if ctx.Err() != nil {
					return fatal(ctx.Err())
				}
				continue
			}
			candidate := strings.TrimSpace(stripFence(reply))
			if strings.Contains(candidate, "\n") || len(candidate) < 2 ||
				!strings.HasPrefix(candidate, `"`) || !strings.HasSuffix(candidate, `"`) || strings.HasSuffix(candidate, `\"`) ||
				len(missingTemplates(batch[i].Templates, candidate)) > 0 || candidate == inLines[i] {
				continue
			}
			lines[i] = candidate
			r.fixed[inLines[i]] = candidate
			break
		}
	}
	return nil
}
