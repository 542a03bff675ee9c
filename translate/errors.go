package translate

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

// Kind classifies why a round was rejected.
type Kind string

const (
	KindEmptyResponse       Kind = "empty-response"
	KindLineCountMismatch   Kind = "line-count-mismatch"
	KindMissingPlaceholder  Kind = "missing-placeholder"
	KindInvalidQuoting      Kind = "invalid-quoting"
	KindUntranslatedLine    Kind = "untranslated-line"
	KindNAKTranslation      Kind = "nak-translation"
	KindNAKStyling          Kind = "nak-styling"
	KindSchemaParseFailure  Kind = "schema-parse-failure"
	KindInvalidVerification Kind = "invalid-verification-response"
	KindAttemptsExhausted   Kind = "attempts-exhausted"
)

const exhaustedCode = "TRANSLATION_ATTEMPTS_EXHAUSTED"

// RejectError reports a rejected round. Rejections are retried.
type RejectError struct {
	Kind   Kind
	Detail string
	Err    error
}

func (e *RejectError) Error() string {
	if e.Detail == "" {
		return string(e.Kind)
	}
	return string(e.Kind) + ": " + e.Detail
}

func (e *RejectError) Unwrap() error { return e.Err }

func reject(kind Kind, format string, args ...any) *RejectError {
	return &RejectError{Kind: kind, Detail: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of the first RejectError in err's chain.
func KindOf(err error) Kind {
	var re *RejectError
	if errors.As(err, &re) {
		return re.Kind
	}
	return ""
}

// fatalError stops the retry loop immediately.
type fatalError struct{ err error }

func (e *fatalError) Error() string { return e.err.Error() }
func (e *fatalError) Unwrap() error { return e.err }

func fatal(err error) error {
	if err == nil {
		return nil
	}
	return &fatalError{err: err}
}

func isFatal(err error) bool {
	var fe *fatalError
	return errors.As(err, &fe) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// exhausted wraps the failure of a language as a command error naming the
// keys involved. Context errors pass through unchanged.
func exhausted(lang string, keys []string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	msg := fmt.Sprintf("translation to %s failed for keys [%s]: %v", lang, strings.Join(keys, ", "), err)
	return goerrors.Wrap(err, goerrors.CategoryCommand, msg).
		WithTextCode(exhaustedCode)
}
