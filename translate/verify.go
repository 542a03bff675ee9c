package translate

import (
	"context"
	"strings"

	"github.com/minios-linux/aitranslate/chat"
)

// parseVerdict interprets an ACK/NAK reply. Verbose replies are accepted
// when they contain exactly one of the two tokens.
func parseVerdict(reply string) (ack bool, ok bool) {
	switch strings.TrimSpace(reply) {
	case "ACK":
		return true, true
	case "NAK":
		return false, true
	}
	hasACK := strings.Contains(reply, "ACK")
	hasNAK := strings.Contains(reply, "NAK")
	switch {
	case hasNAK && !hasACK:
		return false, true
	case hasACK && !hasNAK:
		return true, true
	}
	return false, false
}

// verifyACK sends text to c until it answers ACK or NAK. Empty and
// non-conforming replies are rolled back and retried.
func (r *run) verifyACK(ctx context.Context, c chat.Chat, job, text string) (bool, error) {
	var ack bool
	err := retry(ctx, r.opts.effectiveVerificationAttempts(), r.opts.RetryDelay, r.log, job, func(int) error {
		reply, err := c.SendMessage(ctx, text, nil)
		if err != nil {
			c.RollbackLastMessage()
			if ctx.Err() != nil {
				return fatal(ctx.Err())
			}
			return &RejectError{Kind: KindEmptyResponse, Detail: err.Error(), Err: err}
		}
		if reply == "" {
			c.RollbackLastMessage()
			return reject(KindEmptyResponse, "empty verification response")
		}
		verdict, ok := parseVerdict(reply)
		if !ok {
			c.RollbackLastMessage()
			return reject(KindInvalidVerification, "expected ACK or NAK, got %q", truncate(reply, 80))
		}
		ack = verdict
		return nil
	})
	return ack, err
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
