package chat

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"
)

type scriptedTransport struct {
	replies []string
	errs    []error
	calls   [][]Message
	system  []string
}

func (t *scriptedTransport) Complete(_ context.Context, instructions string, history []Message, _ *Schema) (string, error) {
	i := len(t.calls)
	t.calls = append(t.calls, history)
	t.system = append(t.system, instructions)
	var err error
	if i < len(t.errs) {
		err = t.errs[i]
	}
	if err != nil {
		return "", err
	}
	if i < len(t.replies) {
		return t.replies[i], nil
	}
	return "", nil
}

type countingLimiter struct {
	waits, calls int
}

func (l *countingLimiter) Wait(context.Context) error { l.waits++; return nil }
func (l *countingLimiter) APICalled()                 { l.calls++ }

type failingLimiter struct{ err error }

func (l failingLimiter) Wait(context.Context) error { return l.err }
func (l failingLimiter) APICalled()                 {}

func roles(msgs []Message) []Role {
	out := make([]Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestSessionSendAppendsExchange(t *testing.T) {
	tr := &scriptedTransport{replies: []string{"one", "two"}}
	lim := &countingLimiter{}
	s := NewSession(tr, lim, 0)
	s.StartChat(Params{Purpose: PurposeGenerate, Instructions: "be brief"})

	for _, msg := range []string{"a", "b"} {
		if _, err := s.SendMessage(context.Background(), msg, nil); err != nil {
			t.Fatalf("SendMessage(%q): %v", msg, err)
		}
	}

	want := []Message{
		{Role: RoleUser, Content: "a"},
		{Role: RoleAssistant, Content: "one"},
		{Role: RoleUser, Content: "b"},
		{Role: RoleAssistant, Content: "two"},
	}
	if got := s.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("history = %v, want %v", got, want)
	}
	if len(tr.calls[1]) != 3 {
		t.Errorf("second call carried %d messages, want 3", len(tr.calls[1]))
	}
	if tr.system[0] != "be brief" {
		t.Errorf("instructions = %q", tr.system[0])
	}
	if lim.waits != 2 || lim.calls != 2 {
		t.Errorf("limiter waits=%d calls=%d, want 2/2", lim.waits, lim.calls)
	}
}

func TestSessionEmptyReplyAndRollback(t *testing.T) {
	tr := &scriptedTransport{replies: []string{"ok", ""}}
	s := NewSession(tr, nil, 0)
	s.StartChat(Params{})

	s.SendMessage(context.Background(), "first", nil)
	reply, err := s.SendMessage(context.Background(), "second", nil)
	if err != nil || reply != "" {
		t.Fatalf("empty reply = (%q, %v), want (\"\", nil)", reply, err)
	}
	if got := roles(s.History()); !reflect.DeepEqual(got, []Role{RoleUser, RoleAssistant, RoleUser}) {
		t.Fatalf("roles after empty reply = %v", got)
	}

	s.RollbackLastMessage()
	if got := roles(s.History()); !reflect.DeepEqual(got, []Role{RoleUser, RoleAssistant}) {
		t.Fatalf("roles after rolling back dangling user = %v", got)
	}

	s.RollbackLastMessage()
	if n := len(s.History()); n != 0 {
		t.Fatalf("history has %d messages after rolling back exchange", n)
	}
}

func TestSessionTransportError(t *testing.T) {
	boom := errors.New("boom")
	s := NewSession(&scriptedTransport{errs: []error{boom}}, nil, 0)
	s.StartChat(Params{Purpose: PurposeVerifyStyling})

	_, err := s.SendMessage(context.Background(), "x", nil)
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapping boom", err)
	}
	s.RollbackLastMessage()
	if len(s.History()) != 0 {
		t.Errorf("history not empty after rollback: %v", s.History())
	}
}

func TestCorrectiveTurnsSurviveRollback(t *testing.T) {
	s := NewSession(&scriptedTransport{replies: []string{"bad"}}, nil, 0)
	s.StartChat(Params{})
	s.SendMessage(context.Background(), "translate", nil)
	s.RollbackLastMessage()
	s.InvalidTranslation()
	s.InvalidStyling()
	s.RollbackLastMessage()

	want := []Message{
		{Role: RoleSystem, Content: InvalidTranslationMessage},
		{Role: RoleSystem, Content: InvalidStylingMessage},
	}
	if got := s.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("history = %v, want %v", got, want)
	}

	s.ResetChatHistory()
	if len(s.History()) != 0 {
		t.Error("ResetChatHistory left messages behind")
	}
}

func TestHistoryWindow(t *testing.T) {
	h := History{Window: 3}
	h.Append(RoleUser, "u1")
	h.Append(RoleAssistant, "a1")
	h.Append(RoleUser, "u2")
	h.Append(RoleAssistant, "a2")

	got := h.Messages()
	if len(got) > 3 {
		t.Fatalf("history exceeds window: %v", got)
	}
	if got[0].Role == RoleAssistant {
		t.Errorf("history starts with an orphaned reply: %v", got)
	}
	if got[len(got)-1].Content != "a2" {
		t.Errorf("newest message dropped: %v", got)
	}
}

func TestLimiterSpacesCalls(t *testing.T) {
	l := NewLimiter(20 * time.Millisecond)
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 3; i++ {
		if err := l.Wait(ctx); err != nil {
			t.Fatalf("Wait: %v", err)
		}
		l.APICalled()
	}
	if elapsed := time.Since(start); elapsed < 35*time.Millisecond {
		t.Errorf("three calls took %v, want >= 40ms spacing", elapsed)
	}
	if calls, last := l.Stats(); calls != 3 || last.IsZero() {
		t.Errorf("Stats = %d, %v", calls, last)
	}
}

func TestLimiterHonoursContext(t *testing.T) {
	l := NewLimiter(time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	if err := l.Wait(ctx); err != nil {
		t.Fatalf("first Wait: %v", err)
	}
	cancel()
	if err := l.Wait(ctx); err == nil {
		t.Error("Wait on cancelled context returned nil")
	}
}

func TestPerMinuteUnlimited(t *testing.T) {
	l := PerMinute(0)
	for i := 0; i < 100; i++ {
		if err := l.Wait(context.Background()); err != nil {
			t.Fatalf("Wait: %v", err)
		}
	}
}

func TestSessionRollbackAfterLimiterFailureKeepsPriorExchange(t *testing.T) {
	tr := &scriptedTransport{replies: []string{"one"}}
	s := NewSession(tr, nil, 0)
	s.StartChat(Params{Purpose: PurposeGenerate})
	if _, err := s.SendMessage(context.Background(), "a", nil); err != nil {
		t.Fatal(err)
	}

	s.limiter = failingLimiter{err: context.Canceled}
	if _, err := s.SendMessage(context.Background(), "b", nil); !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	s.RollbackLastMessage()

	want := []Message{{Role: RoleUser, Content: "a"}, {Role: RoleAssistant, Content: "one"}}
	if got := s.History(); !reflect.DeepEqual(got, want) {
		t.Errorf("history = %v, want %v", got, want)
	}
	if len(tr.calls) != 1 {
		t.Errorf("transport called %d times, want 1", len(tr.calls))
	}
}
