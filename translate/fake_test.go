package translate

import (
	"context"
	"strings"

	"github.com/minios-linux/aitranslate/chat"
)

// fakeChat records every call and answers through respond.
type fakeChat struct {
	purpose chat.Purpose
	respond func(n int, message string) (string, error)
	events  []string
	sent    []string
}

func (f *fakeChat) StartChat(params chat.Params) {
	f.purpose = params.Purpose
	f.events = append(f.events, "start")
}

func (f *fakeChat) SendMessage(_ context.Context, message string, _ *chat.Schema) (string, error) {
	f.sent = append(f.sent, message)
	f.events = append(f.events, "send")
	if f.respond == nil {
		return "ACK", nil
	}
	return f.respond(len(f.sent), message)
}

func (f *fakeChat) ResetChatHistory()    { f.events = append(f.events, "reset") }
func (f *fakeChat) RollbackLastMessage() { f.events = append(f.events, "rollback") }
func (f *fakeChat) InvalidTranslation()  { f.events = append(f.events, "invalid-translation") }
func (f *fakeChat) InvalidStyling()      { f.events = append(f.events, "invalid-styling") }

// only returns the events equal to one of names, in order.
func (f *fakeChat) only(names ...string) []string {
	var out []string
	for _, e := range f.events {
		for _, n := range names {
			if e == n {
				out = append(out, e)
			}
		}
	}
	return out
}

// fakeBackend hands out fake chats per purpose and keeps them for inspection.
type fakeBackend struct {
	handlers map[chat.Purpose]func(n int, message string) (string, error)
	chats    map[chat.Purpose][]*fakeChat
	created  int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		handlers: map[chat.Purpose]func(int, string) (string, error){},
		chats:    map[chat.Purpose][]*fakeChat{},
	}
}

func (b *fakeBackend) factory() ChatFactory {
	return func(purpose chat.Purpose) chat.Chat {
		b.created++
		c := &fakeChat{respond: b.handlers[purpose]}
		b.chats[purpose] = append(b.chats[purpose], c)
		return c
	}
}

// last returns the most recent chat created for purpose.
func (b *fakeBackend) last(purpose chat.Purpose) *fakeChat {
	list := b.chats[purpose]
	if len(list) == 0 {
		return nil
	}
	return list[len(list)-1]
}

// quotedLines returns the lines of a CSV prompt payload.
func quotedLines(message string) []string {
	var out []string
	for _, line := range strings.Split(message, "\n") {
		if len(line) >= 2 && strings.HasPrefix(line, `"`) && strings.HasSuffix(line, `"`) {
			out = append(out, line)
		}
	}
	return out
}

// suffixer translates every quoted line by appending suffix inside the quotes.
func suffixer(suffix string) func(int, string) (string, error) {
	return func(_ int, message string) (string, error) {
		lines := quotedLines(message)
		for i, l := range lines {
			lines[i] = l[:len(l)-1] + suffix + `"`
		}
		return strings.Join(lines, "\n"), nil
	}
}
