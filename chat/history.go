package chat

// DefaultWindow is the number of messages kept in a history.
const DefaultWindow = 20

// History is the ordered message log of one conversation, trimmed to a
// bounded window. The zero value is ready to use with DefaultWindow.
type History struct {
	messages []Message
	// Window is the maximum number of messages retained; <= 0 means DefaultWindow.
	Window int
}

// Messages returns a copy of the retained messages.
func (h *History) Messages() []Message {
	out := make([]Message, len(h.messages))
	copy(out, h.messages)
	return out
}

// Len returns the number of retained messages.
func (h *History) Len() int {
	return len(h.messages)
}

// Append adds a message and trims the oldest turns beyond the window.
func (h *History) Append(role Role, content string) {
	h.messages = append(h.messages, Message{Role: role, Content: content})
	h.trim()
}

// Rollback undoes the last exchange. A trailing assistant reply is removed
// together with the user message that prompted it; a dangling user message
// (no reply arrived) is removed alone. Injected system turns are kept.
func (h *History) Rollback() {
	n := len(h.messages)
	if n == 0 {
		return
	}
	switch h.messages[n-1].Role {
	case RoleAssistant:
		h.messages = h.messages[:n-1]
		if n-2 >= 0 && h.messages[n-2].Role == RoleUser {
			h.messages = h.messages[:n-2]
		}
	case RoleUser:
		h.messages = h.messages[:n-1]
	}
}

// Reset drops every message.
func (h *History) Reset() {
	h.messages = nil
}

func (h *History) window() int {
	if h.Window > 0 {
		return h.Window
	}
	return DefaultWindow
}

// trim drops the oldest messages beyond the window. It never leaves the
// history starting with an assistant reply whose prompt was dropped.
func (h *History) trim() {
	limit := h.window()
	if len(h.messages) <= limit {
		return
	}
	drop := len(h.messages) - limit
	for drop < len(h.messages)-1 && h.messages[drop].Role == RoleAssistant {
		drop++
	}
	h.messages = append([]Message(nil), h.messages[drop:]...)
}
