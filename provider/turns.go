package provider

import (
	"encoding/json"
	"strings"

	"github.com/minios-linux/aitranslate/chat"
)

type turn struct {
	role string
	text string
}

// alternate maps history onto a two-role API. Corrective system turns are
// sent as user turns and consecutive turns of the same role are merged, as
// Gemini and Anthropic reject repeated roles.
func alternate(history []chat.Message, assistantRole string) []turn {
	var out []turn
	for _, m := range history {
		role := "user"
		if m.Role == chat.RoleAssistant {
			role = assistantRole
		}
		if n := len(out); n > 0 && out[n-1].role == role {
			out[n-1].text += "\n\n" + m.Content
			continue
		}
		out = append(out, turn{role: role, text: m.Content})
	}
	return out
}

// schemaInstructions appends a JSON-only directive for backends without a
// native structured output parameter.
func schemaInstructions(instructions string, format *chat.Schema) string {
	if format == nil {
		return instructions
	}
	definition, err := json.Marshal(format.Definition)
	if err != nil {
		return instructions
	}
	var b strings.Builder
	b.WriteString(instructions)
	if instructions != "" {
		b.WriteString("\n\n")
	}
	b.WriteString("Respond only with a JSON document that validates against this JSON Schema:\n")
	b.Write(definition)
	return b.String()
}
