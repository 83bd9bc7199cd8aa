package memory

import (
	"strings"

	"github.com/akolanti/HybridRAG/internal/domain/sessionModel"
)

// FormatContext renders history as "User: ..." / "Assistant: ..." lines for a prompt.
func FormatContext(messages []sessionModel.Message) string {
	var b strings.Builder
	for _, msg := range messages {
		switch msg.Role {
		case sessionModel.RoleUser:
			b.WriteString("User: ")
		case sessionModel.RoleAssistant:
			b.WriteString("Assistant: ")
		default:
			continue
		}
		b.WriteString(strings.TrimSpace(msg.Text))
		b.WriteByte('\n')
	}
	return strings.TrimSuffix(b.String(), "\n")
}
