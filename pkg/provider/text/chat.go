package text

import (
	"context"
	"fmt"
	"strings"
)

// rolePrefix maps a message role to its prompt prefix. Unknown roles fall
// back to the user prefix.
func rolePrefix(r Role) string {
	switch r {
	case RoleAssistant:
		return "Assistant"
	case RoleSystem:
		return "System"
	default:
		return "User"
	}
}

// Chat sends a multi-message conversation to p by flattening it into a single
// role-prefixed prompt. System messages receive special treatment: the last
// system message in msgs becomes the request's SystemPrompt (last one wins);
// earlier system messages are dropped. All other messages are rendered in
// order as "Role: content" lines, and the prompt ends with an "Assistant:"
// cue for the model to complete.
func Chat(ctx context.Context, p Provider, msgs []Message, opts Options) (*Response, error) {
	if len(msgs) == 0 {
		return nil, fmt.Errorf("chat: empty message list")
	}

	var system string
	var b strings.Builder
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system = m.Content
			continue
		}
		b.WriteString(rolePrefix(m.Role))
		b.WriteString(": ")
		b.WriteString(m.Content)
		b.WriteString("\n")
	}
	b.WriteString("Assistant:")

	req := Request{
		Prompt:       b.String(),
		SystemPrompt: system,
		MaxTokens:    opts.MaxTokens,
		Temperature:  opts.Temperature,
		TopP:         opts.TopP,
	}
	return p.Generate(ctx, req)
}
