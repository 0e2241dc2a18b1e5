package ai

import (
	"context"

	"google.golang.org/genai"
)

// Session wraps a live vendor chat. Every Send extends server-side
// conversation memory the client never observes directly, so callers must
// recreate the session instead of resuming one after config or history
// changes.
type Session struct {
	chat *genai.Chat
}

// Send submits one turn through the running conversation context and returns
// the normalized reply text.
func (s *Session) Send(ctx context.Context, parts ...Part) (string, error) {
	genParts := toGenaiParts(parts)
	vals := make([]genai.Part, len(genParts))
	for i, p := range genParts {
		vals[i] = *p
	}

	resp, err := s.chat.SendMessage(ctx, vals...)
	if err != nil {
		return "", classify("send", err)
	}

	return ResponseText(resp)
}
