package chat

import "time"

// Conversation captures one interactive chat session and its transcript.
type Conversation struct {
	ID        string             `json:"id"`
	Config    ConversationConfig `json:"config"`
	Messages  []Message          `json:"messages"`
	CreatedAt time.Time          `json:"createdAt"`
	UpdatedAt time.Time          `json:"updatedAt"`
}
