package chat

import "time"

// Role identifies the author of a transcript entry.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// TimestampLayout is the wall-clock display format messages are stamped with.
const TimestampLayout = "03:04 PM"

// Message is one transcript entry. The sequence is append-only during a
// session; a restore replaces it wholesale.
type Message struct {
	Role      Role   `json:"role"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// NewMessage stamps a message with the current time.
func NewMessage(role Role, content string) Message {
	return Message{
		Role:      role,
		Content:   content,
		Timestamp: time.Now().Format(TimestampLayout),
	}
}

// Turn pairs one user input with the corresponding model reply.
type Turn struct {
	User      Message `json:"user"`
	Assistant Message `json:"assistant"`
}
