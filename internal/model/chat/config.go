package chat

// Defaults applied when a conversation is created or a persisted document
// omits a field.
const (
	DefaultModel        = "gemini-exp-1206"
	DefaultTemperature  = float32(0.7)
	DefaultSystemPrompt = "You are a helpful AI assistant."
)

// ConversationConfig is the configuration snapshot a live session handle is
// bound to. Mutating any field discards the handle and clears the transcript,
// keeping local history and the remote conversation memory in sync.
type ConversationConfig struct {
	Credential   string  `json:"-"`
	Model        string  `json:"model"`
	Temperature  float32 `json:"temperature"`
	SystemPrompt string  `json:"systemPrompt"`
}

// Normalize clamps Temperature into [0,1] and fills an empty model with the
// default.
func (c *ConversationConfig) Normalize() {
	if c.Model == "" {
		c.Model = DefaultModel
	}
	if c.Temperature < 0 {
		c.Temperature = 0
	}
	if c.Temperature > 1 {
		c.Temperature = 1
	}
}

// Equal reports whether two configs would bind an identical session handle.
func (c ConversationConfig) Equal(other ConversationConfig) bool {
	return c.Credential == other.Credential &&
		c.Model == other.Model &&
		c.Temperature == other.Temperature &&
		c.SystemPrompt == other.SystemPrompt
}
