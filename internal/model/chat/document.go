package chat

// PersistedConversation is the on-disk snapshot of a conversation. Field
// names are part of the saved-file format and must not change.
type PersistedConversation struct {
	Messages      []Message `json:"messages"`
	SystemPrompt  string    `json:"system_prompt"`
	SelectedModel string    `json:"selected_model"`
	Temperature   float32   `json:"temperature"`
}
