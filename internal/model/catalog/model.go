package catalog

// Model captures a selectable chat model exposed to the frontend.
type Model struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
	Description string `json:"description,omitempty"`
	Default     bool   `json:"default,omitempty"`
}

// Seed provides the chat models the product currently offers. The video
// one-shot model is fixed server configuration and deliberately not listed.
func Seed() []Model {
	return []Model{
		{
			ID:          "gemini-exp-1206",
			DisplayName: "Gemini Experimental 1206",
			Description: "Strongest reasoning quality, slower responses.",
			Default:     true,
		},
		{
			ID:          "gemini-2.0-flash-exp",
			DisplayName: "Gemini 2.0 Flash Experimental",
			Description: "Fast responses tuned for interactive chat.",
		},
	}
}
