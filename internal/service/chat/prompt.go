package chat

import (
	"fmt"

	"github.com/majianyu/gemini-chat/backend/internal/model/media"
)

// Prompts substituted when a media turn carries no text.
const (
	imageFallbackPrompt = "Describe this image."
	videoFallbackPrompt = "Describe this video."
)

// Markers recorded in the transcript for turns that carried an attachment.
const (
	imageMarker = "[Image attached]"
	videoMarker = "[Video attached]"
)

// composeOutgoing builds the text actually sent to the model. The very first
// turn of a session folds the system prompt in, because the conversation
// primitive has no separate system-role channel; every later turn goes out
// verbatim.
func composeOutgoing(systemPrompt, text string, firstTurn bool) string {
	if firstTurn && systemPrompt != "" {
		return fmt.Sprintf("%s\n\nUser: %s", systemPrompt, text)
	}
	return text
}

// displayContent is what the transcript records for a user turn: the raw
// input text, never the prompt-prefixed form, plus an attachment marker when
// media was included.
func displayContent(text string, asset *media.Asset) string {
	if asset == nil {
		return text
	}

	marker := imageMarker
	if asset.Kind == media.KindVideo {
		marker = videoMarker
	}

	if text == "" {
		return marker
	}
	return text + "\n" + marker
}
