package ai

import (
	"errors"

	"google.golang.org/genai"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
)

// ResponseText flattens a vendor response into a single string. The API may
// expose a structured parts sequence or only the aggregated text field; the
// first part wins when present, the aggregate is the fallback. All response
// shape handling lives here so the ambiguity never leaks past this package.
func ResponseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil {
		return "", &apperr.ExchangeError{Op: "response", Category: "empty", Err: errors.New("nil response")}
	}

	if len(resp.Candidates) > 0 {
		if content := resp.Candidates[0].Content; content != nil && len(content.Parts) > 0 {
			if text := content.Parts[0].Text; text != "" {
				return text, nil
			}
		}
	}

	if text := resp.Text(); text != "" {
		return text, nil
	}

	return "", &apperr.ExchangeError{Op: "response", Category: "empty", Err: errors.New("response contained no text")}
}
