package chat

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	"github.com/majianyu/gemini-chat/backend/internal/model/chat"
	"github.com/majianyu/gemini-chat/backend/internal/model/media"
	"github.com/majianyu/gemini-chat/backend/internal/service/ai"
)

// SendTurn runs one exchange: the user input goes out with at most one ready
// attachment, the reply comes back, and both transcript entries land
// together. The conversation lock is held for the whole round trip so a
// config change cannot interleave with an in-flight turn.
//
// Text-only and image turns go through the live session handle and extend
// remote conversation memory. Video turns go through a stateless one-shot
// request against the video model and leave the session untouched.
func (s *Service) SendTurn(ctx context.Context, id, text string, asset *media.Asset) (chat.Turn, error) {
	st, err := s.lookup(id)
	if err != nil {
		return chat.Turn{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	if text == "" && asset == nil {
		return chat.Turn{}, &apperr.InvalidStateError{Reason: "turn requires text or an attachment"}
	}
	if asset != nil && !asset.Ready() {
		return chat.Turn{}, &apperr.InvalidStateError{
			Reason: fmt.Sprintf("attachment is %s, not ready", asset.Status),
		}
	}

	// Stamped at submission; the assistant entry is stamped at completion.
	userMsg := chat.NewMessage(chat.RoleUser, displayContent(text, asset))

	var reply string
	switch {
	case asset == nil:
		outgoing := composeOutgoing(st.conv.Config.SystemPrompt, text, len(st.conv.Messages) == 0)
		reply, err = st.session.Send(ctx, ai.TextPart(outgoing))
	case asset.Kind == media.KindImage:
		prompt := text
		if prompt == "" {
			prompt = imageFallbackPrompt
		}
		reply, err = st.session.Send(ctx, ai.TextPart(prompt), ai.BlobPart(asset.MIMEType, asset.Data))
	default:
		prompt := text
		if prompt == "" {
			prompt = videoFallbackPrompt
		}
		reply, err = s.client.OneShot(ctx, ai.SessionConfig{
			Credential:  st.conv.Config.Credential,
			Model:       s.defaults.VideoModel,
			Temperature: st.conv.Config.Temperature,
		}, ai.FilePart(asset.RemoteURI, asset.MIMEType), ai.TextPart(prompt))
	}
	if err != nil {
		// Failed turns append nothing.
		return chat.Turn{}, err
	}

	assistantMsg := chat.NewMessage(chat.RoleAssistant, reply)
	st.conv.Messages = append(st.conv.Messages, userMsg, assistantMsg)
	st.conv.UpdatedAt = time.Now().UTC()

	log.Printf("[chat] turn completed id=%s messages=%d", id, len(st.conv.Messages))
	return chat.Turn{User: userMsg, Assistant: assistantMsg}, nil
}
