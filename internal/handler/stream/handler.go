package stream

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	"github.com/majianyu/gemini-chat/backend/internal/model/chat"
	mediamodel "github.com/majianyu/gemini-chat/backend/internal/model/media"
	chatservice "github.com/majianyu/gemini-chat/backend/internal/service/chat"
	mediaservice "github.com/majianyu/gemini-chat/backend/internal/service/media"
	"github.com/majianyu/gemini-chat/backend/pkg/utils"
)

// Handler executes chat turns and reports the exchange via Server-Sent Events
type Handler struct {
	chatSvc  *chatservice.Service
	mediaSvc *mediaservice.Service
}

// New creates a new stream handler
func New(chatSvc *chatservice.Service, mediaSvc *mediaservice.Service) *Handler {
	return &Handler{
		chatSvc:  chatSvc,
		mediaSvc: mediaSvc,
	}
}

// TurnRequest is the request body for one turn
type TurnRequest struct {
	Text    string `json:"text"`
	ImageID string `json:"imageId"`
	VideoID string `json:"videoId"`
}

// StreamResponse represents a streaming response chunk
type StreamResponse struct {
	Event          string        `json:"event"`
	ConversationID string        `json:"conversationId,omitempty"`
	Message        *chat.Message `json:"message,omitempty"`
	Content        string        `json:"content,omitempty"`
	Finished       bool          `json:"finished,omitempty"`
	Error          string        `json:"error,omitempty"`
}

// HandleTurnRequest runs one turn against the conversation and streams the
// result. Attachment resolution failures reject the request before the SSE
// stream opens; exchange failures arrive as error events.
func (h *Handler) HandleTurnRequest(ctx context.Context, w http.ResponseWriter, conversationID string, req TurnRequest) error {
	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return fmt.Errorf("streaming unsupported")
	}

	if req.ImageID != "" && req.VideoID != "" {
		utils.RespondError(w, http.StatusBadRequest, "at most one attachment per turn")
		return nil
	}

	if _, err := h.chatSvc.Get(conversationID); err != nil {
		utils.RespondError(w, http.StatusNotFound, "conversation not found")
		return nil
	}

	asset, err := h.resolveAttachment(req)
	if err != nil {
		utils.RespondError(w, attachmentStatus(err), err.Error())
		return nil
	}

	utils.SetupSSEHeaders(w)

	h.sendSSE(w, flusher, StreamResponse{
		Event:          "start",
		ConversationID: conversationID,
	})

	turn, err := h.chatSvc.SendTurn(ctx, conversationID, req.Text, asset)
	if err != nil {
		h.sendSSEError(w, flusher, err.Error())
		return err
	}

	h.sendSSE(w, flusher, StreamResponse{
		Event:          "user",
		ConversationID: conversationID,
		Message:        &turn.User,
	})
	h.sendSSE(w, flusher, StreamResponse{
		Event:          "message",
		ConversationID: conversationID,
		Content:        turn.Assistant.Content,
		Message:        &turn.Assistant,
	})
	h.sendSSE(w, flusher, StreamResponse{
		Event:          "end",
		ConversationID: conversationID,
		Finished:       true,
	})

	log.Printf("[stream] completed turn for conversation=%s", conversationID)
	return nil
}

// resolveAttachment looks up the referenced asset and checks its kind.
func (h *Handler) resolveAttachment(req TurnRequest) (*mediamodel.Asset, error) {
	attachmentID, wantKind := req.ImageID, mediamodel.KindImage
	if req.VideoID != "" {
		attachmentID, wantKind = req.VideoID, mediamodel.KindVideo
	}
	if attachmentID == "" {
		return nil, nil
	}

	asset, err := h.mediaSvc.Get(attachmentID)
	if err != nil {
		return nil, err
	}
	if asset.Kind != wantKind {
		return nil, fmt.Errorf("attachment %s is a %s, not a %s", attachmentID, asset.Kind, wantKind)
	}
	return &asset, nil
}

func attachmentStatus(err error) int {
	if errors.Is(err, mediaservice.ErrAssetNotFound) {
		return http.StatusNotFound
	}
	return http.StatusBadRequest
}

// sendSSE sends a Server-Sent Event
func (h *Handler) sendSSE(w http.ResponseWriter, flusher http.Flusher, response StreamResponse) {
	data, err := json.Marshal(response)
	if err != nil {
		log.Printf("failed to marshal SSE response: %v", err)
		return
	}

	fmt.Fprintf(w, "data: %s\n\n", data)
	flusher.Flush()
}

// sendSSEError sends an error via Server-Sent Events
func (h *Handler) sendSSEError(w http.ResponseWriter, flusher http.Flusher, errorMsg string) {
	h.sendSSE(w, flusher, StreamResponse{
		Event: "error",
		Error: errorMsg,
	})
}
