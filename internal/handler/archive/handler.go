package archive

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	"github.com/majianyu/gemini-chat/backend/internal/model/chat"
	archivesvc "github.com/majianyu/gemini-chat/backend/internal/service/archive"
	chatservice "github.com/majianyu/gemini-chat/backend/internal/service/chat"
)

// Handler 会话存档的HTTP处理器
type Handler struct {
	archiveSvc *archivesvc.Service
	chatSvc    *chatservice.Service
}

// New 创建存档处理器
func New(archiveSvc *archivesvc.Service, chatSvc *chatservice.Service) *Handler {
	return &Handler{
		archiveSvc: archiveSvc,
		chatSvc:    chatSvc,
	}
}

// RegisterRoutes 注册存档相关的路由。保存与恢复挂在会话路由下，
// 由聊天处理器在注册时接入。
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/archives", h.handleList)
}

// handleList 列出已保存的存档文件
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	entries, err := h.archiveSvc.List()
	if err != nil {
		respondError(w, apperr.HTTPStatus(err), err.Error())
		return
	}
	respondJSON(w, http.StatusOK, map[string]interface{}{"archives": entries})
}

// HandleSave 将会话快照写入新的存档文件
func (h *Handler) HandleSave(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	conv, err := h.chatSvc.Get(conversationID)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	doc := chat.PersistedConversation{
		Messages:      conv.Messages,
		SystemPrompt:  conv.Config.SystemPrompt,
		SelectedModel: conv.Config.Model,
		Temperature:   conv.Config.Temperature,
	}

	name, err := h.archiveSvc.Save(doc)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, map[string]string{"archive": name})
}

// HandleRestore 从存档文件或内联文档恢复会话
func (h *Handler) HandleRestore(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationID")

	var payload struct {
		Archive  string          `json:"archive"`
		Document json.RawMessage `json:"document"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	hasArchive := payload.Archive != ""
	hasDocument := len(payload.Document) > 0 && string(payload.Document) != "null"
	if hasArchive == hasDocument {
		respondError(w, http.StatusBadRequest, "exactly one of archive or document is required")
		return
	}

	var doc chat.PersistedConversation
	var err error
	if hasArchive {
		doc, err = h.archiveSvc.Load(payload.Archive)
	} else {
		doc, err = archivesvc.Decode(payload.Document)
	}
	if err != nil {
		respondServiceError(w, err)
		return
	}

	conv, err := h.chatSvc.Restore(r.Context(), conversationID, doc)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, conv)
}

// respondServiceError 根据错误分类映射HTTP状态码
func respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, chatservice.ErrConversationNotFound) {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	respondError(w, apperr.HTTPStatus(err), err.Error())
}

// respondJSON 发送JSON响应
func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// respondError 发送错误响应
func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
