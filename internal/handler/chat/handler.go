package chat

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	archivehandler "github.com/majianyu/gemini-chat/backend/internal/handler/archive"
	chatservice "github.com/majianyu/gemini-chat/backend/internal/service/chat"
)

// Handler 会话管理的HTTP处理器
type Handler struct {
	chatSvc *chatservice.Service
}

// New 创建会话处理器
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{
		chatSvc: chatSvc,
	}
}

// RegisterRoutes 注册会话相关的路由。存档的保存与恢复按会话寻址，
// 因此挂在同一个路由块下。
func (h *Handler) RegisterRoutes(r chi.Router, archiveHandler *archivehandler.Handler) {
	r.Route("/chat/conversations", func(cr chi.Router) {
		cr.Post("/", h.handleCreate)
		cr.Get("/", h.handleList)
		cr.Get("/{conversationID}", h.handleGet)
		cr.Put("/{conversationID}/config", h.handleUpdateConfig)
		cr.Post("/{conversationID}/clear", h.handleClear)
		cr.Post("/{conversationID}/save", archiveHandler.HandleSave)
		cr.Post("/{conversationID}/restore", archiveHandler.HandleRestore)
	})
}

// handleCreate 创建会话
func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		APIKey       string   `json:"apiKey"`
		Model        string   `json:"model"`
		Temperature  *float32 `json:"temperature"`
		SystemPrompt *string  `json:"systemPrompt"`
	}

	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
			respondError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	conv, err := h.chatSvc.Create(r.Context(), chatservice.CreateParams{
		APIKey:       payload.APIKey,
		Model:        payload.Model,
		Temperature:  payload.Temperature,
		SystemPrompt: payload.SystemPrompt,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusCreated, conv)
}

// handleList 列出会话，最近创建的在前
func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, map[string]interface{}{"conversations": h.chatSvc.List()})
}

// handleGet 返回会话配置与全部消息
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chatSvc.Get(chi.URLParam(r, "conversationID"))
	if err != nil {
		respondServiceError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, conv)
}

// handleUpdateConfig 更新会话配置
func (h *Handler) handleUpdateConfig(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		APIKey       *string  `json:"apiKey"`
		Model        *string  `json:"model"`
		Temperature  *float32 `json:"temperature"`
		SystemPrompt *string  `json:"systemPrompt"`
	}

	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	conv, err := h.chatSvc.UpdateConfig(r.Context(), chi.URLParam(r, "conversationID"), chatservice.UpdateParams{
		APIKey:       payload.APIKey,
		Model:        payload.Model,
		Temperature:  payload.Temperature,
		SystemPrompt: payload.SystemPrompt,
	})
	if err != nil {
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusOK, conv)
}

// handleClear 清空会话记录并重建模型侧上下文
func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	conv, err := h.chatSvc.Clear(r.Context(), chi.URLParam(r, "conversationID"))
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
