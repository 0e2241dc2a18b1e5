package catalog

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/majianyu/gemini-chat/backend/internal/model/catalog"
)

// Handler 模型目录的HTTP处理器
type Handler struct {
	models catalog.Store
}

// New 创建模型目录处理器
func New(models catalog.Store) *Handler {
	return &Handler{
		models: models,
	}
}

// RegisterRoutes 注册模型目录相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/models", h.handleListModels)
}

// handleListModels 列出可选的聊天模型
func (h *Handler) handleListModels(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]interface{}{"models": h.models.List()})
}

// respondJSON 发送JSON响应
func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
