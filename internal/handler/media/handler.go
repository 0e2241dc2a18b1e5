package media

import (
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	"github.com/majianyu/gemini-chat/backend/internal/model/media"
	mediaservice "github.com/majianyu/gemini-chat/backend/internal/service/media"
)

// MediaService 抽象媒体管线，便于测试与替换实现
type MediaService interface {
	PrepareImage(fileName string, data []byte) (media.Asset, error)
	StartVideo(credential, fileName string, data []byte) (media.Asset, error)
	Get(id string) (media.Asset, error)
	Discard(id string) error
	Subscribe(id string) (<-chan media.Event, func(), error)
}

// Handler 媒体上传与状态查询的HTTP处理器
type Handler struct {
	mediaSvc MediaService
}

// New 创建媒体处理器
func New(mediaSvc MediaService) *Handler {
	return &Handler{
		mediaSvc: mediaSvc,
	}
}

// RegisterRoutes 注册媒体相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/media", func(mr chi.Router) {
		mr.Post("/", h.handleUpload)
		mr.Get("/{assetID}", h.handleGet)
		mr.Delete("/{assetID}", h.handleDiscard)

		wsHandler := NewWebSocketHandler(h.mediaSvc)
		wsHandler.RegisterWebSocketRoutes(mr)
	})
}

// handleUpload 接收multipart上传。图片同步就绪，视频立即返回
// 处理中的资源并在后台推进。
func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to parse multipart form: "+err.Error())
		return
	}

	if r.MultipartForm != nil {
		defer r.MultipartForm.RemoveAll()
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "failed to read file: "+err.Error())
		return
	}

	switch r.FormValue("kind") {
	case "image":
		asset, err := h.mediaSvc.PrepareImage(header.Filename, data)
		if err != nil {
			log.Printf("[media] image upload rejected file=%s: %v", header.Filename, err)
			h.respondServiceError(w, err)
			return
		}
		h.respondJSON(w, http.StatusCreated, asset)
	case "video":
		asset, err := h.mediaSvc.StartVideo(r.FormValue("apiKey"), header.Filename, data)
		if err != nil {
			log.Printf("[media] video upload rejected file=%s: %v", header.Filename, err)
			h.respondServiceError(w, err)
			return
		}
		h.respondJSON(w, http.StatusAccepted, asset)
	default:
		h.respondError(w, http.StatusBadRequest, "kind must be image or video")
	}
}

// handleGet 查询资源状态
func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	asset, err := h.mediaSvc.Get(chi.URLParam(r, "assetID"))
	if err != nil {
		h.respondServiceError(w, err)
		return
	}
	h.respondJSON(w, http.StatusOK, asset)
}

// handleDiscard 取消处理中的资源或删除已完成的资源
func (h *Handler) handleDiscard(w http.ResponseWriter, r *http.Request) {
	if err := h.mediaSvc.Discard(chi.URLParam(r, "assetID")); err != nil {
		h.respondServiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// respondServiceError 根据错误分类映射HTTP状态码
func (h *Handler) respondServiceError(w http.ResponseWriter, err error) {
	if errors.Is(err, mediaservice.ErrAssetNotFound) {
		h.respondError(w, http.StatusNotFound, err.Error())
		return
	}
	h.respondError(w, apperr.HTTPStatus(err), err.Error())
}

// respondJSON 发送JSON响应
func (h *Handler) respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("failed to encode response: %v", err)
	}
}

// respondError 发送错误响应
func (h *Handler) respondError(w http.ResponseWriter, status int, message string) {
	h.respondJSON(w, status, map[string]string{"error": message})
}
