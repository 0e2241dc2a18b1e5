package media

import (
	"context"
	"log"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/majianyu/gemini-chat/backend/internal/model/media"
)

// WebSocketHandler 媒体处理进度的WebSocket推送处理器
type WebSocketHandler struct {
	mediaSvc MediaService
	upgrader websocket.Upgrader
}

// NewWebSocketHandler 创建WebSocket处理器
func NewWebSocketHandler(mediaSvc MediaService) *WebSocketHandler {
	return &WebSocketHandler{
		mediaSvc: mediaSvc,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterWebSocketRoutes 注册WebSocket路由
func (h *WebSocketHandler) RegisterWebSocketRoutes(r chi.Router) {
	r.Get("/ws/{assetID}", h.handleWebSocket)
}

type inboundMessage struct {
	Type      string `json:"type"`
	AssetID   string `json:"assetId"`
	Timestamp int64  `json:"timestamp"`
}

type outgoingMessage struct {
	Type      string      `json:"type"`
	AssetID   string      `json:"assetId,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// handleWebSocket 处理WebSocket连接。连接建立后先推送当前状态快照，
// 之后持续推送状态事件直到资源进入终态。
func (h *WebSocketHandler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	assetID := chi.URLParam(r, "assetID")
	if assetID == "" {
		http.Error(w, "assetID is required", http.StatusBadRequest)
		return
	}

	asset, err := h.mediaSvc.Get(assetID)
	if err != nil {
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}

	events, unsubscribe, err := h.mediaSvc.Subscribe(assetID)
	if err != nil {
		http.Error(w, "asset not found", http.StatusNotFound)
		return
	}
	defer unsubscribe()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[websocket] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	log.Printf("[websocket] new connection for asset: %s", assetID)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	go h.pingLoop(ctx, conn)
	go h.readLoop(cancel, conn, assetID)

	h.sendStatus(conn, asset)

	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			h.sendEvent(conn, event)
		}
	}
}

// readLoop 消费入站消息。客户端可随时发送cancel中止处理。
func (h *WebSocketHandler) readLoop(cancel context.CancelFunc, conn *websocket.Conn, assetID string) {
	defer cancel()

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[websocket] read error: %v", err)
			}
			return
		}

		conn.SetReadDeadline(time.Now().Add(60 * time.Second))

		if msg.AssetID != "" && msg.AssetID != assetID {
			h.sendError(conn, "asset mismatch")
			continue
		}

		switch msg.Type {
		case "cancel":
			log.Printf("[websocket] cancel requested asset=%s", assetID)
			if err := h.mediaSvc.Discard(assetID); err != nil {
				h.sendError(conn, err.Error())
			}
		default:
			h.sendError(conn, "unsupported message type: "+msg.Type)
		}
	}
}

func (h *WebSocketHandler) sendStatus(conn *websocket.Conn, asset media.Asset) {
	msg := outgoingMessage{
		Type:      "status",
		AssetID:   asset.ID,
		Data:      asset,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write status failed: %v", err)
	}
}

func (h *WebSocketHandler) sendEvent(conn *websocket.Conn, event media.Event) {
	msg := outgoingMessage{
		Type:      "event",
		AssetID:   event.AssetID,
		Data:      event,
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write event failed: %v", err)
	}
}

func (h *WebSocketHandler) sendError(conn *websocket.Conn, message string) {
	msg := outgoingMessage{
		Type:      "error",
		Data:      map[string]string{"message": message},
		Timestamp: time.Now().Unix(),
	}
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("[websocket] write error failed: %v", err)
	}
}

// pingLoop 定期发送ping消息
func (h *WebSocketHandler) pingLoop(ctx context.Context, conn *websocket.Conn) {
	ticker := time.NewTicker(54 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
