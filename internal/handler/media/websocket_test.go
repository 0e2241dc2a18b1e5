package media

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/majianyu/gemini-chat/backend/internal/config"
	mediamodel "github.com/majianyu/gemini-chat/backend/internal/model/media"
	"github.com/majianyu/gemini-chat/backend/internal/service/ai"
	mediaservice "github.com/majianyu/gemini-chat/backend/internal/service/media"
)

// gatedUploader blocks Upload until the gate closes so tests can observe the
// asset while it is still in flight.
type gatedUploader struct {
	gate chan struct{}
}

func (g *gatedUploader) Upload(ctx context.Context, credential, path, mimeType string) (ai.RemoteFile, error) {
	if g.gate != nil {
		select {
		case <-g.gate:
		case <-ctx.Done():
			return ai.RemoteFile{}, ctx.Err()
		}
	}
	return ai.RemoteFile{Name: "files/gated", URI: "uri://files/gated", MIMEType: mimeType, State: ai.FileStateActive}, nil
}

func (g *gatedUploader) FileStatus(ctx context.Context, credential, name string) (ai.RemoteFile, error) {
	return ai.RemoteFile{Name: name, State: ai.FileStateActive}, nil
}

func (g *gatedUploader) DeleteFile(ctx context.Context, credential, name string) error {
	return nil
}

type wsFrame struct {
	Type      string          `json:"type"`
	AssetID   string          `json:"assetId"`
	Data      json.RawMessage `json:"data"`
	Timestamp int64           `json:"timestamp"`
}

func setupStreamServer(t *testing.T, uploader mediaservice.Uploader) (*httptest.Server, *mediaservice.Service) {
	t.Helper()

	svc := mediaservice.NewService(uploader, config.MediaConfig{
		PollInterval:  time.Millisecond,
		PollMaxWait:   time.Second,
		MaxImageBytes: 10 << 20,
		MaxVideoBytes: 10 << 20,
		TempDir:       t.TempDir(),
	}, "server-key")

	r := chi.NewRouter()
	New(svc).RegisterRoutes(r)

	server := httptest.NewServer(r)
	t.Cleanup(server.Close)
	return server, svc
}

func dialAsset(t *testing.T, server *httptest.Server, assetID string) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/media/ws/" + assetID
	conn, resp, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial %s: %v", url, err)
	}
	if resp != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var frame wsFrame
	if err := conn.ReadJSON(&frame); err != nil {
		t.Fatalf("read frame: %v", err)
	}
	return frame
}

func decodeEvent(t *testing.T, frame wsFrame) mediamodel.Event {
	t.Helper()

	if frame.Type != "event" {
		t.Fatalf("expected event frame, got %s", frame.Type)
	}
	var event mediamodel.Event
	if err := json.Unmarshal(frame.Data, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return event
}

func TestWebSocketUnknownAssetNotFound(t *testing.T) {
	r, _ := setupRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/media/ws/missing", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
}

func TestWebSocketStreamsStatusThenReady(t *testing.T) {
	uploader := &gatedUploader{gate: make(chan struct{})}
	server, svc := setupStreamServer(t, uploader)

	asset, err := svc.StartVideo("", "clip.mp4", []byte("fake video bytes"))
	if err != nil {
		t.Fatalf("StartVideo err: %v", err)
	}

	conn := dialAsset(t, server, asset.ID)

	first := readFrame(t, conn)
	if first.Type != "status" {
		t.Fatalf("expected status frame first, got %s", first.Type)
	}
	if first.AssetID != asset.ID {
		t.Fatalf("expected asset %s, got %s", asset.ID, first.AssetID)
	}

	var snapshot mediamodel.Asset
	if err := json.Unmarshal(first.Data, &snapshot); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	if snapshot.Status != mediamodel.StatusUploading {
		t.Fatalf("expected uploading snapshot, got %s", snapshot.Status)
	}

	close(uploader.gate)

	for {
		event := decodeEvent(t, readFrame(t, conn))
		if event.Status == mediamodel.StatusFailed {
			t.Fatalf("unexpected failure: %s", event.Detail)
		}
		if event.Status == mediamodel.StatusReady {
			return
		}
	}
}

func TestWebSocketCancelFailsInFlightAsset(t *testing.T) {
	uploader := &gatedUploader{gate: make(chan struct{})}
	server, svc := setupStreamServer(t, uploader)

	asset, err := svc.StartVideo("", "clip.mp4", []byte("fake video bytes"))
	if err != nil {
		t.Fatalf("StartVideo err: %v", err)
	}

	conn := dialAsset(t, server, asset.ID)

	first := readFrame(t, conn)
	if first.Type != "status" {
		t.Fatalf("expected status frame first, got %s", first.Type)
	}

	cancelMsg := map[string]interface{}{"type": "cancel", "assetId": asset.ID, "timestamp": time.Now().Unix()}
	if err := conn.WriteJSON(cancelMsg); err != nil {
		t.Fatalf("write cancel: %v", err)
	}

	event := decodeEvent(t, readFrame(t, conn))
	if event.Status != mediamodel.StatusFailed {
		t.Fatalf("expected failed event, got %s", event.Status)
	}
	if event.Detail != "cancelled" {
		t.Fatalf("expected cancelled detail, got %q", event.Detail)
	}
}

func TestWebSocketRejectsMismatchedAssetID(t *testing.T) {
	uploader := &gatedUploader{gate: make(chan struct{})}
	server, svc := setupStreamServer(t, uploader)

	asset, err := svc.StartVideo("", "clip.mp4", []byte("fake video bytes"))
	if err != nil {
		t.Fatalf("StartVideo err: %v", err)
	}

	conn := dialAsset(t, server, asset.ID)

	first := readFrame(t, conn)
	if first.Type != "status" {
		t.Fatalf("expected status frame first, got %s", first.Type)
	}

	mismatch := map[string]interface{}{"type": "cancel", "assetId": "someone-else", "timestamp": time.Now().Unix()}
	if err := conn.WriteJSON(mismatch); err != nil {
		t.Fatalf("write mismatch: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != "error" {
		t.Fatalf("expected error frame, got %s", frame.Type)
	}

	var payload map[string]string
	if err := json.Unmarshal(frame.Data, &payload); err != nil {
		t.Fatalf("unmarshal error payload: %v", err)
	}
	if payload["message"] != "asset mismatch" {
		t.Fatalf("expected asset mismatch, got %q", payload["message"])
	}

	close(uploader.gate)
}
