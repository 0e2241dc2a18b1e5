package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	"github.com/majianyu/gemini-chat/backend/internal/config"
	"github.com/majianyu/gemini-chat/backend/internal/model/catalog"
	"github.com/majianyu/gemini-chat/backend/internal/model/chat"
	"github.com/majianyu/gemini-chat/backend/internal/service/ai"
	chatservice "github.com/majianyu/gemini-chat/backend/internal/service/chat"
	mediaservice "github.com/majianyu/gemini-chat/backend/internal/service/media"
)

type fakeSession struct {
	mu    sync.Mutex
	calls [][]ai.Part
	reply string
	err   error
}

func (s *fakeSession) Send(ctx context.Context, parts ...ai.Part) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, parts)
	if s.err != nil {
		return "", s.err
	}
	return s.reply, nil
}

type oneShotCall struct {
	cfg   ai.SessionConfig
	parts []ai.Part
}

type fakeClient struct {
	mu       sync.Mutex
	session  *fakeSession
	oneShots []oneShotCall
}

func (c *fakeClient) OpenSession(ctx context.Context, cfg ai.SessionConfig, history []chat.Message) (chatservice.ModelSession, error) {
	return c.session, nil
}

func (c *fakeClient) OneShot(ctx context.Context, cfg ai.SessionConfig, parts ...ai.Part) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.oneShots = append(c.oneShots, oneShotCall{cfg: cfg, parts: parts})
	return "video summary", nil
}

type fakeUploader struct{}

func (f *fakeUploader) Upload(ctx context.Context, credential, path, mimeType string) (ai.RemoteFile, error) {
	return ai.RemoteFile{Name: "files/clip-remote", URI: "uri://files/clip-remote", MIMEType: mimeType, State: ai.FileStateActive}, nil
}

func (f *fakeUploader) FileStatus(ctx context.Context, credential, name string) (ai.RemoteFile, error) {
	return ai.RemoteFile{Name: name, State: ai.FileStateActive}, nil
}

func (f *fakeUploader) DeleteFile(ctx context.Context, credential, name string) error {
	return nil
}

func newTestHandler(t *testing.T, session *fakeSession) (*Handler, *fakeClient, *chatservice.Service, *mediaservice.Service) {
	t.Helper()

	client := &fakeClient{session: session}
	chatSvc := chatservice.NewService(client, catalog.NewMemoryStore(catalog.Seed()), config.AIConfig{APIKey: "server-key"})
	mediaSvc := mediaservice.NewService(&fakeUploader{}, config.MediaConfig{
		PollInterval:  time.Millisecond,
		PollMaxWait:   time.Second,
		MaxImageBytes: 10 << 20,
		MaxVideoBytes: 10 << 20,
		TempDir:       t.TempDir(),
	}, "server-key")

	return New(chatSvc, mediaSvc), client, chatSvc, mediaSvc
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 2, 2))); err != nil {
		t.Fatalf("encode png: %v", err)
	}
	return buf.Bytes()
}

func decodeSSE(t *testing.T, body string) []StreamResponse {
	t.Helper()

	var out []StreamResponse
	for _, block := range strings.Split(body, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}
		payload := strings.TrimPrefix(block, "data: ")
		var resp StreamResponse
		if err := json.Unmarshal([]byte(payload), &resp); err != nil {
			t.Fatalf("unmarshal sse block %q: %v", block, err)
		}
		out = append(out, resp)
	}
	return out
}

func eventNames(responses []StreamResponse) []string {
	names := make([]string, 0, len(responses))
	for _, resp := range responses {
		names = append(names, resp.Event)
	}
	return names
}

func TestHandleTurnRequestStreamsExchange(t *testing.T) {
	handler, _, chatSvc, _ := newTestHandler(t, &fakeSession{reply: "Hello there"})

	conv, err := chatSvc.Create(context.Background(), chatservice.CreateParams{})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), rec, conv.ID, TurnRequest{Text: "Hi"}); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	if got := rec.Header().Get("Content-Type"); got != "text/event-stream" {
		t.Fatalf("expected SSE content type, got %q", got)
	}

	events := decodeSSE(t, rec.Body.String())
	names := eventNames(events)
	if len(names) != 4 || names[0] != "start" || names[1] != "user" || names[2] != "message" || names[3] != "end" {
		t.Fatalf("unexpected event sequence: %v", names)
	}

	if events[1].Message == nil || events[1].Message.Content != "Hi" {
		t.Fatalf("expected user event carrying the input, got %+v", events[1])
	}
	if events[2].Content != "Hello there" {
		t.Fatalf("expected assistant reply, got %q", events[2].Content)
	}
	if !events[3].Finished {
		t.Fatal("expected end event marked finished")
	}
}

func TestHandleTurnRequestUnknownConversation(t *testing.T) {
	handler, _, _, _ := newTestHandler(t, &fakeSession{reply: "ok"})

	rec := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), rec, "missing", TurnRequest{Text: "Hi"}); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleTurnRequestRejectsDoubleAttachment(t *testing.T) {
	handler, _, chatSvc, _ := newTestHandler(t, &fakeSession{reply: "ok"})

	conv, err := chatSvc.Create(context.Background(), chatservice.CreateParams{})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	rec := httptest.NewRecorder()
	req := TurnRequest{Text: "Hi", ImageID: "img", VideoID: "vid"}
	if err := handler.HandleTurnRequest(context.Background(), rec, conv.ID, req); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleTurnRequestAttachmentNotFound(t *testing.T) {
	handler, _, chatSvc, _ := newTestHandler(t, &fakeSession{reply: "ok"})

	conv, err := chatSvc.Create(context.Background(), chatservice.CreateParams{})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), rec, conv.ID, TurnRequest{ImageID: "missing"}); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestHandleTurnRequestWrongAttachmentKind(t *testing.T) {
	handler, _, chatSvc, mediaSvc := newTestHandler(t, &fakeSession{reply: "ok"})

	conv, err := chatSvc.Create(context.Background(), chatservice.CreateParams{})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	asset, err := mediaSvc.PrepareImage("photo.png", pngBytes(t))
	if err != nil {
		t.Fatalf("PrepareImage err: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), rec, conv.ID, TurnRequest{VideoID: asset.ID}); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestHandleTurnRequestImageAttachment(t *testing.T) {
	session := &fakeSession{reply: "a red square"}
	handler, _, chatSvc, mediaSvc := newTestHandler(t, session)

	conv, err := chatSvc.Create(context.Background(), chatservice.CreateParams{})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	asset, err := mediaSvc.PrepareImage("photo.png", pngBytes(t))
	if err != nil {
		t.Fatalf("PrepareImage err: %v", err)
	}

	rec := httptest.NewRecorder()
	req := TurnRequest{Text: "what is this", ImageID: asset.ID}
	if err := handler.HandleTurnRequest(context.Background(), rec, conv.ID, req); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	events := decodeSSE(t, rec.Body.String())
	if events[1].Message == nil || !strings.Contains(events[1].Message.Content, "[Image attached]") {
		t.Fatalf("expected image marker in user event, got %+v", events[1])
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if len(session.calls) != 1 {
		t.Fatalf("expected 1 session send, got %d", len(session.calls))
	}
	parts := session.calls[0]
	if len(parts) != 2 || parts[1].Blob == nil || parts[1].Blob.MIMEType != "image/png" {
		t.Fatalf("expected inline image part, got %+v", parts)
	}
}

func TestHandleTurnRequestVideoAttachment(t *testing.T) {
	session := &fakeSession{reply: "unused"}
	handler, client, chatSvc, mediaSvc := newTestHandler(t, session)

	conv, err := chatSvc.Create(context.Background(), chatservice.CreateParams{})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	asset, err := mediaSvc.PrepareVideo(context.Background(), "", "clip.mp4", []byte("fake video bytes"))
	if err != nil {
		t.Fatalf("PrepareVideo err: %v", err)
	}

	rec := httptest.NewRecorder()
	req := TurnRequest{Text: "summarize", VideoID: asset.ID}
	if err := handler.HandleTurnRequest(context.Background(), rec, conv.ID, req); err != nil {
		t.Fatalf("HandleTurnRequest err: %v", err)
	}

	events := decodeSSE(t, rec.Body.String())
	if events[2].Content != "video summary" {
		t.Fatalf("expected one-shot reply, got %q", events[2].Content)
	}

	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.oneShots) != 1 {
		t.Fatalf("expected 1 one-shot call, got %d", len(client.oneShots))
	}
	call := client.oneShots[0]
	if call.cfg.Model != "gemini-1.5-pro" {
		t.Fatalf("expected video model, got %s", call.cfg.Model)
	}
	if len(call.parts) != 2 || call.parts[0].File == nil || call.parts[0].File.URI != "uri://files/clip-remote" {
		t.Fatalf("expected remote file part, got %+v", call.parts)
	}

	session.mu.Lock()
	defer session.mu.Unlock()
	if len(session.calls) != 0 {
		t.Fatalf("expected session untouched for video turns, got %d sends", len(session.calls))
	}
}

func TestHandleTurnRequestExchangeFailure(t *testing.T) {
	session := &fakeSession{err: &apperr.ExchangeError{Op: "send", Err: context.DeadlineExceeded}}
	handler, _, chatSvc, _ := newTestHandler(t, session)

	conv, err := chatSvc.Create(context.Background(), chatservice.CreateParams{})
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}

	rec := httptest.NewRecorder()
	if err := handler.HandleTurnRequest(context.Background(), rec, conv.ID, TurnRequest{Text: "Hi"}); err == nil {
		t.Fatal("expected error returned for logging")
	}

	events := decodeSSE(t, rec.Body.String())
	names := eventNames(events)
	if len(names) != 2 || names[0] != "start" || names[1] != "error" {
		t.Fatalf("unexpected event sequence: %v", names)
	}
	if events[1].Error == "" {
		t.Fatal("expected error message in error event")
	}
}
