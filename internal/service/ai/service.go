// Package ai binds the application to the Gemini API. It owns client
// lifecycle per credential, live chat sessions, one-shot generation, and the
// file upload/processing surface the media pipeline polls.
package ai

import (
	"context"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	"github.com/majianyu/gemini-chat/backend/internal/model/chat"
)

// SessionConfig binds a session or one-shot request to one model snapshot.
type SessionConfig struct {
	Credential  string
	Model       string
	Temperature float32
}

// Service encapsulates vendor access. Clients are cached per credential so
// conversations sharing a key reuse the underlying HTTP client.
type Service struct {
	mu      sync.Mutex
	clients map[string]*genai.Client
}

// NewService creates the vendor binding. No network traffic happens until the
// first request; invalid credentials surface on first use.
func NewService() *Service {
	return &Service{clients: make(map[string]*genai.Client)}
}

func (s *Service) clientFor(ctx context.Context, credential string) (*genai.Client, error) {
	if strings.TrimSpace(credential) == "" {
		return nil, &apperr.AuthenticationError{Reason: "api key is required"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if client, ok := s.clients[credential]; ok {
		return client, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  credential,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, &apperr.AuthenticationError{Reason: "client initialization failed", Err: err}
	}

	s.clients[credential] = client
	return client, nil
}

// OpenSession starts a fresh vendor chat bound to the supplied config,
// optionally seeded with an existing transcript.
func (s *Service) OpenSession(ctx context.Context, cfg SessionConfig, history []chat.Message) (*Session, error) {
	client, err := s.clientFor(ctx, cfg.Credential)
	if err != nil {
		return nil, err
	}

	genCfg := &genai.GenerateContentConfig{Temperature: genai.Ptr(cfg.Temperature)}
	chatSession, err := client.Chats.Create(ctx, cfg.Model, genCfg, historyContents(history))
	if err != nil {
		return nil, classify("open", err)
	}

	return &Session{chat: chatSession}, nil
}

// OneShot issues a stateless generation request that does not touch any
// running conversation context.
func (s *Service) OneShot(ctx context.Context, cfg SessionConfig, parts ...Part) (string, error) {
	client, err := s.clientFor(ctx, cfg.Credential)
	if err != nil {
		return "", err
	}

	contents := []*genai.Content{{Role: genai.RoleUser, Parts: toGenaiParts(parts)}}
	resp, err := client.Models.GenerateContent(ctx, cfg.Model, contents, &genai.GenerateContentConfig{
		Temperature: genai.Ptr(cfg.Temperature),
	})
	if err != nil {
		return "", classify("generate", err)
	}

	return ResponseText(resp)
}
