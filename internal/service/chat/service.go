package chat

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	"github.com/majianyu/gemini-chat/backend/internal/config"
	"github.com/majianyu/gemini-chat/backend/internal/model/catalog"
	"github.com/majianyu/gemini-chat/backend/internal/model/chat"
	"github.com/majianyu/gemini-chat/backend/internal/service/ai"
)

var ErrConversationNotFound = errors.New("conversation not found")

const defaultVideoModel = "gemini-1.5-pro"

// ModelSession is the live exchange context a conversation is bound to.
type ModelSession interface {
	Send(ctx context.Context, parts ...ai.Part) (string, error)
}

// ModelClient opens sessions and stateless one-shot requests against the
// vendor.
type ModelClient interface {
	OpenSession(ctx context.Context, cfg ai.SessionConfig, history []chat.Message) (ModelSession, error)
	OneShot(ctx context.Context, cfg ai.SessionConfig, parts ...ai.Part) (string, error)
}

// NewVendorClient adapts the concrete vendor service to ModelClient.
func NewVendorClient(svc *ai.Service) ModelClient {
	return vendorClient{svc: svc}
}

type vendorClient struct {
	svc *ai.Service
}

func (v vendorClient) OpenSession(ctx context.Context, cfg ai.SessionConfig, history []chat.Message) (ModelSession, error) {
	session, err := v.svc.OpenSession(ctx, cfg, history)
	if err != nil {
		return nil, err
	}
	return session, nil
}

func (v vendorClient) OneShot(ctx context.Context, cfg ai.SessionConfig, parts ...ai.Part) (string, error) {
	return v.svc.OneShot(ctx, cfg, parts...)
}

// state couples a conversation with its live handle. The per-conversation
// mutex serializes turns and config changes so they never interleave.
type state struct {
	mu      sync.Mutex
	conv    chat.Conversation
	session ModelSession
}

// Service owns conversation state: transcripts, configuration, and the live
// vendor handles bound to each configuration snapshot.
type Service struct {
	client   ModelClient
	models   catalog.Store
	defaults config.AIConfig

	mu            sync.RWMutex
	conversations map[string]*state
}

// NewService bootstraps the in-memory conversation service.
func NewService(client ModelClient, models catalog.Store, defaults config.AIConfig) *Service {
	if defaults.Model == "" {
		defaults.Model = chat.DefaultModel
	}
	if defaults.VideoModel == "" {
		defaults.VideoModel = defaultVideoModel
	}
	if defaults.SystemPrompt == "" {
		defaults.SystemPrompt = chat.DefaultSystemPrompt
	}

	return &Service{
		client:        client,
		models:        models,
		defaults:      defaults,
		conversations: make(map[string]*state),
	}
}

// CreateParams carries optional overrides for a new conversation. Absent
// fields fall back to server configuration.
type CreateParams struct {
	APIKey       string
	Model        string
	Temperature  *float32
	SystemPrompt *string
}

// Create provisions a conversation with a fresh vendor handle and an empty
// transcript.
func (s *Service) Create(ctx context.Context, params CreateParams) (chat.Conversation, error) {
	cfg, err := s.buildConfig(params)
	if err != nil {
		return chat.Conversation{}, err
	}

	session, err := s.openSession(ctx, cfg, nil)
	if err != nil {
		return chat.Conversation{}, err
	}

	now := time.Now().UTC()
	conv := chat.Conversation{
		ID:        uuid.NewString(),
		Config:    cfg,
		Messages:  []chat.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}

	s.mu.Lock()
	s.conversations[conv.ID] = &state{conv: conv, session: session}
	s.mu.Unlock()

	log.Printf("[chat] conversation created id=%s model=%s", conv.ID, cfg.Model)
	return copyConversation(conv), nil
}

// UpdateParams mutates only the fields that are set.
type UpdateParams struct {
	APIKey       *string
	Model        *string
	Temperature  *float32
	SystemPrompt *string
}

// UpdateConfig applies a configuration change. Any effective change discards
// the vendor handle and clears the transcript: the remote model's memory of
// prior turns must keep matching the local history, so a config change that
// kept old messages would desynchronize the two sides. A no-op update keeps
// both.
func (s *Service) UpdateConfig(ctx context.Context, id string, params UpdateParams) (chat.Conversation, error) {
	st, err := s.lookup(id)
	if err != nil {
		return chat.Conversation{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.conv.Config
	if params.APIKey != nil {
		next.Credential = *params.APIKey
	}
	if params.Model != nil {
		next.Model = *params.Model
	}
	if params.Temperature != nil {
		next.Temperature = *params.Temperature
	}
	if params.SystemPrompt != nil {
		next.SystemPrompt = *params.SystemPrompt
	}
	next.Normalize()

	if err := s.validateConfig(next); err != nil {
		return chat.Conversation{}, err
	}

	if next.Equal(st.conv.Config) {
		return copyConversation(st.conv), nil
	}

	session, err := s.openSession(ctx, next, nil)
	if err != nil {
		// The previous handle and transcript stay untouched.
		return chat.Conversation{}, err
	}

	st.conv.Config = next
	st.conv.Messages = []chat.Message{}
	st.conv.UpdatedAt = time.Now().UTC()
	st.session = session

	log.Printf("[chat] config changed id=%s model=%s, transcript cleared", id, next.Model)
	return copyConversation(st.conv), nil
}

// Clear empties the transcript and replaces the vendor handle so remote
// conversation memory starts over as well.
func (s *Service) Clear(ctx context.Context, id string) (chat.Conversation, error) {
	st, err := s.lookup(id)
	if err != nil {
		return chat.Conversation{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	session, err := s.openSession(ctx, st.conv.Config, nil)
	if err != nil {
		return chat.Conversation{}, err
	}

	st.conv.Messages = []chat.Message{}
	st.conv.UpdatedAt = time.Now().UTC()
	st.session = session

	log.Printf("[chat] transcript cleared id=%s", id)
	return copyConversation(st.conv), nil
}

// Restore replaces transcript and configuration from a persisted document.
// The credential is kept; the handle is recreated and seeded with the
// restored transcript rather than resumed.
func (s *Service) Restore(ctx context.Context, id string, doc chat.PersistedConversation) (chat.Conversation, error) {
	st, err := s.lookup(id)
	if err != nil {
		return chat.Conversation{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()

	next := st.conv.Config
	next.Model = doc.SelectedModel
	next.SystemPrompt = doc.SystemPrompt
	next.Temperature = doc.Temperature
	next.Normalize()

	// Restored documents may name models no longer in the catalog; accept
	// them verbatim and let the vendor reject them on the next turn.
	if next.Credential == "" {
		return chat.Conversation{}, &apperr.AuthenticationError{Reason: "api key is required"}
	}

	messages := append([]chat.Message(nil), doc.Messages...)
	session, err := s.openSession(ctx, next, messages)
	if err != nil {
		return chat.Conversation{}, err
	}

	st.conv.Config = next
	st.conv.Messages = messages
	st.conv.UpdatedAt = time.Now().UTC()
	st.session = session

	log.Printf("[chat] conversation restored id=%s model=%s messages=%d", id, next.Model, len(messages))
	return copyConversation(st.conv), nil
}

// Get retrieves a conversation snapshot by identifier.
func (s *Service) Get(id string) (chat.Conversation, error) {
	st, err := s.lookup(id)
	if err != nil {
		return chat.Conversation{}, err
	}

	st.mu.Lock()
	defer st.mu.Unlock()
	return copyConversation(st.conv), nil
}

// List returns conversation snapshots, newest first.
func (s *Service) List() []chat.Conversation {
	s.mu.RLock()
	states := make([]*state, 0, len(s.conversations))
	for _, st := range s.conversations {
		states = append(states, st)
	}
	s.mu.RUnlock()

	out := make([]chat.Conversation, 0, len(states))
	for _, st := range states {
		st.mu.Lock()
		out = append(out, copyConversation(st.conv))
		st.mu.Unlock()
	}

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *Service) lookup(id string) (*state, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.conversations[id]
	if !ok {
		return nil, ErrConversationNotFound
	}
	return st, nil
}

func (s *Service) buildConfig(params CreateParams) (chat.ConversationConfig, error) {
	cfg := chat.ConversationConfig{
		Credential:   params.APIKey,
		Model:        params.Model,
		Temperature:  chat.DefaultTemperature,
		SystemPrompt: s.defaults.SystemPrompt,
	}
	if cfg.Credential == "" {
		cfg.Credential = s.defaults.APIKey
	}
	if cfg.Model == "" {
		cfg.Model = s.defaults.Model
	}
	if s.defaults.Temperature != nil {
		cfg.Temperature = *s.defaults.Temperature
	}
	if params.Temperature != nil {
		cfg.Temperature = *params.Temperature
	}
	if params.SystemPrompt != nil {
		cfg.SystemPrompt = *params.SystemPrompt
	}
	cfg.Normalize()

	if err := s.validateConfig(cfg); err != nil {
		return chat.ConversationConfig{}, err
	}
	return cfg, nil
}

func (s *Service) validateConfig(cfg chat.ConversationConfig) error {
	if cfg.Credential == "" {
		return &apperr.AuthenticationError{Reason: "api key is required"}
	}
	if _, ok := s.models.FindByID(cfg.Model); !ok {
		return &apperr.ConfigurationError{Field: "model", Reason: fmt.Sprintf("unknown model %q", cfg.Model)}
	}
	return nil
}

func (s *Service) openSession(ctx context.Context, cfg chat.ConversationConfig, history []chat.Message) (ModelSession, error) {
	return s.client.OpenSession(ctx, ai.SessionConfig{
		Credential:  cfg.Credential,
		Model:       cfg.Model,
		Temperature: cfg.Temperature,
	}, history)
}

func copyConversation(conv chat.Conversation) chat.Conversation {
	out := conv
	out.Messages = append([]chat.Message(nil), conv.Messages...)
	return out
}
