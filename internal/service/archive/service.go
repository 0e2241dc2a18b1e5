// Package archive stores conversation snapshots as timestamped JSON documents
// on local disk and decodes them back, filling defaults for absent fields.
package archive

import (
	"encoding/json"
	"errors"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/majianyu/gemini-chat/backend/internal/apperr"
	"github.com/majianyu/gemini-chat/backend/internal/model/chat"
)

const (
	filePrefix = "conversation_"
	fileSuffix = ".json"
	nameLayout = "20060102_150405"
)

// Service reads and writes archive documents under a single directory.
type Service struct {
	dir string
}

// NewService ensures the archive directory exists.
func NewService(dir string) (*Service, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, &apperr.PersistenceError{Op: "init", Path: dir, Err: err}
	}
	return &Service{dir: dir}, nil
}

// Entry describes one stored archive file.
type Entry struct {
	Name       string    `json:"name"`
	Size       int64     `json:"size"`
	ModifiedAt time.Time `json:"modifiedAt"`
}

// Save writes a snapshot to a new timestamped file and returns its name.
func (s *Service) Save(doc chat.PersistedConversation) (string, error) {
	if doc.Messages == nil {
		doc.Messages = []chat.Message{}
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", &apperr.PersistenceError{Op: "save", Err: err}
	}

	name := filePrefix + time.Now().Format(nameLayout) + fileSuffix
	path := filepath.Join(s.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", &apperr.PersistenceError{Op: "save", Path: path, Err: err}
	}

	log.Printf("[archive] conversation saved file=%s messages=%d", name, len(doc.Messages))
	return name, nil
}

// Load reads one archive by file name and decodes it.
func (s *Service) Load(name string) (chat.PersistedConversation, error) {
	if !validName(name) {
		return chat.PersistedConversation{}, &apperr.PersistenceError{Op: "load", Path: name, Err: errors.New("invalid archive name")}
	}

	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		return chat.PersistedConversation{}, &apperr.PersistenceError{Op: "load", Path: name, Err: err}
	}
	return Decode(data)
}

// List returns stored archives, newest first.
func (s *Service) List() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, &apperr.PersistenceError{Op: "list", Path: s.dir, Err: err}
	}

	entries := make([]Entry, 0, len(dirEntries))
	for _, de := range dirEntries {
		if de.IsDir() || !validName(de.Name()) {
			continue
		}
		info, err := de.Info()
		if err != nil {
			continue
		}
		entries = append(entries, Entry{Name: de.Name(), Size: info.Size(), ModifiedAt: info.ModTime()})
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].ModifiedAt.After(entries[j].ModifiedAt)
	})
	return entries, nil
}

// rawDocument mirrors the saved format with pointer fields so decoding can
// tell an absent key from an explicit zero.
type rawDocument struct {
	Messages      []chat.Message `json:"messages"`
	SystemPrompt  *string        `json:"system_prompt"`
	SelectedModel *string        `json:"selected_model"`
	Temperature   *float32       `json:"temperature"`
}

// Decode parses a saved document. Absent fields take their defaults: empty
// message list, empty system prompt, the default model, temperature 0.7.
func Decode(data []byte) (chat.PersistedConversation, error) {
	var raw rawDocument
	if err := json.Unmarshal(data, &raw); err != nil {
		return chat.PersistedConversation{}, &apperr.PersistenceError{Op: "decode", Err: err}
	}

	doc := chat.PersistedConversation{
		Messages:      raw.Messages,
		SelectedModel: chat.DefaultModel,
		Temperature:   chat.DefaultTemperature,
	}
	if doc.Messages == nil {
		doc.Messages = []chat.Message{}
	}
	if raw.SystemPrompt != nil {
		doc.SystemPrompt = *raw.SystemPrompt
	}
	if raw.SelectedModel != nil && *raw.SelectedModel != "" {
		doc.SelectedModel = *raw.SelectedModel
	}
	if raw.Temperature != nil {
		doc.Temperature = *raw.Temperature
	}
	return doc, nil
}

// validName accepts only bare conversation file names, keeping path segments
// out of the archive directory.
func validName(name string) bool {
	return filepath.Base(name) == name &&
		strings.HasPrefix(name, filePrefix) &&
		strings.HasSuffix(name, fileSuffix)
}
