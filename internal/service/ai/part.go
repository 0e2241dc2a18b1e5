package ai

import (
	"google.golang.org/genai"

	"github.com/majianyu/gemini-chat/backend/internal/model/chat"
)

// Part is one piece of an outgoing request: plain text, inline bytes, or a
// reference to an uploaded file.
type Part struct {
	Text string
	Blob *Blob
	File *FileRef
}

// Blob carries inline media bytes.
type Blob struct {
	MIMEType string
	Data     []byte
}

// FileRef points at a previously uploaded remote file.
type FileRef struct {
	URI      string
	MIMEType string
}

// TextPart builds a plain text part.
func TextPart(text string) Part {
	return Part{Text: text}
}

// BlobPart builds an inline bytes part.
func BlobPart(mimeType string, data []byte) Part {
	return Part{Blob: &Blob{MIMEType: mimeType, Data: data}}
}

// FilePart builds a remote file reference part.
func FilePart(uri, mimeType string) Part {
	return Part{File: &FileRef{URI: uri, MIMEType: mimeType}}
}

func toGenaiParts(parts []Part) []*genai.Part {
	out := make([]*genai.Part, 0, len(parts))
	for _, p := range parts {
		switch {
		case p.Blob != nil:
			out = append(out, &genai.Part{InlineData: &genai.Blob{MIMEType: p.Blob.MIMEType, Data: p.Blob.Data}})
		case p.File != nil:
			out = append(out, &genai.Part{FileData: &genai.FileData{FileURI: p.File.URI, MIMEType: p.File.MIMEType}})
		default:
			out = append(out, &genai.Part{Text: p.Text})
		}
	}
	return out
}

func historyContents(history []chat.Message) []*genai.Content {
	if len(history) == 0 {
		return nil
	}

	out := make([]*genai.Content, 0, len(history))
	for _, m := range history {
		role := genai.RoleUser
		if m.Role == chat.RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{Role: role, Parts: []*genai.Part{{Text: m.Content}}})
	}
	return out
}
