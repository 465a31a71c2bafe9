// Package message defines the canonical message and history types used
// across the codebase. All packages import from here to avoid circular
// dependencies.
package message

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Role represents the role of a timeline message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// HistoryRole is the role of a provider history entry. Provider wire
// formats use "model" where the display timeline uses "assistant".
type HistoryRole string

const (
	HistoryUser  HistoryRole = "user"
	HistoryModel HistoryRole = "model"
)

// ErrorPrefix marks system messages that record a failed request.
const ErrorPrefix = "Error: "

// ImageData represents base64-encoded image data for multimodal messages.
type ImageData struct {
	MediaType string `json:"media_type"`
	Data      string `json:"data"`
	FileName  string `json:"file_name,omitempty"`
	Size      int    `json:"size,omitempty"`
	Width     int    `json:"width,omitempty"`
	Height    int    `json:"height,omitempty"`
}

// Segment is one block of assistant output. Thought segments are
// display-only and never enter provider history.
type Segment struct {
	Text    string `json:"text"`
	Thought bool   `json:"thought,omitempty"`
}

// RetryContext captures enough of a failed request to recompose it.
type RetryContext struct {
	Mode      string      `json:"mode"`
	Prompt    string      `json:"prompt"`
	FileNames []string    `json:"file_names,omitempty"`
	Images    []ImageData `json:"images,omitempty"`
}

// Message represents one entry in the display timeline.
type Message struct {
	ID             string        `json:"id"`
	Role           Role          `json:"role"`
	Content        string        `json:"content,omitempty"`
	Segments       []Segment     `json:"segments,omitempty"`
	Attachments    []ImageData   `json:"attachments,omitempty"`
	GeneratedImage *ImageData    `json:"generated_image,omitempty"`
	IsError        bool          `json:"is_error,omitempty"`
	Retry          *RetryContext `json:"retry,omitempty"`
	CreatedAt      time.Time     `json:"created_at"`
}

// Part is one content segment of a provider history entry: text, an
// inline image, or a thought marker.
type Part struct {
	Text    string     `json:"text,omitempty"`
	Inline  *ImageData `json:"inline,omitempty"`
	Thought bool       `json:"thought,omitempty"`
}

// HistoryEntry is the provider-agnostic conversation memory sent on
// every request. It is reconstructible from the display timeline but
// normally maintained incrementally after each successful exchange.
type HistoryEntry struct {
	Role  HistoryRole `json:"role"`
	Parts []Part      `json:"parts"`
}

// TextPart creates a text part.
func TextPart(text string) Part { return Part{Text: text} }

// ImagePart creates an inline image part.
func ImagePart(img ImageData) Part { return Part{Inline: &img} }

// ThoughtPart creates a display-only reasoning part.
func ThoughtPart(text string) Part { return Part{Text: text, Thought: true} }

// NewID returns a globally unique opaque message identifier.
func NewID() string {
	return uuid.NewString()
}

// UserMessage creates a user message with optional image attachments.
func UserMessage(text string, attachments []ImageData) Message {
	return Message{
		ID:          NewID(),
		Role:        RoleUser,
		Content:     text,
		Attachments: attachments,
		CreatedAt:   time.Now(),
	}
}

// AssistantMessage creates an assistant message. Segments carry the
// structured reply (reasoning plus answer) when the provider returned
// one; image is the generated image payload, if any.
func AssistantMessage(text string, segments []Segment, image *ImageData) Message {
	return Message{
		ID:             NewID(),
		Role:           RoleAssistant,
		Content:        text,
		Segments:       segments,
		GeneratedImage: image,
		CreatedAt:      time.Now(),
	}
}

// SystemError creates a system message recording a failed request.
func SystemError(text string, retry *RetryContext) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleSystem,
		Content:   ErrorPrefix + text,
		IsError:   true,
		Retry:     retry,
		CreatedAt: time.Now(),
	}
}

// SystemNotice creates an informational system message.
func SystemNotice(text string) Message {
	return Message{
		ID:        NewID(),
		Role:      RoleSystem,
		Content:   text,
		CreatedAt: time.Now(),
	}
}

// JoinSegments returns the double-newline join of the non-thought
// segment texts, or "" when none exist.
func JoinSegments(segments []Segment) string {
	var texts []string
	for _, s := range segments {
		if s.Thought || s.Text == "" {
			continue
		}
		texts = append(texts, s.Text)
	}
	return strings.Join(texts, "\n\n")
}

// EntryText returns the joined text of an entry's non-thought text parts.
func EntryText(e HistoryEntry) string {
	var texts []string
	for _, p := range e.Parts {
		if p.Thought || p.Inline != nil || p.Text == "" {
			continue
		}
		texts = append(texts, p.Text)
	}
	return strings.Join(texts, "\n\n")
}
