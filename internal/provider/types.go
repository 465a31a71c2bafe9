// Package provider defines the provider-agnostic call surface shared
// by the adapters, plus the single error taxonomy every failure is
// normalized into. Provider-specific wire shapes never leak past the
// adapters implementing this interface.
package provider

import (
	"context"

	"github.com/cyrusliu/pixchat/internal/message"
)

// Capability is one of the operations an adapter may support.
type Capability string

const (
	CapGenerate  Capability = "generate"
	CapEdit      Capability = "edit"
	CapComposite Capability = "composite"
	CapSearch    Capability = "search"
)

// Options are the generation options forwarded to a provider.
type Options struct {
	AspectRatio string
	ImageSize   string
	Guidance    bool
}

// CallRequest is the provider-agnostic request shape. History is the
// conversation memory before this turn; adapters append the new user
// and model entries to it in their result.
type CallRequest struct {
	Prompt  string
	Images  []message.ImageData
	History []message.HistoryEntry
	Options Options
}

// GroundingChunk is one web source backing a search-grounded reply.
type GroundingChunk struct {
	Title string `json:"title,omitempty"`
	URI   string `json:"uri,omitempty"`
}

// CallResult is the common result shape both adapters translate into.
type CallResult struct {
	Text      string
	Segments  []message.Segment
	Image     *message.ImageData
	Grounding []GroundingChunk
	History   []message.HistoryEntry
}

// Adapter translates between the canonical call/result shapes and one
// backend's wire protocol.
type Adapter interface {
	Name() string
	Supports(c Capability) bool

	GenerateImage(ctx context.Context, req CallRequest) (*CallResult, error)
	EditImage(ctx context.Context, req CallRequest) (*CallResult, error)
	CompositeImages(ctx context.Context, req CallRequest) (*CallResult, error)
	GenerateWithSearch(ctx context.Context, req CallRequest) (*CallResult, error)
}

// UserEntry builds the history entry for an outgoing user turn.
func UserEntry(prompt string, images []message.ImageData) message.HistoryEntry {
	parts := []message.Part{message.TextPart(prompt)}
	for _, img := range images {
		parts = append(parts, message.ImagePart(img))
	}
	return message.HistoryEntry{Role: message.HistoryUser, Parts: parts}
}
