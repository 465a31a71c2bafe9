// Package google implements the native multi-modal protocol adapter on
// the Google GenAI SDK. It supports all four request kinds.
package google

import (
	"context"
	"encoding/base64"
	"errors"
	"net/http"
	"time"

	"google.golang.org/genai"

	"github.com/cyrusliu/pixchat/internal/config"
	"github.com/cyrusliu/pixchat/internal/log"
	"github.com/cyrusliu/pixchat/internal/message"
	"github.com/cyrusliu/pixchat/internal/provider"
)

// callTimeout bounds a single generation call. Image generation can be
// very slow, so the deadline is generous.
const callTimeout = 25 * time.Minute

// Adapter implements the provider.Adapter interface for the Gemini
// content-list protocol.
type Adapter struct {
	client *genai.Client
	model  string
}

// New creates a native-protocol adapter from the settings.
func New(ctx context.Context, cfg config.Settings) (*Adapter, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{
			BaseURL: cfg.BaseURL,
		},
		HTTPClient: &http.Client{Timeout: callTimeout},
	})
	if err != nil {
		return nil, normalize(err)
	}
	return &Adapter{client: client, model: cfg.Model}, nil
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return "google"
}

// Supports reports capability support. The native protocol covers
// every request kind.
func (a *Adapter) Supports(provider.Capability) bool {
	return true
}

// GenerateImage produces an image (and usually text) from the prompt.
func (a *Adapter) GenerateImage(ctx context.Context, req provider.CallRequest) (*provider.CallResult, error) {
	return a.call(ctx, "generate", req, false)
}

// EditImage modifies the image the router placed at the front of
// req.Images, guided by the prompt.
func (a *Adapter) EditImage(ctx context.Context, req provider.CallRequest) (*provider.CallResult, error) {
	return a.call(ctx, "edit", req, false)
}

// CompositeImages combines the attached images per the prompt.
func (a *Adapter) CompositeImages(ctx context.Context, req provider.CallRequest) (*provider.CallResult, error) {
	return a.call(ctx, "composite", req, false)
}

// GenerateWithSearch answers with Google Search grounding enabled.
func (a *Adapter) GenerateWithSearch(ctx context.Context, req provider.CallRequest) (*provider.CallResult, error) {
	return a.call(ctx, "search", req, true)
}

func (a *Adapter) call(ctx context.Context, kind string, req provider.CallRequest, search bool) (*provider.CallResult, error) {
	contents := encodeHistory(req.History)

	parts := []*genai.Part{{Text: req.Prompt}}
	for _, img := range req.Images {
		if blob := decodeBlob(img); blob != nil {
			parts = append(parts, &genai.Part{InlineData: blob})
		}
	}
	contents = append(contents, &genai.Content{Role: "user", Parts: parts})

	gcfg := &genai.GenerateContentConfig{}
	if search {
		gcfg.Tools = []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}}
	} else {
		gcfg.ResponseModalities = []string{"TEXT", "IMAGE"}
		gcfg.ImageConfig = &genai.ImageConfig{
			AspectRatio: req.Options.AspectRatio,
			ImageSize:   req.Options.ImageSize,
		}
	}
	if req.Options.Guidance {
		gcfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
	}

	log.LogRequest(a.Name(), a.model, kind, req.Prompt, len(req.Images), len(req.History))

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := a.client.Models.GenerateContent(ctx, a.model, contents, gcfg)
	if err != nil {
		nerr := normalize(err)
		log.LogError(a.Name(), nerr)
		return nil, nerr
	}

	result := decodeResponse(resp)
	result.History = updatedHistory(req, result)
	log.LogResponse(a.Name(), len(result.Text), result.Image != nil)
	return result, nil
}

// encodeHistory converts provider-agnostic history to genai contents.
// Thought parts never leave the client, and inline images on model
// turns are dropped: the server cannot re-validate replayed image
// signatures. An entry is never sent with an empty part list.
func encodeHistory(entries []message.HistoryEntry) []*genai.Content {
	contents := make([]*genai.Content, 0, len(entries)+1)

	for _, entry := range entries {
		role := "user"
		if entry.Role == message.HistoryModel {
			role = "model"
		}

		parts := make([]*genai.Part, 0, len(entry.Parts))
		for _, p := range entry.Parts {
			switch {
			case p.Thought:
				continue
			case p.Inline != nil:
				if entry.Role == message.HistoryModel {
					continue
				}
				if blob := decodeBlob(*p.Inline); blob != nil {
					parts = append(parts, &genai.Part{InlineData: blob})
				}
			default:
				parts = append(parts, &genai.Part{Text: p.Text})
			}
		}
		if len(parts) == 0 {
			parts = append(parts, &genai.Part{Text: ""})
		}

		contents = append(contents, &genai.Content{Role: role, Parts: parts})
	}

	return contents
}

// decodeBlob converts base64 image data to a genai blob, or nil when
// the payload is malformed.
func decodeBlob(img message.ImageData) *genai.Blob {
	if img.MediaType == "" || img.Data == "" {
		return nil
	}
	raw, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		return nil
	}
	return &genai.Blob{MIMEType: img.MediaType, Data: raw}
}

// decodeResponse translates the first candidate into the common result
// shape: text and thought segments, the first inline image, and any
// grounding sources.
func decodeResponse(resp *genai.GenerateContentResponse) *provider.CallResult {
	result := &provider.CallResult{}
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return result
	}

	cand := resp.Candidates[0]
	for _, part := range cand.Content.Parts {
		if part == nil {
			continue
		}
		if part.InlineData != nil {
			if result.Image == nil {
				result.Image = &message.ImageData{
					MediaType: part.InlineData.MIMEType,
					Data:      base64.StdEncoding.EncodeToString(part.InlineData.Data),
					Size:      len(part.InlineData.Data),
				}
			}
			continue
		}
		if part.Text != "" {
			result.Segments = append(result.Segments, message.Segment{
				Text:    part.Text,
				Thought: part.Thought,
			})
		}
	}
	result.Text = message.JoinSegments(result.Segments)

	if cand.GroundingMetadata != nil {
		for _, chunk := range cand.GroundingMetadata.GroundingChunks {
			if chunk == nil || chunk.Web == nil {
				continue
			}
			result.Grounding = append(result.Grounding, provider.GroundingChunk{
				Title: chunk.Web.Title,
				URI:   chunk.Web.URI,
			})
		}
	}

	return result
}

// updatedHistory appends this exchange to the conversation memory. The
// model entry is only added when the response produced at least one
// content part.
func updatedHistory(req provider.CallRequest, result *provider.CallResult) []message.HistoryEntry {
	entries := append(append([]message.HistoryEntry{}, req.History...),
		provider.UserEntry(req.Prompt, req.Images))

	// Thought segments are display-only and never enter history.
	var parts []message.Part
	for _, seg := range result.Segments {
		if seg.Thought {
			continue
		}
		parts = append(parts, message.TextPart(seg.Text))
	}
	if result.Image != nil {
		parts = append(parts, message.ImagePart(*result.Image))
	}
	if len(parts) > 0 {
		entries = append(entries, message.HistoryEntry{Role: message.HistoryModel, Parts: parts})
	}

	return entries
}

func normalize(err error) *provider.Error {
	if errors.Is(err, context.DeadlineExceeded) {
		return provider.TimeoutError("the model did not respond in time")
	}
	var apiErr genai.APIError
	if errors.As(err, &apiErr) {
		return provider.TransportError(apiErr.Code, apiErr.Status, apiErr.Message)
	}
	return provider.Normalize(err)
}

// Ensure Adapter implements provider.Adapter.
var _ provider.Adapter = (*Adapter)(nil)
