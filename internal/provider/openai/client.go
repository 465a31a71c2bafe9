// Package openai implements the chat-completion protocol adapter. It
// flattens multi-modal content into mixed text/image-url messages and
// recovers generated images from base64 references embedded in the
// reply text. Edit and search are not available on this protocol.
package openai

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"github.com/cyrusliu/pixchat/internal/config"
	"github.com/cyrusliu/pixchat/internal/log"
	"github.com/cyrusliu/pixchat/internal/message"
	"github.com/cyrusliu/pixchat/internal/provider"
)

const callTimeout = 25 * time.Minute

// embeddedImage matches a markdown image with an inline base64 data URI.
var embeddedImage = regexp.MustCompile(`!\[[^\]]*\]\(data:image/([a-zA-Z0-9.+-]+);base64,([A-Za-z0-9+/=]+)\)`)

// Adapter implements the provider.Adapter interface for
// OpenAI-compatible chat-completion endpoints.
type Adapter struct {
	client openai.Client
	model  string
}

// New creates a chat-completion adapter from the settings.
func New(cfg config.Settings) *Adapter {
	client := openai.NewClient(
		option.WithAPIKey(cfg.APIKey),
		option.WithBaseURL(cfg.BaseURL),
		option.WithRequestTimeout(callTimeout),
	)
	return &Adapter{client: client, model: cfg.Model}
}

// Name returns the provider name.
func (a *Adapter) Name() string {
	return "openai"
}

// Supports reports capability support: generate and composite only.
func (a *Adapter) Supports(c provider.Capability) bool {
	switch c {
	case provider.CapGenerate, provider.CapComposite:
		return true
	default:
		return false
	}
}

// GenerateImage produces an image from the prompt.
func (a *Adapter) GenerateImage(ctx context.Context, req provider.CallRequest) (*provider.CallResult, error) {
	return a.call(ctx, "generate", req)
}

// EditImage is not supported by the chat-completion protocol.
func (a *Adapter) EditImage(_ context.Context, _ provider.CallRequest) (*provider.CallResult, error) {
	return nil, provider.CapabilityError("image editing is not supported by the chat-completion provider")
}

// CompositeImages combines the attached images per the prompt.
func (a *Adapter) CompositeImages(ctx context.Context, req provider.CallRequest) (*provider.CallResult, error) {
	return a.call(ctx, "composite", req)
}

// GenerateWithSearch is not supported by the chat-completion protocol.
func (a *Adapter) GenerateWithSearch(_ context.Context, _ provider.CallRequest) (*provider.CallResult, error) {
	return nil, provider.CapabilityError("web search is not supported by the chat-completion provider")
}

func (a *Adapter) call(ctx context.Context, kind string, req provider.CallRequest) (*provider.CallResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:    a.model,
		Messages: flatten(req),
	}

	log.LogRequest(a.Name(), a.model, kind, req.Prompt, len(req.Images), len(req.History))

	ctx, cancel := context.WithTimeout(ctx, callTimeout)
	defer cancel()

	resp, err := a.client.Chat.Completions.New(ctx, params)
	if err != nil {
		nerr := normalize(err)
		log.LogError(a.Name(), nerr)
		return nil, nerr
	}

	var content string
	if len(resp.Choices) > 0 {
		content = resp.Choices[0].Message.Content
	}

	text, img := ExtractImage(content)
	result := &provider.CallResult{Text: text, Image: img}
	if text != "" {
		result.Segments = []message.Segment{{Text: text}}
	}
	result.History = updatedHistory(req, text, img)
	log.LogResponse(a.Name(), len(text), img != nil)
	return result, nil
}

// flatten converts provider history plus the new user turn into
// chat-completion messages. Model turns become plain text; user turns
// with images become one message with mixed text and image-url parts.
func flatten(req provider.CallRequest) []openai.ChatCompletionMessageParamUnion {
	msgs := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.History)+1)

	for _, entry := range req.History {
		if entry.Role == message.HistoryModel {
			msgs = append(msgs, openai.AssistantMessage(message.EntryText(entry)))
			continue
		}
		msgs = append(msgs, userParam(message.EntryText(entry), entryImages(entry)))
	}

	msgs = append(msgs, userParam(req.Prompt, req.Images))
	return msgs
}

// entryImages collects the well-formed inline images of a history entry.
func entryImages(entry message.HistoryEntry) []message.ImageData {
	var images []message.ImageData
	for _, p := range entry.Parts {
		if p.Inline != nil && p.Inline.Data != "" && p.Inline.MediaType != "" {
			images = append(images, *p.Inline)
		}
	}
	return images
}

func userParam(text string, images []message.ImageData) openai.ChatCompletionMessageParamUnion {
	if len(images) == 0 {
		return openai.UserMessage(text)
	}

	parts := make([]openai.ChatCompletionContentPartUnionParam, 0, len(images)+1)
	for _, img := range images {
		dataURI := fmt.Sprintf("data:%s;base64,%s", img.MediaType, img.Data)
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfImageURL: &openai.ChatCompletionContentPartImageParam{
				ImageURL: openai.ChatCompletionContentPartImageImageURLParam{
					URL: dataURI,
				},
			},
		})
	}
	if text != "" {
		parts = append(parts, openai.ChatCompletionContentPartUnionParam{
			OfText: &openai.ChatCompletionContentPartTextParam{Text: text},
		})
	}

	return openai.ChatCompletionMessageParamUnion{
		OfUser: &openai.ChatCompletionUserMessageParam{
			Content: openai.ChatCompletionUserMessageParamContentUnion{
				OfArrayOfContentParts: parts,
			},
		},
	}
}

// ExtractImage pulls the last embedded base64 image out of a reply and
// strips every embedded image from the display text. When a reply
// carries several images, earlier ones are discarded.
func ExtractImage(text string) (string, *message.ImageData) {
	matches := embeddedImage.FindAllStringSubmatch(text, -1)
	clean := strings.TrimSpace(embeddedImage.ReplaceAllString(text, ""))
	if len(matches) == 0 {
		return clean, nil
	}

	last := matches[len(matches)-1]
	img := &message.ImageData{
		MediaType: "image/" + last[1],
		Data:      last[2],
	}
	if raw, err := base64.StdEncoding.DecodeString(last[2]); err == nil {
		img.Size = len(raw)
	}
	return clean, img
}

// updatedHistory synthesizes native-format history entries so session
// storage stays uniform regardless of which adapter served the request.
func updatedHistory(req provider.CallRequest, text string, img *message.ImageData) []message.HistoryEntry {
	entries := append(append([]message.HistoryEntry{}, req.History...),
		provider.UserEntry(req.Prompt, req.Images))

	var parts []message.Part
	if text != "" {
		parts = append(parts, message.TextPart(text))
	}
	if img != nil {
		parts = append(parts, message.ImagePart(*img))
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
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return provider.TransportError(apiErr.StatusCode, apiErr.Code, apiErr.Message)
	}
	return provider.Normalize(err)
}

// Ensure Adapter implements provider.Adapter.
var _ provider.Adapter = (*Adapter)(nil)
