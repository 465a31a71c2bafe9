// Package core drives the conversation session: it owns the session
// value, routes sends through the active provider adapter, and keeps a
// best-effort snapshot of every durable state change. All mutation
// happens on the caller's goroutine; the loading flag guarantees at
// most one outbound provider call per session.
package core

import (
	"context"
	"strings"

	"github.com/cyrusliu/pixchat/internal/config"
	"github.com/cyrusliu/pixchat/internal/log"
	"github.com/cyrusliu/pixchat/internal/message"
	"github.com/cyrusliu/pixchat/internal/persist"
	"github.com/cyrusliu/pixchat/internal/provider"
	"github.com/cyrusliu/pixchat/internal/provider/google"
	"github.com/cyrusliu/pixchat/internal/provider/openai"
	"github.com/cyrusliu/pixchat/internal/router"
	"github.com/cyrusliu/pixchat/internal/session"
)

// AdapterFactory creates the adapter for a set of provider settings.
// Injected so tests can run the engine without a real backend.
type AdapterFactory func(ctx context.Context, cfg config.Settings) (provider.Adapter, error)

// DefaultAdapterFactory selects the adapter for the configured
// provider type.
func DefaultAdapterFactory(ctx context.Context, cfg config.Settings) (provider.Adapter, error) {
	switch cfg.Provider {
	case config.ProviderNative:
		return google.New(ctx, cfg)
	case config.ProviderChatCompletion:
		return openai.New(cfg), nil
	default:
		return nil, provider.ConfigError("unknown provider type: " + string(cfg.Provider))
	}
}

// Engine is the session runtime.
type Engine struct {
	Config     config.Accessor
	Persist    *persist.Manager
	NewAdapter AdapterFactory

	sess  session.Session
	armed bool // persistence arms after the first state materialization
}

// New creates an engine with a fresh session.
func New(accessor config.Accessor, pm *persist.Manager) *Engine {
	return &Engine{
		Config:     accessor,
		Persist:    pm,
		NewAdapter: DefaultAdapterFactory,
		sess:       session.New(),
	}
}

// Session returns the current session value.
func (e *Engine) Session() session.Session {
	return e.sess
}

// Restore loads the saved snapshot, if any, and arms reactive
// persistence. The restore itself never triggers a save, so a freshly
// loaded snapshot is not immediately overwritten.
func (e *Engine) Restore() bool {
	defer func() { e.armed = true }()

	snap := e.Persist.Load()
	if snap == nil {
		if on, ok := e.Persist.LoadGuidance(); ok {
			e.sess.Options.Guidance = on
		}
		return false
	}

	e.sess, _ = session.Apply(e.sess, session.RestoreSnapshot{
		Valid:     true,
		SessionID: snap.Payload.SessionID,
		Messages:  snap.Payload.Messages,
		History:   snap.Payload.History,
		Input:     snap.Payload.Input,
		Options:   snap.Payload.Options,
		LastImage: snap.Payload.LastImage,
	})
	if on, ok := e.Persist.LoadGuidance(); ok {
		e.sess.Options.Guidance = on
	}
	e.sess.Saved = true
	e.sess.SavedAt = snap.SavedAt
	return true
}

// Send runs one full exchange for the current input and uploads. Every
// handled failure appends exactly one system error message and
// releases the in-flight flag; the caller only ever sees a resolved
// state update. The result is nil when the send was refused or failed.
func (e *Engine) Send(ctx context.Context, mode router.Mode) *provider.CallResult {
	if e.sess.Loading {
		return nil
	}

	prompt := strings.TrimSpace(e.sess.Input)
	uploads := e.sess.Uploads
	if prompt == "" && len(uploads) == 0 {
		return nil
	}

	images := make([]message.ImageData, 0, len(uploads))
	names := make([]string, 0, len(uploads))
	for _, u := range uploads {
		images = append(images, u.Image)
		names = append(names, u.FileName)
	}
	retry := &message.RetryContext{
		Mode:      string(mode),
		Prompt:    prompt,
		FileNames: names,
		Images:    images,
	}

	// Optimistic: the outgoing message and cleared input survive any
	// failure or cancellation below.
	e.apply(session.SetLoading{On: true})
	e.apply(session.AppendMessage{Message: message.UserMessage(prompt, images)})
	priorHistory := e.sess.History
	e.apply(session.SetInput{})
	e.apply(session.ClearUploads{})

	cfg := e.Config()
	if cfg.BaseURL == "" || cfg.APIKey == "" {
		e.fail(provider.ConfigError("provider URL or API key is not configured"), retry)
		return nil
	}

	adapter, err := e.NewAdapter(ctx, cfg)
	if err != nil {
		e.fail(err, retry)
		return nil
	}

	rt := &router.Router{
		Adapter:       adapter,
		NativeOptions: cfg.Provider == config.ProviderNative,
	}
	req := provider.CallRequest{
		Prompt:  prompt,
		Images:  images,
		History: priorHistory,
		Options: provider.Options{
			AspectRatio: e.sess.Options.AspectRatio,
			ImageSize:   e.sess.Options.ImageSize,
			Guidance:    e.sess.Options.Guidance,
		},
	}

	kind := router.Classify(mode, len(uploads) > 0)
	result, err := rt.Dispatch(ctx, kind, req, e.sess.LastImage)
	if err != nil {
		e.fail(err, retry)
		return nil
	}

	e.apply(session.AppendMessage{
		Message: message.AssistantMessage(result.Text, result.Segments, result.Image),
	})
	e.apply(session.ReplaceHistory{Entries: result.History})
	if result.Image != nil {
		e.apply(session.SetLastImage{Image: result.Image})
	}
	e.apply(session.SetLoading{On: false})
	return result
}

// Retry recomposes and resends the request captured on a failed
// message.
func (e *Engine) Retry(ctx context.Context, retry message.RetryContext) *provider.CallResult {
	e.apply(session.SetInput{Text: retry.Prompt})
	if len(retry.Images) > 0 {
		items := make([]session.Upload, 0, len(retry.Images))
		for i, img := range retry.Images {
			name := img.FileName
			if i < len(retry.FileNames) {
				name = retry.FileNames[i]
			}
			items = append(items, session.Upload{ID: message.NewID(), FileName: name, Image: img})
		}
		e.apply(session.ClearUploads{})
		e.apply(session.AddUploads{Items: items})
	}
	return e.Send(ctx, router.Mode(retry.Mode))
}

// SetInput updates the pending input text.
func (e *Engine) SetInput(text string) {
	e.apply(session.SetInput{Text: text})
}

// SetAspectRatio updates the aspect-ratio option.
func (e *Engine) SetAspectRatio(ratio string) {
	e.apply(session.SetAspectRatio{Ratio: ratio})
}

// SetImageSize updates the image-size option.
func (e *Engine) SetImageSize(size string) {
	e.apply(session.SetImageSize{Size: size})
}

// SetGuidance updates the guidance toggle and persists it as a
// preference in its own slot.
func (e *Engine) SetGuidance(on bool) {
	e.apply(session.SetGuidance{On: on})
	e.Persist.SaveGuidance(on)
}

// AddUploads attaches pending uploads, honoring the per-message cap.
func (e *Engine) AddUploads(items []session.Upload) {
	e.apply(session.AddUploads{Items: items})
}

// RemoveUpload detaches one pending upload.
func (e *Engine) RemoveUpload(id string) {
	e.apply(session.RemoveUpload{ID: id})
}

// DeleteMessage removes one message and re-derives history and the
// last generated image.
func (e *Engine) DeleteMessage(id string) {
	e.apply(session.DeleteMessage{ID: id})
}

// Reset discards all state, begins a fresh session identity, and
// drops the stored snapshot.
func (e *Engine) Reset() {
	e.apply(session.Reset{})
	e.Persist.Clear()
}

// apply runs an action through the reducer, materializes its notices
// as system messages, and snapshots when the action touched durable
// state.
func (e *Engine) apply(action session.Action) {
	next, notices := session.Apply(e.sess, action)
	e.sess = next
	for _, n := range notices {
		e.sess, _ = session.Apply(e.sess, session.AppendMessage{
			Message: message.SystemNotice(n.Text),
		})
	}
	if e.armed && persistent(action) {
		e.snapshot()
	}
}

// fail funnels a handled error into the session: one system error
// message with retry context, then release of the in-flight flag.
func (e *Engine) fail(err error, retry *message.RetryContext) {
	nerr := provider.Normalize(err)
	log.LogError("engine", nerr)
	e.apply(session.AppendMessage{Message: message.SystemError(nerr.Error(), retry)})
	e.apply(session.SetLoading{On: false})
}

// persistent reports whether an action alters state captured in the
// snapshot: messages, history, options, input text, or last image.
func persistent(action session.Action) bool {
	switch action.(type) {
	case session.SetInput, session.SetAspectRatio, session.SetImageSize,
		session.SetGuidance, session.AppendMessage, session.ReplaceHistory,
		session.SetLastImage, session.DeleteMessage, session.Reset:
		return true
	default:
		return false
	}
}

// snapshot captures the current session. Failures degrade inside the
// persistence manager; here they only show up as the unsaved flag.
func (e *Engine) snapshot() {
	result := e.Persist.Save(persist.Payload{
		SessionID: e.sess.ID,
		Messages:  e.sess.Messages,
		History:   e.sess.History,
		Input:     e.sess.Input,
		Options:   e.sess.Options,
		LastImage: e.sess.LastImage,
	})
	e.sess.Saved = !result.SavedAt.IsZero()
	if e.sess.Saved {
		e.sess.SavedAt = result.SavedAt
	}
}
