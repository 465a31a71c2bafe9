// Package router classifies a user send into one of four request kinds
// and dispatches it to the active provider adapter. Capability and
// precondition checks happen here, before any request is built.
package router

import (
	"context"
	"fmt"

	"github.com/cyrusliu/pixchat/internal/message"
	"github.com/cyrusliu/pixchat/internal/provider"
	"github.com/cyrusliu/pixchat/internal/session"
)

// Mode is the user-selected chat mode.
type Mode string

const (
	ModeGenerate Mode = "generate"
	ModeEdit     Mode = "edit"
	ModeSearch   Mode = "search"
)

// Kind is the outbound request shape. The set is closed; Dispatch
// switches exhaustively over it.
type Kind int

const (
	KindGenerate Kind = iota
	KindEdit
	KindComposite
	KindSearch
)

func (k Kind) String() string {
	switch k {
	case KindEdit:
		return "edit"
	case KindComposite:
		return "composite"
	case KindSearch:
		return "search"
	default:
		return "generate"
	}
}

// Capability maps a request kind to the adapter capability it needs.
func (k Kind) Capability() provider.Capability {
	switch k {
	case KindEdit:
		return provider.CapEdit
	case KindComposite:
		return provider.CapComposite
	case KindSearch:
		return provider.CapSearch
	default:
		return provider.CapGenerate
	}
}

// Classify decides the request kind: edit mode always wins, then any
// pending uploads force a composite, then search, else generate.
func Classify(mode Mode, hasUploads bool) Kind {
	switch {
	case mode == ModeEdit:
		return KindEdit
	case hasUploads:
		return KindComposite
	case mode == ModeSearch:
		return KindSearch
	default:
		return KindGenerate
	}
}

// Router dispatches classified requests to one adapter. NativeOptions
// reports whether the adapter understands the full generation option
// surface; otherwise safe defaults are substituted.
type Router struct {
	Adapter       provider.Adapter
	NativeOptions bool
}

// Dispatch validates capability and state, then invokes the adapter
// operation for the kind. It fails fast, without touching the network,
// when the adapter cannot serve the request.
func (r *Router) Dispatch(ctx context.Context, kind Kind, req provider.CallRequest, lastImage *message.ImageData) (*provider.CallResult, error) {
	if !r.Adapter.Supports(kind.Capability()) {
		return nil, provider.CapabilityError(fmt.Sprintf(
			"%s mode is not supported by the %s provider", kind, r.Adapter.Name()))
	}

	if !r.NativeOptions {
		// The alternate protocol cannot interpret tuned settings.
		req.Options = provider.Options{
			AspectRatio: session.DefaultAspectRatio,
			ImageSize:   session.DefaultImageSize,
		}
	}

	switch kind {
	case KindEdit:
		if lastImage == nil {
			return nil, provider.CapabilityError("nothing to edit yet: generate an image first")
		}
		req.Images = append([]message.ImageData{*lastImage}, req.Images...)
		return r.Adapter.EditImage(ctx, req)
	case KindComposite:
		return r.Adapter.CompositeImages(ctx, req)
	case KindSearch:
		return r.Adapter.GenerateWithSearch(ctx, req)
	default:
		return r.Adapter.GenerateImage(ctx, req)
	}
}
