// Package session owns the conversation session state machine: a pure
// reducer over a closed set of actions. Exactly one session is active
// per process; all mutation flows through Apply.
package session

import (
	"fmt"
	"time"

	"github.com/cyrusliu/pixchat/internal/history"
	"github.com/cyrusliu/pixchat/internal/message"
)

// MaxUploads bounds the pending uploads attached to one outgoing message.
const MaxUploads = 14

const (
	DefaultAspectRatio = "1:1"
	DefaultImageSize   = "1K"
)

// Options are the generation options attached to outgoing requests.
type Options struct {
	AspectRatio string `json:"aspect_ratio"`
	ImageSize   string `json:"image_size"`
	Guidance    bool   `json:"guidance"`
}

// DefaultOptions returns the safe defaults every provider can interpret.
func DefaultOptions() Options {
	return Options{AspectRatio: DefaultAspectRatio, ImageSize: DefaultImageSize}
}

// Upload is a pending image attachment for the next outgoing message.
type Upload struct {
	ID       string            `json:"id"`
	FileName string            `json:"file_name"`
	Image    message.ImageData `json:"image"`
}

// Session is the single active conversation state.
type Session struct {
	ID        string                 `json:"id"`
	Messages  []message.Message      `json:"messages"`
	History   []message.HistoryEntry `json:"history"`
	Input     string                 `json:"input"`
	Options   Options                `json:"options"`
	Uploads   []Upload               `json:"uploads,omitempty"`
	LastImage *message.ImageData     `json:"last_image,omitempty"`

	// Runtime state, never persisted.
	Loading bool      `json:"-"`
	Saved   bool      `json:"-"`
	SavedAt time.Time `json:"-"`
}

// New creates a fresh session with a new identity.
func New() Session {
	return Session{
		ID:      message.NewID(),
		Options: DefaultOptions(),
	}
}

// Notice is a user-visible outcome of an action that could not be
// applied in full (e.g. an over-limit upload batch).
type Notice struct {
	Text string
}

// Action is a state transition applied by Apply. The set is closed:
// Apply switches exhaustively over every variant, so adding an action
// is a compile-time-checked extension.
type Action interface{ isAction() }

type SetInput struct{ Text string }

type SetAspectRatio struct{ Ratio string }

type SetImageSize struct{ Size string }

type SetGuidance struct{ On bool }

// AddUploads admits up to MaxUploads pending uploads; the excess is
// rejected with a single notice, never silently dropped.
type AddUploads struct{ Items []Upload }

type RemoveUpload struct{ ID string }

type ClearUploads struct{}

type AppendMessage struct{ Message message.Message }

type ReplaceHistory struct{ Entries []message.HistoryEntry }

type SetLastImage struct{ Image *message.ImageData }

type SetLoading struct{ On bool }

// DeleteMessage removes exactly one message by id, then re-derives
// provider history and the last generated image from what remains.
type DeleteMessage struct{ ID string }

// RestoreSnapshot replaces the session with a previously saved state.
// Valid is false when no usable snapshot exists; the action is then a
// no-op apart from its notice.
type RestoreSnapshot struct {
	Valid     bool
	SessionID string
	Messages  []message.Message
	History   []message.HistoryEntry
	Input     string
	Options   Options
	LastImage *message.ImageData
}

// Reset discards all state and begins a fresh session identity.
type Reset struct{}

func (SetInput) isAction()        {}
func (SetAspectRatio) isAction()  {}
func (SetImageSize) isAction()    {}
func (SetGuidance) isAction()     {}
func (AddUploads) isAction()      {}
func (RemoveUpload) isAction()    {}
func (ClearUploads) isAction()    {}
func (AppendMessage) isAction()   {}
func (ReplaceHistory) isAction()  {}
func (SetLastImage) isAction()    {}
func (SetLoading) isAction()      {}
func (DeleteMessage) isAction()   {}
func (RestoreSnapshot) isAction() {}
func (Reset) isAction()           {}

// Apply maps an action deterministically onto a new session value.
// Actions never partially fail; inputs that cannot be honored in full
// surface as notices.
func Apply(s Session, action Action) (Session, []Notice) {
	switch act := action.(type) {
	case SetInput:
		s.Input = act.Text

	case SetAspectRatio:
		s.Options.AspectRatio = act.Ratio

	case SetImageSize:
		s.Options.ImageSize = act.Size

	case SetGuidance:
		s.Options.Guidance = act.On

	case AddUploads:
		room := MaxUploads - len(s.Uploads)
		if room < 0 {
			room = 0
		}
		admitted := act.Items
		var notices []Notice
		if len(admitted) > room {
			admitted = admitted[:room]
			notices = append(notices, Notice{Text: fmt.Sprintf(
				"Upload limit is %d images per message; %d not attached.",
				MaxUploads, len(act.Items)-room)})
		}
		s.Uploads = append(append([]Upload{}, s.Uploads...), admitted...)
		return s, notices

	case RemoveUpload:
		kept := make([]Upload, 0, len(s.Uploads))
		for _, u := range s.Uploads {
			if u.ID != act.ID {
				kept = append(kept, u)
			}
		}
		s.Uploads = kept

	case ClearUploads:
		s.Uploads = nil

	case AppendMessage:
		s.Messages = append(append([]message.Message{}, s.Messages...), act.Message)

	case ReplaceHistory:
		s.History = act.Entries

	case SetLastImage:
		s.LastImage = act.Image

	case SetLoading:
		s.Loading = act.On

	case DeleteMessage:
		kept := make([]message.Message, 0, len(s.Messages))
		deleted := false
		for _, m := range s.Messages {
			if !deleted && m.ID == act.ID {
				deleted = true
				continue
			}
			kept = append(kept, m)
		}
		s.Messages = kept
		s.History = history.Rebuild(kept)
		s.LastImage = latestImage(kept)

	case RestoreSnapshot:
		if !act.Valid {
			return s, []Notice{{Text: "No saved session to restore."}}
		}
		restored := Session{
			ID:        act.SessionID,
			Messages:  act.Messages,
			History:   act.History,
			Input:     act.Input,
			Options:   act.Options,
			LastImage: act.LastImage,
		}
		if restored.ID == "" {
			restored.ID = message.NewID()
		}
		if restored.Options.AspectRatio == "" {
			restored.Options.AspectRatio = DefaultAspectRatio
		}
		if restored.Options.ImageSize == "" {
			restored.Options.ImageSize = DefaultImageSize
		}
		return restored, nil

	case Reset:
		return New(), nil
	}

	return s, nil
}

// latestImage returns the image payload of the most recent assistant
// message that carries one, or nil. The last-image pointer is always
// recomputed from the timeline, never independently mutated.
func latestImage(msgs []message.Message) *message.ImageData {
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Role == message.RoleAssistant && msgs[i].GeneratedImage != nil {
			img := *msgs[i].GeneratedImage
			return &img
		}
	}
	return nil
}
