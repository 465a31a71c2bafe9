// Package persist serializes session snapshots to a durable store.
// Persistence is best-effort: a failed write degrades to a slimmed
// snapshot without image data, and a failed fallback is logged and
// swallowed. It never blocks or fails the conversational flow.
package persist

import (
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"github.com/cyrusliu/pixchat/internal/log"
	"github.com/cyrusliu/pixchat/internal/message"
	"github.com/cyrusliu/pixchat/internal/session"
	"github.com/cyrusliu/pixchat/internal/store"
)

// SnapshotVersion tags the envelope format. Load rejects anything else.
const SnapshotVersion = "v1"

const (
	// SnapshotSlot holds the versioned session snapshot.
	SnapshotSlot = "session"
	// PrefsSlot holds the guidance toggle preference.
	PrefsSlot = "prefs"
)

// Payload is the session state captured in a snapshot.
type Payload struct {
	SessionID string                 `json:"sessionId"`
	Messages  []message.Message      `json:"messages"`
	History   []message.HistoryEntry `json:"history"`
	Input     string                 `json:"input,omitempty"`
	Options   session.Options        `json:"options"`
	LastImage *message.ImageData     `json:"lastImage,omitempty"`
}

// Snapshot is the versioned envelope written to the store. Only one
// snapshot exists per session lifetime; writing always supersedes.
type Snapshot struct {
	Version string    `json:"version"`
	SavedAt time.Time `json:"savedAt"`
	Payload Payload   `json:"payload"`
}

// SaveResult reports the outcome of a best-effort save. A zero SavedAt
// means nothing was durably written; DidFallback signals that image
// data was not preserved.
type SaveResult struct {
	SavedAt     time.Time
	DidFallback bool
}

// Manager persists session snapshots and preferences to a BlobStore.
type Manager struct {
	store store.BlobStore
}

// NewManager creates a persistence manager on the given store.
func NewManager(bs store.BlobStore) *Manager {
	return &Manager{store: bs}
}

// Save writes a versioned snapshot. On a write failure (typically
// storage exhaustion) it retries once with a slimmed payload stripped
// of image binaries; if that also fails, it gives up silently.
func (m *Manager) Save(p Payload) SaveResult {
	now := time.Now()
	if err := m.write(Snapshot{Version: SnapshotVersion, SavedAt: now, Payload: p}); err == nil {
		return SaveResult{SavedAt: now}
	} else {
		log.Logger().Warn("snapshot write failed, retrying without image data", zap.Error(err))
	}

	now = time.Now()
	if err := m.write(Snapshot{Version: SnapshotVersion, SavedAt: now, Payload: Slim(p)}); err != nil {
		log.Logger().Warn("fallback snapshot write failed", zap.Error(err))
		return SaveResult{DidFallback: true}
	}
	return SaveResult{SavedAt: now, DidFallback: true}
}

// Load returns the saved snapshot, or nil when it is missing,
// malformed, or carries an unrecognized version tag. It never fails.
func (m *Manager) Load() *Snapshot {
	data, ok, err := m.store.Get(SnapshotSlot)
	if err != nil {
		log.Logger().Warn("snapshot read failed", zap.Error(err))
		return nil
	}
	if !ok {
		return nil
	}

	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Logger().Warn("snapshot parse failed", zap.Error(err))
		return nil
	}
	if snap.Version != SnapshotVersion {
		return nil
	}
	return &snap
}

// Clear removes the snapshot. Clearing an empty slot is a no-op.
func (m *Manager) Clear() {
	if err := m.store.Delete(SnapshotSlot); err != nil {
		log.Logger().Warn("snapshot delete failed", zap.Error(err))
	}
}

func (m *Manager) write(snap Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	return m.store.Put(SnapshotSlot, data)
}

// Slim strips image binaries from a payload: attachments and generated
// images leave the timeline, history keeps only its text parts, and
// the last-image pointer is cleared.
func Slim(p Payload) Payload {
	slim := p
	slim.LastImage = nil

	slim.Messages = make([]message.Message, len(p.Messages))
	for i, msg := range p.Messages {
		msg.Attachments = nil
		msg.GeneratedImage = nil
		if msg.Retry != nil {
			retry := *msg.Retry
			retry.Images = nil
			msg.Retry = &retry
		}
		slim.Messages[i] = msg
	}

	slim.History = make([]message.HistoryEntry, 0, len(p.History))
	for _, entry := range p.History {
		var parts []message.Part
		for _, part := range entry.Parts {
			if part.Inline != nil || part.Thought || part.Text == "" {
				continue
			}
			parts = append(parts, part)
		}
		if len(parts) == 0 {
			parts = append(parts, message.TextPart(""))
		}
		slim.History = append(slim.History, message.HistoryEntry{Role: entry.Role, Parts: parts})
	}

	return slim
}

// prefs is the payload of the preference slot.
type prefs struct {
	Guidance bool `json:"guidance"`
}

// SaveGuidance persists the guidance toggle. Best-effort like Save.
func (m *Manager) SaveGuidance(on bool) {
	data, err := json.Marshal(prefs{Guidance: on})
	if err != nil {
		return
	}
	if err := m.store.Put(PrefsSlot, data); err != nil {
		log.Logger().Warn("preference write failed", zap.Error(err))
	}
}

// LoadGuidance returns the saved guidance toggle and whether one exists.
func (m *Manager) LoadGuidance() (bool, bool) {
	data, ok, err := m.store.Get(PrefsSlot)
	if err != nil || !ok {
		return false, false
	}
	var p prefs
	if err := json.Unmarshal(data, &p); err != nil {
		return false, false
	}
	return p.Guidance, true
}
