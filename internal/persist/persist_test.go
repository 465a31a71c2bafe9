package persist

import (
	"strings"
	"testing"

	"github.com/cyrusliu/pixchat/internal/message"
	"github.com/cyrusliu/pixchat/internal/session"
	"github.com/cyrusliu/pixchat/internal/store"
)

// A few KB of valid base64 so the full snapshot dwarfs the slim one.
var png = message.ImageData{MediaType: "image/png", Data: strings.Repeat("QUJD", 1024), Size: 3072}

func newManager(t *testing.T) (*Manager, *store.FileStore) {
	t.Helper()
	fs, err := store.NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	return NewManager(fs), fs
}

func payload() Payload {
	user := message.UserMessage("draw", []message.ImageData{png})
	asst := message.AssistantMessage("done", nil, &png)
	return Payload{
		SessionID: "sess-1",
		Messages:  []message.Message{user, asst},
		History: []message.HistoryEntry{
			{Role: message.HistoryUser, Parts: []message.Part{message.TextPart("draw"), message.ImagePart(png)}},
			{Role: message.HistoryModel, Parts: []message.Part{message.TextPart("done"), message.ImagePart(png)}},
		},
		Input:     "next prompt",
		Options:   session.Options{AspectRatio: "16:9", ImageSize: "2K", Guidance: true},
		LastImage: &png,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	m, _ := newManager(t)

	res := m.Save(payload())
	if res.SavedAt.IsZero() {
		t.Fatal("Save() reported nothing written")
	}
	if res.DidFallback {
		t.Error("DidFallback = true on a clean save")
	}

	snap := m.Load()
	if snap == nil {
		t.Fatal("Load() = nil after save")
	}
	if snap.Version != SnapshotVersion {
		t.Errorf("Version = %q", snap.Version)
	}
	if snap.Payload.SessionID != "sess-1" || len(snap.Payload.Messages) != 2 {
		t.Errorf("payload = %+v", snap.Payload)
	}
	if snap.Payload.LastImage == nil || snap.Payload.LastImage.Data != png.Data {
		t.Error("LastImage lost in round trip")
	}
	if !snap.Payload.Options.Guidance {
		t.Error("Options lost in round trip")
	}
}

func TestSave_QuotaFallback(t *testing.T) {
	m, fs := newManager(t)

	// Tight enough to reject the full payload but admit the slim one.
	fs.SetQuota(2048)

	res := m.Save(payload())
	if !res.DidFallback {
		t.Fatal("DidFallback = false, want fallback save")
	}
	if res.SavedAt.IsZero() {
		t.Fatal("fallback save reported nothing written")
	}

	snap := m.Load()
	if snap == nil {
		t.Fatal("Load() = nil after fallback save")
	}
	if snap.Payload.LastImage != nil {
		t.Error("fallback kept LastImage")
	}
	for _, msg := range snap.Payload.Messages {
		if len(msg.Attachments) != 0 || msg.GeneratedImage != nil {
			t.Errorf("fallback kept image data on message %q", msg.ID)
		}
	}
	for _, entry := range snap.Payload.History {
		for _, part := range entry.Parts {
			if part.Inline != nil {
				t.Error("fallback kept an inline history image")
			}
		}
	}
}

func TestSave_TotalFailure(t *testing.T) {
	m, fs := newManager(t)
	fs.SetQuota(1)

	res := m.Save(payload())
	if !res.SavedAt.IsZero() {
		t.Error("SavedAt set although nothing could be written")
	}
	if m.Load() != nil {
		t.Error("Load() returned a snapshot after a total write failure")
	}
}

func TestLoad_Missing(t *testing.T) {
	m, _ := newManager(t)
	if m.Load() != nil {
		t.Error("Load() != nil on empty store")
	}
}

func TestLoad_Malformed(t *testing.T) {
	m, fs := newManager(t)
	if err := fs.Put(SnapshotSlot, []byte("{not json")); err != nil {
		t.Fatal(err)
	}
	if m.Load() != nil {
		t.Error("Load() != nil on malformed snapshot")
	}
}

func TestLoad_VersionMismatch(t *testing.T) {
	m, fs := newManager(t)
	if err := fs.Put(SnapshotSlot, []byte(`{"version":"v0","payload":{}}`)); err != nil {
		t.Fatal(err)
	}
	if m.Load() != nil {
		t.Error("Load() != nil on unrecognized version")
	}
}

func TestClear(t *testing.T) {
	m, _ := newManager(t)
	m.Save(payload())
	m.Clear()
	if m.Load() != nil {
		t.Error("snapshot survived Clear()")
	}
	// Clearing again must not panic or error.
	m.Clear()
}

func TestSlim_EmptyEntryPlaceholder(t *testing.T) {
	p := Payload{
		History: []message.HistoryEntry{
			{Role: message.HistoryModel, Parts: []message.Part{message.ImagePart(png)}},
		},
	}
	slim := Slim(p)
	if len(slim.History) != 1 || len(slim.History[0].Parts) != 1 {
		t.Fatalf("slim history = %+v", slim.History)
	}
	if slim.History[0].Parts[0].Inline != nil {
		t.Error("image part survived Slim")
	}
}

func TestGuidancePreference(t *testing.T) {
	m, _ := newManager(t)

	if _, ok := m.LoadGuidance(); ok {
		t.Error("LoadGuidance() ok on empty store")
	}

	m.SaveGuidance(true)
	on, ok := m.LoadGuidance()
	if !ok || !on {
		t.Errorf("LoadGuidance() = (%v, %v), want (true, true)", on, ok)
	}

	m.SaveGuidance(false)
	on, ok = m.LoadGuidance()
	if !ok || on {
		t.Errorf("LoadGuidance() = (%v, %v), want (false, true)", on, ok)
	}
}
