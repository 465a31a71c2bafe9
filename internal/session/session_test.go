package session

import (
	"fmt"
	"testing"

	"github.com/cyrusliu/pixchat/internal/message"
)

var png = message.ImageData{MediaType: "image/png", Data: "aGVsbG8=", Size: 5}

func uploads(n int) []Upload {
	items := make([]Upload, n)
	for i := range items {
		items[i] = Upload{
			ID:       message.NewID(),
			FileName: fmt.Sprintf("img-%d.png", i),
			Image:    png,
		}
	}
	return items
}

func TestApply_SetInput(t *testing.T) {
	s, notices := Apply(New(), SetInput{Text: "draw a cat"})
	if s.Input != "draw a cat" {
		t.Errorf("Input = %q", s.Input)
	}
	if len(notices) != 0 {
		t.Errorf("notices = %v, want none", notices)
	}
}

func TestApply_AddUploads_Cap(t *testing.T) {
	s, notices := Apply(New(), AddUploads{Items: uploads(16)})
	if len(s.Uploads) != MaxUploads {
		t.Errorf("uploads = %d, want %d", len(s.Uploads), MaxUploads)
	}
	if len(notices) != 1 {
		t.Fatalf("notices = %d, want 1", len(notices))
	}
	want := fmt.Sprintf("Upload limit is %d images per message; 2 not attached.", MaxUploads)
	if notices[0].Text != want {
		t.Errorf("notice = %q, want %q", notices[0].Text, want)
	}
}

func TestApply_AddUploads_FillsRemainingRoom(t *testing.T) {
	s, _ := Apply(New(), AddUploads{Items: uploads(10)})
	s, notices := Apply(s, AddUploads{Items: uploads(10)})
	if len(s.Uploads) != MaxUploads {
		t.Errorf("uploads = %d, want %d", len(s.Uploads), MaxUploads)
	}
	if len(notices) != 1 {
		t.Errorf("notices = %d, want 1", len(notices))
	}
}

func TestApply_RemoveUpload(t *testing.T) {
	items := uploads(3)
	s, _ := Apply(New(), AddUploads{Items: items})
	s, _ = Apply(s, RemoveUpload{ID: items[1].ID})
	if len(s.Uploads) != 2 {
		t.Fatalf("uploads = %d, want 2", len(s.Uploads))
	}
	for _, u := range s.Uploads {
		if u.ID == items[1].ID {
			t.Error("removed upload still present")
		}
	}
}

func TestApply_DeleteMessage_RederivesState(t *testing.T) {
	user := message.UserMessage("make a cat", nil)
	withImg := message.AssistantMessage("here", nil, &png)
	textOnly := message.AssistantMessage("sure", nil, nil)

	s := New()
	for _, m := range []message.Message{user, withImg, textOnly} {
		s, _ = Apply(s, AppendMessage{Message: m})
	}
	s, _ = Apply(s, SetLastImage{Image: &png})

	s, _ = Apply(s, DeleteMessage{ID: withImg.ID})

	if len(s.Messages) != 2 {
		t.Fatalf("messages = %d, want 2", len(s.Messages))
	}
	if len(s.History) != 2 {
		t.Errorf("history = %d entries, want 2", len(s.History))
	}
	// The only image-bearing message is gone, so the pointer clears.
	if s.LastImage != nil {
		t.Error("LastImage survived deletion of its source message")
	}
}

func TestApply_DeleteMessage_UnknownIDIsNoOp(t *testing.T) {
	s, _ := Apply(New(), AppendMessage{Message: message.UserMessage("hi", nil)})
	next, notices := Apply(s, DeleteMessage{ID: "no-such-id"})
	if len(next.Messages) != 1 || len(notices) != 0 {
		t.Errorf("messages = %d, notices = %d", len(next.Messages), len(notices))
	}
}

func TestApply_LastImageRecomputedFromTimeline(t *testing.T) {
	first := message.AssistantMessage("one", nil, &png)
	second := message.AssistantMessage("two", nil, &message.ImageData{MediaType: "image/png", Data: "d29ybGQ=", Size: 5})

	s := New()
	s, _ = Apply(s, AppendMessage{Message: first})
	s, _ = Apply(s, AppendMessage{Message: second})
	s, _ = Apply(s, DeleteMessage{ID: second.ID})

	if s.LastImage == nil || s.LastImage.Data != png.Data {
		t.Errorf("LastImage = %+v, want earlier image", s.LastImage)
	}
}

func TestApply_RestoreSnapshot_Invalid(t *testing.T) {
	s := New()
	before := s.ID
	s, notices := Apply(s, RestoreSnapshot{Valid: false})
	if s.ID != before {
		t.Error("invalid restore replaced the session")
	}
	if len(notices) != 1 || notices[0].Text != "No saved session to restore." {
		t.Errorf("notices = %v", notices)
	}
}

func TestApply_RestoreSnapshot_Valid(t *testing.T) {
	msgs := []message.Message{message.UserMessage("hi", nil)}
	s, notices := Apply(New(), RestoreSnapshot{
		Valid:     true,
		SessionID: "restored-id",
		Messages:  msgs,
		Input:     "pending text",
		Options:   Options{AspectRatio: "16:9", ImageSize: "2K"},
	})
	if len(notices) != 0 {
		t.Errorf("notices = %v", notices)
	}
	if s.ID != "restored-id" || len(s.Messages) != 1 || s.Input != "pending text" {
		t.Errorf("session = %+v", s)
	}
	if s.Options.AspectRatio != "16:9" {
		t.Errorf("AspectRatio = %q", s.Options.AspectRatio)
	}
}

func TestApply_Reset(t *testing.T) {
	s, _ := Apply(New(), AppendMessage{Message: message.UserMessage("hi", nil)})
	before := s.ID
	s, _ = Apply(s, Reset{})
	if s.ID == before {
		t.Error("Reset kept the old session identity")
	}
	if len(s.Messages) != 0 || s.LastImage != nil || s.Input != "" {
		t.Errorf("session not cleared: %+v", s)
	}
	if s.Options != DefaultOptions() {
		t.Errorf("Options = %+v, want defaults", s.Options)
	}
}

func TestApply_DoesNotMutateInput(t *testing.T) {
	s := New()
	s, _ = Apply(s, AppendMessage{Message: message.UserMessage("one", nil)})
	snapshot := len(s.Messages)

	Apply(s, AppendMessage{Message: message.UserMessage("two", nil)})
	if len(s.Messages) != snapshot {
		t.Error("Apply mutated its input session")
	}
}
