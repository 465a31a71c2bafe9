package history

import (
	"reflect"
	"testing"

	"github.com/cyrusliu/pixchat/internal/message"
)

var png = message.ImageData{MediaType: "image/png", Data: "aGVsbG8=", Size: 5}

func TestRebuild_SkipsSystemMessages(t *testing.T) {
	msgs := []message.Message{
		message.UserMessage("hello", nil),
		message.SystemNotice("upload limit reached"),
		message.SystemError("boom", nil),
		message.AssistantMessage("hi", nil, nil),
	}

	entries := Rebuild(msgs)
	if len(entries) != 2 {
		t.Fatalf("Rebuild() produced %d entries, want 2", len(entries))
	}
	if entries[0].Role != message.HistoryUser || entries[1].Role != message.HistoryModel {
		t.Errorf("roles = %q, %q", entries[0].Role, entries[1].Role)
	}
}

func TestRebuild_MalformedAttachmentDropped(t *testing.T) {
	bad := message.ImageData{MediaType: "image/png", Data: "not base64!!!"}
	noType := message.ImageData{Data: "aGVsbG8="}
	msgs := []message.Message{
		message.UserMessage("look", []message.ImageData{bad, png, noType}),
	}

	entries := Rebuild(msgs)
	if len(entries) != 1 {
		t.Fatalf("Rebuild() produced %d entries, want 1", len(entries))
	}
	// One text part plus the single well-formed image.
	if len(entries[0].Parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(entries[0].Parts))
	}
	if entries[0].Parts[1].Inline == nil || entries[0].Parts[1].Inline.Data != png.Data {
		t.Error("well-formed attachment missing from entry")
	}
}

func TestRebuild_ThoughtSegmentsExcluded(t *testing.T) {
	msgs := []message.Message{
		message.AssistantMessage("answer", []message.Segment{
			{Text: "let me think", Thought: true},
			{Text: "answer"},
		}, nil),
	}

	entries := Rebuild(msgs)
	if len(entries) != 1 || len(entries[0].Parts) != 1 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Parts[0].Text != "answer" {
		t.Errorf("text = %q, want %q", entries[0].Parts[0].Text, "answer")
	}
}

func TestRebuild_NeverEmitsEmptyEntry(t *testing.T) {
	msgs := []message.Message{
		message.AssistantMessage("", []message.Segment{{Text: "hmm", Thought: true}}, nil),
	}

	entries := Rebuild(msgs)
	if len(entries) != 1 {
		t.Fatalf("entries = %d, want 1", len(entries))
	}
	if len(entries[0].Parts) == 0 {
		t.Fatal("entry has zero parts")
	}
}

func TestRebuild_AssistantContentFallback(t *testing.T) {
	// Assistant replies without segments fall back to plain content.
	msgs := []message.Message{
		message.AssistantMessage("plain text reply", nil, &png),
	}

	entries := Rebuild(msgs)
	if len(entries) != 1 || len(entries[0].Parts) != 2 {
		t.Fatalf("entries = %+v", entries)
	}
	if entries[0].Parts[0].Text != "plain text reply" {
		t.Errorf("text = %q", entries[0].Parts[0].Text)
	}
	if entries[0].Parts[1].Inline == nil {
		t.Error("generated image missing from entry")
	}
}

func TestRebuild_DeleteEquivalence(t *testing.T) {
	// Rebuilding after a deletion equals rebuilding the shorter timeline
	// directly.
	msgs := []message.Message{
		message.UserMessage("one", nil),
		message.AssistantMessage("reply one", nil, &png),
		message.UserMessage("two", []message.ImageData{png}),
		message.AssistantMessage("reply two", nil, nil),
	}

	without := append(append([]message.Message{}, msgs[:1]...), msgs[2:]...)
	if !reflect.DeepEqual(Rebuild(without), Rebuild(without)) {
		t.Fatal("Rebuild is not deterministic")
	}

	got := Rebuild(without)
	want := Rebuild([]message.Message{msgs[0], msgs[2], msgs[3]})
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Rebuild after delete = %+v, want %+v", got, want)
	}
}

func TestEmbeddable(t *testing.T) {
	tests := []struct {
		name     string
		img      message.ImageData
		expected bool
	}{
		{"valid", png, true},
		{"no media type", message.ImageData{Data: "aGVsbG8="}, false},
		{"no data", message.ImageData{MediaType: "image/png"}, false},
		{"bad base64", message.ImageData{MediaType: "image/png", Data: "%%%"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Embeddable(tt.img); got != tt.expected {
				t.Errorf("Embeddable() = %v, want %v", got, tt.expected)
			}
		})
	}
}
