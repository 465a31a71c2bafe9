// Package history derives the provider-agnostic conversation history
// from the display message timeline. Rebuild is the single source of
// truth for what the model currently remembers: it is re-run in full
// after every deletion instead of patching history incrementally.
package history

import (
	"encoding/base64"

	"github.com/cyrusliu/pixchat/internal/message"
)

// Rebuild replays the timeline into provider history from scratch.
// It is a total, order-preserving fold: system messages are skipped,
// malformed attachments are dropped without aborting their entry, and
// an entry never ends up with zero parts because provider wire formats
// reject empty content lists.
func Rebuild(msgs []message.Message) []message.HistoryEntry {
	entries := make([]message.HistoryEntry, 0, len(msgs))

	for _, msg := range msgs {
		switch msg.Role {
		case message.RoleUser:
			parts := []message.Part{message.TextPart(msg.Content)}
			for _, att := range msg.Attachments {
				if !Embeddable(att) {
					continue
				}
				parts = append(parts, message.ImagePart(att))
			}
			entries = append(entries, message.HistoryEntry{
				Role:  message.HistoryUser,
				Parts: parts,
			})

		case message.RoleAssistant:
			text := message.JoinSegments(msg.Segments)
			if text == "" {
				text = msg.Content
			}

			var parts []message.Part
			if text != "" {
				parts = append(parts, message.TextPart(text))
			}
			if msg.GeneratedImage != nil {
				parts = append(parts, message.ImagePart(*msg.GeneratedImage))
			}
			if len(parts) == 0 {
				parts = append(parts, message.TextPart(""))
			}
			entries = append(entries, message.HistoryEntry{
				Role:  message.HistoryModel,
				Parts: parts,
			})
		}
	}

	return entries
}

// Embeddable reports whether an attachment has a well-formed payload
// that can be sent inline to a provider.
func Embeddable(img message.ImageData) bool {
	if img.MediaType == "" || img.Data == "" {
		return false
	}
	_, err := base64.StdEncoding.DecodeString(img.Data)
	return err == nil
}
