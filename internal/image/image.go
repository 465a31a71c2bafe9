// Package image provides attachment loading, validation, and data-URI
// helpers.
package image

import (
	"encoding/base64"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/cyrusliu/pixchat/internal/message"
)

// MaxImageSize is the maximum allowed attachment size (5MB).
const MaxImageSize = 5 * 1024 * 1024

// SupportedTypes maps file extensions to MIME types.
var SupportedTypes = map[string]string{
	".png":  "image/png",
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".webp": "image/webp",
	".gif":  "image/gif",
}

// Info holds a loaded, validated attachment.
type Info struct {
	Path      string
	MediaType string
	Data      []byte
	Size      int
	FileName  string
}

// Load reads and validates an image from the given path.
func Load(path string) (*Info, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("invalid path: %w", err)
	}

	stat, err := os.Stat(absPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", path)
		}
		return nil, fmt.Errorf("cannot access file: %w", err)
	}
	if stat.Size() > MaxImageSize {
		return nil, fmt.Errorf("image too large: %d bytes (max %d)", stat.Size(), MaxImageSize)
	}

	ext := strings.ToLower(filepath.Ext(absPath))
	mediaType, ok := SupportedTypes[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported image format: %s", ext)
	}

	data, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}

	// The extension alone is not trusted.
	if !strings.HasPrefix(http.DetectContentType(data), "image/") {
		return nil, fmt.Errorf("file is not a valid image")
	}

	return &Info{
		Path:      absPath,
		MediaType: mediaType,
		Data:      data,
		Size:      len(data),
		FileName:  filepath.Base(absPath),
	}, nil
}

// IsImageFile reports whether the file extension indicates a supported
// image format.
func IsImageFile(path string) bool {
	_, ok := SupportedTypes[strings.ToLower(filepath.Ext(path))]
	return ok
}

// ToBase64 returns the image data as a base64 encoded string.
func (i *Info) ToBase64() string {
	return base64.StdEncoding.EncodeToString(i.Data)
}

// ToProviderData converts the loaded image to the canonical
// attachment shape.
func (i *Info) ToProviderData() message.ImageData {
	return message.ImageData{
		MediaType: i.MediaType,
		Data:      i.ToBase64(),
		FileName:  i.FileName,
		Size:      i.Size,
	}
}

// Decode returns the raw bytes of a base64 attachment payload.
func Decode(img message.ImageData) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(img.Data)
	if err != nil {
		return nil, fmt.Errorf("malformed image data: %w", err)
	}
	return raw, nil
}

// DataURI renders an attachment as a data: URI suitable for
// chat-completion image parts.
func DataURI(img message.ImageData) string {
	return fmt.Sprintf("data:%s;base64,%s", img.MediaType, img.Data)
}

// ParseDataURI splits a data: URI into media type and base64 payload.
// The second return is false when the input is not a base64 data URI.
func ParseDataURI(uri string) (mediaType, data string, ok bool) {
	rest, found := strings.CutPrefix(uri, "data:")
	if !found {
		return "", "", false
	}
	mediaType, data, found = strings.Cut(rest, ";base64,")
	if !found || mediaType == "" || data == "" {
		return "", "", false
	}
	return mediaType, data, true
}

// Extension returns the file extension for a media type, defaulting to
// ".png" for unknown types.
func Extension(mediaType string) string {
	for ext, mt := range SupportedTypes {
		if mt == mediaType && ext != ".jpeg" {
			return ext
		}
	}
	return ".png"
}

// FormatBytes formats a byte count as a human-readable string.
func FormatBytes(bytes int) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := unit, 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}
