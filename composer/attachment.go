package composer

import (
	"encoding/base64"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"
)

// Attachment is a file picked for upload.
type Attachment struct {
	Name      string
	MediaType string
	Data      []byte
}

// Size returns the attachment size in bytes.
func (a *Attachment) Size() int64 {
	return int64(len(a.Data))
}

// IsImage reports whether the declared media type is an image.
func (a *Attachment) IsImage() bool {
	return strings.HasPrefix(strings.ToLower(a.MediaType), "image/")
}

// LoadAttachment reads path into an Attachment. The media type comes from
// the file extension, falling back to content sniffing.
func LoadAttachment(path string) (*Attachment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read attachment: %w", err)
	}

	mediaType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mediaType == "" {
		mediaType = http.DetectContentType(data)
	}
	if parsed, _, err := mime.ParseMediaType(mediaType); err == nil {
		mediaType = parsed
	}

	return &Attachment{
		Name:      filepath.Base(path),
		MediaType: mediaType,
		Data:      data,
	}, nil
}

// dataURL renders the attachment as a base64 data URL for previews.
func dataURL(a *Attachment) string {
	return "data:" + a.MediaType + ";base64," + base64.StdEncoding.EncodeToString(a.Data)
}
