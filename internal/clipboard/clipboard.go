// Package clipboard synchronizes clipboard content between a session
// endpoint and the local desktop, suppressing the echo that would
// otherwise occur when a remote update is applied locally.
package clipboard

import "crypto/sha256"

type ContentType string

const (
	ContentTypeEmpty ContentType = "empty"
	ContentTypeText  ContentType = "text"
	ContentTypeRTF   ContentType = "rtf"
	ContentTypeImage ContentType = "image"
)

// Content is a single clipboard payload. Exactly one of Text/RTF/Image is
// populated, selected by Type.
type Content struct {
	Type        ContentType
	Text        string
	RTF         []byte
	Image       []byte
	ImageFormat string
}

// Provider reads and writes the local system clipboard.
type Provider interface {
	GetContent() (Content, error)
	SetContent(content Content) error
}

func fingerprint(content Content) [32]byte {
	h := sha256.New()
	h.Write([]byte(content.Type))
	h.Write([]byte(content.Text))
	h.Write(content.RTF)
	h.Write(content.Image)
	h.Write([]byte(content.ImageFormat))
	var sum [32]byte
	copy(sum[:], h.Sum(nil))
	return sum
}

// NewProvider creates the platform system clipboard provider.
func NewProvider() Provider {
	return newPlatformProvider()
}
