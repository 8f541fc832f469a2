//go:build darwin

package clipboard

import (
	"bytes"
	"errors"
	"os/exec"
)

// darwinProvider shells out to pbcopy/pbpaste. Rich content (RTF, images)
// needs the NSPasteboard API; text covers the common path without CGO.
type darwinProvider struct{}

func newPlatformProvider() Provider {
	return &darwinProvider{}
}

func (p *darwinProvider) GetContent() (Content, error) {
	out, err := exec.Command("pbpaste").Output()
	if err != nil {
		return Content{}, err
	}
	if len(out) == 0 {
		return Content{}, errors.New("clipboard: empty")
	}
	return Content{Type: ContentTypeText, Text: string(out)}, nil
}

func (p *darwinProvider) SetContent(content Content) error {
	if content.Type != ContentTypeText {
		return errors.New("clipboard: only text is supported on this platform")
	}
	cmd := exec.Command("pbcopy")
	cmd.Stdin = bytes.NewReader([]byte(content.Text))
	return cmd.Run()
}
