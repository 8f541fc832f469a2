//go:build linux

package clipboard

import (
	"bytes"
	"errors"
	"os/exec"
)

type linuxProvider struct{}

func newPlatformProvider() Provider {
	return &linuxProvider{}
}

func (p *linuxProvider) GetContent() (Content, error) {
	if data, err := readTarget("image/png"); err == nil && len(data) > 0 {
		return Content{Type: ContentTypeImage, Image: data, ImageFormat: "png"}, nil
	}
	if data, err := readTarget("text/rtf"); err == nil && len(data) > 0 {
		return Content{Type: ContentTypeRTF, RTF: data}, nil
	}
	if data, err := readTarget("text/plain;charset=utf-8"); err == nil && len(data) > 0 {
		return Content{Type: ContentTypeText, Text: string(data)}, nil
	}
	return Content{}, errors.New("clipboard: no supported format")
}

func (p *linuxProvider) SetContent(content Content) error {
	switch content.Type {
	case ContentTypeText:
		return writeTarget("text/plain;charset=utf-8", []byte(content.Text))
	case ContentTypeRTF:
		return writeTarget("text/rtf", content.RTF)
	case ContentTypeImage:
		return writeTarget("image/"+content.ImageFormat, content.Image)
	default:
		return errors.New("clipboard: unsupported content type")
	}
}

func readTarget(target string) ([]byte, error) {
	if path, err := exec.LookPath("xclip"); err == nil {
		return exec.Command(path, "-selection", "clipboard", "-t", target, "-o").Output()
	}
	if path, err := exec.LookPath("xsel"); err == nil {
		return exec.Command(path, "-b", "-o", "-t", target).Output()
	}
	return nil, errors.New("clipboard: xclip or xsel required")
}

func writeTarget(target string, data []byte) error {
	if len(data) == 0 {
		return errors.New("clipboard: empty data")
	}
	if path, err := exec.LookPath("xclip"); err == nil {
		cmd := exec.Command(path, "-selection", "clipboard", "-t", target, "-i")
		cmd.Stdin = bytes.NewReader(data)
		return cmd.Run()
	}
	if path, err := exec.LookPath("xsel"); err == nil {
		cmd := exec.Command(path, "-b", "-i", "-t", target)
		cmd.Stdin = bytes.NewReader(data)
		return cmd.Run()
	}
	return errors.New("clipboard: xclip or xsel required")
}
