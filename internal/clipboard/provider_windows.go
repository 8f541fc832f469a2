//go:build windows

package clipboard

import (
	"errors"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	user32   = windows.NewLazySystemDLL("user32.dll")
	kernel32 = windows.NewLazySystemDLL("kernel32.dll")

	procOpenClipboard    = user32.NewProc("OpenClipboard")
	procCloseClipboard   = user32.NewProc("CloseClipboard")
	procEmptyClipboard   = user32.NewProc("EmptyClipboard")
	procGetClipboardData = user32.NewProc("GetClipboardData")
	procSetClipboardData = user32.NewProc("SetClipboardData")
	procGlobalAlloc      = kernel32.NewProc("GlobalAlloc")
	procGlobalLock       = kernel32.NewProc("GlobalLock")
	procGlobalUnlock     = kernel32.NewProc("GlobalUnlock")
)

const (
	cfUnicodeText = 13
	gmemMoveable  = 0x0002
)

type windowsProvider struct{}

func newPlatformProvider() Provider {
	return &windowsProvider{}
}

func (p *windowsProvider) GetContent() (Content, error) {
	if r, _, err := procOpenClipboard.Call(0); r == 0 {
		return Content{}, err
	}
	defer procCloseClipboard.Call()

	h, _, err := procGetClipboardData.Call(cfUnicodeText)
	if h == 0 {
		return Content{}, err
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		return Content{}, err
	}
	defer procGlobalUnlock.Call(h)

	text := windows.UTF16PtrToString((*uint16)(unsafe.Pointer(ptr)))
	return Content{Type: ContentTypeText, Text: text}, nil
}

func (p *windowsProvider) SetContent(content Content) error {
	if content.Type != ContentTypeText {
		return errors.New("clipboard: only text is supported on this platform")
	}

	utf16, err := windows.UTF16FromString(content.Text)
	if err != nil {
		return err
	}
	sizeBytes := uintptr(len(utf16) * 2)

	h, _, err := procGlobalAlloc.Call(gmemMoveable, sizeBytes)
	if h == 0 {
		return err
	}
	ptr, _, err := procGlobalLock.Call(h)
	if ptr == 0 {
		return err
	}
	dst := unsafe.Slice((*uint16)(unsafe.Pointer(ptr)), len(utf16))
	copy(dst, utf16)
	procGlobalUnlock.Call(h)

	if r, _, err := procOpenClipboard.Call(0); r == 0 {
		return err
	}
	defer procCloseClipboard.Call()

	procEmptyClipboard.Call()
	if r, _, err := procSetClipboardData.Call(cfUnicodeText, h); r == 0 {
		return err
	}
	return nil
}
