//go:build windows

package input

import (
	"unsafe"

	"golang.org/x/sys/windows"

	"github.com/relaydesk/fabric/internal/wire"
)

var (
	user32           = windows.NewLazySystemDLL("user32.dll")
	procSendInput    = user32.NewProc("SendInput")
	procSetCursorPos = user32.NewProc("SetCursorPos")
)

const (
	inputMouse    = 0
	inputKeyboard = 1

	mouseEventFMove       = 0x0001
	mouseEventFLeftDown   = 0x0002
	mouseEventFLeftUp     = 0x0004
	mouseEventFRightDown  = 0x0008
	mouseEventFRightUp    = 0x0010
	mouseEventFMiddleDown = 0x0020
	mouseEventFMiddleUp   = 0x0040
	mouseEventFXDown      = 0x0080
	mouseEventFXUp        = 0x0100
	mouseEventFWheel      = 0x0800
	mouseEventFHWheel     = 0x1000

	keyEventFKeyUp    = 0x0002
	keyEventFExtended = 0x0001

	vkShift   = 0x10
	vkControl = 0x11
	vkMenu    = 0x12
	vkLWin    = 0x5B
)

var windowsVirtualKeys = map[string]uint16{
	"space": 0x20, "return": 0x0D, "tab": 0x09, "escape": 0x1B,
	"backspace": 0x08, "delete": 0x2E,
	"left": 0x25, "right": 0x27, "up": 0x26, "down": 0x28,
	"home": 0x24, "end": 0x23, "pageup": 0x21, "pagedown": 0x22,
	"shift": vkShift, "control": vkControl, "alt": vkMenu, "meta": vkLWin, "capslock": 0x14,
	";": 0xBA, "=": 0xBB, ",": 0xBC, "-": 0xBD, ".": 0xBE,
	"/": 0xBF, "`": 0xC0, "[": 0xDB, "\\": 0xDC, "]": 0xDD, "'": 0xDE,
}

type mouseInput struct {
	dx, dy      int32
	mouseData   uint32
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type keybdInput struct {
	wVk         uint16
	wScan       uint16
	dwFlags     uint32
	time        uint32
	dwExtraInfo uintptr
}

type rawInput struct {
	inputType uint32
	_         uint32 // padding to align the union on amd64
	data      [24]byte
}

type winHandler struct{}

func newPlatformHandler() (Handler, error) {
	return &winHandler{}, nil
}

func sendMouseInput(mi mouseInput) error {
	in := rawInput{inputType: inputMouse}
	*(*mouseInput)(unsafe.Pointer(&in.data[0])) = mi
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	return nil
}

func sendKeyInput(ki keybdInput) error {
	in := rawInput{inputType: inputKeyboard}
	*(*keybdInput)(unsafe.Pointer(&in.data[0])) = ki
	procSendInput.Call(1, uintptr(unsafe.Pointer(&in)), unsafe.Sizeof(in))
	return nil
}

func (h *winHandler) MouseMove(x, y int) error {
	procSetCursorPos.Call(uintptr(x), uintptr(y))
	return nil
}

func (h *winHandler) MouseButton(button wire.MouseButtonName, pressed bool) error {
	var flag uint32
	switch button {
	case wire.ButtonRight:
		flag = mouseEventFRightDown
		if !pressed {
			flag = mouseEventFRightUp
		}
	case wire.ButtonMiddle:
		flag = mouseEventFMiddleDown
		if !pressed {
			flag = mouseEventFMiddleUp
		}
	case wire.ButtonBack, wire.ButtonForward:
		flag = mouseEventFXDown
		if !pressed {
			flag = mouseEventFXUp
		}
	default:
		flag = mouseEventFLeftDown
		if !pressed {
			flag = mouseEventFLeftUp
		}
	}
	return sendMouseInput(mouseInput{dwFlags: flag})
}

func (h *winHandler) MouseScroll(dx, dy int) error {
	if dy != 0 {
		if err := sendMouseInput(mouseInput{mouseData: uint32(int32(dy * 120)), dwFlags: mouseEventFWheel}); err != nil {
			return err
		}
	}
	if dx != 0 {
		if err := sendMouseInput(mouseInput{mouseData: uint32(int32(dx * 120)), dwFlags: mouseEventFHWheel}); err != nil {
			return err
		}
	}
	return nil
}

func (h *winHandler) Key(key string, pressed bool, mods wire.Modifiers) error {
	return applyKeyEvent(h, key, pressed, mods)
}

func (h *winHandler) Close() error { return nil }

func (h *winHandler) translate(token string) (string, bool) {
	if _, ok := windowsVirtualKeys[token]; ok {
		return token, true
	}
	if len(token) == 1 {
		return token, true
	}
	return "", false
}

func vkForNative(native string) uint16 {
	if vk, ok := windowsVirtualKeys[native]; ok {
		return vk
	}
	// Bare letter/digit: virtual-key code equals the uppercase ASCII value.
	r := native[0]
	if r >= 'a' && r <= 'z' {
		r -= 'a' - 'A'
	}
	return uint16(r)
}

func (h *winHandler) pressNative(native string) error {
	return sendKeyInput(keybdInput{wVk: vkForNative(native)})
}

func (h *winHandler) releaseNative(native string) error {
	return sendKeyInput(keybdInput{wVk: vkForNative(native), dwFlags: keyEventFKeyUp})
}
