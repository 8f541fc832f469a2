//go:build linux

package input

import (
	"os/exec"
	"strconv"

	"github.com/relaydesk/fabric/internal/wire"
)

var linuxKeyNames = map[string]string{
	"space": "space", "return": "Return", "tab": "Tab", "escape": "Escape",
	"backspace": "BackSpace", "delete": "Delete",
	"left": "Left", "right": "Right", "up": "Up", "down": "Down",
	"home": "Home", "end": "End", "pageup": "Page_Up", "pagedown": "Page_Down",
	"shift": "shift", "control": "ctrl", "alt": "alt", "meta": "super", "capslock": "Caps_Lock",
	";": "semicolon", "=": "equal", ",": "comma", "-": "minus", ".": "period",
	"/": "slash", "`": "grave", "[": "bracketleft", "\\": "backslash", "]": "bracketright", "'": "apostrophe",
}

type linuxHandler struct{}

func newPlatformHandler() (Handler, error) {
	return &linuxHandler{}, nil
}

func (h *linuxHandler) MouseMove(x, y int) error {
	return exec.Command("xdotool", "mousemove", strconv.Itoa(x), strconv.Itoa(y)).Run()
}

func (h *linuxHandler) MouseButton(button wire.MouseButtonName, pressed bool) error {
	btn := xdotoolButton(button)
	action := "mousedown"
	if !pressed {
		action = "mouseup"
	}
	return exec.Command("xdotool", action, btn).Run()
}

func (h *linuxHandler) MouseScroll(dx, dy int) error {
	if dy != 0 {
		direction := "4"
		n := dy
		if n < 0 {
			direction = "5"
			n = -n
		}
		if err := clickN("xdotool", direction, n); err != nil {
			return err
		}
	}
	if dx != 0 {
		direction := "6"
		n := dx
		if n < 0 {
			direction = "7"
			n = -n
		}
		if err := clickN("xdotool", direction, n); err != nil {
			return err
		}
	}
	return nil
}

func clickN(bin, button string, n int) error {
	for i := 0; i < n; i++ {
		if err := exec.Command(bin, "click", button).Run(); err != nil {
			return err
		}
	}
	return nil
}

func (h *linuxHandler) Key(key string, pressed bool, mods wire.Modifiers) error {
	return applyKeyEvent(h, key, pressed, mods)
}

func (h *linuxHandler) Close() error { return nil }

func (h *linuxHandler) translate(token string) (string, bool) {
	if native, ok := linuxKeyNames[token]; ok {
		return native, true
	}
	if len(token) == 1 {
		return token, true
	}
	return "", false
}

func (h *linuxHandler) pressNative(native string) error {
	return exec.Command("xdotool", "keydown", native).Run()
}

func (h *linuxHandler) releaseNative(native string) error {
	return exec.Command("xdotool", "keyup", native).Run()
}

func xdotoolButton(b wire.MouseButtonName) string {
	switch b {
	case wire.ButtonRight:
		return "3"
	case wire.ButtonMiddle:
		return "2"
	case wire.ButtonBack:
		return "8"
	case wire.ButtonForward:
		return "9"
	default:
		return "1"
	}
}
