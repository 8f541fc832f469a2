//go:build darwin

package input

import (
	"fmt"
	"os/exec"

	"github.com/relaydesk/fabric/internal/wire"
)

var darwinKeyNames = map[string]string{
	"space": "space", "return": "return", "tab": "tab", "escape": "esc",
	"backspace": "delete", "delete": "fwd-delete",
	"left": "arrow-left", "right": "arrow-right", "up": "arrow-up", "down": "arrow-down",
	"home": "home", "end": "end", "pageup": "page-up", "pagedown": "page-down",
	"shift": "shift", "control": "ctrl", "alt": "alt", "meta": "cmd", "capslock": "capslock",
	";": ";", "=": "=", ",": ",", "-": "-", ".": ".",
	"/": "/", "`": "`", "[": "[", "\\": "\\", "]": "]", "'": "'",
}

type darwinHandler struct{}

func newPlatformHandler() (Handler, error) {
	return &darwinHandler{}, nil
}

func (h *darwinHandler) MouseMove(x, y int) error {
	return exec.Command("cliclick", fmt.Sprintf("m:%d,%d", x, y)).Run()
}

func (h *darwinHandler) MouseButton(button wire.MouseButtonName, pressed bool) error {
	prefix := "d"
	if !pressed {
		prefix = "u"
	}
	btn := "d" + prefix
	switch button {
	case wire.ButtonRight:
		btn = "r" + prefix
	case wire.ButtonMiddle:
		btn = "m" + prefix
	}
	return exec.Command("cliclick", btn+":").Run()
}

func (h *darwinHandler) MouseScroll(dx, dy int) error {
	direction := "down"
	n := dy
	if n < 0 {
		direction = "up"
		n = -n
	}
	script := fmt.Sprintf(`tell application "System Events" to scroll %s by %d`, direction, n)
	return exec.Command("osascript", "-e", script).Run()
}

func (h *darwinHandler) Key(key string, pressed bool, mods wire.Modifiers) error {
	return applyKeyEvent(h, key, pressed, mods)
}

func (h *darwinHandler) Close() error { return nil }

func (h *darwinHandler) translate(token string) (string, bool) {
	if native, ok := darwinKeyNames[token]; ok {
		return native, true
	}
	if len(token) == 1 {
		return token, true
	}
	return "", false
}

func (h *darwinHandler) pressNative(native string) error {
	return exec.Command("cliclick", "kd:"+native).Run()
}

func (h *darwinHandler) releaseNative(native string) error {
	return exec.Command("cliclick", "ku:"+native).Run()
}
