package input

import (
	"unicode"

	"github.com/relaydesk/fabric/internal/wire"
)

// reservedKeys are the spec's platform-independent key tokens beyond bare
// letters and digits.
var reservedKeys = map[string]bool{
	"space": true, "return": true, "tab": true, "escape": true,
	"backspace": true, "delete": true,
	"left": true, "right": true, "up": true, "down": true,
	"home": true, "end": true, "pageup": true, "pagedown": true,
	"shift": true, "control": true, "alt": true, "meta": true, "capslock": true,
}

var punctuationKeys = map[string]bool{
	";": true, "=": true, ",": true, "-": true, ".": true, "/": true,
	"`": true, "[": true, "\\": true, "]": true, "'": true,
}

// ValidToken reports whether key is one of the tokens the spec defines:
// lowercase letters, single digits, reserved names, or ASCII punctuation.
func ValidToken(key string) bool {
	if reservedKeys[key] || punctuationKeys[key] {
		return true
	}
	if len(key) != 1 {
		return false
	}
	r := rune(key[0])
	return (r >= 'a' && r <= 'z') || unicode.IsDigit(r)
}

// nativeKeyer is implemented by each platform handler to translate a token
// to its native representation and press/release that native key. Sharing
// this orchestration means the modifier press/release ordering invariant
// has exactly one implementation instead of one per platform file.
type nativeKeyer interface {
	translate(token string) (native string, ok bool)
	pressNative(native string) error
	releaseNative(native string) error
}

// modifierPressOrder is the spec's fixed ordering: shift, ctrl, alt, meta.
func modifierPressOrder(m wire.Modifiers) []string {
	var order []string
	if m.Shift {
		order = append(order, "shift")
	}
	if m.Ctrl {
		order = append(order, "control")
	}
	if m.Alt {
		order = append(order, "alt")
	}
	if m.Meta {
		order = append(order, "meta")
	}
	return order
}

func modifierReleaseOrder(m wire.Modifiers) []string {
	order := modifierPressOrder(m)
	for i, j := 0, len(order)-1; i < j; i, j = i+1, j-1 {
		order[i], order[j] = order[j], order[i]
	}
	return order
}

// applyKeyEvent presses each requested modifier in order shift -> ctrl ->
// alt -> meta, then the key, on press; on release it releases the key then
// the modifiers in reverse order. Shared by every platform's Key().
func applyKeyEvent(nk nativeKeyer, key string, pressed bool, mods wire.Modifiers) error {
	if !ValidToken(key) {
		return ErrUnknownKey
	}
	native, ok := nk.translate(key)
	if !ok {
		return ErrUnknownKey
	}

	if pressed {
		for _, m := range modifierPressOrder(mods) {
			mn, ok := nk.translate(m)
			if !ok {
				continue
			}
			if err := nk.pressNative(mn); err != nil {
				return err
			}
		}
		return nk.pressNative(native)
	}

	if err := nk.releaseNative(native); err != nil {
		return err
	}
	for _, m := range modifierReleaseOrder(mods) {
		mn, ok := nk.translate(m)
		if !ok {
			continue
		}
		if err := nk.releaseNative(mn); err != nil {
			return err
		}
	}
	return nil
}
