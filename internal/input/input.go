// Package input implements the platform input synthesizer: mouse move,
// mouse button, scroll, and modifier-aware key press/release.
package input

import (
	"errors"

	"github.com/relaydesk/fabric/internal/logging"
	"github.com/relaydesk/fabric/internal/wire"
)

var log = logging.L("input")

// ErrUnknownKey is returned when a key token has no native mapping.
var ErrUnknownKey = errors.New("unknown key token")

var errUnsupportedPlatform = errors.New("input synthesis not supported on this platform")

// Handler is the platform input synthesizer contract. Coordinates are in
// screen pixels of the target display; implementations convert to whatever
// native unit the platform API expects.
type Handler interface {
	MouseMove(x, y int) error
	MouseButton(button wire.MouseButtonName, pressed bool) error
	MouseScroll(dx, dy int) error
	Key(key string, pressed bool, mods wire.Modifiers) error
	Close() error
}

// New creates a platform-specific input handler.
func New() (Handler, error) {
	return newPlatformHandler()
}
