// Package capture implements the platform screen-grabber abstraction: start,
// capture a frame, stop. Frames are opaque RGBA byte buffers; codec and
// compression concerns live outside this package.
package capture

import (
	"errors"

	"github.com/relaydesk/fabric/internal/logging"
)

var log = logging.L("capture")

// ErrNotSupported is returned when screen capture is not supported on the platform.
var ErrNotSupported = errors.New("screen capture not supported on this platform")

// ErrPermissionDenied is returned when screen capture permissions are not granted.
var ErrPermissionDenied = errors.New("screen capture permission denied")

// ErrDisplayNotFound is returned when the specified display is not found.
var ErrDisplayNotFound = errors.New("display not found")

// ErrNotStarted is returned by CaptureFrame before Start has succeeded.
var ErrNotStarted = errors.New("capturer not started")

// ErrRetry signals a transient miss (display asleep, would-block); callers
// should sleep one tick and try again rather than treating it as fatal.
var ErrRetry = errors.New("capture retry")

// Frame is an opaque RGBA screen grab, per spec's Frame data model: stride
// must be >= 4*width and len(Data) >= stride*height.
type Frame struct {
	Data       []byte
	Width      int
	Height     int
	Stride     int
	TimestampMs int64
	IsKeyframe bool
}

// Config configures a platform capturer.
type Config struct {
	// DisplayIndex names a display (0 = primary). No platform capturer
	// reads it: each one captures its platform's default display.
	DisplayIndex int
	// ScaleFactor names a downscale (1.0 = full resolution). No platform
	// capturer applies it: frames are always full resolution.
	ScaleFactor float64
}

func DefaultConfig() Config {
	return Config{DisplayIndex: 0, ScaleFactor: 1.0}
}

// Capturer is the platform screen-grabber contract. Start must be called
// before CaptureFrame; CaptureFrame before Start returns ErrNotStarted.
// Stop is idempotent.
type Capturer interface {
	Start() error
	CaptureFrame() (Frame, error)
	Stop() error
	Dimensions() (width, height int)
}

// New creates a platform-specific capturer.
func New(cfg Config) (Capturer, error) {
	return newPlatformCapturer(cfg)
}
