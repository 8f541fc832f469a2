//go:build darwin

package capture

/*
#cgo LDFLAGS: -framework CoreGraphics -framework CoreFoundation
#include <CoreGraphics/CoreGraphics.h>
#include <stdlib.h>

static CGDirectDisplayID primaryDisplay(void) {
    return CGMainDisplayID();
}
*/
import "C"

import (
	"time"
	"unsafe"
)

type cgCapturer struct {
	cfg     Config
	display C.CGDirectDisplayID
	width   int
	height  int
	started bool
}

func newPlatformCapturer(cfg Config) (Capturer, error) {
	return &cgCapturer{cfg: cfg}, nil
}

func (c *cgCapturer) Start() error {
	if c.started {
		return nil
	}
	display := C.primaryDisplay()
	width := int(C.CGDisplayPixelsWide(display))
	height := int(C.CGDisplayPixelsHigh(display))
	if width == 0 || height == 0 {
		return ErrDisplayNotFound
	}
	c.display = display
	c.width = width
	c.height = height
	c.started = true
	log.Info("coregraphics capture started", "width", width, "height", height)
	return nil
}

func (c *cgCapturer) CaptureFrame() (Frame, error) {
	if !c.started {
		return Frame{}, ErrNotStarted
	}

	image := C.CGDisplayCreateImage(c.display)
	if image == nil {
		return Frame{}, ErrRetry
	}
	defer C.CGImageRelease(image)

	provider := C.CGImageGetDataProvider(image)
	cfData := C.CGDataProviderCopyData(provider)
	if cfData == nil {
		return Frame{}, ErrRetry
	}
	defer C.CFRelease(C.CFTypeRef(cfData))

	length := int(C.CFDataGetLength(cfData))
	ptr := C.CFDataGetBytePtr(cfData)
	raw := C.GoBytes(unsafe.Pointer(ptr), C.int(length))

	bytesPerRow := int(C.CGImageGetBytesPerRow(image))
	stride := c.width * 4
	data := make([]byte, stride*c.height)
	for y := 0; y < c.height; y++ {
		srcRow := raw[y*bytesPerRow : y*bytesPerRow+stride]
		dstRow := data[y*stride : (y+1)*stride]
		// CGDisplayCreateImage for the default display yields BGRA; swap to RGBA.
		for x := 0; x < c.width; x++ {
			dstRow[x*4+0] = srcRow[x*4+2]
			dstRow[x*4+1] = srcRow[x*4+1]
			dstRow[x*4+2] = srcRow[x*4+0]
			dstRow[x*4+3] = 0xFF
		}
	}

	return Frame{
		Data:        data,
		Width:       c.width,
		Height:      c.height,
		Stride:      stride,
		TimestampMs: time.Now().UnixMilli(),
	}, nil
}

func (c *cgCapturer) Stop() error {
	c.started = false
	return nil
}

func (c *cgCapturer) Dimensions() (int, int) {
	return c.width, c.height
}
