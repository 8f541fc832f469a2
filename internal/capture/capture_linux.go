//go:build linux && cgo

package capture

/*
#cgo LDFLAGS: -lX11
#include <X11/Xlib.h>
#include <X11/Xutil.h>
#include <stdlib.h>
*/
import "C"

import (
	"time"
	"unsafe"
)

type x11Capturer struct {
	cfg     Config
	display *C.Display
	root    C.Window
	width   int
	height  int
	started bool
}

func newPlatformCapturer(cfg Config) (Capturer, error) {
	return &x11Capturer{cfg: cfg}, nil
}

func (c *x11Capturer) Start() error {
	if c.started {
		return nil
	}
	display := C.XOpenDisplay(nil)
	if display == nil {
		return ErrPermissionDenied
	}
	screen := C.XDefaultScreen(display)
	root := C.XRootWindow(display, screen)
	width := int(C.XDisplayWidth(display, screen))
	height := int(C.XDisplayHeight(display, screen))
	if width == 0 || height == 0 {
		C.XCloseDisplay(display)
		return ErrDisplayNotFound
	}

	c.display = display
	c.root = root
	c.width = width
	c.height = height
	c.started = true
	log.Info("x11 capture started", "width", width, "height", height)
	return nil
}

func (c *x11Capturer) CaptureFrame() (Frame, error) {
	if !c.started {
		return Frame{}, ErrNotStarted
	}

	img := C.XGetImage(c.display, c.root, 0, 0, C.uint(c.width), C.uint(c.height), C.AllPlanes, C.ZPixmap)
	if img == nil {
		return Frame{}, ErrRetry
	}
	defer C.XDestroyImage(img)

	stride := c.width * 4
	data := make([]byte, stride*c.height)
	src := unsafe.Pointer(img.data)
	bytesPerLine := int(img.bytes_per_line)

	for y := 0; y < c.height; y++ {
		row := unsafe.Slice((*byte)(unsafe.Add(src, y*bytesPerLine)), stride)
		dst := data[y*stride : (y+1)*stride]
		// X11 XImage is BGRX on common visuals; swap to RGBA.
		for x := 0; x < c.width; x++ {
			b := row[x*4+0]
			g := row[x*4+1]
			r := row[x*4+2]
			dst[x*4+0] = r
			dst[x*4+1] = g
			dst[x*4+2] = b
			dst[x*4+3] = 0xFF
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

func (c *x11Capturer) Stop() error {
	if !c.started {
		return nil
	}
	c.started = false
	if c.display != nil {
		C.XCloseDisplay(c.display)
		c.display = nil
	}
	return nil
}

func (c *x11Capturer) Dimensions() (int, int) {
	return c.width, c.height
}
