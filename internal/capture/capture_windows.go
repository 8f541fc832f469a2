//go:build windows

package capture

import (
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

var (
	modgdi32  = windows.NewLazySystemDLL("gdi32.dll")
	moduser32 = windows.NewLazySystemDLL("user32.dll")

	procGetDC                = moduser32.NewProc("GetDC")
	procReleaseDC            = moduser32.NewProc("ReleaseDC")
	procGetSystemMetrics     = moduser32.NewProc("GetSystemMetrics")
	procCreateCompatibleDC   = modgdi32.NewProc("CreateCompatibleDC")
	procCreateCompatibleBmp  = modgdi32.NewProc("CreateCompatibleBitmap")
	procSelectObject         = modgdi32.NewProc("SelectObject")
	procBitBlt               = modgdi32.NewProc("BitBlt")
	procDeleteObject         = modgdi32.NewProc("DeleteObject")
	procDeleteDC             = modgdi32.NewProc("DeleteDC")
	procGetDIBits            = modgdi32.NewProc("GetDIBits")
)

const (
	smXVirtualScreen  = 76
	smYVirtualScreen  = 77
	smCXVirtualScreen = 78
	smCYVirtualScreen = 79
	srcCopy           = 0x00CC0020
	biRGB             = 0
	dibRGBColors      = 0
)

type bitmapInfoHeader struct {
	Size          uint32
	Width         int32
	Height        int32
	Planes        uint16
	BitCount      uint16
	Compression   uint32
	SizeImage     uint32
	XPelsPerMeter int32
	YPelsPerMeter int32
	ClrUsed       uint32
	ClrImportant  uint32
}

type bitmapInfo struct {
	Header bitmapInfoHeader
	Colors [1]uint32
}

type gdiCapturer struct {
	cfg     Config
	width   int
	height  int
	started bool
}

func newPlatformCapturer(cfg Config) (Capturer, error) {
	return &gdiCapturer{cfg: cfg}, nil
}

func (c *gdiCapturer) Start() error {
	if c.started {
		return nil
	}
	w, _, _ := procGetSystemMetrics.Call(smCXVirtualScreen)
	h, _, _ := procGetSystemMetrics.Call(smCYVirtualScreen)
	if w == 0 || h == 0 {
		return ErrDisplayNotFound
	}
	c.width = int(w)
	c.height = int(h)
	c.started = true
	log.Info("gdi capture started", "width", c.width, "height", c.height)
	return nil
}

func (c *gdiCapturer) CaptureFrame() (Frame, error) {
	if !c.started {
		return Frame{}, ErrNotStarted
	}

	hdcScreen, _, _ := procGetDC.Call(0)
	if hdcScreen == 0 {
		return Frame{}, ErrPermissionDenied
	}
	defer procReleaseDC.Call(0, hdcScreen)

	hdcMem, _, _ := procCreateCompatibleDC.Call(hdcScreen)
	if hdcMem == 0 {
		return Frame{}, ErrRetry
	}
	defer procDeleteDC.Call(hdcMem)

	hBitmap, _, _ := procCreateCompatibleBmp.Call(hdcScreen, uintptr(c.width), uintptr(c.height))
	if hBitmap == 0 {
		return Frame{}, ErrRetry
	}
	defer procDeleteObject.Call(hBitmap)

	old, _, _ := procSelectObject.Call(hdcMem, hBitmap)
	defer procSelectObject.Call(hdcMem, old)

	ok, _, _ := procBitBlt.Call(hdcMem, 0, 0, uintptr(c.width), uintptr(c.height), hdcScreen, 0, 0, srcCopy)
	if ok == 0 {
		return Frame{}, ErrRetry
	}

	stride := c.width * 4
	data := make([]byte, stride*c.height)
	bi := bitmapInfo{
		Header: bitmapInfoHeader{
			Size:        uint32(unsafe.Sizeof(bitmapInfoHeader{})),
			Width:       int32(c.width),
			Height:      -int32(c.height), // top-down DIB
			Planes:      1,
			BitCount:    32,
			Compression: biRGB,
		},
	}
	res, _, _ := procGetDIBits.Call(
		hdcMem, hBitmap, 0, uintptr(c.height),
		uintptr(unsafe.Pointer(&data[0])),
		uintptr(unsafe.Pointer(&bi)),
		dibRGBColors,
	)
	if res == 0 {
		return Frame{}, ErrRetry
	}

	// GetDIBits yields BGRA; swap in place to RGBA.
	for i := 0; i < len(data); i += 4 {
		data[i], data[i+2] = data[i+2], data[i]
	}

	return Frame{
		Data:        data,
		Width:       c.width,
		Height:      c.height,
		Stride:      stride,
		TimestampMs: time.Now().UnixMilli(),
	}, nil
}

func (c *gdiCapturer) Stop() error {
	c.started = false
	return nil
}

func (c *gdiCapturer) Dimensions() (int, int) {
	return c.width, c.height
}
