package session

import (
	"time"

	"github.com/relaydesk/fabric/internal/wire"
)

// captureLoop ticks at the configured rate, producing VideoFrame envelopes.
// Every 30th captured frame (the first included) is marked a keyframe; a
// Retry error sleeps one tick rather than terminating the loop.
func (e *Engine) captureLoop(done chan struct{}) {
	interval := time.Second / time.Duration(e.cfg.CaptureTargetFPS)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	var frameCount int64
	for {
		select {
		case <-done:
			return
		case <-e.stop:
			return
		case <-ticker.C:
			frame, err := e.capturer.CaptureFrame()
			if err != nil {
				log.Debug("capture tick skipped", "error", err)
				continue
			}

			isKeyframe := frameCount%30 == 0
			frameCount++

			e.enqueueVideo(wire.Envelope{
				Kind: wire.KindVideoFrame,
				VideoFrame: &wire.VideoFrame{
					Width:      frame.Width,
					Height:     frame.Height,
					Timestamp:  time.Now().UnixMilli(),
					IsKeyframe: isKeyframe,
					Data:       frame.Data,
				},
			})
		}
	}
}
