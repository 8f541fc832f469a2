package clipboard

import (
	"encoding/base64"
	"errors"
	"sync"
	"time"

	"github.com/relaydesk/fabric/internal/logging"
	"github.com/relaydesk/fabric/internal/wire"
)

var log = logging.L("clipboard")

const defaultPollInterval = 500 * time.Millisecond

var errSyncUnconfigured = errors.New("clipboard sync not configured")

// Sender delivers an outbound clipboard update to the session's peer.
type Sender interface {
	SendClipboardUpdate(update wire.ClipboardUpdate) error
}

// Sync polls the local clipboard provider and pushes changes to Sender,
// and applies inbound updates received from the peer via Receive. A
// fingerprint of the last value seen in either direction suppresses the
// echo that would otherwise occur when an inbound update is applied
// locally and immediately observed again by the poll loop.
type Sync struct {
	sender       Sender
	provider     Provider
	pollInterval time.Duration
	stop         chan struct{}
	stopOnce     sync.Once

	mu         sync.Mutex
	lastFPrint [32]byte
	enabled    bool
}

func NewSync(sender Sender, provider Provider) *Sync {
	return &Sync{
		sender:       sender,
		provider:     provider,
		pollInterval: defaultPollInterval,
		stop:         make(chan struct{}),
		enabled:      true,
	}
}

// SetEnabled turns polling and write-through on or off. Disabling resets
// last_content to Empty, so re-enabling does not suppress the first change
// observed afterward as an echo of whatever was current before disabling
// (e.g. when a session's granted capabilities no longer include clipboard).
func (s *Sync) SetEnabled(enabled bool) {
	s.mu.Lock()
	s.enabled = enabled
	if !enabled {
		s.lastFPrint = fingerprint(Content{Type: ContentTypeEmpty})
	}
	s.mu.Unlock()
}

func (s *Sync) isEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

func (s *Sync) Watch() {
	if s.provider == nil {
		return
	}
	interval := s.pollInterval
	if interval <= 0 {
		interval = defaultPollInterval
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if !s.isEnabled() {
					continue
				}
				content, err := s.provider.GetContent()
				if err != nil {
					continue
				}
				fp := fingerprint(content)
				s.mu.Lock()
				changed := fp != s.lastFPrint
				s.mu.Unlock()
				if changed {
					if err := s.Send(content); err != nil {
						log.Warn("clipboard send failed", "error", err)
					}
				}
			case <-s.stop:
				return
			}
		}
	}()
}

func (s *Sync) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// Send pushes content to the peer and records its fingerprint so the
// next local poll observing the same content does not re-send it.
func (s *Sync) Send(content Content) error {
	if !s.isEnabled() {
		return nil
	}
	if s.sender == nil {
		return errSyncUnconfigured
	}
	update, err := encodeUpdate(content)
	if err != nil {
		return err
	}
	if err := s.sender.SendClipboardUpdate(update); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastFPrint = fingerprint(content)
	s.mu.Unlock()
	return nil
}

// Receive applies an inbound update from the peer to the local clipboard
// and records its fingerprint, suppressing the subsequent echo.
func (s *Sync) Receive(update wire.ClipboardUpdate) error {
	if !s.isEnabled() {
		return nil
	}
	if s.provider == nil {
		return errSyncUnconfigured
	}
	content, err := decodeUpdate(update)
	if err != nil {
		return err
	}
	if err := s.provider.SetContent(content); err != nil {
		return err
	}
	s.mu.Lock()
	s.lastFPrint = fingerprint(content)
	s.mu.Unlock()
	return nil
}

func encodeUpdate(content Content) (wire.ClipboardUpdate, error) {
	switch content.Type {
	case ContentTypeText:
		return wire.ClipboardUpdate{Content: content.Text, MimeType: "text/plain"}, nil
	case ContentTypeRTF:
		return wire.ClipboardUpdate{Content: base64.StdEncoding.EncodeToString(content.RTF), MimeType: "text/rtf"}, nil
	case ContentTypeImage:
		mime := "image/" + content.ImageFormat
		return wire.ClipboardUpdate{Content: base64.StdEncoding.EncodeToString(content.Image), MimeType: mime}, nil
	default:
		return wire.ClipboardUpdate{}, errors.New("clipboard: unsupported content type")
	}
}

func decodeUpdate(update wire.ClipboardUpdate) (Content, error) {
	switch {
	case update.MimeType == "text/plain":
		return Content{Type: ContentTypeText, Text: update.Content}, nil
	case update.MimeType == "text/rtf":
		data, err := base64.StdEncoding.DecodeString(update.Content)
		if err != nil {
			return Content{}, err
		}
		return Content{Type: ContentTypeRTF, RTF: data}, nil
	case len(update.MimeType) > 6 && update.MimeType[:6] == "image/":
		data, err := base64.StdEncoding.DecodeString(update.Content)
		if err != nil {
			return Content{}, err
		}
		return Content{Type: ContentTypeImage, Image: data, ImageFormat: update.MimeType[6:]}, nil
	default:
		return Content{}, errors.New("clipboard: unrecognized mime type " + update.MimeType)
	}
}
