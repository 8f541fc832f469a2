// Package wire defines the tagged message envelope exchanged between the
// relay and its clients, and the binary header used for bulky payloads.
package wire

import (
	"encoding/json"
	"fmt"
)

// Kind discriminates envelope variants on the wire.
type Kind string

const (
	KindHello                Kind = "hello"
	KindConnectRequest       Kind = "connect_request"
	KindConnectResponse      Kind = "connect_response"
	KindVideoFrame           Kind = "video_frame"
	KindMouseMove            Kind = "mouse_move"
	KindMouseButton          Kind = "mouse_button"
	KindMouseScroll          Kind = "mouse_scroll"
	KindKeyboardEvent        Kind = "keyboard_event"
	KindFileTransferRequest  Kind = "file_transfer_request"
	KindFileTransferResponse Kind = "file_transfer_response"
	KindFileChunk            Kind = "file_chunk"
	KindFileTransferComplete Kind = "file_transfer_complete"
	KindClipboardUpdate      Kind = "clipboard_update"
	KindPing                 Kind = "ping"
	KindPong                 Kind = "pong"
	KindDisconnect           Kind = "disconnect"
)

type MouseButtonName string

const (
	ButtonLeft    MouseButtonName = "left"
	ButtonRight   MouseButtonName = "right"
	ButtonMiddle  MouseButtonName = "middle"
	ButtonBack    MouseButtonName = "back"
	ButtonForward MouseButtonName = "forward"
)

type TransferDirection string

const (
	DirectionUpload   TransferDirection = "upload"
	DirectionDownload TransferDirection = "download"
)

type Modifiers struct {
	Shift bool `json:"shift"`
	Ctrl  bool `json:"ctrl"`
	Alt   bool `json:"alt"`
	Meta  bool `json:"meta"`
}

type Hello struct {
	DeviceID     string   `json:"device_id"`
	Platform     string   `json:"platform"`
	Capabilities []string `json:"capabilities"`
}

type ConnectRequest struct {
	TargetID  string `json:"target_id"`
	AuthToken string `json:"auth_token,omitempty"`
}

type ConnectResponse struct {
	Success   bool   `json:"success"`
	SessionID string `json:"session_id,omitempty"`
	Error     string `json:"error,omitempty"`
}

// VideoFrame's Data travels as a binary envelope (see EncodeVideoFrame); the
// JSON struct is used only for in-memory passing between the capture loop
// and the session engine's outgoing queue.
type VideoFrame struct {
	Data       []byte `json:"data"`
	Width      int    `json:"width"`
	Height     int    `json:"height"`
	Timestamp  int64  `json:"timestamp"`
	IsKeyframe bool   `json:"is_keyframe"`
}

type MouseMove struct {
	X int `json:"x"`
	Y int `json:"y"`
}

type MouseButton struct {
	Button  MouseButtonName `json:"button"`
	Pressed bool            `json:"pressed"`
}

type MouseScroll struct {
	DeltaX int `json:"delta_x"`
	DeltaY int `json:"delta_y"`
}

type KeyboardEvent struct {
	Key       string    `json:"key"`
	Pressed   bool      `json:"pressed"`
	Modifiers Modifiers `json:"modifiers"`
}

type FileTransferRequest struct {
	TransferID string            `json:"transfer_id"`
	Filename   string            `json:"filename"`
	Filesize   int64             `json:"filesize"`
	Direction  TransferDirection `json:"direction"`
}

type FileTransferResponse struct {
	TransferID string `json:"transfer_id"`
	Accepted   bool   `json:"accepted"`
}

// FileChunk's Data travels as a binary envelope; see EncodeFileChunk.
type FileChunk struct {
	TransferID string `json:"transfer_id"`
	ChunkIndex int    `json:"chunk_index"`
	Data       []byte `json:"data"`
}

type FileTransferComplete struct {
	TransferID string `json:"transfer_id"`
	Success    bool   `json:"success"`
}

type ClipboardUpdate struct {
	Content  string `json:"content"`
	MimeType string `json:"mime_type"`
}

type Disconnect struct {
	Reason string `json:"reason,omitempty"`
}

// Envelope is the tagged sum transmitted over a text frame. Exactly one of
// the pointer fields is non-nil, selected by Kind. Unknown kinds decode with
// Payload set to the raw JSON so the relay can forward them without
// understanding them (spec: "Unknown tags are not errors at the relay").
type Envelope struct {
	Kind Kind `json:"type"`

	Hello                 *Hello                 `json:"hello,omitempty"`
	ConnectRequest        *ConnectRequest        `json:"connect_request,omitempty"`
	ConnectResponse       *ConnectResponse       `json:"connect_response,omitempty"`
	MouseMove             *MouseMove             `json:"mouse_move,omitempty"`
	MouseButton           *MouseButton           `json:"mouse_button,omitempty"`
	MouseScroll           *MouseScroll           `json:"mouse_scroll,omitempty"`
	KeyboardEvent         *KeyboardEvent         `json:"keyboard_event,omitempty"`
	FileTransferRequest   *FileTransferRequest   `json:"file_transfer_request,omitempty"`
	FileTransferResponse  *FileTransferResponse  `json:"file_transfer_response,omitempty"`
	FileTransferComplete  *FileTransferComplete  `json:"file_transfer_complete,omitempty"`
	ClipboardUpdate       *ClipboardUpdate       `json:"clipboard_update,omitempty"`
	Disconnect            *Disconnect            `json:"disconnect,omitempty"`

	// VideoFrame and FileChunk never actually travel as a text frame — a
	// Kind of KindVideoFrame/KindFileChunk is always encoded via
	// EncodeVideoFrame/EncodeFileChunk onto a binary frame instead (see
	// writeEnvelope). The fields exist on Envelope purely so the session
	// engine's single `chan wire.Envelope` outgoing queues can carry a
	// video frame or file chunk alongside every other message kind without
	// a second queue element type.
	VideoFrame *VideoFrame `json:"-"`
	FileChunk  *FileChunk  `json:"-"`

	// Payload carries the raw body of every decoded envelope; when no typed
	// field is set (a kind this build doesn't recognize), MarshalJSON emits
	// it verbatim, so relay forwarding survives protocol growth.
	Payload json.RawMessage `json:"-"`
}

func (e Envelope) MarshalJSON() ([]byte, error) {
	type alias Envelope
	if e.Payload != nil && e.isEmpty() {
		return e.Payload, nil
	}
	return json.Marshal(alias(e))
}

func (e Envelope) isEmpty() bool {
	return e.Hello == nil && e.ConnectRequest == nil && e.ConnectResponse == nil &&
		e.MouseMove == nil && e.MouseButton == nil && e.MouseScroll == nil &&
		e.KeyboardEvent == nil && e.FileTransferRequest == nil &&
		e.FileTransferResponse == nil && e.FileTransferComplete == nil &&
		e.ClipboardUpdate == nil && e.Disconnect == nil &&
		e.VideoFrame == nil && e.FileChunk == nil
}

func (e *Envelope) UnmarshalJSON(data []byte) error {
	type alias Envelope
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	*e = Envelope(a)
	e.Payload = data
	return nil
}

// DecodeText parses a text-frame envelope.
func DecodeText(data []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(data, &e); err != nil {
		return Envelope{}, err
	}
	return e, nil
}

// EncodeText serializes an envelope for a text frame.
func EncodeText(e Envelope) ([]byte, error) {
	return json.Marshal(e)
}
