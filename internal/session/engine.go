// Package session implements the client-side session engine: the
// connection state machine, reconnect/backoff loop, capture and keep-alive
// tasks, and the incoming-frame dispatcher.
package session

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaydesk/fabric/internal/capture"
	"github.com/relaydesk/fabric/internal/clipboard"
	"github.com/relaydesk/fabric/internal/input"
	"github.com/relaydesk/fabric/internal/logging"
	"github.com/relaydesk/fabric/internal/transfer"
	"github.com/relaydesk/fabric/internal/wire"
)

var log = logging.L("session")

const (
	writeWait      = 10 * time.Second
	outgoingDepth  = 256
	videoQueueSize = 4
)

// Config parameterizes one Engine instance.
type Config struct {
	RelayURL             string
	DeviceID             string
	AuthToken            string
	Platform             string
	MaxReconnectAttempts int
	ReconnectDelay       time.Duration
	KeepaliveInterval    time.Duration
	KeepaliveTimeout     time.Duration
	CaptureTargetFPS     int
	AutoAcceptTransfers  bool
}

// TransferRequestHandler decides whether to auto-accept an inbound file
// transfer offer, or defers to the UI by returning false.
type TransferRequestHandler func(req wire.FileTransferRequest) (accept bool)

// Engine is the client-side session engine.
type Engine struct {
	cfg Config

	conn   *websocket.Conn
	connMu sync.RWMutex

	state *stateTracker

	outgoing      chan wire.Envelope
	outgoingVideo chan wire.Envelope
	videoMu       sync.Mutex

	stop     chan struct{}
	stopOnce sync.Once

	running   bool
	runningMu sync.Mutex

	lastPong   time.Time
	lastPongMu sync.Mutex

	pending   map[string]chan wire.ConnectResponse
	pendingMu sync.Mutex

	input     input.Handler
	capturer  capture.Capturer
	transfer  *transfer.Engine
	clipSync  *clipboard.Sync

	onTransferRequest TransferRequestHandler
}

// New wires an engine with its session-peripheral dependencies. Any of
// input, capturer, xfer, or clip may be nil when that capability is not
// exercised by this process (e.g. the relay never performs capture).
func New(cfg Config, in input.Handler, cap capture.Capturer, xfer *transfer.Engine, clip *clipboard.Sync, onTransferRequest TransferRequestHandler) *Engine {
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.KeepaliveInterval <= 0 {
		cfg.KeepaliveInterval = 30 * time.Second
	}
	if cfg.KeepaliveTimeout <= 0 {
		cfg.KeepaliveTimeout = 60 * time.Second
	}
	if cfg.CaptureTargetFPS <= 0 {
		cfg.CaptureTargetFPS = 30
	}

	return &Engine{
		cfg:               cfg,
		state:             newStateTracker(),
		outgoing:          make(chan wire.Envelope, outgoingDepth),
		outgoingVideo:     make(chan wire.Envelope, videoQueueSize),
		stop:              make(chan struct{}),
		pending:           make(map[string]chan wire.ConnectResponse),
		input:             in,
		capturer:          cap,
		transfer:          xfer,
		clipSync:          clip,
		onTransferRequest: onTransferRequest,
	}
}

func (e *Engine) GetState() ConnState              { return e.state.Get() }
func (e *Engine) OnStateChange(fn func(ConnState)) { e.state.OnChange(fn) }

// SetClipboardSync wires the clipboard sync after construction, since it
// needs the Engine itself as its Sender.
func (e *Engine) SetClipboardSync(s *clipboard.Sync) { e.clipSync = s }

// Start runs the reconnect loop until Stop is called or reconnect attempts
// are exhausted.
func (e *Engine) Start() {
	e.runningMu.Lock()
	if e.running {
		e.runningMu.Unlock()
		return
	}
	e.running = true
	e.runningMu.Unlock()

	if e.clipSync != nil {
		e.clipSync.Watch()
	}
	go e.reconnectLoop()
}

func (e *Engine) Stop() {
	e.stopOnce.Do(func() {
		e.runningMu.Lock()
		e.running = false
		e.runningMu.Unlock()
		close(e.stop)

		if e.clipSync != nil {
			e.clipSync.Stop()
		}

		e.connMu.Lock()
		if e.conn != nil {
			e.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
				time.Now().Add(writeWait))
			e.conn.Close()
			e.conn = nil
		}
		e.connMu.Unlock()
	})
}

func (e *Engine) reconnectLoop() {
	attempts := 0
	for {
		select {
		case <-e.stop:
			return
		default:
		}

		e.state.set(Connecting)
		if err := e.connect(); err != nil {
			log.Warn("connect failed", "error", err, "attempt", attempts+1)
			attempts++
			if attempts >= e.cfg.MaxReconnectAttempts {
				e.state.set(Failed)
				return
			}
			e.state.set(Reconnecting)
			select {
			case <-e.stop:
				return
			case <-time.After(e.cfg.ReconnectDelay):
			}
			continue
		}

		attempts = 0
		e.state.set(Connected)
		e.sendHello()

		done := make(chan struct{})
		go e.writePump(done)
		go e.keepaliveLoop(done)
		if e.capturer != nil {
			go e.captureLoop(done)
		}
		e.readPump()
		close(done)

		e.runningMu.Lock()
		running := e.running
		e.runningMu.Unlock()
		if !running {
			return
		}
		e.state.set(Reconnecting)
	}
}

func (e *Engine) connect() error {
	u, err := url.Parse(e.cfg.RelayURL)
	if err != nil {
		return fmt.Errorf("parse relay url: %w", err)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.DialContext(context.Background(), u.String(), nil)
	if err != nil {
		return fmt.Errorf("dial relay: %w", err)
	}

	e.connMu.Lock()
	e.conn = conn
	e.connMu.Unlock()

	e.lastPongMu.Lock()
	e.lastPong = time.Now()
	e.lastPongMu.Unlock()

	log.Info("connected to relay", "device_id", e.cfg.DeviceID)
	return nil
}

func (e *Engine) sendHello() {
	e.enqueueControl(wire.Envelope{
		Kind: wire.KindHello,
		Hello: &wire.Hello{
			DeviceID: e.cfg.DeviceID,
			Platform: e.cfg.Platform,
		},
	})
}

// ConnectTo issues a ConnectRequest and blocks for the matching response.
func (e *Engine) ConnectTo(ctx context.Context, targetID string) (wire.ConnectResponse, error) {
	waiter := make(chan wire.ConnectResponse, 1)
	e.pendingMu.Lock()
	e.pending[targetID] = waiter
	e.pendingMu.Unlock()
	defer func() {
		e.pendingMu.Lock()
		delete(e.pending, targetID)
		e.pendingMu.Unlock()
	}()

	e.enqueueControl(wire.Envelope{
		Kind: wire.KindConnectRequest,
		ConnectRequest: &wire.ConnectRequest{
			TargetID:  targetID,
			AuthToken: e.cfg.AuthToken,
		},
	})

	select {
	case resp := <-waiter:
		return resp, nil
	case <-ctx.Done():
		return wire.ConnectResponse{}, ctx.Err()
	}
}

// enqueueControl performs a blocking send: control/input frames are never
// dropped.
func (e *Engine) enqueueControl(env wire.Envelope) {
	select {
	case e.outgoing <- env:
	case <-e.stop:
	}
}

// enqueueVideo applies drop-oldest backpressure: when the bounded video
// queue is full, the newest frame replaces the oldest unsent one.
func (e *Engine) enqueueVideo(env wire.Envelope) {
	e.videoMu.Lock()
	defer e.videoMu.Unlock()
	select {
	case e.outgoingVideo <- env:
		return
	default:
	}
	select {
	case <-e.outgoingVideo:
	default:
	}
	select {
	case e.outgoingVideo <- env:
	default:
	}
}

func (e *Engine) SendClipboardUpdate(update wire.ClipboardUpdate) error {
	e.enqueueControl(wire.Envelope{Kind: wire.KindClipboardUpdate, ClipboardUpdate: &update})
	return nil
}

// SendFile begins an upload: the file is registered with the transfer
// engine and a FileTransferRequest is sent to the peer. Chunks start
// streaming once the peer responds with FileTransferResponse{Accepted:true};
// see handleTransferResponse.
func (e *Engine) SendFile(path string) (string, error) {
	if e.transfer == nil {
		return "", fmt.Errorf("transfer engine not configured")
	}
	rec, err := e.transfer.StartUpload(path)
	if err != nil {
		return "", err
	}
	e.enqueueControl(wire.Envelope{
		Kind: wire.KindFileTransferRequest,
		FileTransferRequest: &wire.FileTransferRequest{
			TransferID: rec.TransferID,
			Filename:   rec.Filename,
			Filesize:   rec.TotalSize,
			Direction:  wire.DirectionUpload,
		},
	})
	return rec.TransferID, nil
}
