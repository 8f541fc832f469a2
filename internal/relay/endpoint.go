package relay

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaydesk/fabric/internal/audit"
	"github.com/relaydesk/fabric/internal/wire"
)

const (
	writeWait      = 10 * time.Second
	outgoingDepth  = 256
	shutdownDrain  = 1 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Endpoint owns one relay transport connection: the Hello/ConnectRequest/
// Ping/Disconnect admission logic, and verbatim forwarding of every other
// frame to the session peer.
type Endpoint struct {
	registry *Registry
	bridge   *Bridge
	tenantID string
	audit    *audit.Logger

	conn     *websocket.Conn
	outgoing chan Frame
	deviceID string
}

// NewEndpointHandler returns an http.HandlerFunc that upgrades the request
// and runs one endpoint's lifetime to completion. auditLogger may be nil
// (audit disabled), since Logger.Log is a no-op on a nil receiver.
func NewEndpointHandler(registry *Registry, bridge *Bridge, tenantID string, auditLogger *audit.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Warn("websocket upgrade failed", "error", err)
			return
		}

		ep := &Endpoint{
			registry: registry,
			bridge:   bridge,
			tenantID: tenantID,
			audit:    auditLogger,
			conn:     conn,
			outgoing: make(chan Frame, outgoingDepth),
		}
		ep.run()
	}
}

func (ep *Endpoint) run() {
	done := make(chan struct{})
	go ep.writePump(done)
	ep.readPump()
	close(done)

	if ep.deviceID != "" {
		endedSession, hadSession := ep.registry.UnregisterClient(ep.deviceID)
		ep.audit.Log(audit.EventDeviceUnregistered, "", map[string]any{"device_id": ep.deviceID})
		if hadSession {
			ep.audit.Log(audit.EventSessionEnded, endedSession, map[string]any{"device_id": ep.deviceID})
		}
		log.Info("client unregistered", "device_id", ep.deviceID)
	}
	ep.conn.Close()
}

func (ep *Endpoint) writePump(done chan struct{}) {
	for {
		select {
		case <-done:
			ep.drain()
			return
		case frame, ok := <-ep.outgoing:
			if !ok {
				return
			}
			ep.conn.SetWriteDeadline(time.Now().Add(writeWait))
			msgType := websocket.TextMessage
			if frame.Binary {
				msgType = websocket.BinaryMessage
			}
			if err := ep.conn.WriteMessage(msgType, frame.Data); err != nil {
				log.Warn("endpoint write failed", "error", err, "device_id", ep.deviceID)
				return
			}
		}
	}
}

// drain flushes any already-queued frames within a bounded deadline before
// the connection closes, per the graceful-shutdown contract.
func (ep *Endpoint) drain() {
	deadline := time.After(shutdownDrain)
	for {
		select {
		case frame, ok := <-ep.outgoing:
			if !ok {
				return
			}
			ep.conn.SetWriteDeadline(time.Now().Add(writeWait))
			msgType := websocket.TextMessage
			if frame.Binary {
				msgType = websocket.BinaryMessage
			}
			ep.conn.WriteMessage(msgType, frame.Data)
		case <-deadline:
			return
		default:
			return
		}
	}
}

func (ep *Endpoint) readPump() {
	for {
		msgType, data, err := ep.conn.ReadMessage()
		if err != nil {
			return
		}

		switch msgType {
		case websocket.TextMessage:
			ep.handleText(data)
		case websocket.BinaryMessage:
			ep.handleBinary(data)
		}
	}
}

func (ep *Endpoint) handleText(data []byte) {
	env, err := wire.DecodeText(data)
	if err != nil {
		log.Warn("decode envelope failed", "error", err)
		return
	}

	switch env.Kind {
	case wire.KindHello:
		ep.handleHello(env.Hello)
	case wire.KindConnectRequest:
		ep.handleConnectRequest(env.ConnectRequest)
	case wire.KindPing:
		ep.send(Frame{Data: mustEncode(wire.Envelope{Kind: wire.KindPong})})
	case wire.KindDisconnect:
		ep.forward(data, false, false)
	case wire.KindFileTransferRequest:
		if env.FileTransferRequest != nil {
			sessionID, _ := ep.registry.SessionOf(ep.deviceID)
			ep.audit.Log(audit.EventTransferStarted, sessionID, map[string]any{
				"transfer_id": env.FileTransferRequest.TransferID,
				"filename":    env.FileTransferRequest.Filename,
				"direction":   string(env.FileTransferRequest.Direction),
			})
		}
		ep.forward(data, false, false)
	case wire.KindFileTransferComplete:
		if env.FileTransferComplete != nil {
			sessionID, _ := ep.registry.SessionOf(ep.deviceID)
			evt := audit.EventTransferCompleted
			if !env.FileTransferComplete.Success {
				evt = audit.EventTransferFailed
			}
			ep.audit.Log(evt, sessionID, map[string]any{"transfer_id": env.FileTransferComplete.TransferID})
		}
		ep.forward(data, false, false)
	default:
		if ep.deviceID == "" {
			log.Info("dropping frame before hello", "kind", env.Kind)
			return
		}
		ep.forward(data, false, false)
	}
}

func (ep *Endpoint) handleBinary(data []byte) {
	if ep.deviceID == "" {
		log.Info("dropping binary frame before hello")
		return
	}
	ep.forward(data, true, wire.IsDroppableBinary(data))
}

func (ep *Endpoint) handleHello(h *wire.Hello) {
	if h == nil {
		return
	}
	ep.deviceID = h.DeviceID
	ep.registry.RegisterClient(h.DeviceID, h.Platform, ep.outgoing)
	ep.audit.Log(audit.EventDeviceRegistered, "", map[string]any{"device_id": h.DeviceID, "platform": h.Platform})
	log.Info("client registered", "device_id", h.DeviceID, "platform", h.Platform)
}

func (ep *Endpoint) handleConnectRequest(req *wire.ConnectRequest) {
	if req == nil || ep.deviceID == "" {
		return
	}
	ep.audit.Log(audit.EventConnectRequest, "", map[string]any{"src": ep.deviceID, "target": req.TargetID})

	resp := ep.admit(req)
	ep.send(Frame{Data: mustEncode(wire.Envelope{Kind: wire.KindConnectResponse, ConnectResponse: &resp})})

	if resp.Success {
		ep.registry.Relay(ep.deviceID, req.TargetID, Frame{
			Data: mustEncode(wire.Envelope{Kind: wire.KindConnectResponse, ConnectResponse: &resp}),
		})
	}
}

// admit runs the five-step sequence from §4.7: authentication is implicit
// in Hello having registered this connection, existence and busy checks
// are registry-only, and the Bridge supplies the policy decision.
func (ep *Endpoint) admit(req *wire.ConnectRequest) wire.ConnectResponse {
	if !ep.registry.Exists(req.TargetID) {
		ep.audit.Log(audit.EventAdmissionDenied, "", map[string]any{"src": ep.deviceID, "target": req.TargetID, "reason": "target not found"})
		return wire.ConnectResponse{Success: false, Error: "target not found"}
	}
	if ep.registry.InSession(ep.deviceID) {
		ep.audit.Log(audit.EventAdmissionDenied, "", map[string]any{"src": ep.deviceID, "target": req.TargetID, "reason": "busy"})
		return wire.ConnectResponse{Success: false, Error: "busy"}
	}

	decision := ep.bridge.Evaluate(context.Background(), req.AuthToken, ep.tenantID, ep.deviceID, req.TargetID,
		[]Capability{CapView, CapInput, CapClipboard, CapFileTransfer}, PolicyContext{TimestampUnix: time.Now().Unix()})
	if !decision.Allowed {
		ep.audit.Log(audit.EventAdmissionDenied, "", map[string]any{"src": ep.deviceID, "target": req.TargetID, "reason": decision.Reason})
		return wire.ConnectResponse{Success: false, Error: decision.Reason}
	}

	sessionID := ep.registry.CreateSession(ep.deviceID, req.TargetID)
	ep.audit.Log(audit.EventSessionCreated, sessionID, map[string]any{"src": ep.deviceID, "target": req.TargetID})
	return wire.ConnectResponse{Success: true, SessionID: sessionID}
}

func (ep *Endpoint) forward(data []byte, binary, droppable bool) {
	peer, ok := ep.registry.PeerOf(ep.deviceID)
	if !ok {
		log.Debug("no active peer to forward to", "device_id", ep.deviceID)
		return
	}
	ep.registry.Relay(ep.deviceID, peer, Frame{Binary: binary, Droppable: droppable, Data: data})
}

func (ep *Endpoint) send(frame Frame) {
	select {
	case ep.outgoing <- frame:
	default:
		log.Warn("endpoint outgoing queue full, dropping control frame", "device_id", ep.deviceID)
	}
}

func mustEncode(env wire.Envelope) []byte {
	data, err := wire.EncodeText(env)
	if err != nil {
		log.Error("failed to encode outgoing envelope", "error", err)
		return nil
	}
	return data
}
