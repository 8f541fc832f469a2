package session

import (
	"time"

	"github.com/relaydesk/fabric/internal/wire"
)

// dispatch routes a decoded text envelope per policy: ConnectResponse wakes
// the pending caller, input messages forward to the input simulator,
// transfer/clipboard messages forward to their engines, Ping is answered
// locally, and anything else is logged and dropped.
func (e *Engine) dispatch(env wire.Envelope) {
	switch env.Kind {
	case wire.KindConnectResponse:
		if env.ConnectResponse != nil {
			e.resolvePending(*env.ConnectResponse)
		}

	case wire.KindMouseMove:
		if e.input != nil && env.MouseMove != nil {
			if err := e.input.MouseMove(env.MouseMove.X, env.MouseMove.Y); err != nil {
				log.Warn("mouse move failed", "error", err)
			}
		}

	case wire.KindMouseButton:
		if e.input != nil && env.MouseButton != nil {
			if err := e.input.MouseButton(env.MouseButton.Button, env.MouseButton.Pressed); err != nil {
				log.Warn("mouse button failed", "error", err)
			}
		}

	case wire.KindMouseScroll:
		if e.input != nil && env.MouseScroll != nil {
			if err := e.input.MouseScroll(env.MouseScroll.DeltaX, env.MouseScroll.DeltaY); err != nil {
				log.Warn("mouse scroll failed", "error", err)
			}
		}

	case wire.KindKeyboardEvent:
		if e.input != nil && env.KeyboardEvent != nil {
			k := env.KeyboardEvent
			if err := e.input.Key(k.Key, k.Pressed, k.Modifiers); err != nil {
				log.Warn("key event failed", "error", err)
			}
		}

	case wire.KindFileTransferRequest:
		if env.FileTransferRequest != nil {
			e.handleTransferRequest(*env.FileTransferRequest)
		}

	case wire.KindFileTransferResponse:
		if env.FileTransferResponse != nil {
			e.handleTransferResponse(*env.FileTransferResponse)
		}

	case wire.KindFileTransferComplete:
		if env.FileTransferComplete != nil {
			e.handleTransferComplete(*env.FileTransferComplete)
		}

	case wire.KindClipboardUpdate:
		if e.clipSync != nil && env.ClipboardUpdate != nil {
			if err := e.clipSync.Receive(*env.ClipboardUpdate); err != nil {
				log.Warn("clipboard receive failed", "error", err)
			}
		}

	case wire.KindPing:
		e.enqueueControl(wire.Envelope{Kind: wire.KindPong})

	case wire.KindPong:
		e.notePong()

	case wire.KindDisconnect:
		log.Info("peer disconnected", "reason", reasonOf(env.Disconnect))

	default:
		log.Debug("ignoring unknown envelope kind", "kind", env.Kind)
	}
}

func reasonOf(d *wire.Disconnect) string {
	if d == nil {
		return ""
	}
	return d.Reason
}

func (e *Engine) resolvePending(resp wire.ConnectResponse) {
	e.pendingMu.Lock()
	defer e.pendingMu.Unlock()
	// A ConnectResponse carries no target id, so the first pending waiter
	// found (whatever its target key) receives it and is removed; on the
	// receiving side there is no pending waiter and the response is ignored.
	for id, ch := range e.pending {
		select {
		case ch <- resp:
		default:
		}
		delete(e.pending, id)
		break
	}
}

func (e *Engine) handleTransferRequest(req wire.FileTransferRequest) {
	accept := e.cfg.AutoAcceptTransfers
	if e.onTransferRequest != nil {
		accept = e.onTransferRequest(req)
	}
	if !accept {
		return
	}
	if e.transfer == nil {
		return
	}
	if _, err := e.transfer.StartDownload(req.TransferID, req.Filename, req.Filesize); err != nil {
		log.Warn("start download failed", "error", err, "transfer_id", req.TransferID)
		return
	}
	e.enqueueControl(wire.Envelope{
		Kind:                 wire.KindFileTransferResponse,
		FileTransferResponse: &wire.FileTransferResponse{TransferID: req.TransferID, Accepted: true},
	})
}

// handleTransferResponse starts streaming chunks for an upload this engine
// initiated, once the peer accepts it. Responses for downloads (accepted by
// handleTransferRequest locally, never round-tripped back here) and unknown
// transfer ids are ignored.
func (e *Engine) handleTransferResponse(resp wire.FileTransferResponse) {
	if !resp.Accepted || e.transfer == nil {
		return
	}
	rec, ok := e.transfer.Get(resp.TransferID)
	if !ok || rec.Direction != wire.DirectionUpload {
		return
	}
	go e.streamUpload(resp.TransferID)
}

// streamUpload reads and sends chunks sequentially until EOF, then signals
// completion. Chunks travel on the blocking control queue, not the
// drop-oldest video queue, since file data is not regenerable.
func (e *Engine) streamUpload(transferID string) {
	for {
		idx, data, ok, err := e.transfer.ReadNextChunk(transferID)
		if err != nil {
			log.Warn("upload chunk read failed", "error", err, "transfer_id", transferID)
			return
		}
		if !ok {
			break
		}
		e.enqueueControl(wire.Envelope{
			Kind:      wire.KindFileChunk,
			FileChunk: &wire.FileChunk{TransferID: transferID, ChunkIndex: idx, Data: data},
		})
	}
	e.enqueueControl(wire.Envelope{
		Kind:                 wire.KindFileTransferComplete,
		FileTransferComplete: &wire.FileTransferComplete{TransferID: transferID, Success: true},
	})
}

func (e *Engine) handleTransferComplete(complete wire.FileTransferComplete) {
	if e.transfer == nil {
		return
	}
	rec, ok := e.transfer.Get(complete.TransferID)
	if !ok {
		return
	}
	if complete.Success && !rec.Completed {
		log.Warn("peer reported transfer complete before all chunks arrived", "transfer_id", complete.TransferID)
		return
	}
	log.Info("file transfer complete", "transfer_id", complete.TransferID, "success", complete.Success, "checksum", rec.Checksum)
}

// dispatchBinary handles the decoded video/file-chunk binary frames,
// per the ordering guarantee that chunks may arrive out of order.
func (e *Engine) dispatchBinary(bin wire.BinaryEnvelope) {
	switch {
	case bin.FileChunk != nil && e.transfer != nil:
		c := bin.FileChunk
		if err := e.transfer.WriteChunk(c.TransferID, c.ChunkIndex, c.Data); err != nil {
			log.Warn("write chunk failed", "error", err, "transfer_id", c.TransferID)
		}
	case bin.VideoFrame != nil:
		// The engine itself only forwards frames on the sending side; a
		// receiving UI layer observes them through its own subscription,
		// which is out of scope for the session engine.
	}
}

func (e *Engine) notePong() {
	e.lastPongMu.Lock()
	e.lastPong = time.Now()
	e.lastPongMu.Unlock()
}
