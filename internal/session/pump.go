package session

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/relaydesk/fabric/internal/wire"
)

func (e *Engine) readPump() {
	e.connMu.RLock()
	conn := e.conn
	e.connMu.RUnlock()
	if conn == nil {
		return
	}

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Warn("relay read error", "error", err)
			}
			return
		}

		switch msgType {
		case websocket.TextMessage:
			env, err := wire.DecodeText(data)
			if err != nil {
				log.Warn("decode envelope failed", "error", err)
				continue
			}
			e.dispatch(env)
		case websocket.BinaryMessage:
			bin, err := wire.DecodeBinary(data)
			if err != nil {
				log.Warn("decode binary frame failed", "error", err)
				continue
			}
			e.dispatchBinary(bin)
		}
	}
}

func (e *Engine) writePump(done chan struct{}) {
	for {
		select {
		case <-done:
			return
		case <-e.stop:
			return
		case env := <-e.outgoing:
			if err := e.writeEnvelope(env); err != nil {
				log.Warn("write error", "error", err)
				return
			}
		case env := <-e.outgoingVideo:
			if err := e.writeEnvelope(env); err != nil {
				log.Warn("video write error", "error", err)
				return
			}
		}
	}
}

func (e *Engine) writeEnvelope(env wire.Envelope) error {
	e.connMu.RLock()
	conn := e.conn
	e.connMu.RUnlock()
	if conn == nil {
		return nil
	}

	if env.VideoFrame != nil {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.BinaryMessage, wire.EncodeVideoFrame(*env.VideoFrame))
	}
	if env.FileChunk != nil {
		data, err := wire.EncodeFileChunk(*env.FileChunk)
		if err != nil {
			return err
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteMessage(websocket.BinaryMessage, data)
	}

	data, err := wire.EncodeText(env)
	if err != nil {
		return err
	}
	conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteMessage(websocket.TextMessage, data)
}
