package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/relaydesk/fabric/internal/transfer"
	"github.com/relaydesk/fabric/internal/wire"
)

func TestStateTrackerNotifiesListeners(t *testing.T) {
	st := newStateTracker()
	var seen []ConnState
	st.OnChange(func(s ConnState) { seen = append(seen, s) })

	st.set(Connecting)
	st.set(Connected)

	if st.Get() != Connected {
		t.Fatalf("Get() = %v, want Connected", st.Get())
	}
	want := []ConnState{Connecting, Connected}
	if len(seen) != len(want) {
		t.Fatalf("seen = %v, want %v", seen, want)
	}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("seen[%d] = %v, want %v", i, seen[i], want[i])
		}
	}
}

func newTestEngine() *Engine {
	return New(Config{DeviceID: "DEV-A"}, nil, nil, nil, nil, nil)
}

func TestEnqueueVideoDropsOldestWhenFull(t *testing.T) {
	e := newTestEngine()

	for i := 0; i < videoQueueSize+2; i++ {
		e.enqueueVideo(wire.Envelope{
			Kind:       wire.KindVideoFrame,
			VideoFrame: &wire.VideoFrame{Timestamp: int64(i)},
		})
	}

	if len(e.outgoingVideo) != videoQueueSize {
		t.Fatalf("queue length = %d, want %d", len(e.outgoingVideo), videoQueueSize)
	}

	// The newest frame must be present; the oldest must have been evicted.
	var sawNewest bool
	for i := 0; i < videoQueueSize; i++ {
		env := <-e.outgoingVideo
		if env.VideoFrame.Timestamp == int64(videoQueueSize+1) {
			sawNewest = true
		}
	}
	if !sawNewest {
		t.Fatal("expected the most recently enqueued frame to survive eviction")
	}
}

func TestResolvePendingDeliversResponse(t *testing.T) {
	e := newTestEngine()
	waiter := make(chan wire.ConnectResponse, 1)
	e.pendingMu.Lock()
	e.pending["DEV-B"] = waiter
	e.pendingMu.Unlock()

	e.dispatch(wire.Envelope{
		Kind:            wire.KindConnectResponse,
		ConnectResponse: &wire.ConnectResponse{Success: true, SessionID: "sess-1"},
	})

	select {
	case resp := <-waiter:
		if !resp.Success || resp.SessionID != "sess-1" {
			t.Fatalf("unexpected response: %+v", resp)
		}
	case <-time.After(time.Second):
		t.Fatal("resolvePending did not deliver to waiter")
	}
}

func TestDispatchPingRepliesWithPong(t *testing.T) {
	e := newTestEngine()
	e.dispatch(wire.Envelope{Kind: wire.KindPing})

	select {
	case env := <-e.outgoing:
		if env.Kind != wire.KindPong {
			t.Fatalf("Kind = %v, want Pong", env.Kind)
		}
	case <-time.After(time.Second):
		t.Fatal("no Pong enqueued")
	}
}

func TestDispatchPongUpdatesLastPong(t *testing.T) {
	e := newTestEngine()
	before := time.Now()
	e.dispatch(wire.Envelope{Kind: wire.KindPong})

	e.lastPongMu.Lock()
	last := e.lastPong
	e.lastPongMu.Unlock()

	if last.Before(before) {
		t.Fatal("expected lastPong to be updated to a time at or after the call")
	}
}

func newUploadTestEngine(t *testing.T, content []byte) (*Engine, string) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.bin")
	if err := os.WriteFile(path, content, 0600); err != nil {
		t.Fatalf("write upload fixture: %v", err)
	}
	// A small chunk size forces multiple chunks even for a short fixture.
	xfer := transfer.NewEngine(t.TempDir(), 4)
	e := New(Config{DeviceID: "DEV-A"}, nil, nil, xfer, nil, nil)
	return e, path
}

func TestSendFileSendsFileTransferRequest(t *testing.T) {
	e, path := newUploadTestEngine(t, []byte("hello world"))

	transferID, err := e.SendFile(path)
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	if transferID == "" {
		t.Fatal("expected a non-empty transfer id")
	}

	select {
	case env := <-e.outgoing:
		if env.Kind != wire.KindFileTransferRequest {
			t.Fatalf("Kind = %v, want FileTransferRequest", env.Kind)
		}
		if env.FileTransferRequest.TransferID != transferID {
			t.Fatalf("TransferID = %q, want %q", env.FileTransferRequest.TransferID, transferID)
		}
		if env.FileTransferRequest.Direction != wire.DirectionUpload {
			t.Fatalf("Direction = %v, want Upload", env.FileTransferRequest.Direction)
		}
	case <-time.After(time.Second):
		t.Fatal("no FileTransferRequest enqueued")
	}
}

func TestSendFileWithoutTransferEngineErrors(t *testing.T) {
	e := newTestEngine()
	if _, err := e.SendFile("/nonexistent"); err == nil {
		t.Fatal("expected an error when no transfer engine is configured")
	}
}

func TestHandleTransferResponseStreamsChunksThenCompletes(t *testing.T) {
	e, path := newUploadTestEngine(t, []byte("hello world"))

	transferID, err := e.SendFile(path)
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	<-e.outgoing // drain the FileTransferRequest

	e.dispatch(wire.Envelope{
		Kind:                 wire.KindFileTransferResponse,
		FileTransferResponse: &wire.FileTransferResponse{TransferID: transferID, Accepted: true},
	})

	var chunks [][]byte
	var gotComplete bool
	deadline := time.After(2 * time.Second)
	for !gotComplete {
		select {
		case env := <-e.outgoing:
			switch env.Kind {
			case wire.KindFileChunk:
				chunks = append(chunks, env.FileChunk.Data)
			case wire.KindFileTransferComplete:
				if !env.FileTransferComplete.Success {
					t.Fatal("expected FileTransferComplete.Success = true")
				}
				gotComplete = true
			default:
				t.Fatalf("unexpected envelope kind %v", env.Kind)
			}
		case <-deadline:
			t.Fatal("timed out waiting for upload chunks and completion")
		}
	}

	var reassembled []byte
	for _, c := range chunks {
		reassembled = append(reassembled, c...)
	}
	if string(reassembled) != "hello world" {
		t.Fatalf("reassembled chunks = %q, want %q", reassembled, "hello world")
	}
}

func TestHandleTransferResponseIgnoresRejection(t *testing.T) {
	e, path := newUploadTestEngine(t, []byte("x"))

	transferID, err := e.SendFile(path)
	if err != nil {
		t.Fatalf("SendFile: %v", err)
	}
	<-e.outgoing // drain the FileTransferRequest

	e.dispatch(wire.Envelope{
		Kind:                 wire.KindFileTransferResponse,
		FileTransferResponse: &wire.FileTransferResponse{TransferID: transferID, Accepted: false},
	})

	select {
	case env := <-e.outgoing:
		t.Fatalf("expected no further frames after rejection, got %v", env.Kind)
	case <-time.After(100 * time.Millisecond):
	}
}
