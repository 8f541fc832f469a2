package wire

import (
	"encoding/binary"
	"fmt"
)

// Binary envelopes carry VideoFrame and FileChunk payloads as websocket
// binary frames instead of JSON, to avoid base64-inflating bulky data. The
// header is a fixed 1-byte kind tag followed by a fixed-width metadata block
// specific to that kind, then the raw payload.
const (
	binaryKindVideoFrame byte = 0x01
	binaryKindFileChunk  byte = 0x02
)

// videoFrameHeaderLen: kind(1) + width(4) + height(4) + timestamp(8) + keyframe(1)
const videoFrameHeaderLen = 1 + 4 + 4 + 8 + 1

// fileChunkHeaderLen: kind(1) + transferIDLen(1) + chunkIndex(4), transferID bytes follow
const fileChunkHeaderLen = 1 + 1 + 4

// EncodeVideoFrame serializes a VideoFrame as a binary envelope.
func EncodeVideoFrame(f VideoFrame) []byte {
	buf := make([]byte, videoFrameHeaderLen+len(f.Data))
	buf[0] = binaryKindVideoFrame
	binary.BigEndian.PutUint32(buf[1:5], uint32(f.Width))
	binary.BigEndian.PutUint32(buf[5:9], uint32(f.Height))
	binary.BigEndian.PutUint64(buf[9:17], uint64(f.Timestamp))
	if f.IsKeyframe {
		buf[17] = 1
	}
	copy(buf[videoFrameHeaderLen:], f.Data)
	return buf
}

// EncodeFileChunk serializes a FileChunk as a binary envelope.
func EncodeFileChunk(c FileChunk) ([]byte, error) {
	if len(c.TransferID) > 255 {
		return nil, fmt.Errorf("transfer_id too long: %d bytes", len(c.TransferID))
	}
	headerLen := fileChunkHeaderLen + len(c.TransferID)
	buf := make([]byte, headerLen+len(c.Data))
	buf[0] = binaryKindFileChunk
	buf[1] = byte(len(c.TransferID))
	binary.BigEndian.PutUint32(buf[2:6], uint32(c.ChunkIndex))
	copy(buf[6:headerLen], c.TransferID)
	copy(buf[headerLen:], c.Data)
	return buf, nil
}

// IsDroppableBinary reports whether a binary envelope is a VideoFrame,
// without fully decoding it. VideoFrame is the only binary kind safe to
// drop under backpressure (§9: video tolerates drop-oldest, file chunks do
// not since they are non-regenerable); callers that forward raw binary
// frames without decoding them (the relay endpoint) use this to classify
// backpressure handling per frame.
func IsDroppableBinary(data []byte) bool {
	return len(data) > 0 && data[0] == binaryKindVideoFrame
}

// BinaryEnvelope is the result of decoding a binary websocket frame: exactly
// one of VideoFrame or FileChunk is set.
type BinaryEnvelope struct {
	VideoFrame *VideoFrame
	FileChunk  *FileChunk
}

// DecodeBinary parses a binary-frame envelope produced by EncodeVideoFrame
// or EncodeFileChunk.
func DecodeBinary(data []byte) (BinaryEnvelope, error) {
	if len(data) < 1 {
		return BinaryEnvelope{}, fmt.Errorf("empty binary envelope")
	}
	switch data[0] {
	case binaryKindVideoFrame:
		if len(data) < videoFrameHeaderLen {
			return BinaryEnvelope{}, fmt.Errorf("short video_frame envelope: %d bytes", len(data))
		}
		f := VideoFrame{
			Width:      int(binary.BigEndian.Uint32(data[1:5])),
			Height:     int(binary.BigEndian.Uint32(data[5:9])),
			Timestamp:  int64(binary.BigEndian.Uint64(data[9:17])),
			IsKeyframe: data[17] != 0,
			Data:       data[videoFrameHeaderLen:],
		}
		return BinaryEnvelope{VideoFrame: &f}, nil
	case binaryKindFileChunk:
		if len(data) < fileChunkHeaderLen {
			return BinaryEnvelope{}, fmt.Errorf("short file_chunk envelope: %d bytes", len(data))
		}
		idLen := int(data[1])
		headerLen := fileChunkHeaderLen + idLen
		if len(data) < headerLen {
			return BinaryEnvelope{}, fmt.Errorf("short file_chunk envelope: transfer_id truncated")
		}
		c := FileChunk{
			TransferID: string(data[6:headerLen]),
			ChunkIndex: int(binary.BigEndian.Uint32(data[2:6])),
			Data:       data[headerLen:],
		}
		return BinaryEnvelope{FileChunk: &c}, nil
	default:
		return BinaryEnvelope{}, fmt.Errorf("unknown binary envelope kind: 0x%02x", data[0])
	}
}
