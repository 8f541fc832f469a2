// Package transfer implements chunked file upload/download with
// offset-addressed writes and a SHA-256 integrity check, per the spec's
// Transfer Engine contract.
package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/relaydesk/fabric/internal/logging"
	"github.com/relaydesk/fabric/internal/wire"
)

var log = logging.L("transfer")

// DefaultChunkSize is CHUNK_SIZE from the spec: 1 MiB.
const DefaultChunkSize = 1 << 20

var (
	ErrNotFound         = errors.New("transfer not found")
	ErrInvalidFilename  = errors.New("invalid filename")
	ErrChecksumMismatch = errors.New("checksum mismatch")
)

// Record tracks one in-flight or completed transfer.
type Record struct {
	TransferID       string
	Filename         string
	TotalSize        int64
	Direction        wire.TransferDirection
	BytesTransferred int64
	ChunkCount       int
	ExpectedChunks   int
	Completed        bool
	Checksum         string
	Err              error
	Path             string

	file *os.File
	mu   sync.Mutex
}

// Engine holds every in-flight transfer, keyed by transfer_id.
type Engine struct {
	mu          sync.Mutex
	chunkSize   int
	downloadDir string
	transfers   map[string]*Record
}

func NewEngine(downloadDir string, chunkSize int) *Engine {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	return &Engine{
		chunkSize:   chunkSize,
		downloadDir: downloadDir,
		transfers:   make(map[string]*Record),
	}
}

func expectedChunks(totalSize int64, chunkSize int) int {
	if totalSize <= 0 {
		return 0
	}
	n := totalSize / int64(chunkSize)
	if totalSize%int64(chunkSize) != 0 {
		n++
	}
	return int(n)
}

// StartUpload opens path, stats its size, and allocates a fresh transfer_id.
func (e *Engine) StartUpload(path string) (*Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload file: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat upload file: %w", err)
	}
	if info.IsDir() {
		f.Close()
		return nil, fmt.Errorf("transfer: %q is a directory", path)
	}

	rec := &Record{
		TransferID:     uuid.NewString(),
		Filename:       filepath.Base(path),
		TotalSize:      info.Size(),
		Direction:      wire.DirectionUpload,
		ExpectedChunks: expectedChunks(info.Size(), e.chunkSize),
		Path:           path,
		file:           f,
	}

	e.mu.Lock()
	e.transfers[rec.TransferID] = rec
	e.mu.Unlock()

	log.Info("upload started", "transfer_id", rec.TransferID, "filename", rec.Filename, "size", rec.TotalSize)
	return rec, nil
}

// ReadNextChunk reads up to chunkSize bytes from the current file position.
// ok is false once EOF is reached, at which point Completed is set and the
// checksum is computed.
func (e *Engine) ReadNextChunk(transferID string) (chunkIndex int, data []byte, ok bool, err error) {
	rec, err := e.get(transferID)
	if err != nil {
		return 0, nil, false, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	buf := make([]byte, e.chunkSize)
	n, readErr := rec.file.Read(buf)
	if n == 0 {
		if readErr != nil && readErr != io.EOF {
			rec.Err = readErr
			return 0, nil, false, readErr
		}
		rec.Completed = true
		sum, sumErr := checksumFile(rec.Path)
		if sumErr != nil {
			rec.Err = sumErr
			return 0, nil, false, sumErr
		}
		rec.Checksum = sum
		rec.file.Close()
		log.Info("upload complete", "transfer_id", transferID, "checksum", sum)
		return 0, nil, false, nil
	}

	idx := rec.ChunkCount
	rec.ChunkCount++
	rec.BytesTransferred += int64(n)
	return idx, buf[:n], true, nil
}

// StartDownload creates or truncates downloadDir/filename.
func (e *Engine) StartDownload(transferID, filename string, totalSize int64) (*Record, error) {
	safePath, err := e.sanitizedPath(filename)
	if err != nil {
		return nil, err
	}

	f, err := os.Create(safePath)
	if err != nil {
		return nil, fmt.Errorf("create download file: %w", err)
	}

	rec := &Record{
		TransferID:     transferID,
		Filename:       filepath.Base(safePath),
		TotalSize:      totalSize,
		Direction:      wire.DirectionDownload,
		ExpectedChunks: expectedChunks(totalSize, e.chunkSize),
		Path:           safePath,
		file:           f,
	}

	e.mu.Lock()
	e.transfers[transferID] = rec
	e.mu.Unlock()

	log.Info("download started", "transfer_id", transferID, "filename", rec.Filename, "size", totalSize)
	return rec, nil
}

// sanitizedPath rejects path traversal and confines the result to downloadDir.
func (e *Engine) sanitizedPath(filename string) (string, error) {
	base := filepath.Base(filename)
	if base == "." || base == ".." || base == "" || strings.HasPrefix(base, ".") {
		return "", ErrInvalidFilename
	}

	joined := filepath.Join(e.downloadDir, base)
	absDir, err := filepath.Abs(e.downloadDir)
	if err != nil {
		return "", err
	}
	absJoined, err := filepath.Abs(joined)
	if err != nil {
		return "", err
	}
	if absJoined != absDir && !strings.HasPrefix(absJoined, absDir+string(filepath.Separator)) {
		return "", ErrInvalidFilename
	}
	if err := os.MkdirAll(absDir, 0700); err != nil {
		return "", err
	}
	return absJoined, nil
}

// WriteChunk seeks to chunk_index*chunkSize and writes data, tolerating
// out-of-order arrival via offset addressing.
func (e *Engine) WriteChunk(transferID string, chunkIndex int, data []byte) error {
	rec, err := e.get(transferID)
	if err != nil {
		return err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	offset := int64(chunkIndex) * int64(e.chunkSize)
	if _, err := rec.file.WriteAt(data, offset); err != nil {
		rec.Err = err
		return fmt.Errorf("write chunk %d: %w", chunkIndex, err)
	}
	if err := rec.file.Sync(); err != nil {
		return fmt.Errorf("flush chunk %d: %w", chunkIndex, err)
	}

	rec.ChunkCount++
	rec.BytesTransferred += int64(len(data))

	if rec.ChunkCount >= rec.ExpectedChunks {
		rec.Completed = true
		rec.file.Close()
		sum, err := checksumFile(rec.Path)
		if err != nil {
			rec.Err = err
			return err
		}
		rec.Checksum = sum
		log.Info("download complete", "transfer_id", transferID, "checksum", sum)
	}
	return nil
}

// VerifyChecksum recomputes the file's SHA-256 and compares to expected.
func (e *Engine) VerifyChecksum(transferID, expected string) (bool, error) {
	rec, err := e.get(transferID)
	if err != nil {
		return false, err
	}
	sum, err := checksumFile(rec.Path)
	if err != nil {
		return false, err
	}
	return sum == expected, nil
}

// CancelTransfer removes transfer state. A download with Completed=false
// additionally deletes the partial file.
func (e *Engine) CancelTransfer(transferID string) error {
	e.mu.Lock()
	rec, ok := e.transfers[transferID]
	if ok {
		delete(e.transfers, transferID)
	}
	e.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.file != nil {
		rec.file.Close()
	}
	if rec.Direction == wire.DirectionDownload && !rec.Completed {
		if err := os.Remove(rec.Path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove partial download: %w", err)
		}
	}
	return nil
}

// ClearCompleted removes all transfer records whose Completed is true.
func (e *Engine) ClearCompleted() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id, rec := range e.transfers {
		if rec.Completed {
			delete(e.transfers, id)
		}
	}
}

func (e *Engine) get(transferID string) (*Record, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.transfers[transferID]
	if !ok {
		return nil, ErrNotFound
	}
	return rec, nil
}

// Get returns the record for inspection (progress reporting, status checks).
func (e *Engine) Get(transferID string) (*Record, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	rec, ok := e.transfers[transferID]
	return rec, ok
}

func checksumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
