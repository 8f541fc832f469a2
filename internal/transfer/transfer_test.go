package transfer

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
)

func writeTempFile(t *testing.T, dir string, size int) string {
	t.Helper()
	path := filepath.Join(dir, "source.bin")
	data := make([]byte, size)
	for i := range data {
		data[i] = byte(i % 251)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		t.Fatalf("write temp file: %v", err)
	}
	return path
}

func TestUploadChunkingAndChecksum(t *testing.T) {
	dir := t.TempDir()
	src := writeTempFile(t, dir, 2500)

	e := NewEngine(filepath.Join(dir, "downloads"), 1000)
	rec, err := e.StartUpload(src)
	if err != nil {
		t.Fatalf("StartUpload: %v", err)
	}
	if rec.ExpectedChunks != 3 {
		t.Fatalf("ExpectedChunks = %d, want 3", rec.ExpectedChunks)
	}

	var total int
	for {
		_, data, ok, err := e.ReadNextChunk(rec.TransferID)
		if err != nil {
			t.Fatalf("ReadNextChunk: %v", err)
		}
		if !ok {
			break
		}
		total += len(data)
	}
	if total != 2500 {
		t.Fatalf("total read = %d, want 2500", total)
	}

	got, _ := e.Get(rec.TransferID)
	if !got.Completed {
		t.Fatal("expected upload to be marked completed")
	}

	raw, _ := os.ReadFile(src)
	sum := sha256.Sum256(raw)
	want := hex.EncodeToString(sum[:])
	if got.Checksum != want {
		t.Fatalf("checksum = %s, want %s", got.Checksum, want)
	}
}

func TestDownloadOutOfOrderChunksReassembleCorrectly(t *testing.T) {
	dir := t.TempDir()
	downloadDir := filepath.Join(dir, "downloads")
	e := NewEngine(downloadDir, 4)

	transferID := "t-1"
	if _, err := e.StartDownload(transferID, "out.bin", 12); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}

	chunks := [][]byte{
		[]byte("ABCD"),
		[]byte("EFGH"),
		[]byte("IJKL"),
	}

	// Write chunk 2, then 0, then 1: arrival order must not affect the result.
	if err := e.WriteChunk(transferID, 2, chunks[2]); err != nil {
		t.Fatalf("WriteChunk(2): %v", err)
	}
	if err := e.WriteChunk(transferID, 0, chunks[0]); err != nil {
		t.Fatalf("WriteChunk(0): %v", err)
	}
	if err := e.WriteChunk(transferID, 1, chunks[1]); err != nil {
		t.Fatalf("WriteChunk(1): %v", err)
	}

	rec, ok := e.Get(transferID)
	if !ok {
		t.Fatal("transfer record missing")
	}
	if !rec.Completed {
		t.Fatal("expected download to be marked completed")
	}

	got, err := os.ReadFile(rec.Path)
	if err != nil {
		t.Fatalf("read reassembled file: %v", err)
	}
	if string(got) != "ABCDEFGHIJKL" {
		t.Fatalf("reassembled content = %q, want %q", got, "ABCDEFGHIJKL")
	}
}

func TestVerifyChecksumMismatch(t *testing.T) {
	dir := t.TempDir()
	downloadDir := filepath.Join(dir, "downloads")
	e := NewEngine(downloadDir, 4)

	transferID := "t-2"
	if _, err := e.StartDownload(transferID, "out.bin", 4); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	if err := e.WriteChunk(transferID, 0, []byte("data")); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	ok, err := e.VerifyChecksum(transferID, "not-a-real-checksum")
	if err != nil {
		t.Fatalf("VerifyChecksum: %v", err)
	}
	if ok {
		t.Fatal("expected checksum mismatch")
	}
}

func TestStartDownloadRejectsPathTraversal(t *testing.T) {
	dir := t.TempDir()
	downloadDir := filepath.Join(dir, "downloads")
	e := NewEngine(downloadDir, 4)

	cases := []string{"../escape.bin", "../../etc/passwd", ".hidden", "..", "."}
	for _, name := range cases {
		if _, err := e.StartDownload("t-x", name, 4); err != ErrInvalidFilename {
			t.Errorf("StartDownload(%q) err = %v, want ErrInvalidFilename", name, err)
		}
	}
}

func TestCancelTransferRemovesPartialDownload(t *testing.T) {
	dir := t.TempDir()
	downloadDir := filepath.Join(dir, "downloads")
	e := NewEngine(downloadDir, 4)

	transferID := "t-3"
	rec, err := e.StartDownload(transferID, "partial.bin", 100)
	if err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	if err := e.WriteChunk(transferID, 0, []byte("data")); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	if err := e.CancelTransfer(transferID); err != nil {
		t.Fatalf("CancelTransfer: %v", err)
	}
	if _, err := os.Stat(rec.Path); !os.IsNotExist(err) {
		t.Fatal("expected partial download file to be removed")
	}
	if _, ok := e.Get(transferID); ok {
		t.Fatal("expected transfer record to be removed")
	}
}

func TestClearCompletedKeepsInFlightTransfers(t *testing.T) {
	dir := t.TempDir()
	downloadDir := filepath.Join(dir, "downloads")
	e := NewEngine(downloadDir, 4)

	done := "done"
	if _, err := e.StartDownload(done, "done.bin", 4); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}
	if err := e.WriteChunk(done, 0, []byte("data")); err != nil {
		t.Fatalf("WriteChunk: %v", err)
	}

	pending := "pending"
	if _, err := e.StartDownload(pending, "pending.bin", 8); err != nil {
		t.Fatalf("StartDownload: %v", err)
	}

	e.ClearCompleted()

	if _, ok := e.Get(done); ok {
		t.Fatal("expected completed transfer to be cleared")
	}
	if _, ok := e.Get(pending); !ok {
		t.Fatal("expected in-flight transfer to remain")
	}
}
