package provider

import (
	"crypto/md5"
	"fmt"
	"io"
	"os"
)

// hashChunkSize is how much of each end of the file feeds the hash.
const hashChunkSize = 64 * 1024

// FileHash computes the lookup hash for hash-based providers: the MD5 of
// the first and last 64KiB of the file. Files smaller than one chunk hash
// their full contents twice, matching the protocol's reference clients.
func FileHash(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return "", fmt.Errorf("failed to stat file: %w", err)
	}

	h := md5.New()

	head := make([]byte, hashChunkSize)
	n, err := io.ReadFull(f, head)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read file head: %w", err)
	}
	h.Write(head[:n])

	tailOffset := info.Size() - hashChunkSize
	if tailOffset < 0 {
		tailOffset = 0
	}
	if _, err := f.Seek(tailOffset, io.SeekStart); err != nil {
		return "", fmt.Errorf("failed to seek: %w", err)
	}

	tail := make([]byte, hashChunkSize)
	n, err = io.ReadFull(f, tail)
	if err != nil && err != io.ErrUnexpectedEOF {
		return "", fmt.Errorf("failed to read file tail: %w", err)
	}
	h.Write(tail[:n])

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}
