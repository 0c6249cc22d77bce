// Package hashx provides the content-hashing primitives used to identify
// files and segments across Blockframe: a one-shot hash over an in-memory
// byte slice and a bounded-memory streaming hash over a file on disk.
package hashx

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/zeebo/blake3"
)

// streamBufSize bounds the buffer used by HashFileStreaming so memory use
// stays independent of file size.
const streamBufSize = 1 << 20 // 1 MiB

// Size is the digest length, in bytes, of the hash Blockframe uses
// throughout the archive (256 bits).
const Size = 32

// HashBytes returns the lowercase hex digest of data.
func HashBytes(data []byte) string {
	sum := blake3.Sum256(data)

	return hex.EncodeToString(sum[:])
}

// HashFileStreaming returns the lowercase hex digest of the file at path,
// reading it in bounded buffers so memory use does not grow with file
// size.
func HashFileStreaming(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("error opening %q for hashing: %w", path, err)
	}
	defer f.Close()

	h := blake3.New()

	buf := make([]byte, streamBufSize)
	if _, err := io.CopyBuffer(h, f, buf); err != nil {
		return "", fmt.Errorf("error hashing %q: %w", path, err)
	}

	sum := h.Sum(nil)

	return hex.EncodeToString(sum), nil
}

// IsValidHex reports whether s is a lowercase hex string of exactly n
// characters.
func IsValidHex(s string, n int) bool {
	if len(s) != n {
		return false
	}

	for _, c := range s {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}

	return true
}
