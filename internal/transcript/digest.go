package transcript

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"

	"github.com/roach88/convoscript/internal/ir"
)

// DigestDomain separates transcript digests from any other SHA-256 use.
const DigestDomain = "convoscript/transcript/v" + ir.TranscriptVersion

// Digest returns the hex SHA-256 of the transcript at path.
// Format: SHA256(domain + 0x00 + contents).
func Digest(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("digest transcript: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	h.Write([]byte(DigestDomain))
	h.Write([]byte{0x00})
	if _, err := io.Copy(h, f); err != nil {
		return "", fmt.Errorf("digest transcript: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}
