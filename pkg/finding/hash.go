package finding

import (
	"crypto/sha256"
	"encoding/hex"
)

// hashPrefix returns the first n hex characters of the SHA-256 digest of s.
func hashPrefix(s string, n int) string {
	sum := sha256.Sum256([]byte(s))
	full := hex.EncodeToString(sum[:])
	if n >= len(full) {
		return full
	}
	return full[:n]
}
