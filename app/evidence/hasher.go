package evidence

import (
	"crypto/sha256"
	"encoding/hex"
)

// Hasher computes the content digest of a canonical entry string. Injected so
// the chain algorithm stays independent of the digest implementation.
type Hasher interface {
	Sha256Hex(canonical string) string
}

// SHA256Hasher is the default Hasher over the standard SHA-256 digest.
type SHA256Hasher struct{}

func (SHA256Hasher) Sha256Hex(canonical string) string {
	sum := sha256.Sum256([]byte(canonical))
	return hex.EncodeToString(sum[:])
}

func NewSHA256Hasher() SHA256Hasher {
	return SHA256Hasher{}
}
