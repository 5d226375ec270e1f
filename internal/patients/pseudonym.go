package patients

import (
	"encoding/hex"

	"golang.org/x/crypto/blake2b"
)

// Pseudonymizer derives stable, non-reversible tokens from patient ids so
// logs and traces never carry the identifier itself.
type Pseudonymizer struct {
	key []byte
}

// NewPseudonymizer keys the digest with key. Keys longer than BLAKE2b's
// 64-byte limit are hashed down first.
func NewPseudonymizer(key string) *Pseudonymizer {
	k := []byte(key)
	if len(k) > blake2b.Size {
		sum := blake2b.Sum256(k)
		k = sum[:]
	}
	return &Pseudonymizer{key: k}
}

// Pseudonym returns a 16 hex character token for id.
func (p *Pseudonymizer) Pseudonym(id string) string {
	h, err := blake2b.New256(p.key)
	if err != nil {
		// unreachable: the key length is bounded in NewPseudonymizer
		panic(err)
	}
	h.Write([]byte(id))
	return hex.EncodeToString(h.Sum(nil))[:16]
}
