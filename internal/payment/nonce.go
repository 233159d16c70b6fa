package payment

import (
	"fmt"
	"io"

	"github.com/mrz1836/paytoken/internal/constants"
)

// NewNonce draws a constants.NonceLength character nonce from r, which must be
// a cryptographically strong source such as crypto/rand.Reader. Bytes that
// would bias the alphabet are rejected and redrawn.
func NewNonce(r io.Reader) (string, error) {
	const alphabet = constants.NonceAlphabet
	// Largest multiple of len(alphabet) that fits in a byte.
	limit := byte(256 - 256%len(alphabet))

	out := make([]byte, 0, constants.NonceLength)
	buf := make([]byte, constants.NonceLength*2)
	for len(out) < constants.NonceLength {
		if _, err := io.ReadFull(r, buf); err != nil {
			return "", fmt.Errorf("failed to read nonce randomness: %w", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == constants.NonceLength {
				break
			}
		}
	}
	return string(out), nil
}
