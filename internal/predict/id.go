package predict

import (
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"
)

const uuidTemplate = "xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx"

// NewID returns a random v4 UUID, falling back to polyfillUUID when the
// secure source is unavailable.
func NewID() string {
	id, err := uuid.NewRandom()
	if err != nil {
		return polyfillUUID(rand.IntN)
	}
	return id.String()
}

// polyfillUUID fills uuidTemplate with random hex digits; y keeps the RFC 4122
// variant bits (8, 9, a or b).
func polyfillUUID(intn func(n int) int) string {
	const hex = "0123456789abcdef"
	var b strings.Builder
	b.Grow(len(uuidTemplate))
	for i := 0; i < len(uuidTemplate); i++ {
		switch c := uuidTemplate[i]; c {
		case 'x':
			b.WriteByte(hex[intn(16)])
		case 'y':
			b.WriteByte(hex[intn(16)&0x3|0x8])
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
