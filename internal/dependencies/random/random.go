package random

import (
	"crypto/rand"
	"math/big"
)

// Random is the randomness source for seat colors and invite codes.
// Tests substitute mocks.MockRandom to force specific outcomes.
type Random interface {
	// Intn returns a value in [0, n)
	Intn(n int) int

	// String returns length characters drawn uniformly from alphabet
	String(length int, alphabet string) string
}

// CryptoRandom draws from crypto/rand
type CryptoRandom struct{}

// New creates a CryptoRandom
func New() *CryptoRandom {
	return &CryptoRandom{}
}

func (r *CryptoRandom) Intn(n int) int {
	if n <= 1 {
		return 0
	}
	v, err := rand.Int(rand.Reader, big.NewInt(int64(n)))
	if err != nil {
		// crypto/rand only fails if the OS entropy source is gone
		panic("random: " + err.Error())
	}
	return int(v.Int64())
}

func (r *CryptoRandom) String(length int, alphabet string) string {
	if length <= 0 || alphabet == "" {
		return ""
	}
	symbols := []rune(alphabet)
	out := make([]rune, length)
	for i := range out {
		out[i] = symbols[r.Intn(len(symbols))]
	}
	return string(out)
}
