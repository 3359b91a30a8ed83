package zmachine

import "math/rand/v2"

// rngMode selects between the random opcode's two behaviors per
// spec.md S4.6: genuinely random draws, or a deterministic cycling
// sequence for testing (random called with a negative range).
type rngMode int

const (
	modeRandom rngMode = iota
	modePredictable
)

// RNG implements the random opcode. It is built on ChaCha8, the
// primitive the original interpreter names explicitly (rand_chacha's
// ChaCha8Rng) - no example repo in the corpus offers a dedicated
// ChaCha8 package, so this is the one place the implementation reaches
// past the examples to the standard library's math/rand/v2, which
// wraps the same construction.
type RNG struct {
	mode             rngMode
	predictableRange uint16
	predictableNext  uint16
	rng              *rand.Rand
}

func chacha8FromEntropy() *rand.Rand {
	var seed [32]byte
	for i := 0; i < 32; i += 8 {
		v := rand.Uint64()
		for j := 0; j < 8; j++ {
			seed[i+j] = byte(v >> (8 * j))
		}
	}
	return rand.New(rand.NewChaCha8(seed))
}

// NewRNG seeds from OS entropy, matching ChaCha8Rng::from_entropy.
func NewRNG() *RNG {
	return &RNG{mode: modeRandom, predictableRange: 1, predictableNext: 1, rng: chacha8FromEntropy()}
}

// Seed reseeds deterministically (seed != 0) or from entropy (seed ==
// 0), and always returns to Random mode.
func (r *RNG) Seed(seed uint16) {
	if seed == 0 {
		r.rng = chacha8FromEntropy()
	} else {
		var b [32]byte
		v := uint64(seed)
		for i := 0; i < 8; i++ {
			b[i] = byte(v >> (8 * i))
		}
		r.rng = rand.New(rand.NewChaCha8(b))
	}
	r.mode = modeRandom
	r.predictableRange, r.predictableNext = 1, 1
}

// Predictable switches to a cycling 1..range sequence.
func (r *RNG) Predictable(seed uint16) {
	r.predictableRange = seed
	r.predictableNext = 1
	r.mode = modePredictable
}

// Random returns the next draw: a uniform value in [1, rng] when
// random, or the next value of the cycling sequence when predictable.
func (r *RNG) Random(rng uint16) uint16 {
	if r.mode == modePredictable {
		v := r.predictableNext
		if rng < r.predictableNext {
			v = r.predictableNext % rng
		}
		if r.predictableNext == r.predictableRange {
			r.predictableNext = 1
		} else {
			r.predictableNext++
		}
		return v
	}

	return uint16(r.rng.IntN(int(rng))) + 1
}
