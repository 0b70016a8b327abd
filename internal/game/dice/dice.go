// Package dice provides the random source used by combat resolution.
//
// Battles use a seeded ChaCha8 stream so a battle can be replayed from its
// ID and seed salt. Tests use Fixed to script exact rolls.
package dice

import (
	"math/rand/v2"
	"sync"

	"golang.org/x/crypto/blake2b"
)

// Roller is the random source for dodge, crit, proc chances and random targeting.
type Roller interface {
	Float64() float64 // [0.0, 1.0)
	IntN(n int) int   // [0, n)
}

// SeedFor derives a 32-byte ChaCha8 seed from a battle ID and salt.
func SeedFor(battleID, salt string) [32]byte {
	return blake2b.Sum256([]byte(battleID + "\x00" + salt))
}

// Seeded is a deterministic, goroutine-safe Roller.
type Seeded struct {
	mu  sync.Mutex
	rng *rand.Rand
}

// New creates a Seeded roller from a 32-byte seed.
func New(seed [32]byte) *Seeded {
	return &Seeded{rng: rand.New(rand.NewChaCha8(seed))}
}

// Float64 implements Roller.
func (s *Seeded) Float64() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.Float64()
}

// IntN implements Roller. n <= 0 returns 0.
func (s *Seeded) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rng.IntN(n)
}

// Chance rolls a probability p (clamped to [0,1]) and reports success.
func Chance(r Roller, p float64) bool {
	if p <= 0 {
		return false
	}
	if p >= 1 {
		return true
	}
	return r.Float64() < p
}

// Fixed replays scripted values; after the script runs out it repeats the
// last value. Float64 and IntN draw from separate scripts.
type Fixed struct {
	mu     sync.Mutex
	floats []float64
	ints   []int
}

// NewFixed creates a Fixed roller with scripted Float64 results.
func NewFixed(floats ...float64) *Fixed {
	return &Fixed{floats: floats}
}

// WithInts scripts IntN results. Values are reduced modulo n on use.
func (f *Fixed) WithInts(ints ...int) *Fixed {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ints = ints
	return f
}

// Float64 implements Roller.
func (f *Fixed) Float64() float64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.floats) == 0 {
		return 0.999
	}
	v := f.floats[0]
	if len(f.floats) > 1 {
		f.floats = f.floats[1:]
	}
	return v
}

// IntN implements Roller.
func (f *Fixed) IntN(n int) int {
	if n <= 0 {
		return 0
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.ints) == 0 {
		return 0
	}
	v := f.ints[0]
	if len(f.ints) > 1 {
		f.ints = f.ints[1:]
	}
	if v < 0 {
		v = -v
	}
	return v % n
}
