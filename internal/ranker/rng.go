package ranker

import (
	"math/rand"
	"time"
)

// Rand is the randomness the weighted pre-selection draws from. Selection
// is deliberately randomized so repeated runs surface different but still
// weight-biased content; tests inject a fixed source for determinism.
type Rand interface {
	Float64() float64
	Intn(n int) int
}

func NewRand(seed int64) Rand {
	return rand.New(rand.NewSource(seed))
}

func NewTimeSeededRand() Rand {
	return NewRand(time.Now().UnixNano())
}
