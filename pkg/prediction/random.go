package prediction

import (
	"math/rand"
	"sync"
	"time"
)

// RandomSource feeds every probabilistic decision in the coordinator: alert
// triggers, display jitter and the synthetic series.
type RandomSource interface {
	Float64() float64
	Intn(n int) int
}

type lockedRand struct {
	mu sync.Mutex
	r  *rand.Rand
}

func NewRandomSource(seed int64) RandomSource {
	return &lockedRand{r: rand.New(rand.NewSource(seed))}
}

func defaultRandomSource() RandomSource {
	return NewRandomSource(time.Now().UnixNano())
}

func (l *lockedRand) Float64() float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Float64()
}

func (l *lockedRand) Intn(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.r.Intn(n)
}
