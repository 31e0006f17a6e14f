package stats

import (
	"math/rand/v2"
	"time"
)

// NewSource returns an independent PCG stream. Workers sharing a seed but
// using different stream values never draw the same sequence.
func NewSource(seed, stream uint64) rand.Source {
	return rand.NewPCG(seed, stream)
}

// WorkerSources returns one source per worker. A zero seed derives one from
// the wall clock so successive runs differ.
func WorkerSources(seed uint64, workers int) []rand.Source {
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	srcs := make([]rand.Source, workers)
	for i := range srcs {
		srcs[i] = NewSource(seed, uint64(i)+1)
	}
	return srcs
}
