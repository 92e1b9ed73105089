// Package parallel runs independent per-item work across goroutines.
package parallel

import (
	"runtime"
	"sync"
)

// Config controls parallel execution.
type Config struct {
	Enabled      bool // Whether parallel execution is enabled.
	NumWorkers   int  // Number of worker goroutines to use.
	MinChunkSize int  // Minimum items per goroutine.
}

// DefaultConfig uses one worker per CPU. Task conversions are heavy enough
// that small chunks pay off.
func DefaultConfig() Config {
	n := runtime.NumCPU()
	return Config{
		Enabled:      n > 1,
		NumWorkers:   n,
		MinChunkSize: 4,
	}
}

// For executes f(i) for i in [0, n), sequentially when parallelism is
// disabled or n is below one chunk.
func For(n int, f func(i int), cfg Config) {
	if !cfg.Enabled || cfg.NumWorkers <= 1 || n < cfg.MinChunkSize {
		for i := 0; i < n; i++ {
			f(i)
		}
		return
	}

	var wg sync.WaitGroup
	chunkSize := max((n+cfg.NumWorkers-1)/cfg.NumWorkers, cfg.MinChunkSize, 1)
	for start := 0; start < n; start += chunkSize {
		end := min(start+chunkSize, n)
		wg.Add(1)
		go func(s, e int) {
			defer wg.Done()
			for i := s; i < e; i++ {
				f(i)
			}
		}(start, end)
	}
	wg.Wait()
}

// Map applies f to every element of in and returns the results in order.
// The error of the lowest failing index is returned.
func Map[In, Out any](in []In, f func(In) (Out, error), cfg Config) ([]Out, error) {
	out := make([]Out, len(in))
	errs := make([]error, len(in))
	For(len(in), func(i int) {
		out[i], errs[i] = f(in[i])
	}, cfg)
	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}
