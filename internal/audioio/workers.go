package audioio

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"github.com/cwbudde/piano-norm/sample"
)

// ParseWorkers parses a -workers flag value: an integer >= 1, or "auto"
// which returns 0.
func ParseWorkers(raw string) (int, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if v == "" {
		return 0, fmt.Errorf("empty value (use integer >= 1 or 'auto')")
	}
	if v == "auto" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%q (use integer >= 1 or 'auto')", raw)
	}
	if n < 1 {
		return 0, fmt.Errorf("%d (must be >= 1 or 'auto')", n)
	}
	return n, nil
}

// Loaded is the outcome of loading one path.
type Loaded struct {
	Path   string
	Buffer sample.Buffer
	OK     bool
	Err    error
}

// LoadAll loads paths with up to workers goroutines (0 means GOMAXPROCS)
// and returns the results in the order of paths.
func LoadAll(paths []string, workers int, load func(string) (sample.Buffer, bool, error)) []Loaded {
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	workers = max(1, min(workers, len(paths)))

	out := make([]Loaded, len(paths))
	next := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range next {
				b, ok, err := load(paths[i])
				out[i] = Loaded{Path: paths[i], Buffer: b, OK: ok, Err: err}
			}
		}()
	}
	for i := range paths {
		next <- i
	}
	close(next)
	wg.Wait()
	return out
}
