package spectree

import (
	"context"
	"runtime"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

// scanProgressInterval is how many processed packages pass between
// progress log lines.
const scanProgressInterval = 100

// DefaultWorkers sizes the spec scanning pool. Parsing is
// process-spawn bound rather than CPU bound, so a bit more than the
// core count keeps every core busy while some workers sit in fork.
func DefaultWorkers() int {
	return runtime.NumCPU() * 3 / 2
}

// ForEachPackage runs fn over every package on a bounded worker pool,
// logging coarse progress. This pool is distinct from the network
// checking pool and sized for local process spawning.
func ForEachPackage(ctx context.Context, packages []string, workers int, logger core.Logger, fn func(pkg string)) error {
	logger = core.LoggerOrNop(logger)
	if len(packages) == 0 {
		return nil
	}
	if workers <= 0 {
		workers = DefaultWorkers()
	}
	if workers > len(packages) {
		workers = len(packages)
	}

	jobs := make(chan string)
	var wg sync.WaitGroup
	var completed atomic.Int64

	total := len(packages)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for pkg := range jobs {
				fn(pkg)
				n := int(completed.Add(1))
				if n%scanProgressInterval == 0 || n == total {
					logger.Info("scanning packages",
						zap.Int("processed", n),
						zap.Int("total", total),
						zap.Int("percent", 100*n/total))
				}
			}
		}()
	}

	var dispatchErr error
dispatch:
	for _, pkg := range packages {
		select {
		case <-ctx.Done():
			dispatchErr = ctx.Err()
			break dispatch
		case jobs <- pkg:
		}
	}
	close(jobs)
	wg.Wait()
	return dispatchErr
}
