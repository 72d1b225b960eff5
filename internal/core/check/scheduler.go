package check

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
	"github.com/speclens/speclens/internal/core/probe"
)

// progressInterval is how many completed batches pass between
// progress log lines. Every batch would be too chatty at scale.
const progressInterval = 4

type batchJob struct {
	index int
	urls  []string
}

type batchOutcome struct {
	index    int
	statuses map[string]core.UrlStatus
	err      error
}

// runBatches fans the batches out to a bounded worker pool and merges
// results at a single point as completions arrive. A failed batch
// never aborts its siblings; its URLs simply stay out of the merged
// map and the failure is reported in the return values. Only the
// degenerate case where not a single batch produced a result turns
// into an error, because then rechecking and reporting would operate
// on nothing.
func (c *Checker) runBatches(ctx context.Context, batches [][]string, opts probe.Options) (map[string]core.UrlStatus, int, error) {
	logger := core.LoggerOrNop(c.Logger)

	totalURLs := 0
	for _, batch := range batches {
		totalURLs += len(batch)
	}
	if totalURLs == 0 {
		return map[string]core.UrlStatus{}, 0, nil
	}

	workers := c.policy().Workers
	if workers > len(batches) {
		workers = len(batches)
	}

	jobs := make(chan batchJob)
	outcomes := make(chan batchOutcome, len(batches))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range jobs {
				statuses, err := c.checkBatch(ctx, job.urls, opts)
				outcomes <- batchOutcome{index: job.index, statuses: statuses, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i, batch := range batches {
			select {
			case <-ctx.Done():
				return
			case jobs <- batchJob{index: i, urls: batch}:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	merged := make(map[string]core.UrlStatus, totalURLs)
	var failures []error
	completed := 0
	for outcome := range outcomes {
		completed++
		if outcome.err != nil {
			failures = append(failures, outcome.err)
			logger.Error("URL batch failed",
				zap.Int("batch", outcome.index),
				zap.Int("urls", len(batches[outcome.index])),
				zap.Error(outcome.err))
		}
		for rawURL, status := range outcome.statuses {
			merged[rawURL] = status
		}
		if completed%progressInterval == 0 || completed == len(batches) {
			logger.Info("checking URLs",
				zap.Int("checked", len(merged)),
				zap.Int("total", totalURLs),
				zap.Int("percent", 100*len(merged)/totalURLs))
		}
	}

	if err := ctx.Err(); err != nil {
		return merged, len(failures), err
	}
	if len(merged) == 0 && len(failures) > 0 {
		return merged, len(failures), fmt.Errorf("no URL batch produced results: %w", errors.Join(failures...))
	}
	return merged, len(failures), nil
}

// checkBatch probes one batch and classifies whatever outcomes came
// back. A probe error does not void the outcomes delivered alongside
// it; partial results are classified and the error reported with them.
func (c *Checker) checkBatch(ctx context.Context, urls []string, opts probe.Options) (map[string]core.UrlStatus, error) {
	probed, err := c.Prober.ProbeBatch(ctx, urls, opts)
	statuses := make(map[string]core.UrlStatus, len(probed))
	for rawURL, outcome := range probed {
		status, _ := c.classifier().Classify(outcome, rawURL, opts.Deadline)
		statuses[rawURL] = status
	}
	return statuses, err
}
