package check

import "sort"

// Tuning defaults carried by every entry point that builds a policy.
const (
	// DefaultWorkers keeps concurrency low on purpose: checking is
	// bandwidth and latency bound, not CPU bound, and more workers
	// mostly earn server-side throttling.
	DefaultWorkers = 5

	// DefaultBatchSize amortizes process and connection setup by
	// checking several URLs per probe invocation.
	DefaultBatchSize = 20

	// DefaultBatchSizeMin applies when there are few URLs. A minimum
	// above 1 is still faster because batched URLs on the same host
	// share connection setup.
	DefaultBatchSizeMin = 3

	// DefaultSortThreshold is the URL count below which batches are
	// built from a sorted list. Sorting groups same-host URLs for
	// connection reuse, but at scale alphabetically adjacent project
	// names frequently share a host (forges, mirrors) and sorted
	// batches hammer one server until it starts returning 429s. Above
	// the threshold the pseudo-random ordering of a map walk spreads
	// hosts across batches instead.
	DefaultSortThreshold = 100
)

// BatchPolicy controls how a URL set is partitioned into batches.
type BatchPolicy struct {
	TargetSize    int
	MinSize       int
	Workers       int
	SortThreshold int
}

func (p BatchPolicy) withDefaults() BatchPolicy {
	if p.TargetSize <= 0 {
		p.TargetSize = DefaultBatchSize
	}
	if p.MinSize <= 0 {
		p.MinSize = DefaultBatchSizeMin
	}
	if p.Workers <= 0 {
		p.Workers = DefaultWorkers
	}
	if p.SortThreshold <= 0 {
		p.SortThreshold = DefaultSortThreshold
	}
	return p
}

// Partition splits URLs into probe batches per the sizing and
// ordering policy. Small sets shrink the batch size so the worker
// pool still gets exploited instead of one worker taking everything.
func Partition(urls []string, policy BatchPolicy) [][]string {
	policy = policy.withDefaults()
	if len(urls) == 0 {
		return nil
	}

	size := policy.TargetSize
	if len(urls) < policy.TargetSize*policy.Workers {
		size = len(urls) / policy.Workers
		if size < policy.MinSize {
			size = policy.MinSize
		}
	}

	if len(urls) < policy.SortThreshold {
		sorted := append([]string(nil), urls...)
		sort.Strings(sorted)
		urls = sorted
	}

	batches := make([][]string, 0, (len(urls)+size-1)/size)
	for start := 0; start < len(urls); start += size {
		end := min(start+size, len(urls))
		batches = append(batches, urls[start:end:end])
	}
	return batches
}
