package check

import (
	"context"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

// runPasses executes the initial no-redirect pass over urls, then
// rechecks the subsets that landed on an intermediate status. Both
// rechecks follow redirects with the longer deadline: REDIRECT so the
// chain gets resolved to a final answer, TEMPORARY_ERR because many
// throttling hosts answer properly once asked again a little later
// and with more patience. Pass results overwrite earlier ones, so the
// returned map holds each URL's latest verdict.
func (c *Checker) runPasses(ctx context.Context, urls []string, run *core.CheckRun) (map[string]core.UrlStatus, error) {
	logger := core.LoggerOrNop(c.Logger)

	statuses, failed, err := c.runBatches(ctx, Partition(urls, c.policy()), c.probeOptions(false))
	run.Passes++
	run.FailedBatches += failed
	if err != nil {
		return statuses, err
	}

	rechecks := []struct {
		status core.UrlStatus
		reason string
	}{
		{core.StatusRedirect, "redirected"},
		{core.StatusTemporaryErr, "temporary error"},
	}
	for _, recheck := range rechecks {
		subset := make([]string, 0)
		for rawURL, status := range statuses {
			if status == recheck.status {
				subset = append(subset, rawURL)
			}
		}
		if len(subset) == 0 {
			continue
		}

		logger.Info("rechecking URLs",
			zap.String("reason", recheck.reason), zap.Int("urls", len(subset)))
		rechecked, failed, err := c.runBatches(ctx, Partition(subset, c.policy()), c.probeOptions(true))
		run.Passes++
		run.FailedBatches += failed
		for rawURL, status := range rechecked {
			statuses[rawURL] = status
		}
		if err != nil {
			return statuses, err
		}
	}
	return statuses, nil
}
