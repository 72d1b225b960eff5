package probe

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/speclens/speclens/internal/core"
)

// CurlProber shells out to curl, one invocation per batch, letting
// curl reuse connections across URLs in the invocation. Output lines
// cannot be trusted to echo the effective URL, so the batch is probed
// in sorted order and one URL is popped per result line.
type CurlProber struct {
	// Path locates the curl binary; "curl" when empty.
	Path string

	Logger core.Logger
}

const writeOutFormat = `%{response_code} %{ssl_verify_result} %{time_connect} %{time_total} %{num_connects} %{url_effective}` + "\n"

func (p *CurlProber) ProbeBatch(ctx context.Context, urls []string, opts Options) (map[string]core.Outcome, error) {
	logger := core.LoggerOrNop(p.Logger)
	logger.Debug("checking batch", zap.Int("urls", len(urls)))

	ordered := append([]string(nil), urls...)
	sort.Strings(ordered)

	args := []string{"--ssl", "-s", "--ftp-method", "singlecwd", "-m", strconv.Itoa(int(opts.Deadline / time.Second)), "-I"}
	if opts.FollowRedirects {
		args = append(args, "-L", "--max-redirs", strconv.Itoa(maxRedirects))
	}
	args = append(args, "--write-out", writeOutFormat)
	for _, u := range ordered {
		args = append(args, "-o", os.DevNull, u)
	}

	binary := p.Path
	if binary == "" {
		binary = "curl"
	}
	cmd := exec.CommandContext(ctx, binary, args...)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start %s: %w", binary, err)
	}

	results := make(map[string]core.Outcome, len(urls))
	remaining := ordered
	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		logger.Debug("probe result line", zap.String("line", line))
		if len(remaining) == 0 {
			logger.Error("more probe result lines than URLs in batch", zap.String("line", line))
			break
		}
		resultURL := remaining[0]
		remaining = remaining[1:]

		outcome, err := parseWriteOutLine(line)
		if err != nil {
			logger.Error("cannot parse probe result", zap.String("url", resultURL), zap.Error(err))
			continue
		}
		results[resultURL] = outcome
	}

	scanErr := scanner.Err()
	waitErr := cmd.Wait()
	if err := ctx.Err(); err != nil {
		return results, err
	}
	if scanErr != nil {
		return results, scanErr
	}
	if waitErr != nil {
		// curl exits nonzero whenever any URL in the batch failed;
		// the lines that did arrive are still valid, and URLs that
		// produced none get the pipeline default.
		var exitErr *exec.ExitError
		if errors.As(waitErr, &exitErr) {
			logger.Debug("probe tool exited nonzero",
				zap.Int("code", exitErr.ExitCode()),
				zap.String("stderr", strings.TrimSpace(stderr.String())))
			return results, nil
		}
		return results, waitErr
	}
	return results, nil
}

// parseWriteOutLine decodes one --write-out line. Timing fields are
// fractional seconds; they are converted to durations here so the
// rest of the pipeline never sees a unit-ambiguous number.
func parseWriteOutLine(line string) (core.Outcome, error) {
	fields := strings.SplitN(line, " ", 6)
	if len(fields) < 6 {
		return core.Outcome{}, fmt.Errorf("malformed probe result: %q", line)
	}

	responseCode, err := strconv.Atoi(fields[0])
	if err != nil {
		return core.Outcome{}, fmt.Errorf("response code: %w", err)
	}
	verifyResult, err := strconv.Atoi(fields[1])
	if err != nil {
		return core.Outcome{}, fmt.Errorf("ssl verify result: %w", err)
	}
	connectSeconds, err := strconv.ParseFloat(fields[2], 64)
	if err != nil {
		return core.Outcome{}, fmt.Errorf("connect time: %w", err)
	}
	totalSeconds, err := strconv.ParseFloat(fields[3], 64)
	if err != nil {
		return core.Outcome{}, fmt.Errorf("total time: %w", err)
	}
	connects, err := strconv.Atoi(fields[4])
	if err != nil {
		return core.Outcome{}, fmt.Errorf("connection count: %w", err)
	}

	return core.Outcome{
		ResponseCode:    responseCode,
		TLSVerifyResult: verifyResult,
		ConnectTime:     time.Duration(connectSeconds * float64(time.Second)),
		TotalTime:       time.Duration(totalSeconds * float64(time.Second)),
		ConnectionCount: connects,
	}, nil
}
