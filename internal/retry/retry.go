// Package retry implements the transport-uniform retry policy: classify
// a failure as transient or terminal, and if transient, retry with
// exponential backoff and jitter under a shared time budget.
package retry

import (
	"context"
	"errors"
	"math/rand/v2"
	"net"
	"os"
	"regexp"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/mcpbridge/mcpbridge/internal/log"
)

// transientMessage matches error text that indicates a transient failure
// even when no typed error code is available (e.g. a wrapped remote
// error surfaced only as a string by an MCP transport).
var transientMessage = regexp.MustCompile(`(?i)network (error|fail|unavailable|timeout)|connection (reset|refused|timeout)|\btimeout\b`)

var transientErrno = map[syscall.Errno]bool{
	syscall.ECONNREFUSED: true,
	syscall.ECONNRESET:   true,
	syscall.ETIMEDOUT:    true,
	syscall.ENETUNREACH:  true,
	syscall.EHOSTUNREACH: true,
	syscall.EPIPE:        true,
}

var transientHTTPStatus = map[string]bool{
	"429": true, "502": true, "503": true, "504": true,
}

// Classify reports whether err is safe to retry: a transient connect,
// dial, or I/O failure rather than a terminal configuration or
// validation error.
func Classify(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		if transientErrno[errno] {
			return true
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true // ENOTFOUND / EAI_AGAIN-shaped resolution failures
	}

	var opErr *net.OpError
	if errors.As(err, &opErr) {
		if opErr.Timeout() {
			return true
		}
	}

	msg := err.Error()
	if status := leadingHTTPStatus(msg); status != "" && transientHTTPStatus[status] {
		return true
	}
	if transientMessage.MatchString(msg) {
		return true
	}
	return false
}

// leadingHTTPStatus finds a 3-digit status code at the start of msg, or
// after a short status-word preamble such as "http status ".
func leadingHTTPStatus(msg string) string {
	msg = strings.TrimSpace(msg)
	fields := strings.FieldsFunc(msg, func(r rune) bool {
		return r == ' ' || r == ':' || r == '('
	})
	for i, f := range fields {
		if len(f) == 3 {
			if _, err := strconv.Atoi(f); err == nil {
				return f
			}
		}
		if i > 3 {
			break
		}
	}
	return ""
}

// Config mirrors the RetryConfig data model: maxRetries, base/max delay,
// and the total shared time budget for the whole operation (connect +
// retries + delays).
type Config struct {
	MaxRetries  int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	TotalBudget time.Duration
}

// FromEnv derives a Config from MCP_MAX_RETRIES, MCP_RETRY_DELAY, and
// MCP_TIMEOUT, applying the defaults and the maxDelay derivation from
// §3: maxDelayMs = min(10_000, (totalBudgetMs − 5_000) / 2).
func FromEnv() Config {
	maxRetries := envInt("MCP_MAX_RETRIES", 3)
	baseDelay := time.Duration(envInt("MCP_RETRY_DELAY", 1000)) * time.Millisecond
	budget := time.Duration(envInt("MCP_TIMEOUT", 1800)) * time.Second

	maxDelayMs := (budget.Milliseconds() - 5000) / 2
	if maxDelayMs > 10000 {
		maxDelayMs = 10000
	}
	if maxDelayMs < 0 {
		maxDelayMs = 0
	}

	return Config{
		MaxRetries:  maxRetries,
		BaseDelay:   baseDelay,
		MaxDelay:    time.Duration(maxDelayMs) * time.Millisecond,
		TotalBudget: budget,
	}
}

func envInt(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return def
	}
	return n
}

// Delay computes the backoff delay for attempt n (0-indexed): a doubling
// of base capped at max, with ±25% uniform jitter.
func Delay(n int, base, max time.Duration) time.Duration {
	target := base << n
	if target <= 0 || target > max {
		target = max
	}
	if target <= 0 {
		return 0
	}
	jitterFrac := 0.75 + rand.Float64()*0.5 // [0.75, 1.25)
	d := time.Duration(float64(target) * jitterFrac)
	if d < 0 {
		d = 0
	}
	return d
}

// Do runs fn under the policy: on a transient error it retries up to
// MaxRetries times, each time waiting Delay(attempt), clamped so the
// total elapsed time never exceeds TotalBudget minus a 1s headroom
// (§9: "always compare elapsed to budget with headroom"). A
// non-transient error, or exhaustion of retries/budget, returns the
// last error observed, verbatim.
func (c Config) Do(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()
	var lastErr error

	for attempt := 0; ; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if !Classify(lastErr) {
			return lastErr
		}
		if attempt >= c.MaxRetries {
			return lastErr
		}

		elapsed := time.Since(start)
		remaining := c.TotalBudget - elapsed
		if remaining <= time.Second {
			return lastErr
		}

		delay := Delay(attempt, c.BaseDelay, c.MaxDelay)
		if headroom := remaining - time.Second; delay > headroom {
			delay = headroom
		}
		if delay < 0 {
			delay = 0
		}

		log.Debug().Str("op", op).Int("attempt", attempt).Dur("delay", delay).Err(lastErr).Msg("retrying transient failure")

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}
