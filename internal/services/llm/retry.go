package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	max      time.Duration
	sleeper  func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 4, base: time.Second, max: 10 * time.Second}
}

// run calls fn until it succeeds, fails with a non-retryable error, or the
// attempt budget is spent.
func (p retryPolicy) run(ctx context.Context, op string, fn func() error) error {
	attempts := max(p.attempts, 1)
	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if attempt >= attempts {
			break
		}
		delay, ok := p.delayFor(err, attempt)
		if !ok || ctx.Err() != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
		if serr := p.sleep(ctx, delay); serr != nil {
			return fmt.Errorf("%s: %w", op, serr)
		}
	}
	if attempts == 1 {
		return fmt.Errorf("%s: %w", op, err)
	}
	return fmt.Errorf("%s: failed after %d attempts: %w", op, attempts, err)
}

// delayFor reports whether err is transient and how long to wait. HTTP 408,
// 429 and 5xx, network timeouts, and empty completions are transient.
func (p retryPolicy) delayFor(err error, attempt int) (time.Duration, bool) {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return 0, false
	}
	if errors.Is(err, ErrEmptyCompletion) {
		return p.backoff(attempt), true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		code := statusErr.StatusCode
		if code != http.StatusRequestTimeout && code != http.StatusTooManyRequests && code < http.StatusInternalServerError {
			return 0, false
		}
		if statusErr.RetryAfter > 0 {
			return min(statusErr.RetryAfter, p.ceiling()), true
		}
		return p.backoff(attempt), true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return p.backoff(attempt), true
	}
	return 0, false
}

// backoff doubles from base for each attempt, capped at the ceiling.
func (p retryPolicy) backoff(attempt int) time.Duration {
	if p.base <= 0 {
		return 0
	}
	ceiling := p.ceiling()
	delay := p.base
	for i := 1; i < attempt && delay < ceiling; i++ {
		delay *= 2
	}
	return min(delay, ceiling)
}

func (p retryPolicy) ceiling() time.Duration {
	if p.max > 0 {
		return p.max
	}
	return 10 * time.Second
}

func (p retryPolicy) sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	if p.sleeper != nil {
		p.sleeper(delay)
		return ctx.Err()
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		return time.Duration(seconds) * time.Second, seconds >= 0
	}
	if when, err := http.ParseTime(value); err == nil {
		if d := time.Until(when); d > 0 {
			return d, true
		}
	}
	return 0, false
}
