package llm

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"bobbin/internal/services"
)

type retryPolicy struct {
	attempts int
	base     time.Duration
	ceiling  time.Duration
	sleep    func(time.Duration)
}

func defaultRetryPolicy() retryPolicy {
	return retryPolicy{attempts: 5, base: time.Second, ceiling: 10 * time.Second}
}

func (p retryPolicy) maxAttempts() int {
	if p.attempts < 1 {
		return 1
	}
	return p.attempts
}

// delay returns the wait before the attempt after the given one. A
// Retry-After header wins over the doubling schedule; both are capped.
func (p retryPolicy) delay(attempt int, err error) time.Duration {
	var status *StatusError
	if errors.As(err, &status) && status.RetryAfter > 0 {
		return p.capped(status.RetryAfter)
	}
	if p.base <= 0 {
		return 0
	}
	d := p.base
	for i := 1; i < attempt; i++ {
		d *= 2
		if p.ceiling > 0 && d >= p.ceiling {
			break
		}
	}
	return p.capped(d)
}

func (p retryPolicy) capped(d time.Duration) time.Duration {
	if d < 0 {
		return 0
	}
	if p.ceiling > 0 && d > p.ceiling {
		return p.ceiling
	}
	return d
}

func (p retryPolicy) wait(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if d <= 0 {
		return nil
	}
	if p.sleep != nil {
		p.sleep(d)
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryable reports whether err is worth another attempt: rate limits, server
// errors, timeouts and empty replies.
func retryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var empty *emptyReplyError
	if errors.As(err, &empty) {
		return true
	}
	return errors.Is(err, services.ErrTransient) || errors.Is(err, services.ErrTimeout)
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second, secs >= 0
	}
	when, err := http.ParseTime(value)
	if err != nil || when.Before(now) {
		return 0, false
	}
	return when.Sub(now), true
}
