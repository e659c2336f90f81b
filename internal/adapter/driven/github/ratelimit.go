package github

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// maxRateLimitWait caps how long a request sleeps for the primary quota to reset.
const maxRateLimitWait = 60 * time.Second

// primaryRateLimitTransport retries a request once after the primary rate
// limit window resets. go-github-ratelimit handles secondary limits only.
type primaryRateLimitTransport struct {
	next    http.RoundTripper
	maxWait time.Duration
	now     func() time.Time
	logger  *slog.Logger
}

func newPrimaryRateLimitTransport(next http.RoundTripper, maxWait time.Duration, logger *slog.Logger) *primaryRateLimitTransport {
	if next == nil {
		next = http.DefaultTransport
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &primaryRateLimitTransport{next: next, maxWait: maxWait, now: time.Now, logger: logger}
}

// RoundTrip implements http.RoundTripper.
func (t *primaryRateLimitTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	resp, err := t.next.RoundTrip(req)
	if err != nil || !primaryLimitExhausted(resp) {
		return resp, err
	}

	wait, ok := t.waitFor(resp)
	if !ok {
		return resp, nil
	}

	retry := req.Clone(req.Context())
	if req.Body != nil && req.Body != http.NoBody {
		if req.GetBody == nil {
			return resp, nil
		}
		body, err := req.GetBody()
		if err != nil {
			return resp, nil
		}
		retry.Body = body
	}

	t.logger.Warn("github primary rate limit exhausted, waiting for reset",
		"method", req.Method,
		"path", req.URL.Path,
		"wait", wait.Round(time.Second),
	)

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-req.Context().Done():
		return resp, nil
	case <-timer.C:
	}

	resp.Body.Close()
	return t.next.RoundTrip(retry)
}

// waitFor returns the delay until the reset header, or false when the reset
// is missing or further away than maxWait.
func (t *primaryRateLimitTransport) waitFor(resp *http.Response) (time.Duration, bool) {
	reset, err := strconv.ParseInt(resp.Header.Get("X-RateLimit-Reset"), 10, 64)
	if err != nil {
		return 0, false
	}
	wait := time.Unix(reset, 0).Sub(t.now())
	if wait < 0 {
		wait = 0
	}
	if wait > t.maxWait {
		return 0, false
	}
	// One second of slack for clock skew.
	return wait + time.Second, true
}

func primaryLimitExhausted(resp *http.Response) bool {
	if resp.StatusCode != http.StatusForbidden && resp.StatusCode != http.StatusTooManyRequests {
		return false
	}
	return resp.Header.Get("X-RateLimit-Remaining") == "0"
}
