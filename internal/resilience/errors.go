package resilience

import (
	"errors"
	"net"
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"syscall"
)

// Transient wraps an error that is safe to retry, optionally carrying
// the HTTP status that triggered it.
type Transient struct {
	Err    error
	Status int
}

func (t *Transient) Error() string { return t.Err.Error() }

func (t *Transient) Unwrap() error { return t.Err }

// MarkTransient flags err as retryable. status may be 0 when the
// failure was not an HTTP response.
func MarkTransient(err error, status int) error {
	return &Transient{Err: err, Status: status}
}

// RetryableStatus reports whether an HTTP status is worth retrying:
// request timeouts, rate limits, and anything server-side (including
// Anthropic's 529 overloaded).
func RetryableStatus(code int) bool {
	switch code {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return true
	}
	return code >= 500 && code <= 599
}

// The gateway clients fold the HTTP status into the error text, e.g.
// "jina: search unexpected status 503: ...".
var statusPattern = regexp.MustCompile(`status (\d{3})`)

// IsTransient classifies err as retryable. An explicit Transient mark
// wins; otherwise network timeouts, dropped connections, and retryable
// HTTP statuses embedded in gateway error text count.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	var tr *Transient
	if errors.As(err, &tr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	for _, target := range []error{syscall.ECONNRESET, syscall.ECONNREFUSED, syscall.ECONNABORTED, syscall.EPIPE} {
		if errors.Is(err, target) {
			return true
		}
	}

	msg := strings.ToLower(err.Error())
	if m := statusPattern.FindStringSubmatch(msg); m != nil {
		if code, convErr := strconv.Atoi(m[1]); convErr == nil {
			return RetryableStatus(code)
		}
	}
	for _, fragment := range []string{
		"rate limit",
		"overloaded",
		"i/o timeout",
		"tls handshake timeout",
		"connection reset by peer",
		"broken pipe",
		"no such host",
		"temporary failure in name resolution",
	} {
		if strings.Contains(msg, fragment) {
			return true
		}
	}

	return false
}
