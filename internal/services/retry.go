package services

import (
	"net/http"
	"strconv"
	"strings"
	"time"
)

// parseRetryAfter reads a Retry-After header given as delta seconds or an HTTP date.
//
// Returns zero when the header is missing, malformed or already in the past.
func parseRetryAfter(h http.Header, now time.Time) time.Duration {
	raw := strings.TrimSpace(h.Get("Retry-After"))
	if raw == "" {
		return 0
	}

	if seconds, err := strconv.Atoi(raw); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}

	if when, err := http.ParseTime(raw); err == nil {
		if until := when.Sub(now); until > 0 {
			return until
		}
	}

	return 0
}
