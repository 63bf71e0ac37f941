package ragapi

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/ragchat"
)

// APIError is returned for non-2xx HTTP responses.
type APIError struct {
	StatusCode int
	Detail     string
	RetryAfter time.Duration // from Retry-After; zero if absent
}

func (e *APIError) Error() string {
	if e.RetryAfter > 0 {
		return fmt.Sprintf("ragapi: HTTP %d: %s (retry after %s)", e.StatusCode, e.Detail, e.RetryAfter)
	}
	return fmt.Sprintf("ragapi: HTTP %d: %s", e.StatusCode, e.Detail)
}

// Unwrap maps status codes onto the root sentinel errors so callers can use
// errors.Is without inspecting codes.
func (e *APIError) Unwrap() error {
	switch e.StatusCode {
	case http.StatusNotFound:
		return ragchat.ErrNotFound
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return ragchat.ErrValidation
	}
	return nil
}

// RateLimited reports whether the backend rejected the request for
// exceeding its rate limit.
func (e *APIError) RateLimited() bool {
	return e.StatusCode == http.StatusTooManyRequests
}

func parseHTTPError(resp *http.Response) error {
	apiErr := &APIError{
		StatusCode: resp.StatusCode,
		RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After"), time.Now()),
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		apiErr.Detail = fmt.Sprintf("failed to read body: %v", err)
		return apiErr
	}
	var er apiErrorResponse
	if err := json.Unmarshal(body, &er); err != nil || er.Detail == nil {
		apiErr.Detail = strings.TrimSpace(string(body))
		if apiErr.Detail == "" {
			apiErr.Detail = http.StatusText(resp.StatusCode)
		}
		return apiErr
	}
	apiErr.Detail = detailText(er.Detail)
	return apiErr
}

// detailText flattens a detail value. Validation errors arrive as a list of
// objects with a "msg" field.
func detailText(v any) string {
	switch d := v.(type) {
	case string:
		return d
	case []any:
		msgs := make([]string, 0, len(d))
		for _, item := range d {
			if m, ok := item.(map[string]any); ok {
				if s, ok := m["msg"].(string); ok {
					msgs = append(msgs, s)
					continue
				}
			}
			msgs = append(msgs, fmt.Sprint(item))
		}
		return strings.Join(msgs, "; ")
	default:
		b, _ := json.Marshal(d)
		return string(b)
	}
}

// parseRetryAfter accepts delay-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.ParseFloat(v, 64); err == nil {
		if secs <= 0 {
			return 0
		}
		return time.Duration(secs * float64(time.Second))
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
