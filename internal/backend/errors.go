package backend

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

const maxErrorBodyPreview = 800

// ErrUpstream indicates the backend API call failed.
var ErrUpstream = errors.New("backend api request failed")

// UpstreamRequestError carries HTTP context for failed backend calls.
type UpstreamRequestError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
	Cause      error
}

func (e *UpstreamRequestError) Error() string {
	parts := []string{ErrUpstream.Error()}
	if e.StatusCode > 0 {
		parts = append(parts, fmt.Sprintf("status=%d", e.StatusCode))
	}
	if target := strings.TrimSpace(e.Method + " " + e.URL); target != "" {
		parts = append(parts, target)
	}
	if trimmed := compactBodyPreview(e.Body); trimmed != "" {
		parts = append(parts, fmt.Sprintf("body=%q", trimmed))
	}
	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause=%v", e.Cause))
	}
	return strings.Join(parts, "; ")
}

func (e *UpstreamRequestError) Unwrap() error {
	return ErrUpstream
}

// NotFound reports a 404 from the backend.
func (e *UpstreamRequestError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound
}

// IsNotFound reports whether err is a backend 404.
func IsNotFound(err error) bool {
	var upstream *UpstreamRequestError
	return errors.As(err, &upstream) && upstream.NotFound()
}

func compactBodyPreview(body string) string {
	body = strings.Join(strings.Fields(body), " ")
	if len(body) > maxErrorBodyPreview {
		return body[:maxErrorBodyPreview] + "..."
	}
	return body
}
