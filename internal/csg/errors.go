package csg

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

var (
	// ErrMaxSessions means the CSG account already has its maximum number of
	// open sessions. Old sessions must be closed in the CSG portal.
	ErrMaxSessions = errors.New("csg: maximum sessions reached")
	// ErrSessionRejected means a freshly issued token was also rejected.
	ErrSessionRejected = errors.New("csg: session rejected after refresh")
	// ErrMissingToken means auth.json succeeded without returning a token.
	ErrMissingToken = errors.New("csg: auth response missing session token")
	// ErrNoToken is returned by a TokenStore that holds no token.
	ErrNoToken = errors.New("csg: no stored token")
)

// StatusError is a non-2xx response from CSG.
type StatusError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("csg %s: status %d: %s", e.Op, e.StatusCode, e.Body)
}

// IsClientError reports whether err is a CSG rejection of the request
// itself, as opposed to an outage or an auth problem.
func IsClientError(err error) bool {
	var se *StatusError
	if !errors.As(err, &se) {
		return false
	}
	switch se.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusTooManyRequests:
		return false
	}
	return se.StatusCode >= 400 && se.StatusCode < 500
}

func isMaxSessions(body string) bool {
	return strings.Contains(body, "Max Session Reached") ||
		strings.Contains(body, "maximum number of sessions")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
