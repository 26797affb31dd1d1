package dashboard

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// ErrNoSession is returned by calls that need a session before Login or
// AcceptInvite has been called.
var ErrNoSession = errors.New("dashboard: no session, call Login first")

// fallbackDetail is shown when the server's error body is missing or
// malformed, so the UI never renders a raw status line.
const fallbackDetail = "Er is iets misgegaan. Probeer het opnieuw."

// APIError is any non-2xx platform response. AuthError distinguishes
// "log in again" failures from everything else, so the UI can route to
// the login screen instead of showing a toast.
type APIError struct {
	StatusCode int
	Detail     string
	AuthError  bool
}

func (e *APIError) Error() string {
	return fmt.Sprintf("dashboard: %d: %s", e.StatusCode, e.Detail)
}

// RangeError rejects a score outside the rubric scale before it ever
// leaves the client, mirroring the constrained cell editor.
type RangeError struct {
	Value    float64
	Min, Max int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("dashboard: score %.0f buiten de schaal %d-%d", e.Value, e.Min, e.Max)
}

func parseError(res *http.Response) error {
	apiErr := &APIError{StatusCode: res.StatusCode, Detail: fallbackDetail}

	body, err := io.ReadAll(io.LimitReader(res.Body, 64<<10))
	if err == nil && len(body) > 0 {
		var envelope struct {
			Detail    string `json:"detail"`
			AuthError bool   `json:"auth_error"`
		}
		if json.Unmarshal(body, &envelope) == nil && envelope.Detail != "" {
			apiErr.Detail = envelope.Detail
			apiErr.AuthError = envelope.AuthError
		}
	}
	// a 401/403 is an auth failure even when the body says nothing
	if res.StatusCode == http.StatusUnauthorized || res.StatusCode == http.StatusForbidden {
		apiErr.AuthError = true
	}
	return apiErr
}
