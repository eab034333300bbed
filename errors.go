package wolfcomm

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrClientConfig is returned by NewClient when both a fixed HTTP client and a
// client factory are configured. At most one of the two may be supplied.
var ErrClientConfig = errors.New("wolfcomm: only one of http client and client factory may be set")

// AuthError reports that the portal's identity server rejected the
// credentials or the token request itself failed.
type AuthError struct {
	StatusCode int
	Body       string
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("authentication failed with status code: %d", e.StatusCode)
}

// FetchError reports a failed portal read. Payload carries the server's
// response body when one was received; Err carries the underlying cause when
// the failure happened on this side of the wire.
type FetchError struct {
	Payload json.RawMessage
	Err     error
}

func (e *FetchError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch failed: %v", e.Err)
	}
	return fmt.Sprintf("fetch failed: %s", shortPayload(e.Payload))
}

func (e *FetchError) Unwrap() error { return e.Err }

// ParameterReadError is the portal's known read failure: the response carried
// an error payload whose message names the parameter-values endpoint. Callers
// typically retry the read with a fresh parameter list.
type ParameterReadError struct {
	Payload json.RawMessage
}

func (e *ParameterReadError) Error() string {
	return fmt.Sprintf("portal could not read parameter values: %s", shortPayload(e.Payload))
}

// WriteError reports a failed parameter write.
type WriteError struct {
	Payload json.RawMessage
	Err     error
}

func (e *WriteError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("write failed: %v", e.Err)
	}
	return fmt.Sprintf("write failed: %s", shortPayload(e.Payload))
}

func (e *WriteError) Unwrap() error { return e.Err }

// ParameterWriteError is the write-side counterpart of ParameterReadError.
type ParameterWriteError struct {
	Payload json.RawMessage
}

func (e *ParameterWriteError) Error() string {
	return fmt.Sprintf("portal could not write parameter values: %s", shortPayload(e.Payload))
}

// shortPayload renders a response body for error messages without flooding
// logs when the portal returns a full HTML page.
func shortPayload(payload json.RawMessage) string {
	const limit = 256
	if len(payload) == 0 {
		return "<empty response>"
	}
	if len(payload) > limit {
		return string(payload[:limit]) + "..."
	}
	return string(payload)
}
