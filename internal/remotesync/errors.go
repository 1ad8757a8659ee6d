package remotesync

import (
	"errors"
	"fmt"
)

// ErrClosed is returned once the syncer has been shut down.
var ErrClosed = errors.New("remotesync: syncer closed")

// PermissionError means the endpoint refused access or answered with a
// sign-in page instead of data. Usually the script is not deployed for
// anonymous access.
type PermissionError struct {
	StatusCode int
}

func (e *PermissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("remotesync: access denied (status %d); check the script deployment permissions", e.StatusCode)
	}
	return "remotesync: endpoint returned a sign-in page; check the script deployment permissions"
}

// MalformedResponseError means the payload was not a valid product list.
type MalformedResponseError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedResponseError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("remotesync: malformed response: item %d field %q: %s", e.Index, e.Field, e.Reason)
	}
	return "remotesync: malformed response: " + e.Reason
}

// NetworkError wraps transport failures, timeouts and unexpected statuses.
type NetworkError struct {
	StatusCode int
	Err        error
}

func (e *NetworkError) Error() string {
	if e.Err != nil {
		return "remotesync: network failure: " + e.Err.Error()
	}
	return fmt.Sprintf("remotesync: unexpected status %d", e.StatusCode)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

// RemoteError carries an error the endpoint reported explicitly.
type RemoteError struct {
	Message string
}

func (e *RemoteError) Error() string {
	return "remotesync: remote error: " + e.Message
}
