package api

import "fmt"

// Authority error codes.
const (
	ErrBadRequest    = "E_BAD_REQUEST"
	ErrNotFound      = "E_NOT_FOUND"
	ErrNoResource    = "E_NO_RESOURCE"
	ErrInvalidTarget = "E_INVALID_TARGET"
	ErrConflict      = "E_CONFLICT"
	ErrStale         = "E_STALE"
	ErrInternal      = "E_INTERNAL"
)

var knownCodes = map[string]struct{}{
	ErrBadRequest:    {},
	ErrNotFound:      {},
	ErrNoResource:    {},
	ErrInvalidTarget: {},
	ErrConflict:      {},
	ErrStale:         {},
	ErrInternal:      {},
}

// IsKnownCode reports whether code is one the client understands. Empty is
// fine (no error).
func IsKnownCode(code string) bool {
	if code == "" {
		return true
	}
	_, ok := knownCodes[code]
	return ok
}

// RemoteError is a structured failure returned by the authority.
type RemoteError struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func (e *RemoteError) Error() string {
	if e.Message == "" {
		return e.Code
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
