package engine

import "fmt"

// APIError carries a transport-neutral error_code/status pair. Transport
// shims (cmd/kairosd) map Status to an HTTP code; callers that only care
// about Code can type-assert or errors.As.
type APIError struct {
	Code    string
	Status  int
	Message string
	Items   any
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}
