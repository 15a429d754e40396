package clients

import "fmt"

// TransientError covers failures worth retrying: timeouts, connection
// resets, 5xx responses and 429 rate limiting.
type TransientError struct {
	Status int
	Err    error
}

func (e *TransientError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("transient request failure: %v", e.Err)
	}
	return fmt.Sprintf("transient request failure: status %d", e.Status)
}

func (e *TransientError) Unwrap() error { return e.Err }

// FatalError covers non-retryable 4xx responses. Body keeps a truncated copy
// of the response so callers can classify upstream parameter rejections.
type FatalError struct {
	Status int
	Body   string
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("request rejected: status %d: %s", e.Status, e.Body)
}
