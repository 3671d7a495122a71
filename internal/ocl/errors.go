package ocl

import (
	"errors"
	"fmt"
)

// ErrUnexpectedPage reports a listing response that is neither a paginated
// envelope nor a bare list. Remaining pages cannot be reached, so the
// listing is treated as failed rather than silently truncated.
var ErrUnexpectedPage = errors.New("unexpected listing response")

// StatusError is returned for any non-2xx response.
type StatusError struct {
	Method     string
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned %d", e.Method, e.URL, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned %d: %s", e.Method, e.URL, e.StatusCode, e.Body)
}
