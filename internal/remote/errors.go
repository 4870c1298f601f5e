package remote

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/EO-DataHub/eodhp-user-admin/internal/directory"
)

// ErrNotFound is returned when neither the backend nor the local directory
// know the user.
var ErrNotFound = directory.ErrNotFound

// HTTPError is a non-2xx response from the backend.
type HTTPError struct {
	Message string
	Status  int
}

func (e *HTTPError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("unexpected status %d", e.Status)
	}
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

// retryable reports whether another remote attempt might succeed.
// 4xx responses other than 408 and 429 are final.
func retryable(err error) bool {
	var httpErr *HTTPError
	if !errors.As(err, &httpErr) {
		return true
	}
	switch {
	case httpErr.Status == http.StatusRequestTimeout, httpErr.Status == http.StatusTooManyRequests:
		return true
	case httpErr.Status >= 400 && httpErr.Status < 500:
		return false
	}
	return true
}
