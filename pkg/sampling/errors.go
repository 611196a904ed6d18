package sampling

import "fmt"

// EmptyPoolError reports that a sampler had no candidate location left to
// draw from, after any configured fallback.
type EmptyPoolError struct {
	Detail string
}

// Error implements the error interface.
func (e *EmptyPoolError) Error() string {
	return fmt.Sprintf("no sampling location available: %s", e.Detail)
}
