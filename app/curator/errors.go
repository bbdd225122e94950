package curator

import (
	"errors"
	"strings"
)

// ErrSourceUnavailable wraps candidate source failures that outlived the retry
// budget and could not be covered by a stored playlist.
var ErrSourceUnavailable = errors.New("candidate source unavailable")

var ErrNotFound = errors.New("playlist not found")

// GuardrailRejection is returned when the content-policy classifier blocks a
// request. It is caller-caused and never retried.
type GuardrailRejection struct {
	Reasons []string
}

func (e *GuardrailRejection) Error() string {
	if len(e.Reasons) == 0 {
		return "request rejected by content policy"
	}
	return "request rejected by content policy: " + strings.Join(e.Reasons, "; ")
}
