package pixelfed

import (
	"fmt"
	"strings"

	"pixelpost/internal/services"
)

// ErrMediaNotFound marks a media reference that is missing or not a regular file.
var ErrMediaNotFound = services.Sentinel("media file not found", services.ErrNotFound)

// RemoteRejectedError is returned for any non-2xx API response.
type RemoteRejectedError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteRejectedError) Error() string {
	body := strings.TrimSpace(e.Body)
	if len(body) > 300 {
		body = body[:300] + "..."
	}
	if body == "" {
		return fmt.Sprintf("pixelfed %s: http %d", e.Op, e.StatusCode)
	}
	return fmt.Sprintf("pixelfed %s: http %d: %s", e.Op, e.StatusCode, body)
}

// Temporary reports whether the server signalled a condition that may clear
// on its own (rate limit or server error).
func (e *RemoteRejectedError) Temporary() bool {
	return e.StatusCode == 429 || e.StatusCode >= 500
}
