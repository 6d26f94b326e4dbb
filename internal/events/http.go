package events

import (
	"net/http"
	"time"
)

// HTTPStart is emitted when the GraphQL endpoint receives a request. The
// publish context carries the request id.
type HTTPStart struct {
	Request *http.Request
}

// HTTPFinish is emitted after the response is written. Operations counts
// the GraphQL operations the request carried; it is 0 for requests
// rejected before parsing and above 1 for batches.
type HTTPFinish struct {
	Request    *http.Request
	Status     int
	Operations int
	Duration   time.Duration
}
