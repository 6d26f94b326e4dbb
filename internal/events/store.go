package events

import "time"

// StoreCall is emitted after every store adapter call.
type StoreCall struct {
	Entity   string
	Op       string
	Field    string
	Keys     int
	Duration time.Duration
	Err      error
}

// LoaderDispatch is emitted after a loader sends one batch to the store.
type LoaderDispatch struct {
	Loader   string
	Keys     int
	Start    time.Time
	Duration time.Duration
	Err      error
}
