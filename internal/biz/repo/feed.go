package repo

import "github.com/medkit/livefeed/internal/biz/domain"

// FeedCallbacks receive the lifecycle of one feed subscription
type FeedCallbacks struct {
	// OnOpen is called once the server accepted the request (optional)
	OnOpen func()

	// OnEvent is called for every decoded record, in arrival order
	OnEvent func(domain.StreamEvent)

	// OnClosed is called exactly once when the stream ends for any reason other than Close
	OnClosed func(reason error)
}

// FeedTransport opens subscriptions to the server event feed
type FeedTransport interface {
	// Open starts one streaming request in the background and never fails synchronously
	Open(since, subjectID string, cb FeedCallbacks) FeedHandle
}

// FeedHandle is an open feed subscription
type FeedHandle interface {
	// Close aborts the request; idempotent, safe from any state
	Close()
}
