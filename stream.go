package lunarys

// StreamState indicates the current state of a Stream.
type StreamState int

const (
	StreamStateNew       StreamState = iota // Before Next() is ever called.
	StreamStateStreaming                    // Frames are being received.
	StreamStateComplete                     // Next() returned io.EOF.
	StreamStateError                        // Next() returned non-EOF error.
	StreamStateClosed                       // Close() called before terminal state.
)

func (s StreamState) String() string {
	switch s {
	case StreamStateNew:
		return "new"
	case StreamStateStreaming:
		return "streaming"
	case StreamStateComplete:
		return "complete"
	case StreamStateError:
		return "error"
	case StreamStateClosed:
		return "closed"
	}
	return "unknown"
}

// Stream uses a pull-based iterator pattern over classified events.
// Cancellation flows through the context passed to Backend.Stream().
//
// Next returns io.EOF once the response body is exhausted. A stream that
// ended without a terminal event still ends with io.EOF; deciding what that
// means is left to the caller. After Close, Next returns ErrStreamClosed.
type Stream interface {
	Next() (StreamEvent, error)
	State() StreamState
	Close() error
}
