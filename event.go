package lunarys

// EventKind is the wire discriminator of a stream event.
type EventKind string

const (
	EventKindReasoning EventKind = "reasoning"
	EventKindContent   EventKind = "content"
	EventKindError     EventKind = "error"
	EventKindComplete  EventKind = "complete"
)

// StreamEvent is a sealed interface representing one classified event of a
// chat stream. Transport failures come from Stream.Next's error return, not
// from events.
// The unexported marker method prevents external implementations.
type StreamEvent interface {
	streamEvent()
	Kind() EventKind
}

// EventReasoning carries a fragment of the model's reasoning.
type EventReasoning struct {
	Delta string
}

func (EventReasoning) streamEvent() {}

// Kind returns EventKindReasoning.
func (EventReasoning) Kind() EventKind { return EventKindReasoning }

// EventContent carries a fragment of the assistant reply.
type EventContent struct {
	Delta string
}

func (EventContent) streamEvent() {}

// Kind returns EventKindContent.
func (EventContent) Kind() EventKind { return EventKindContent }

// EventError reports a failure on the backend side. It ends the exchange.
type EventError struct {
	Message string
}

func (EventError) streamEvent() {}

// Kind returns EventKindError.
func (EventError) Kind() EventKind { return EventKindError }

// EventComplete ends the exchange successfully. Data holds the
// conversation id as a decimal string, unparsed.
type EventComplete struct {
	Data string
}

func (EventComplete) streamEvent() {}

// Kind returns EventKindComplete.
func (EventComplete) Kind() EventKind { return EventKindComplete }

// EventUnknown is an event whose type this client does not understand.
type EventUnknown struct {
	Type EventKind
	Data string
}

func (EventUnknown) streamEvent() {}

// Kind returns the raw wire type.
func (e EventUnknown) Kind() EventKind { return e.Type }

// NewStreamEvent builds the typed event for a wire type and payload.
func NewStreamEvent(kind EventKind, data string) StreamEvent {
	switch kind {
	case EventKindReasoning:
		return EventReasoning{Delta: data}
	case EventKindContent:
		return EventContent{Delta: data}
	case EventKindError:
		return EventError{Message: data}
	case EventKindComplete:
		return EventComplete{Data: data}
	default:
		return EventUnknown{Type: kind, Data: data}
	}
}

// Terminal reports whether evt ends the logical exchange.
func Terminal(evt StreamEvent) bool {
	switch evt.(type) {
	case EventError, EventComplete:
		return true
	}
	return false
}
