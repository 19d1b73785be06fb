package lunarys

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
)

// ErrUnknownEvent indicates an event kind the dispatcher does not route.
var ErrUnknownEvent = errors.New("unknown event kind")

// Handler receives the callbacks of one exchange. Every field is optional.
type Handler struct {
	OnReasoning func(delta string)
	OnContent   func(delta string)
	// OnError receives a *BackendError for error events,
	// ErrInvalidConversationID for malformed complete events, and the
	// transport error otherwise.
	OnError    func(err error)
	OnComplete func(conversationID int64)
}

func (h Handler) onError(err error) {
	if h.OnError != nil {
		h.OnError(err)
	}
}

// Dispatch routes a single event to the matching callback. Unknown kinds are
// not routed and return an error wrapping ErrUnknownEvent.
func Dispatch(evt StreamEvent, h Handler) error {
	switch e := evt.(type) {
	case EventReasoning:
		if h.OnReasoning != nil {
			h.OnReasoning(e.Delta)
		}
	case EventContent:
		if h.OnContent != nil {
			h.OnContent(e.Delta)
		}
	case EventError:
		h.onError(&BackendError{Message: e.Message})
	case EventComplete:
		id, err := ParseConversationID(e.Data)
		if err != nil {
			h.onError(err)
			return err
		}
		if h.OnComplete != nil {
			h.OnComplete(id)
		}
	default:
		return fmt.Errorf("%q: %w", evt.Kind(), ErrUnknownEvent)
	}
	return nil
}

// ParseConversationID parses the payload of a complete event. Only a
// positive base-10 integer is accepted.
func ParseConversationID(data string) (int64, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(data), 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%q: %w", data, ErrInvalidConversationID)
	}
	return id, nil
}

// Outcome is how a drained stream ended.
type Outcome int

const (
	OutcomeComplete  Outcome = iota // A complete event was dispatched.
	OutcomeFailed                   // OnError was called.
	OutcomeCanceled                 // The context was cancelled; no error reported.
	OutcomeTruncated                // The body ended without a terminal event.
)

func (o Outcome) String() string {
	switch o {
	case OutcomeComplete:
		return "complete"
	case OutcomeFailed:
		return "failed"
	case OutcomeCanceled:
		return "canceled"
	case OutcomeTruncated:
		return "truncated"
	}
	return "unknown"
}

// DrainOption configures a single Drain invocation.
type DrainOption func(*drainConfig)

type drainConfig struct {
	logger logrus.FieldLogger
}

// WithDrainLogger sets the logger that records dropped and unknown events.
func WithDrainLogger(l logrus.FieldLogger) DrainOption {
	return func(c *drainConfig) {
		c.logger = l
	}
}

// Drain pulls events from s and dispatches them to h in order until a
// terminal event, the end of the body, a transport error or cancellation of
// ctx. It closes s before returning.
//
// Complete is dispatched at most once and nothing is dispatched after a
// terminal event. Once ctx is done no callback fires, and a transport error
// caused by the cancellation is not reported.
func Drain(ctx context.Context, s Stream, h Handler, opts ...DrainOption) Outcome {
	cfg := drainConfig{logger: DiscardLogger()}
	for _, opt := range opts {
		opt(&cfg)
	}
	defer s.Close()

	for {
		if ctx.Err() != nil {
			return OutcomeCanceled
		}
		evt, err := s.Next()
		if ctx.Err() != nil {
			return OutcomeCanceled
		}
		if errors.Is(err, io.EOF) {
			cfg.logger.Warn("stream ended without a terminal event")
			return OutcomeTruncated
		}
		if err != nil {
			h.onError(err)
			return OutcomeFailed
		}
		if evt == nil {
			cfg.logger.Warn("ignoring empty stream event")
			continue
		}

		err = Dispatch(evt, h)
		switch {
		case errors.Is(err, ErrUnknownEvent):
			cfg.logger.WithField("kind", evt.Kind()).Warn("ignoring unknown stream event")
			continue
		case errors.Is(err, ErrInvalidConversationID):
			cfg.logger.WithError(err).Error("complete event carried an invalid conversation id")
			return OutcomeFailed
		}

		if Terminal(evt) {
			if _, ok := evt.(EventComplete); ok {
				return OutcomeComplete
			}
			return OutcomeFailed
		}
	}
}
