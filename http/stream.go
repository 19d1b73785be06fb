package http

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/fwojciec/lunarys"
	"github.com/sirupsen/logrus"
)

// readChunkSize is the size of one read from the response body.
// Cancellation is observed between reads.
const readChunkSize = 4096

// stream implements [lunarys.Stream] over a server-sent event response body.
type stream struct {
	ctx     context.Context
	body    io.ReadCloser
	decoder *FrameDecoder
	logger  logrus.FieldLogger
	buf     []byte
	pending []lunarys.StreamEvent
	eof     bool
	readErr error // deferred until pending events are delivered
	state   lunarys.StreamState
	err     error // terminal error, if any
}

// Interface compliance check.
var _ lunarys.Stream = (*stream)(nil)

func newStream(ctx context.Context, body io.ReadCloser, logger logrus.FieldLogger) *stream {
	return &stream{
		ctx:     ctx,
		body:    body,
		decoder: NewFrameDecoder(),
		logger:  logger,
		buf:     make([]byte, readChunkSize),
		state:   lunarys.StreamStateNew,
	}
}

// Next returns the next classified event. It returns io.EOF once the body
// is exhausted and every buffered frame has been delivered.
func (s *stream) Next() (lunarys.StreamEvent, error) {
	switch s.state {
	case lunarys.StreamStateComplete:
		return nil, io.EOF
	case lunarys.StreamStateError:
		return nil, s.err
	case lunarys.StreamStateClosed:
		return nil, fmt.Errorf("http: %w", lunarys.ErrStreamClosed)
	}

	for {
		if len(s.pending) > 0 {
			evt := s.pending[0]
			s.pending = s.pending[1:]
			s.state = lunarys.StreamStateStreaming
			return evt, nil
		}
		if s.readErr != nil {
			s.terminate(s.readErr)
			return nil, s.err
		}
		if s.eof {
			s.state = lunarys.StreamStateComplete
			return nil, io.EOF
		}
		if err := s.ctx.Err(); err != nil {
			s.terminate(err)
			return nil, s.err
		}

		n, err := s.body.Read(s.buf)
		if n > 0 {
			s.enqueue(s.decoder.Feed(s.buf[:n]))
		}
		switch {
		case errors.Is(err, io.EOF):
			s.enqueue(s.decoder.Flush())
			s.eof = true
		case err != nil:
			s.readErr = err
		}
	}
}

// State returns the current stream state.
func (s *stream) State() lunarys.StreamState {
	return s.state
}

// Close closes the underlying HTTP response body.
func (s *stream) Close() error {
	if s.state != lunarys.StreamStateComplete && s.state != lunarys.StreamStateError {
		s.state = lunarys.StreamStateClosed
	}
	return s.body.Close()
}

func (s *stream) enqueue(frames []string) {
	for _, f := range frames {
		s.pending = append(s.pending, Classify(f, s.logger)...)
	}
}

// terminate records a terminal error. Errors caused by cancellation of the
// stream's context are reported as the context error.
func (s *stream) terminate(err error) {
	s.state = lunarys.StreamStateError
	if ctxErr := s.ctx.Err(); ctxErr != nil {
		s.err = fmt.Errorf("http: %w", ctxErr)
		return
	}
	s.err = fmt.Errorf("http: read stream: %w", err)
}
