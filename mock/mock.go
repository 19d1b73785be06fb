// Package mock provides test doubles for lunarys interfaces using function fields.
package mock

import (
	"context"
	"io"
	"sync"

	"github.com/fwojciec/lunarys"
)

// Interface compliance checks.
var (
	_ lunarys.Backend = (*Backend)(nil)
	_ lunarys.Stream  = (*Stream)(nil)
)

// Backend is a test double for lunarys.Backend.
// Set the function fields for the methods you need; calling a method whose
// field is nil panics to catch missing setup.
type Backend struct {
	StreamFn             func(ctx context.Context, req lunarys.Request) (lunarys.Stream, error)
	SendFn               func(ctx context.Context, req lunarys.Request) (lunarys.Reply, error)
	ListConversationsFn  func(ctx context.Context) ([]lunarys.Conversation, error)
	ListMessagesFn       func(ctx context.Context, id int64) ([]lunarys.Message, error)
	DeleteConversationFn func(ctx context.Context, id int64) (lunarys.DeleteResult, error)
}

// Stream delegates to StreamFn.
func (b *Backend) Stream(ctx context.Context, req lunarys.Request) (lunarys.Stream, error) {
	return b.StreamFn(ctx, req)
}

// Send delegates to SendFn.
func (b *Backend) Send(ctx context.Context, req lunarys.Request) (lunarys.Reply, error) {
	return b.SendFn(ctx, req)
}

// ListConversations delegates to ListConversationsFn.
func (b *Backend) ListConversations(ctx context.Context) ([]lunarys.Conversation, error) {
	return b.ListConversationsFn(ctx)
}

// ListMessages delegates to ListMessagesFn.
func (b *Backend) ListMessages(ctx context.Context, id int64) ([]lunarys.Message, error) {
	return b.ListMessagesFn(ctx, id)
}

// DeleteConversation delegates to DeleteConversationFn.
func (b *Backend) DeleteConversation(ctx context.Context, id int64) (lunarys.DeleteResult, error) {
	return b.DeleteConversationFn(ctx, id)
}

// Stream is a test double for lunarys.Stream.
// NextFn panics when nil. CloseFn and StateFn are nil-safe (no-op and zero
// value) because callers always close streams and rarely need custom
// behavior.
type Stream struct {
	NextFn  func() (lunarys.StreamEvent, error)
	StateFn func() lunarys.StreamState
	CloseFn func() error
}

// Next delegates to NextFn.
func (s *Stream) Next() (lunarys.StreamEvent, error) {
	return s.NextFn()
}

// State delegates to StateFn. Returns StreamStateNew when StateFn is nil.
func (s *Stream) State() lunarys.StreamState {
	if s.StateFn == nil {
		return lunarys.StreamStateNew
	}
	return s.StateFn()
}

// Close delegates to CloseFn. Returns nil when CloseFn is not set.
func (s *Stream) Close() error {
	if s.CloseFn == nil {
		return nil
	}
	return s.CloseFn()
}

// Events returns a Stream that yields evts in order and then io.EOF.
func Events(evts ...lunarys.StreamEvent) *Stream {
	var mu sync.Mutex
	i := 0
	return &Stream{
		NextFn: func() (lunarys.StreamEvent, error) {
			mu.Lock()
			defer mu.Unlock()
			if i >= len(evts) {
				return nil, io.EOF
			}
			evt := evts[i]
			i++
			return evt, nil
		},
	}
}
