package lunarys

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// titleRunes is how much of the first message becomes the derived title.
const titleRunes = 20

// State is a point-in-time copy of a Chat. Mutating it has no effect on the
// Chat it came from.
type State struct {
	Conversations []Conversation
	// Active is nil when no conversation is selected.
	Active    *Conversation
	Messages  []Message
	Busy      bool
	Model     Model
	Streaming bool
	// ListStatus reports the last LoadConversations fetch.
	ListStatus FetchStatus
	// HistoryStatus reports the last history fetch made by
	// SwitchConversation.
	HistoryStatus FetchStatus
}

// Chat is the conversation state machine. It owns the conversation list,
// the active conversation and its messages, and at most one in-flight
// exchange. All methods are safe for concurrent use. Send blocks until its
// exchange ends; Stop, Snapshot and the other methods may be called from
// other goroutines meanwhile.
type Chat struct {
	backend Backend
	logger  logrus.FieldLogger
	locale  Locale
	now     func() time.Time

	mu            sync.Mutex
	conversations []*Conversation // active always points into this slice
	active        *Conversation
	messages      []Message
	busy          bool
	model         Model
	streaming     bool
	listStatus    FetchStatus
	historyStatus FetchStatus

	// canceler identifies the live exchange. Callbacks carrying a
	// different canceler belong to a superseded exchange and are dropped.
	canceler *Canceler
	// view changes whenever the message list is replaced or extended, so a
	// slow history fetch cannot overwrite newer messages.
	view uint64

	subMu       sync.Mutex
	subscribers map[int]func(State)
	nextSub     int
}

// Option configures a Chat.
type Option func(*Chat)

// WithLogger sets the logger. The default discards everything.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Chat) { c.logger = l }
}

// WithLocale sets the strings written into conversations.
func WithLocale(l Locale) Option {
	return func(c *Chat) { c.locale = l }
}

// WithModel sets the initial model.
func WithModel(m Model) Option {
	return func(c *Chat) { c.model = m }
}

// WithStreaming selects the transport mode. Streaming is the default.
func WithStreaming(enabled bool) Option {
	return func(c *Chat) { c.streaming = enabled }
}

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Chat) { c.now = now }
}

// NewChat creates a Chat backed by b.
func NewChat(b Backend, opts ...Option) *Chat {
	c := &Chat{
		backend:     b,
		logger:      DiscardLogger(),
		locale:      DefaultLocale(),
		now:         time.Now,
		model:       DefaultModel,
		streaming:   true,
		subscribers: make(map[int]func(State)),
	}
	for _, o := range opts {
		o(c)
	}
	c.logger = c.logger.WithField("component", "chat")
	return c
}

// Subscribe registers fn to receive a State after every change. The
// returned function removes the subscription. fn is called without any
// Chat lock held and may call back into the Chat.
func (c *Chat) Subscribe(fn func(State)) (unsubscribe func()) {
	c.subMu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = fn
	c.subMu.Unlock()
	return func() {
		c.subMu.Lock()
		delete(c.subscribers, id)
		c.subMu.Unlock()
	}
}

// Snapshot returns a copy of the current state.
func (c *Chat) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// SetModel selects the model used by subsequent exchanges.
func (c *Chat) SetModel(m Model) error {
	if !m.Valid() {
		return fmt.Errorf("unknown model %q: %w", m, ErrValidation)
	}
	c.mutate(func() { c.model = m })
	return nil
}

// SetStreaming selects the transport mode used by subsequent exchanges.
func (c *Chat) SetStreaming(enabled bool) {
	c.mutate(func() { c.streaming = enabled })
}

// Stop cancels the in-flight exchange, if any, and clears the busy flag.
// Content received so far is kept. Stop is a no-op when idle.
func (c *Chat) Stop() {
	c.mutate(c.stopLocked)
}

// NewConversation creates a provisional conversation, puts it at the head
// of the list and activates it. A previous provisional conversation is
// discarded.
func (c *Chat) NewConversation() Conversation {
	var conv Conversation
	c.mutate(func() {
		c.stopLocked()
		conv = *c.newConversationLocked()
	})
	return conv
}

// SwitchConversation activates a confirmed conversation and loads its
// history. Provisional identities and ids not in the list are ignored and
// reported as false. An unavailable history leaves the message list empty
// and sets State.HistoryStatus to FetchUnavailable.
func (c *Chat) SwitchConversation(ctx context.Context, id Identity) bool {
	target, ok := ConfirmedID(id)
	if !ok {
		c.logger.Warn("refusing to switch to a provisional conversation")
		return false
	}

	var view uint64
	var found bool
	c.mutate(func() {
		conv := c.findLocked(target)
		if conv == nil {
			return
		}
		found = true
		c.stopLocked()
		c.active = conv
		c.messages = nil
		c.view++
		view = c.view
	})
	if !found {
		c.logger.WithField("conversation_id", target).Warn("switch target not in conversation list")
		return false
	}

	msgs, err := c.backend.ListMessages(ctx, target)
	status := FetchOK
	if err != nil {
		c.logger.WithError(err).WithField("conversation_id", target).Error("failed to load message history")
		msgs = nil
		status = FetchUnavailable
	}

	c.mutate(func() {
		if c.view != view {
			return
		}
		c.messages = msgs
		c.historyStatus = status
	})
	return true
}

// LoadConversations replaces the conversation list with the backend's. When
// the backend is unavailable the list becomes empty. The active
// conversation always stays in the list.
func (c *Chat) LoadConversations(ctx context.Context) FetchStatus {
	convs, err := c.backend.ListConversations(ctx)
	status := FetchOK
	if err != nil {
		c.logger.WithError(err).Error("failed to load conversations")
		convs = nil
		status = FetchUnavailable
	}

	c.mutate(func() {
		list := make([]*Conversation, 0, len(convs)+1)
		activeKept := false
		for i := range convs {
			conv := &convs[i]
			if c.active != nil && c.active.ID == conv.ID {
				list = append(list, c.active)
				activeKept = true
				continue
			}
			list = append(list, conv)
		}
		if c.active != nil && !activeKept {
			list = append([]*Conversation{c.active}, list...)
		}
		c.conversations = list
		c.listStatus = status
	})
	return status
}

// DeleteConversation removes a conversation from the backend and the list.
// The conversation is always removed locally: a conversation the backend
// does not know is reported as DeleteNotFound, and a backend failure is
// logged and reported as DeleteLocalOnly. When the deleted conversation is
// active, the selection and messages are cleared without selecting
// another.
func (c *Chat) DeleteConversation(ctx context.Context, id Identity) DeleteResult {
	result := DeleteNotFound
	if target, ok := ConfirmedID(id); ok {
		var err error
		result, err = c.backend.DeleteConversation(ctx, target)
		if err != nil {
			c.logger.WithError(err).WithField("conversation_id", target).Error("failed to delete conversation on the backend")
			result = DeleteLocalOnly
		}
	}

	c.mutate(func() {
		for i, conv := range c.conversations {
			if conv.ID != id {
				continue
			}
			c.conversations = append(c.conversations[:i:i], c.conversations[i+1:]...)
			if conv == c.active {
				c.stopLocked()
				c.active = nil
				c.messages = nil
				c.view++
			}
			break
		}
	})
	c.logger.WithField("conversation_id", id).WithField("result", result).Info("conversation deleted")
	return result
}

// Send runs one exchange: it cancels any in-flight exchange, ensures there
// is an active conversation, appends the user message and an empty
// assistant placeholder, then fills the placeholder from the backend.
// Send blocks until the exchange ends or is stopped. Failures are written
// into the placeholder rather than returned; the only error is
// ErrEmptyMessage for blank content.
func (c *Chat) Send(ctx context.Context, content string) error {
	content = strings.TrimSpace(content)
	if content == "" {
		return ErrEmptyMessage
	}

	var (
		ex        *exchange
		req       Request
		streaming bool
		exCtx     context.Context
	)
	c.mutate(func() {
		c.stopLocked()
		if c.active == nil {
			c.newConversationLocked()
		}
		now := c.now()
		conv := c.active
		c.messages = append(c.messages,
			Message{ConversationID: conv.ID, Role: RoleUser, Content: content, CreatedAt: now},
			Message{ConversationID: conv.ID, Role: RoleAssistant, CreatedAt: now},
		)
		c.view++
		c.busy = true

		var canceler *Canceler
		exCtx, canceler = NewCanceler(ctx)
		c.canceler = canceler
		ex = &exchange{
			canceler:    canceler,
			conv:        conv,
			placeholder: len(c.messages) - 1,
			prompt:      content,
		}
		req = Request{
			ConversationID: conv.ID,
			Model:          c.model,
			Messages:       turns(c.messages[:ex.placeholder]),
		}
		streaming = c.streaming
	})
	defer ex.canceler.Release()

	log := c.logger.WithField("conversation_id", req.ConversationID).WithField("streaming", streaming)
	log.Debug("sending message")

	if streaming {
		c.stream(exCtx, ex, req, log)
	} else {
		c.sendOnce(exCtx, ex, req, log)
	}
	return nil
}

// exchange is the bookkeeping of one Send.
type exchange struct {
	canceler    *Canceler
	conv        *Conversation
	placeholder int
	prompt      string
}

func (c *Chat) stream(ctx context.Context, ex *exchange, req Request, log logrus.FieldLogger) {
	s, err := c.backend.Stream(ctx, req)
	if err != nil {
		if ctx.Err() != nil {
			c.finish(ex)
			return
		}
		log.WithError(err).Error("failed to open stream")
		c.fail(ex, err)
		return
	}

	outcome := Drain(ctx, s, Handler{
		OnReasoning: func(delta string) {
			c.updatePlaceholder(ex, func(m *Message) {
				if m.Metadata == nil {
					m.Metadata = &Metadata{}
				}
				m.Metadata.ReasoningContent += delta
			})
		},
		OnContent: func(delta string) {
			c.updatePlaceholder(ex, func(m *Message) { m.Content += delta })
		},
		OnError: func(err error) {
			log.WithError(err).Error("stream failed")
			c.fail(ex, err)
		},
		OnComplete: func(id int64) {
			c.complete(ex, id, nil)
		},
	}, WithDrainLogger(log))

	log.WithField("outcome", outcome).Debug("stream drained")
	c.finish(ex)
}

func (c *Chat) sendOnce(ctx context.Context, ex *exchange, req Request, log logrus.FieldLogger) {
	reply, err := c.backend.Send(ctx, req)
	switch {
	case err != nil && ctx.Err() != nil:
		c.finish(ex)
	case err != nil:
		log.WithError(err).Error("failed to send message")
		c.mutate(func() {
			if c.canceler != ex.canceler {
				return
			}
			if m := c.placeholderLocked(ex); m != nil {
				m.Content = c.locale.SendFailed
			}
			c.endLocked()
		})
	default:
		id, _ := ConfirmedID(reply.ConversationID)
		content := reply.Content
		c.complete(ex, id, &content)
	}
}

// updatePlaceholder applies fn to the live exchange's placeholder.
func (c *Chat) updatePlaceholder(ex *exchange, fn func(*Message)) {
	c.mutate(func() {
		if c.canceler != ex.canceler {
			return
		}
		if m := c.placeholderLocked(ex); m != nil {
			fn(m)
		}
	})
}

// complete ends the exchange successfully. A positive id confirms the
// conversation. A non-nil content replaces the placeholder wholesale.
func (c *Chat) complete(ex *exchange, id int64, content *string) {
	c.mutate(func() {
		if c.canceler != ex.canceler {
			return
		}
		if content != nil {
			if m := c.placeholderLocked(ex); m != nil {
				m.Content = *content
			}
		}
		if id > 0 {
			c.reconcileLocked(ex.conv, id)
		}
		if ex.placeholder == 1 {
			c.deriveTitleLocked(ex.conv, ex.prompt)
		}
		c.endLocked()
	})
}

func (c *Chat) fail(ex *exchange, err error) {
	c.mutate(func() {
		if c.canceler != ex.canceler {
			return
		}
		if m := c.placeholderLocked(ex); m != nil {
			m.Content = c.locale.FormatError(err)
		}
		c.endLocked()
	})
}

// finish clears the busy flag if the exchange is still live.
func (c *Chat) finish(ex *exchange) {
	c.mu.Lock()
	if c.canceler != ex.canceler {
		c.mu.Unlock()
		return
	}
	c.endLocked()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

// reconcileLocked confirms conv in place. The list and the active
// reference share the pointer, so both see the new id.
func (c *Chat) reconcileLocked(conv *Conversation, id int64) {
	if prev, ok := ConfirmedID(conv.ID); ok && prev != id {
		c.logger.WithField("conversation_id", prev).WithField("new_id", id).Warn("backend reassigned conversation id")
	}
	confirmed := Confirmed{ID: id}
	conv.ID = confirmed
	conv.UpdatedAt = c.now()

	// A reload during the exchange may already list the conversation.
	list := c.conversations[:0]
	for _, other := range c.conversations {
		if other != conv && other.ID == Identity(confirmed) {
			continue
		}
		list = append(list, other)
	}
	c.conversations = list
	if conv != c.active {
		return
	}
	for i := range c.messages {
		if _, ok := c.messages[i].ConversationID.(Provisional); ok {
			c.messages[i].ConversationID = confirmed
		}
	}
}

func (c *Chat) deriveTitleLocked(conv *Conversation, prompt string) {
	if conv.Title != c.locale.NewConversationTitle {
		return
	}
	runes := []rune(prompt)
	if len(runes) > titleRunes {
		conv.Title = string(runes[:titleRunes]) + "..."
	} else {
		conv.Title = prompt
	}
	conv.UpdatedAt = c.now()
}

func (c *Chat) placeholderLocked(ex *exchange) *Message {
	if ex.placeholder >= len(c.messages) {
		return nil
	}
	return &c.messages[ex.placeholder]
}

func (c *Chat) endLocked() {
	c.busy = false
	c.canceler = nil
}

func (c *Chat) stopLocked() {
	if c.canceler == nil {
		return
	}
	c.canceler.Cancel()
	c.endLocked()
}

func (c *Chat) newConversationLocked() *Conversation {
	for i, conv := range c.conversations {
		if _, ok := conv.ID.(Provisional); ok {
			c.conversations = append(c.conversations[:i:i], c.conversations[i+1:]...)
			break
		}
	}
	now := c.now()
	conv := &Conversation{
		ID:        Provisional{},
		Title:     c.locale.NewConversationTitle,
		Model:     c.model,
		Preview:   c.locale.NewConversationPreview,
		CreatedAt: now,
		UpdatedAt: now,
	}
	c.conversations = append([]*Conversation{conv}, c.conversations...)
	c.active = conv
	c.messages = nil
	c.view++
	return conv
}

func (c *Chat) findLocked(id int64) *Conversation {
	for _, conv := range c.conversations {
		if got, ok := ConfirmedID(conv.ID); ok && got == id {
			return conv
		}
	}
	return nil
}

// mutate runs fn under the state lock and then notifies subscribers.
func (c *Chat) mutate(fn func()) {
	c.mu.Lock()
	fn()
	snap := c.snapshotLocked()
	c.mu.Unlock()
	c.notify(snap)
}

func (c *Chat) notify(s State) {
	c.subMu.Lock()
	subs := make([]func(State), 0, len(c.subscribers))
	for _, fn := range c.subscribers {
		subs = append(subs, fn)
	}
	c.subMu.Unlock()
	for _, fn := range subs {
		fn(s)
	}
}

func (c *Chat) snapshotLocked() State {
	s := State{
		Conversations: make([]Conversation, len(c.conversations)),
		Messages:      make([]Message, len(c.messages)),
		Busy:          c.busy,
		Model:         c.model,
		Streaming:     c.streaming,
		ListStatus:    c.listStatus,
		HistoryStatus: c.historyStatus,
	}
	for i, conv := range c.conversations {
		s.Conversations[i] = *conv
	}
	if c.active != nil {
		active := *c.active
		s.Active = &active
	}
	for i, m := range c.messages {
		if m.Metadata != nil {
			md := *m.Metadata
			m.Metadata = &md
		}
		s.Messages[i] = m
	}
	return s
}

func turns(msgs []Message) []Turn {
	out := make([]Turn, 0, len(msgs))
	for _, m := range msgs {
		if m.Role != RoleUser && m.Role != RoleAssistant {
			continue
		}
		out = append(out, Turn{Role: m.Role, Content: m.Content})
	}
	return out
}
