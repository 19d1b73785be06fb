package lunarys

import "context"

// Backend is the remote chat service. Implementations must be safe for
// concurrent use.
type Backend interface {
	// Stream opens a streaming exchange. The returned Stream is bound to ctx;
	// cancelling ctx aborts the transport.
	Stream(ctx context.Context, req Request) (Stream, error)
	// Send performs a one-shot exchange.
	Send(ctx context.Context, req Request) (Reply, error)
	// ListConversations returns every conversation the backend knows.
	// Failures wrap ErrUnavailable.
	ListConversations(ctx context.Context) ([]Conversation, error)
	// ListMessages returns the history of a confirmed conversation.
	// Failures wrap ErrUnavailable.
	ListMessages(ctx context.Context, id int64) ([]Message, error)
	// DeleteConversation removes a conversation. A conversation the backend
	// does not know is reported as DeleteNotFound, not as an error.
	DeleteConversation(ctx context.Context, id int64) (DeleteResult, error)
}

// Request carries one exchange to the backend. A provisional ConversationID
// asks the backend to create a conversation.
type Request struct {
	ConversationID Identity
	Model          Model
	Messages       []Turn
}

// Reply is the result of a one-shot exchange.
type Reply struct {
	Content        string
	ConversationID Identity
}

// DeleteResult distinguishes the outcomes of a delete.
type DeleteResult int

const (
	DeleteRemoved   DeleteResult = iota // The backend removed the conversation.
	DeleteNotFound                      // The backend had no such conversation.
	DeleteLocalOnly                     // The backend failed; only the local copy was removed.
)

func (r DeleteResult) String() string {
	switch r {
	case DeleteNotFound:
		return "not found"
	case DeleteLocalOnly:
		return "local only"
	}
	return "removed"
}

// FetchStatus reports whether a list read reached the backend. An
// unavailable fetch yields an empty list rather than an error.
type FetchStatus int

const (
	FetchOK FetchStatus = iota
	FetchUnavailable
)

func (s FetchStatus) String() string {
	if s == FetchUnavailable {
		return "unavailable"
	}
	return "ok"
}
