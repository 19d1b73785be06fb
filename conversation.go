package lunarys

import "time"

// Role represents the role of a message sender.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleReasoning Role = "reasoning"
)

// Model names a backend inference model.
type Model string

const (
	ModelChat     Model = "deepseek-chat"
	ModelReasoner Model = "deepseek-reasoner"
)

// DefaultModel is used when no model is configured.
const DefaultModel = ModelChat

// Valid reports whether m is a model the backend serves.
func (m Model) Valid() bool {
	return m == ModelChat || m == ModelReasoner
}

// Conversation is a titled container of messages.
type Conversation struct {
	ID        Identity
	Title     string
	Model     Model
	Preview   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is a single turn in a conversation.
type Message struct {
	// ID is assigned by the backend and nil for messages created locally.
	ID             *int64
	ConversationID Identity
	Role           Role
	Content        string
	CreatedAt      time.Time
	Metadata       *Metadata
}

// Metadata carries auxiliary data attached to an assistant message.
type Metadata struct {
	ReasoningContent string
}

// Reasoning returns the accumulated reasoning text, or "" when there is none.
func (m Message) Reasoning() string {
	if m.Metadata == nil {
		return ""
	}
	return m.Metadata.ReasoningContent
}

// Turn is the role/content pair sent to the backend as history.
type Turn struct {
	Role    Role
	Content string
}

// Transcript is an exported copy of one conversation and its history.
type Transcript struct {
	Conversation Conversation
	Messages     []Message
	ExportedAt   time.Time
}
