package json

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fwojciec/lunarys"
)

type conversationDTO struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Model     string    `json:"model"`
	Preview   string    `json:"preview"`
	CreatedAt timestamp `json:"createdAt"`
	UpdatedAt timestamp `json:"updatedAt"`
}

type metadataDTO struct {
	ReasoningContent string `json:"reasoningContent,omitempty"`
}

type messageDTO struct {
	ID             *int64       `json:"id,omitempty"`
	ConversationID int64        `json:"conversationId"`
	Role           string       `json:"role"`
	Content        string       `json:"content"`
	CreatedAt      timestamp    `json:"createdAt"`
	Metadata       *metadataDTO `json:"metadata,omitempty"`
}

// UnmarshalConversations decodes the body of GET /api/conversations.
func UnmarshalConversations(data []byte) ([]lunarys.Conversation, error) {
	var dtos []conversationDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("unmarshal conversations: %w", err)
	}
	result := make([]lunarys.Conversation, len(dtos))
	for i, dto := range dtos {
		result[i] = conversationFromDTO(dto)
	}
	return result, nil
}

// UnmarshalMessages decodes the body of GET /api/conversations/{id}/messages.
func UnmarshalMessages(data []byte) ([]lunarys.Message, error) {
	var dtos []messageDTO
	if err := json.Unmarshal(data, &dtos); err != nil {
		return nil, fmt.Errorf("unmarshal messages: %w", err)
	}
	result := make([]lunarys.Message, len(dtos))
	for i, dto := range dtos {
		result[i] = messageFromDTO(dto)
	}
	return result, nil
}

func conversationFromDTO(dto conversationDTO) lunarys.Conversation {
	return lunarys.Conversation{
		ID:        lunarys.IdentityFromWire(dto.ID),
		Title:     dto.Title,
		Model:     lunarys.Model(dto.Model),
		Preview:   dto.Preview,
		CreatedAt: time.Time(dto.CreatedAt),
		UpdatedAt: time.Time(dto.UpdatedAt),
	}
}

func conversationToDTO(c lunarys.Conversation) conversationDTO {
	id, _ := lunarys.ConfirmedID(c.ID)
	return conversationDTO{
		ID:        id,
		Title:     c.Title,
		Model:     string(c.Model),
		Preview:   c.Preview,
		CreatedAt: timestamp(c.CreatedAt),
		UpdatedAt: timestamp(c.UpdatedAt),
	}
}

func messageFromDTO(dto messageDTO) lunarys.Message {
	m := lunarys.Message{
		ID:             dto.ID,
		ConversationID: lunarys.IdentityFromWire(dto.ConversationID),
		Role:           lunarys.Role(dto.Role),
		Content:        dto.Content,
		CreatedAt:      time.Time(dto.CreatedAt),
	}
	if dto.Metadata != nil && dto.Metadata.ReasoningContent != "" {
		m.Metadata = &lunarys.Metadata{ReasoningContent: dto.Metadata.ReasoningContent}
	}
	return m
}

func messageToDTO(m lunarys.Message) messageDTO {
	id, _ := lunarys.ConfirmedID(m.ConversationID)
	dto := messageDTO{
		ID:             m.ID,
		ConversationID: id,
		Role:           string(m.Role),
		Content:        m.Content,
		CreatedAt:      timestamp(m.CreatedAt),
	}
	if r := m.Reasoning(); r != "" {
		dto.Metadata = &metadataDTO{ReasoningContent: r}
	}
	return dto
}
