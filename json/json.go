// Package json encodes lunarys types for the backend wire format and for
// transcript files.
package json

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/fwojciec/lunarys"
)

// turnDTO is one history entry of a chat request.
type turnDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// chatRequestDTO is the body of both chat endpoints. A provisional
// conversation omits conversationId so the backend creates one.
type chatRequestDTO struct {
	ConversationID *int64    `json:"conversationId,omitempty"`
	Model          string    `json:"model"`
	Messages       []turnDTO `json:"messages"`
}

type chatReplyDTO struct {
	Content        string `json:"content"`
	ConversationID int64  `json:"conversationId"`
}

// streamPayloadDTO is the JSON carried by one data line of a stream.
type streamPayloadDTO struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// MarshalChatRequest encodes a request for /api/chat and /api/chat/stream.
func MarshalChatRequest(req lunarys.Request) ([]byte, error) {
	dto := chatRequestDTO{
		Model:    string(req.Model),
		Messages: make([]turnDTO, len(req.Messages)),
	}
	if dto.Model == "" {
		dto.Model = string(lunarys.DefaultModel)
	}
	if id, ok := lunarys.ConfirmedID(req.ConversationID); ok {
		dto.ConversationID = &id
	}
	for i, t := range req.Messages {
		dto.Messages[i] = turnDTO{Role: string(t.Role), Content: t.Content}
	}
	return json.Marshal(dto)
}

// UnmarshalChatReply decodes the body of a one-shot chat response.
func UnmarshalChatReply(data []byte) (lunarys.Reply, error) {
	var dto chatReplyDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return lunarys.Reply{}, fmt.Errorf("unmarshal chat reply: %w", err)
	}
	return lunarys.Reply{
		Content:        dto.Content,
		ConversationID: lunarys.IdentityFromWire(dto.ConversationID),
	}, nil
}

// UnmarshalStreamEvent decodes one stream payload. The data field may be a
// string or a bare number; anything else is rejected.
func UnmarshalStreamEvent(data []byte) (lunarys.StreamEvent, error) {
	var dto streamPayloadDTO
	if err := json.Unmarshal(data, &dto); err != nil {
		return nil, fmt.Errorf("unmarshal stream payload: %w", err)
	}
	if dto.Type == "" {
		return nil, fmt.Errorf("stream payload has no type")
	}
	text, err := payloadText(dto.Data)
	if err != nil {
		return nil, fmt.Errorf("stream payload %q: %w", dto.Type, err)
	}
	return lunarys.NewStreamEvent(lunarys.EventKind(dto.Type), text), nil
}

// MarshalStreamEvent encodes evt as a stream payload.
func MarshalStreamEvent(evt lunarys.StreamEvent) ([]byte, error) {
	var data string
	switch e := evt.(type) {
	case lunarys.EventReasoning:
		data = e.Delta
	case lunarys.EventContent:
		data = e.Delta
	case lunarys.EventError:
		data = e.Message
	case lunarys.EventComplete:
		data = e.Data
	case lunarys.EventUnknown:
		data = e.Data
	default:
		return nil, fmt.Errorf("unknown stream event type: %T", evt)
	}
	raw, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return json.Marshal(streamPayloadDTO{Type: string(evt.Kind()), Data: raw})
}

func payloadText(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", err
		}
		return s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		var n json.Number
		if err := json.Unmarshal(raw, &n); err != nil {
			return "", err
		}
		return n.String(), nil
	}
	return "", fmt.Errorf("data must be a string or number, got %s", raw)
}

// timestamp accepts the layouts the backend emits, with or without a zone.
type timestamp time.Time

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05",
}

func (t *timestamp) UnmarshalJSON(data []byte) error {
	s := string(data)
	if s == "null" || s == `""` {
		*t = timestamp(time.Time{})
		return nil
	}
	unquoted, err := strconv.Unquote(s)
	if err != nil {
		return fmt.Errorf("timestamp %s: %w", s, err)
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, strings.TrimSpace(unquoted)); err == nil {
			*t = timestamp(parsed)
			return nil
		}
	}
	return fmt.Errorf("unrecognized timestamp %q", unquoted)
}

func (t timestamp) MarshalJSON() ([]byte, error) {
	tt := time.Time(t)
	if tt.IsZero() {
		return []byte(`""`), nil
	}
	return json.Marshal(tt.Format(time.RFC3339Nano))
}
