package lunarys

import (
	"errors"
	"fmt"
)

// Locale holds the user-facing strings the state machine writes into
// conversations.
type Locale struct {
	NewConversationTitle   string
	NewConversationPreview string
	// SendFailed replaces the assistant placeholder when a one-shot
	// exchange fails.
	SendFailed            string
	InvalidConversationID string
	// ErrorFormat wraps an error message shown in place of a reply.
	ErrorFormat string
	// StreamErrorFormat describes a transport failure mid-stream.
	StreamErrorFormat string
}

// DefaultLocale returns the English strings.
func DefaultLocale() Locale {
	return Locale{
		NewConversationTitle:   "New conversation",
		NewConversationPreview: "Start a new conversation",
		SendFailed:             "Sorry, something went wrong while sending your message. Please try again later.",
		InvalidConversationID:  "Received an invalid conversation ID",
		ErrorFormat:            "Error: %s",
		StreamErrorFormat:      "Streaming error: %s",
	}
}

// ChineseLocale returns the Simplified Chinese strings.
func ChineseLocale() Locale {
	return Locale{
		NewConversationTitle:   "新对话",
		NewConversationPreview: "开始新的对话",
		SendFailed:             "抱歉，发送消息时出现错误，请稍后重试。",
		InvalidConversationID:  "收到无效的会话ID",
		ErrorFormat:            "错误: %s",
		StreamErrorFormat:      "流式传输错误: %s",
	}
}

// LocaleByName returns the locale for a short name ("en" or "zh").
func LocaleByName(name string) (Locale, error) {
	switch name {
	case "", "en":
		return DefaultLocale(), nil
	case "zh":
		return ChineseLocale(), nil
	}
	return Locale{}, fmt.Errorf("unknown locale %q: %w", name, ErrValidation)
}

// FormatError renders an exchange failure as placeholder content.
func (l Locale) FormatError(err error) string {
	var backendErr *BackendError
	var statusErr *StatusError
	switch {
	case errors.As(err, &backendErr):
		return fmt.Sprintf(l.ErrorFormat, backendErr.Message)
	case errors.Is(err, ErrInvalidConversationID):
		return fmt.Sprintf(l.ErrorFormat, l.InvalidConversationID)
	case errors.As(err, &statusErr):
		return fmt.Sprintf(l.ErrorFormat, statusErr.Error())
	default:
		return fmt.Sprintf(l.ErrorFormat, fmt.Sprintf(l.StreamErrorFormat, err.Error()))
	}
}
