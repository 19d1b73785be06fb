package lunarys

import (
	"errors"
	"fmt"
	"strings"
)

// ErrValidation indicates a request failed validation.
var ErrValidation = errors.New("validation error")

// Validate checks the constraints every backend relies on.
func (r Request) Validate() error {
	if r.ConversationID == nil {
		return fmt.Errorf("conversation id must be set: %w", ErrValidation)
	}
	if r.Model != "" && !r.Model.Valid() {
		return fmt.Errorf("unknown model %q: %w", r.Model, ErrValidation)
	}
	if len(r.Messages) == 0 {
		return fmt.Errorf("messages must not be empty: %w", ErrValidation)
	}
	last := r.Messages[len(r.Messages)-1]
	if last.Role != RoleUser {
		return fmt.Errorf("last message must be from the user, got %q: %w", last.Role, ErrValidation)
	}
	if strings.TrimSpace(last.Content) == "" {
		return fmt.Errorf("last message is blank: %w", ErrValidation)
	}
	return nil
}
