package bubbletea

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/lunarys"
	"github.com/fwojciec/lunarys/markdown"
)

var _ contentBlock = (*AssistantTextBlock)(nil)

// AssistantTextBlock renders a streamed reply with markdown formatting.
// Finalized paragraphs (separated by a blank line) are rendered once per
// width and cached; only the trailing text is re-rendered as deltas land.
type AssistantTextBlock struct {
	content string
	theme   lunarys.Theme

	finalizedRaw     string
	finalizedByWidth map[int]string
}

// NewAssistantTextBlock creates a new block for a streaming reply.
func NewAssistantTextBlock(theme lunarys.Theme) *AssistantTextBlock {
	return &AssistantTextBlock{
		theme:            theme,
		finalizedByWidth: make(map[int]string),
	}
}

// Append adds a text delta.
func (b *AssistantTextBlock) Append(text string) {
	b.SetContent(b.content + text)
}

// SetContent replaces the text. A replacement that only extends the
// current text keeps the finalized cache.
func (b *AssistantTextBlock) SetContent(text string) {
	if !strings.HasPrefix(text, b.finalizedRaw) {
		b.finalizedRaw = ""
		clear(b.finalizedByWidth)
	}
	b.content = text
	b.promoteFinalized()
}

func (b *AssistantTextBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	return b, nil
}

func (b *AssistantTextBlock) View(width int) string {
	finalized := b.renderFinalized(width)
	trailing := b.trailingRaw()
	if hasUnclosedFence(trailing) {
		// Closed only for rendering so a partial code block displays.
		trailing += "\n```"
	}
	if strings.TrimSpace(trailing) == "" {
		return finalized
	}
	rendered := markdown.Render(trailing, width, b.theme)
	if strings.TrimSpace(rendered) == "" {
		return finalized
	}
	if finalized == "" {
		return rendered
	}
	return strings.TrimRight(finalized, "\n") + "\n\n" + strings.TrimLeft(rendered, "\n")
}

// promoteFinalized moves the stable prefix up to the last blank line that
// is not inside an open code fence.
func (b *AssistantTextBlock) promoteFinalized() {
	raw := b.content
	for end := len(raw); ; {
		idx := strings.LastIndex(raw[:end], "\n\n")
		if idx <= 0 {
			return
		}
		candidate := raw[:idx]
		if !hasUnclosedFence(candidate) {
			if candidate != b.finalizedRaw {
				b.finalizedRaw = candidate
				clear(b.finalizedByWidth)
			}
			return
		}
		end = idx
	}
}

func (b *AssistantTextBlock) renderFinalized(width int) string {
	if width <= 0 || b.finalizedRaw == "" {
		return ""
	}
	if cached, ok := b.finalizedByWidth[width]; ok {
		return cached
	}
	rendered := markdown.Render(b.finalizedRaw, width, b.theme)
	b.finalizedByWidth[width] = rendered
	return rendered
}

func (b *AssistantTextBlock) trailingRaw() string {
	if b.finalizedRaw == "" {
		return b.content
	}
	return strings.TrimPrefix(b.content, b.finalizedRaw+"\n\n")
}

// hasUnclosedFence counts "```" occurrences. Triple backticks inside inline
// code spans are miscounted.
func hasUnclosedFence(s string) bool {
	return strings.Count(s, "```")%2 == 1
}
