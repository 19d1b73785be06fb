package bubbletea

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var _ contentBlock = (*ReasoningBlock)(nil)

// ReasoningBlock renders the model's reasoning with a collapsible toggle.
type ReasoningBlock struct {
	text      string
	collapsed bool
	styles    Styles
}

// NewReasoningBlock creates a ReasoningBlock that starts collapsed.
func NewReasoningBlock(styles Styles) *ReasoningBlock {
	return &ReasoningBlock{collapsed: true, styles: styles}
}

func (b *ReasoningBlock) SetContent(text string) { b.text = text }

// Collapsed reports whether only the header is shown.
func (b *ReasoningBlock) Collapsed() bool { return b.collapsed }

func (b *ReasoningBlock) Update(msg tea.Msg) (MessageBlock, tea.Cmd) {
	if _, ok := msg.(ToggleMsg); ok {
		b.collapsed = !b.collapsed
	}
	return b, nil
}

func (b *ReasoningBlock) View(width int) string {
	wrap := lipgloss.NewStyle().Width(width)

	indicator := "▶"
	if !b.collapsed {
		indicator = "▼"
	}
	header := b.styles.Reasoning.Render(wrap.Render(indicator + " Reasoning"))
	if b.collapsed {
		return header
	}
	return header + "\n" + b.styles.Reasoning.Render(wrap.Render(b.text))
}
