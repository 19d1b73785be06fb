package bubbletea

import tea "github.com/charmbracelet/bubbletea"

// RenderContent exports renderContent for testing.
func RenderContent(m Model) string {
	return m.renderContent()
}

// ChatChanged returns the message the model receives when the chat
// reports a change.
func ChatChanged() tea.Msg {
	return chatChangedMsg{}
}

// LoadConversations exports the command Init uses to fetch the list.
func LoadConversations(m Model) tea.Cmd {
	return m.loadConversations()
}
