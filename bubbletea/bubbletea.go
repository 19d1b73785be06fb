// Package bubbletea provides a Bubble Tea TUI for a lunarys chat.
package bubbletea

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/lunarys"
)

// Run creates and runs the Bubble Tea TUI program. It blocks until the
// program exits. When ctx is cancelled the program quits. Any exchange
// still in flight on exit is stopped.
func Run(ctx context.Context, m Model) error {
	defer m.Close()
	defer m.chat.Stop()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if err != nil && ctx.Err() != nil {
		return nil
	}
	return err
}

// SendDoneMsg signals that an exchange started from the input has ended.
type SendDoneMsg struct {
	Err error
}

// chatChangedMsg signals that the chat state changed since the last
// snapshot.
type chatChangedMsg struct{}

type loadDoneMsg struct {
	status lunarys.FetchStatus
}

type switchDoneMsg struct {
	ok bool
}

type deleteDoneMsg struct {
	result lunarys.DeleteResult
}
