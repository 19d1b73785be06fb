package bubbletea_test

import (
	"context"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/lunarys"
	bt "github.com/fwojciec/lunarys/bubbletea"
	"github.com/fwojciec/lunarys/mock"
	"github.com/stretchr/testify/require"
)

// initModel creates a model over chat and sends a WindowSizeMsg to
// initialize the viewport.
func initModel(t *testing.T, chat *lunarys.Chat) bt.Model {
	t.Helper()
	return initModelWithSize(t, chat, 80, 24)
}

// initModelWithSize creates a model with a custom terminal size.
func initModelWithSize(t *testing.T, chat *lunarys.Chat, width, height int) bt.Model {
	t.Helper()
	m := bt.New(chat, lunarys.DefaultTheme())
	t.Cleanup(m.Close)
	return updateModel(t, m, tea.WindowSizeMsg{Width: width, Height: height})
}

// updateModel sends a message and returns the updated Model.
func updateModel(t *testing.T, m bt.Model, msg tea.Msg) bt.Model {
	t.Helper()
	updated, _ := m.Update(msg)
	model, ok := updated.(bt.Model)
	require.True(t, ok)
	return model
}

// run executes cmd and feeds its message back into the model.
func run(t *testing.T, m bt.Model, cmd tea.Cmd) bt.Model {
	t.Helper()
	require.NotNil(t, cmd)
	return updateModel(t, m, cmd())
}

// typeString types s into the model's input one rune at a time.
func typeString(t *testing.T, m bt.Model, s string) bt.Model {
	t.Helper()
	for _, r := range s {
		m = updateModel(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}})
	}
	return m
}

// replying returns a backend that streams events for every request.
func replying(evts ...lunarys.StreamEvent) *mock.Backend {
	return &mock.Backend{
		StreamFn: func(_ context.Context, _ lunarys.Request) (lunarys.Stream, error) {
			return mock.Events(evts...), nil
		},
		ListConversationsFn: func(context.Context) ([]lunarys.Conversation, error) {
			return nil, nil
		},
	}
}

func key(k tea.KeyType) tea.KeyMsg {
	return tea.KeyMsg{Type: k}
}
