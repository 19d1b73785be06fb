package bubbletea

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/fwojciec/lunarys"
	"github.com/fwojciec/lunarys/markdown"
	"github.com/mattn/go-runewidth"
)

var _ tea.Model = Model{}

const (
	headerHeight = 1
	statusHeight = 1
	inputHeight  = 1
	borderHeight = 3 // newlines between sections
)

const helpText = "Enter send · Ctrl+N new · Ctrl+↑/↓ switch · Ctrl+D delete · Ctrl+T model · Ctrl+S stream · Tab reasoning · Ctrl+C quit"

// Model is the Bubble Tea model for the chat TUI. It renders snapshots of
// a lunarys.Chat and forwards user actions to it.
type Model struct {
	// Input is the text input component. Exported for test access.
	Input textinput.Model
	// Viewport is the scrollable output area. Exported for test access.
	Viewport viewport.Model
	// Spinner animates the status line while a reply is generated.
	Spinner spinner.Model

	chat    *lunarys.Chat
	ctx     context.Context
	theme   lunarys.Theme
	styles  Styles
	changed chan struct{}
	unsub   func()

	state   lunarys.State
	slots   []slot
	convKey string
	focus   int // index of the slot whose reasoning Tab toggles (-1 = none)

	sending bool
	notice  string
	err     error
	ready   bool
}

// slot holds the blocks rendered for one message of the active
// conversation.
type slot struct {
	role      lunarys.Role
	content   string
	body      contentBlock
	reasoning *ReasoningBlock
}

// New creates a TUI Model for chat. The model subscribes to chat changes
// immediately; Close releases the subscription.
func New(chat *lunarys.Chat, theme lunarys.Theme) Model {
	ti := textinput.New()
	ti.Placeholder = "Type a message..."
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 0

	sp := spinner.New(spinner.WithSpinner(spinner.Dot))
	styles := NewStyles(theme)
	sp.Style = styles.Muted

	changed := make(chan struct{}, 1)
	unsub := chat.Subscribe(func(lunarys.State) {
		select {
		case changed <- struct{}{}:
		default:
		}
	})

	m := Model{
		Input:   ti,
		Spinner: sp,
		chat:    chat,
		ctx:     context.Background(),
		theme:   theme,
		styles:  styles,
		changed: changed,
		unsub:   unsub,
		focus:   -1,
	}
	return m.refresh(chat.Snapshot())
}

// Close stops listening for chat changes.
func (m Model) Close() {
	if m.unsub != nil {
		m.unsub()
	}
}

// Busy reports whether a reply is being generated.
func (m Model) Busy() bool { return m.sending || m.state.Busy }

// Err returns the last error, if any.
func (m Model) Err() error { return m.err }

// Notice returns the last informational message shown in the status line.
func (m Model) Notice() string { return m.notice }

// State returns the chat snapshot the model last rendered.
func (m Model) State() lunarys.State { return m.state }

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		m.Spinner.Tick,
		listenForChange(m.changed),
		m.loadConversations(),
	)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		return m.handleWindowSize(msg), nil

	case tea.KeyMsg:
		return m.handleKey(msg)

	case chatChangedMsg:
		m = m.refresh(m.chat.Snapshot())
		return m, listenForChange(m.changed)

	case SendDoneMsg:
		m.sending = false
		if msg.Err != nil {
			m.err = msg.Err
		}
		m = m.refresh(m.chat.Snapshot())
		return m, m.Input.Focus()

	case loadDoneMsg:
		if msg.status == lunarys.FetchUnavailable {
			m.notice = "Conversation list unavailable"
		}
		return m.refresh(m.chat.Snapshot()), nil

	case switchDoneMsg:
		switch {
		case !msg.ok:
			m.notice = "Conversation unavailable"
		case m.chat.Snapshot().HistoryStatus == lunarys.FetchUnavailable:
			m.notice = "History unavailable"
		default:
			m.notice = ""
		}
		return m.refresh(m.chat.Snapshot()), nil

	case deleteDoneMsg:
		switch msg.result {
		case lunarys.DeleteNotFound:
			m.notice = "Conversation not found"
		case lunarys.DeleteLocalOnly:
			m.notice = "Conversation removed locally; the server could not delete it"
		default:
			m.notice = "Conversation deleted"
		}
		return m.refresh(m.chat.Snapshot()), nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.Spinner, cmd = m.Spinner.Update(msg)
		return m, cmd
	}

	// Viewport always receives messages for scrolling (keyboard and mouse).
	var cmd tea.Cmd
	m.Viewport, cmd = m.Viewport.Update(msg)
	cmds = append(cmds, cmd)

	if !m.Busy() {
		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.header())
	b.WriteString("\n")
	b.WriteString(m.Viewport.View())
	b.WriteString("\n")
	b.WriteString(m.statusLine())
	b.WriteString("\n")
	b.WriteString(m.Input.View())
	return b.String()
}

func (m Model) handleWindowSize(msg tea.WindowSizeMsg) Model {
	vpHeight := msg.Height - headerHeight - statusHeight - inputHeight - borderHeight
	if vpHeight < 1 {
		vpHeight = 1
	}

	if !m.ready {
		m.Viewport = viewport.New(msg.Width, vpHeight)
		m.ready = true
	} else {
		m.Viewport.Width = msg.Width
		m.Viewport.Height = vpHeight
	}
	m.Viewport.SetContent(m.renderContent())
	m.Viewport.GotoBottom()

	m.Input.Width = msg.Width
	return m
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlC:
		if m.Busy() {
			m.chat.Stop()
			return m, nil
		}
		return m, tea.Quit

	case tea.KeyEnter:
		if m.Busy() {
			return m, nil
		}
		text := strings.TrimSpace(m.Input.Value())
		if text == "" {
			return m, nil
		}
		return m.submitInput(text)

	case tea.KeyCtrlN:
		m.chat.NewConversation()
		m.notice = ""
		m.err = nil
		return m.refresh(m.chat.Snapshot()), nil

	case tea.KeyCtrlUp:
		return m, m.switchBy(-1)

	case tea.KeyCtrlDown:
		return m, m.switchBy(1)

	case tea.KeyCtrlD:
		if m.state.Active == nil {
			return m, nil
		}
		return m, m.deleteConversation(m.state.Active.ID)

	case tea.KeyCtrlT:
		next := lunarys.ModelReasoner
		if m.state.Model == lunarys.ModelReasoner {
			next = lunarys.ModelChat
		}
		if err := m.chat.SetModel(next); err != nil {
			m.err = err
			return m, nil
		}
		m.notice = "Model: " + string(next)
		return m.refresh(m.chat.Snapshot()), nil

	case tea.KeyCtrlS:
		m.chat.SetStreaming(!m.state.Streaming)
		m = m.refresh(m.chat.Snapshot())
		m.notice = "Streaming: " + onOff(m.state.Streaming)
		return m, nil

	case tea.KeyTab:
		if m.focus >= 0 {
			block, cmd := m.slots[m.focus].reasoning.Update(ToggleMsg{})
			m.slots[m.focus].reasoning = block.(*ReasoningBlock)
			m.Viewport.SetContent(m.renderContent())
			return m, cmd
		}
		return m, nil

	case tea.KeyShiftTab:
		m = m.cycleFocusPrev()
		return m, nil
	}

	// When idle, pass keys to both the input (for typing) and the viewport
	// (for scrolling). Only non-character keys reach the viewport so 'j'
	// and 'k' stay text.
	if !m.Busy() {
		var cmd tea.Cmd
		var cmds []tea.Cmd

		if msg.Type != tea.KeyRunes {
			m.Viewport, cmd = m.Viewport.Update(msg)
			cmds = append(cmds, cmd)
		}

		m.Input, cmd = m.Input.Update(msg)
		cmds = append(cmds, cmd)

		return m, tea.Batch(cmds...)
	}

	return m, nil
}

func (m Model) submitInput(text string) (tea.Model, tea.Cmd) {
	m.Input.SetValue("")
	m.Input.Blur()
	m.err = nil
	m.notice = ""
	m.sending = true

	chat, ctx := m.chat, m.ctx
	return m, func() tea.Msg {
		return SendDoneMsg{Err: chat.Send(ctx, text)}
	}
}

func (m Model) switchBy(delta int) tea.Cmd {
	convs := m.state.Conversations
	if len(convs) == 0 {
		return nil
	}
	idx := -1
	if m.state.Active != nil {
		for i, c := range convs {
			if c.ID == m.state.Active.ID {
				idx = i
				break
			}
		}
	}
	for next := idx + delta; ; next += delta {
		if idx < 0 {
			next, idx = 0, 0
		}
		if next < 0 || next >= len(convs) {
			return nil
		}
		id := convs[next].ID
		if _, ok := lunarys.ConfirmedID(id); !ok {
			continue
		}
		if m.state.Active != nil && id == m.state.Active.ID {
			return nil
		}
		chat, ctx := m.chat, m.ctx
		return func() tea.Msg {
			return switchDoneMsg{ok: chat.SwitchConversation(ctx, id)}
		}
	}
}

func (m Model) deleteConversation(id lunarys.Identity) tea.Cmd {
	chat, ctx := m.chat, m.ctx
	return func() tea.Msg {
		return deleteDoneMsg{result: chat.DeleteConversation(ctx, id)}
	}
}

func (m Model) loadConversations() tea.Cmd {
	chat, ctx := m.chat, m.ctx
	return func() tea.Msg {
		return loadDoneMsg{status: chat.LoadConversations(ctx)}
	}
}

// refresh adopts a chat snapshot, reusing blocks for messages that are
// still in place so streamed markdown keeps its render cache.
func (m Model) refresh(s lunarys.State) Model {
	m.state = s

	key := conversationKey(s)
	if key != m.convKey && m.convKey != provisionalKey {
		m.slots = nil
	}
	m.convKey = key

	if len(s.Messages) < len(m.slots) {
		m.slots = m.slots[:len(s.Messages)]
	}
	for i, msg := range s.Messages {
		if i < len(m.slots) && m.slots[i].role == msg.Role {
			m.slots[i].set(msg)
			continue
		}
		m.slots = append(m.slots[:i], m.newSlot(msg))
	}

	m = m.updateFocus()
	if m.ready {
		m.Viewport.SetContent(m.renderContent())
		m.Viewport.GotoBottom()
	}
	return m
}

func (m Model) newSlot(msg lunarys.Message) slot {
	s := slot{role: msg.Role}
	switch msg.Role {
	case lunarys.RoleUser:
		s.body = NewUserMessageBlock("", m.styles)
	case lunarys.RoleReasoning:
		s.reasoning = NewReasoningBlock(m.styles)
	default:
		s.body = NewAssistantTextBlock(m.theme)
		s.reasoning = NewReasoningBlock(m.styles)
	}
	s.set(msg)
	return s
}

func (s *slot) set(msg lunarys.Message) {
	if s.role == lunarys.RoleReasoning {
		s.reasoning.SetContent(markdown.Sanitize(msg.Content))
		return
	}
	s.content = markdown.Sanitize(msg.Content)
	s.body.SetContent(s.content)
	if s.reasoning != nil {
		s.reasoning.SetContent(markdown.Sanitize(msg.Reasoning()))
	}
}

func (s slot) hasReasoning() bool {
	return s.reasoning != nil && s.reasoning.text != ""
}

func (m Model) renderContent() string {
	width := m.Viewport.Width
	var parts []string
	for _, s := range m.slots {
		if s.hasReasoning() {
			parts = append(parts, s.reasoning.View(width))
		}
		if s.body != nil && s.content != "" {
			parts = append(parts, s.body.View(width))
		}
	}
	return strings.Join(parts, "\n")
}

// updateFocus points Tab at the most recent reasoning block.
func (m Model) updateFocus() Model {
	m.focus = -1
	for i := len(m.slots) - 1; i >= 0; i-- {
		if m.slots[i].hasReasoning() {
			m.focus = i
			return m
		}
	}
	return m
}

// cycleFocusPrev moves focus to the previous reasoning block, wrapping
// around.
func (m Model) cycleFocusPrev() Model {
	n := len(m.slots)
	if n == 0 {
		return m
	}
	start := m.focus - 1
	if start < 0 {
		start = n - 1
	}
	for i := range n {
		idx := (start - i + n) % n
		if m.slots[idx].hasReasoning() {
			m.focus = idx
			return m
		}
	}
	m.focus = -1
	return m
}

func (m Model) header() string {
	width := m.Viewport.Width
	title := "lunarys"
	if m.state.Active != nil {
		title = markdown.Sanitize(m.state.Active.Title)
	}
	info := fmt.Sprintf(" %s · stream %s · %d conversations",
		m.state.Model, onOff(m.state.Streaming), len(m.state.Conversations))
	room := width - runewidth.StringWidth(info)
	if room < 1 {
		return m.styles.Header.Render(runewidth.Truncate(title, width, "…"))
	}
	return m.styles.Header.Render(runewidth.Truncate(title, room, "…")) + m.styles.Muted.Render(info)
}

func (m Model) statusLine() string {
	width := m.Viewport.Width
	switch {
	case m.err != nil:
		return m.styles.Error.Render(runewidth.Truncate(fmt.Sprintf("Error: %v", m.err), width, "…"))
	case m.Busy():
		return m.Spinner.View() + m.styles.Muted.Render(" Generating... (Ctrl+C to stop)")
	case m.notice != "":
		return m.styles.Muted.Render(runewidth.Truncate(m.notice, width, "…"))
	}
	return m.styles.Muted.Render(runewidth.Truncate(helpText, width, "…"))
}

// provisionalKey is the key of a conversation awaiting its id. Its blocks
// survive confirmation.
var provisionalKey = lunarys.Provisional{}.String()

func conversationKey(s lunarys.State) string {
	if s.Active == nil {
		return ""
	}
	return s.Active.ID.String()
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

// listenForChange waits for the chat to report a change.
func listenForChange(ch <-chan struct{}) tea.Cmd {
	return func() tea.Msg {
		<-ch
		return chatChangedMsg{}
	}
}
