package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/ballpark/internal/state"
)

const (
	appTitle = "Baseball Database Chatbot"

	introText = "I'm a chatbot that has access to the History of Baseball database. " +
		"This is a comprehensive database that contains tables about teams, players, and their stats between 1871 and the present day. " +
		"Ask me a question in precise English, and I'll use a language model to create a database query and query the database to try to answer your question. " +
		"As an example, you could ask: How many homers did Reggie Jackson hit while he was a member of the New York Yankees? " +
		"Note that this is different from asking a chatbot a question and hoping that it knows the answer based on its training. " +
		"Instead, I use AI to try to translate your question into a SQL query, and I use that to look inside a database to get the answer."

	inputPlaceholder = "Ask your question about Baseball History."
)

var (
	chatViewportStyle = lipgloss.NewStyle().Border(lipgloss.NormalBorder(), false, false, true, false).BorderForeground(lipgloss.Color("238"))
	titleStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Bold(true)
	introStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	assistantStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	noticeStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("214"))
	queryLabelStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	loadingStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("220")).Bold(true)
	loadingTimerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244"))
	placeholderStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Italic(true)
	userLabelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
	botLabelStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("212")).Bold(true)
	promptIndicator   = lipgloss.NewStyle().Foreground(lipgloss.Color("86")).Bold(true)
)

// LoadingTickMsg is sent periodically to update the loading timer display.
type LoadingTickMsg struct{}

// turnNotes are shown for the latest turn only and never stored.
type turnNotes struct {
	// after is the transcript index the query note follows.
	after  int
	query  string
	notice string
}

type ChatModel struct {
	viewport       viewport.Model
	textInput      textinput.Model
	renderer       *glamour.TermRenderer
	rendererWidth  int
	messages       []state.Message
	examples       []string
	pending        string
	notes          *turnNotes
	width          int
	height         int
	isLoading      bool
	loadingStarted time.Time
}

func NewChatModel() *ChatModel {
	ti := textinput.New()
	ti.Placeholder = inputPlaceholder
	ti.Prompt = ""
	ti.Focus()
	ti.CharLimit = 1000
	ti.Width = 50

	vp := viewport.New(0, 0)
	vp.SetContent("")

	m := &ChatModel{
		viewport:  vp,
		textInput: ti,
	}
	m.renderer = newMarkdownRenderer(80)
	m.rendererWidth = 80
	return m
}

func newMarkdownRenderer(width int) *glamour.TermRenderer {
	r, err := glamour.NewTermRenderer(
		glamour.WithStylePath("dark"),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return nil
	}
	return r
}

func (m *ChatModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *ChatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd
	var cmd tea.Cmd

	if _, ok := msg.(LoadingTickMsg); ok {
		return m, nil
	}

	if !m.isLoading {
		m.textInput, cmd = m.textInput.Update(msg)
		cmds = append(cmds, cmd)
	}

	// Letters belong to the input, not to the viewport's vim-style bindings.
	if key, ok := msg.(tea.KeyMsg); !ok || key.Type != tea.KeyRunes {
		m.viewport, cmd = m.viewport.Update(msg)
		cmds = append(cmds, cmd)
	}

	m.reflow()
	return m, tea.Batch(cmds...)
}

func (m *ChatModel) SetSize(w, h int) {
	if w == 0 || h == 0 {
		return
	}
	m.width = w
	m.height = h
	m.viewport.Width = w
	m.textInput.Width = m.inputWrapWidth()
	if m.renderer != nil && m.rendererWidth != w-4 && w > 8 {
		m.renderer = newMarkdownRenderer(w - 4)
		m.rendererWidth = w - 4
	}
	m.reflow()
	m.renderMessages()
}

// SetLoading toggles the in-flight indicator. Input is frozen while loading.
func (m *ChatModel) SetLoading(loading bool) {
	m.isLoading = loading
	if loading {
		m.loadingStarted = time.Now()
	}
	m.reflow()
}

func (m *ChatModel) IsLoading() bool {
	return m.isLoading
}

func loadingTickCmd() tea.Cmd {
	return tea.Tick(time.Second, func(_ time.Time) tea.Msg {
		return LoadingTickMsg{}
	})
}

// BeginTurn shows the submitted question right away and drops the previous
// turn's notes.
func (m *ChatModel) BeginTurn(question string) {
	m.pending = question
	m.notes = nil
	m.renderMessages()
	m.viewport.GotoBottom()
}

// EndTurn replaces the displayed transcript with the session's and attaches
// the display-only notes of the turn that just finished.
func (m *ChatModel) EndTurn(messages []state.Message, query, notice string) {
	m.pending = ""
	m.messages = messages
	m.notes = nil
	if query != "" || notice != "" {
		after := len(messages) - 1
		for i := len(messages) - 1; i >= 0; i-- {
			if messages[i].Role == state.RoleUser {
				after = i
				break
			}
		}
		m.notes = &turnNotes{after: after, query: query, notice: notice}
	}
	m.renderMessages()
	m.viewport.GotoBottom()
}

// SetExamples sets the sample questions shown before the first turn.
func (m *ChatModel) SetExamples(questions []string) {
	const maxExamples = 3
	if len(questions) > maxExamples {
		questions = questions[:maxExamples]
	}
	m.examples = questions
	m.renderMessages()
}

func (m *ChatModel) SetTranscript(messages []state.Message) {
	m.messages = messages
	m.renderMessages()
}

func (m *ChatModel) contentWidth() int {
	w := m.viewport.Width
	if w <= 0 {
		w = m.width
	}
	if w <= 0 {
		w = 80
	}
	return w
}

func (m *ChatModel) renderMessages() {
	width := m.contentWidth()

	blocks := []string{m.renderHeader(width)}
	if len(m.messages) == 0 && m.pending == "" && len(m.examples) > 0 {
		blocks = append(blocks, m.renderExamples(width))
	}
	for i, msg := range m.messages {
		blocks = append(blocks, m.renderMessage(msg, width))
		if m.notes != nil && m.notes.after == i && m.notes.query != "" {
			blocks = append(blocks, m.renderQueryNote(m.notes.query, width))
		}
	}
	if m.pending != "" {
		blocks = append(blocks, m.renderMessage(state.Message{Role: state.RoleUser, Content: m.pending}, width))
	}
	if m.notes != nil && m.notes.notice != "" {
		blocks = append(blocks, noticeStyle.Render(wrapWithPrefix("! ", m.notes.notice, width)))
	}
	m.viewport.SetContent(strings.Join(blocks, "\n\n"))
}

func (m *ChatModel) renderHeader(width int) string {
	return titleStyle.Render(appTitle) + "\n\n" + introStyle.Render(wrapToWidth(introText, width))
}

func (m *ChatModel) renderExamples(width int) string {
	lines := []string{introStyle.Render("Try asking:")}
	for _, q := range m.examples {
		lines = append(lines, introStyle.Render(wrapWithPrefix("  - ", q, width)))
	}
	return strings.Join(lines, "\n")
}

func (m *ChatModel) renderMessage(msg state.Message, width int) string {
	content := strings.TrimSpace(msg.Content)
	if msg.Role == state.RoleUser {
		return styleWrappedPrefix("you> ", content, width, userLabelStyle)
	}
	return botLabelStyle.Render("ballpark") + "\n" + m.renderMarkdown(content, width)
}

func (m *ChatModel) renderQueryNote(query string, width int) string {
	label := queryLabelStyle.Render("query")
	body := m.renderMarkdown("```sql\n"+query+"\n```", width)
	return label + "\n" + body
}

func (m *ChatModel) renderMarkdown(content string, width int) string {
	if m.renderer != nil {
		if rendered, err := m.renderer.Render(content); err == nil {
			return strings.TrimRight(rendered, "\n")
		}
	}
	return assistantStyle.Render(wrapToWidth(content, width))
}

func (m *ChatModel) View() string {
	vpView := chatViewportStyle.Width(m.width).Render(m.viewport.View())

	parts := []string{vpView}
	if m.isLoading {
		parts = append(parts, m.renderLoadingIndicator())
	}
	parts = append(parts, lipgloss.NewStyle().Padding(0, 1).Render(m.renderInputForView()))
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (m *ChatModel) renderLoadingIndicator() string {
	elapsed := time.Since(m.loadingStarted).Round(time.Second)
	spinnerFrames := []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}
	spinner := spinnerFrames[int(elapsed.Seconds())%len(spinnerFrames)]
	return loadingStyle.Render(spinner+" Querying the database...") + " " + loadingTimerStyle.Render(formatElapsed(elapsed))
}

func formatElapsed(d time.Duration) string {
	secs := int(d.Seconds())
	if secs < 60 {
		return fmt.Sprintf("%ds", secs)
	}
	return fmt.Sprintf("%dm%ds", secs/60, secs%60)
}

func (m *ChatModel) GetInputValue() string {
	return m.textInput.Value()
}

func (m *ChatModel) ClearInput() {
	m.textInput.SetValue("")
	m.reflow()
}

func (m *ChatModel) reflow() {
	if m.height == 0 {
		return
	}
	loadingHeight := 0
	if m.isLoading {
		loadingHeight = 1
	}
	vpHeight := m.height - m.inputHeight() - loadingHeight - 1
	if vpHeight < 0 {
		vpHeight = 0
	}
	m.viewport.Height = vpHeight
}

func (m *ChatModel) inputWrapWidth() int {
	width := m.width - 4
	if width <= 0 {
		width = 48
	}
	if width < 8 {
		width = 8
	}
	return width
}

func (m *ChatModel) renderInputForView() string {
	valueRunes := []rune(m.textInput.Value())
	if len(valueRunes) == 0 {
		return promptIndicator.Render("> ") + "█ " + placeholderStyle.Render(inputPlaceholder)
	}

	pos := m.textInput.Position()
	if pos < 0 {
		pos = 0
	}
	if pos > len(valueRunes) {
		pos = len(valueRunes)
	}
	raw := string(valueRunes[:pos]) + "█" + string(valueRunes[pos:])

	lines := strings.Split(wrapToWidth(raw, m.inputWrapWidth()), "\n")
	lines[0] = promptIndicator.Render("> ") + lines[0]
	for i := 1; i < len(lines); i++ {
		lines[i] = "  " + lines[i]
	}
	return strings.Join(lines, "\n")
}

func (m *ChatModel) inputHeight() int {
	height := lipgloss.Height(m.renderInputForView())
	if height < 1 {
		return 1
	}
	return height
}

func styleWrappedPrefix(prefix, content string, width int, prefixStyle lipgloss.Style) string {
	lines := strings.Split(wrapWithPrefix(prefix, content, width), "\n")
	if strings.HasPrefix(lines[0], prefix) {
		lines[0] = prefixStyle.Render(prefix) + strings.TrimPrefix(lines[0], prefix)
	}
	return strings.Join(lines, "\n")
}
