package tui

import (
	"context"
	"errors"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/yubzen/ballpark/internal/agent"
	"github.com/yubzen/ballpark/internal/config"
	"github.com/yubzen/ballpark/internal/redact"
	"github.com/yubzen/ballpark/internal/state"
	"github.com/yubzen/ballpark/internal/toolschema"
)

var (
	appStyle = lipgloss.NewStyle().Margin(0, 0)
)

// Asker runs one question against the model and the database.
type Asker interface {
	Ask(ctx context.Context, session *state.Session, question string) (agent.Turn, error)
}

// TurnResultMsg carries a finished turn back to the update loop.
type TurnResultMsg struct {
	Seq  int
	Turn agent.Turn
	Err  error
}

type AppModel struct {
	ctx        context.Context
	session    *state.Session
	asker      Asker
	logger     *zap.Logger
	chat       *ChatModel
	statusbar  *StatusBarModel
	width      int
	height     int
	turnSeq    int
	turnActive bool
	turnCancel context.CancelFunc
}

// NewAppModel builds the chat UI. Turns run under ctx, so cancelling it
// stops any question still in flight.
func NewAppModel(ctx context.Context, cfg *config.Config, session *state.Session, asker Asker, logger *zap.Logger) *AppModel {
	if ctx == nil {
		ctx = context.Background()
	}
	if session == nil {
		session = state.NewSession()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &AppModel{
		ctx:       ctx,
		session:   session,
		asker:     asker,
		logger:    logger,
		chat:      NewChatModel(),
		statusbar: NewStatusBarModelWithConfig(cfg),
	}
	m.chat.SetTranscript(session.Messages())
	return m
}

// SetExamples shows sample questions until the first turn is asked.
func (m *AppModel) SetExamples(examples []toolschema.Example) {
	questions := make([]string, 0, len(examples))
	for _, ex := range examples {
		questions = append(questions, ex.Question)
	}
	m.chat.SetExamples(questions)
}

func (m *AppModel) Init() tea.Cmd {
	return tea.Batch(m.chat.Init(), m.statusbar.Init())
}

func (m *AppModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m.handleCtrlC()
		case "esc":
			m.cancelTurn()
			return m, tea.Quit
		case "enter":
			return m, m.submit()
		}

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.statusbar.SetWidth(msg.Width)
		m.chat.SetSize(msg.Width, msg.Height-lipgloss.Height(m.statusbar.View()))
		return m, nil

	case LoadingTickMsg:
		if m.chat.IsLoading() {
			cmds = append(cmds, loadingTickCmd())
		}

	case TurnResultMsg:
		m.finishTurn(msg)
		return m, nil
	}

	chatModel, cmd := m.chat.Update(msg)
	m.chat = chatModel.(*ChatModel)
	cmds = append(cmds, cmd)

	sbModel, cmd := m.statusbar.Update(msg)
	m.statusbar = sbModel.(*StatusBarModel)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

// submit starts a turn for the current input. Only one turn runs at a time.
func (m *AppModel) submit() tea.Cmd {
	if m.turnActive {
		return nil
	}
	question := strings.TrimSpace(m.chat.GetInputValue())
	if question == "" {
		return nil
	}
	m.chat.ClearInput()
	m.chat.BeginTurn(question)
	m.chat.SetLoading(true)
	m.statusbar.Busy = true

	ctx := m.startTurnContext()
	return tea.Batch(m.runTurnCmd(ctx, m.turnSeq, question), loadingTickCmd())
}

func (m *AppModel) handleCtrlC() (tea.Model, tea.Cmd) {
	if strings.TrimSpace(m.chat.GetInputValue()) != "" {
		m.chat.ClearInput()
		return m, nil
	}
	if m.turnActive {
		m.cancelTurn()
		return m, nil
	}
	return m, tea.Quit
}

func (m *AppModel) startTurnContext() context.Context {
	if m.turnCancel != nil {
		m.turnCancel()
	}
	ctx, cancel := context.WithCancel(m.ctx)
	m.turnSeq++
	m.turnActive = true
	m.turnCancel = cancel
	return ctx
}

func (m *AppModel) cancelTurn() {
	if m.turnCancel != nil {
		m.turnCancel()
	}
}

func (m *AppModel) runTurnCmd(ctx context.Context, seq int, question string) tea.Cmd {
	session := m.session
	asker := m.asker
	return func() tea.Msg {
		if asker == nil {
			return TurnResultMsg{Seq: seq, Err: agent.ErrOrchestratorNotReady}
		}
		turn, err := asker.Ask(ctx, session, question)
		return TurnResultMsg{Seq: seq, Turn: turn, Err: err}
	}
}

func (m *AppModel) finishTurn(msg TurnResultMsg) {
	if msg.Seq != m.turnSeq {
		return
	}
	if m.turnCancel != nil {
		m.turnCancel()
	}
	m.turnActive = false
	m.turnCancel = nil
	m.chat.SetLoading(false)
	m.statusbar.Busy = false

	notice := msg.Turn.Notice
	if msg.Err != nil {
		if notice == "" {
			notice = "Error: " + redact.Error(msg.Err)
		}
		if !errors.Is(msg.Err, agent.ErrTurnCancelled) {
			m.logger.Warn("turn failed", zap.String("error", redact.Error(msg.Err)))
		}
	}
	m.chat.EndTurn(m.session.Messages(), msg.Turn.Query, notice)
}

func (m *AppModel) View() string {
	view := lipgloss.JoinVertical(lipgloss.Left,
		m.chat.View(),
		m.statusbar.View(),
	)
	return appStyle.Render(view)
}

// Run starts the full-screen program and blocks until the user quits.
func Run(ctx context.Context, m *AppModel) error {
	defer m.cancelTurn()
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
