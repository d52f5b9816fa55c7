package tui

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/yubzen/ballpark/internal/config"
)

var (
	sbBaseStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("255")).Background(lipgloss.Color("235")).Padding(0, 1)
	sbProviderStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Bold(true)
	sbModelStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	sbDBStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	sbBusyStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("220"))
)

const unsetLabel = "(unset)"

type StatusBarModel struct {
	Provider  string
	ModelName string
	Database  string
	ReadOnly  bool
	Busy      bool
	width     int
}

func NewStatusBarModel() *StatusBarModel {
	return &StatusBarModel{
		Provider:  unsetLabel,
		ModelName: unsetLabel,
		Database:  unsetLabel,
	}
}

func NewStatusBarModelWithConfig(cfg *config.Config) *StatusBarModel {
	m := NewStatusBarModel()
	if cfg == nil {
		return m
	}
	if v := strings.TrimSpace(cfg.Provider.Name); v != "" {
		m.Provider = v
	}
	if v := strings.TrimSpace(cfg.Provider.Model); v != "" {
		m.ModelName = v
	}
	if v := strings.TrimSpace(cfg.Database.Path); v != "" {
		m.Database = v
	}
	m.ReadOnly = cfg.Database.ReadOnly
	return m
}

func (m *StatusBarModel) Init() tea.Cmd { return nil }

func (m *StatusBarModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	return m, nil
}

func (m *StatusBarModel) SetWidth(w int) {
	m.width = w
}

func (m *StatusBarModel) View() string {
	providerStr := sbProviderStyle.Render(fmt.Sprintf("[PROVIDER: %s]", m.Provider))
	modelStr := sbModelStyle.Render(fmt.Sprintf("[MODEL: %s]", m.ModelName))

	db := m.Database
	if m.ReadOnly {
		db += " (ro)"
	}
	left := fmt.Sprintf("%s | %s", providerStr, modelStr)
	budget := m.width - lipgloss.Width(left) - 12
	dbStr := sbDBStyle.Render(fmt.Sprintf("[DB: %s]", truncateLeft(db, budget)))

	s := fmt.Sprintf("%s | %s", left, dbStr)
	if m.Busy {
		s += " | " + sbBusyStyle.Render("working")
	}
	return sbBaseStyle.Width(m.width).Render(s)
}

// truncateLeft keeps the tail of long paths, which is the part that identifies the file.
func truncateLeft(s string, max int) string {
	runes := []rune(s)
	if max <= 0 || len(runes) <= max {
		return s
	}
	if max == 1 {
		return "…"
	}
	return "…" + string(runes[len(runes)-max+1:])
}
