package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// HelpPage lists the key bindings.
type HelpPage struct {
	keys KeyMap
}

// NewHelpPage creates the help page for keys.
func NewHelpPage(keys KeyMap) *HelpPage {
	return &HelpPage{keys: keys}
}

func (h *HelpPage) ID() string { return pageHelp }

func (h *HelpPage) Init() tea.Cmd { return nil }

func (h *HelpPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	km, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil, nil
	}
	switch {
	case key.Matches(km, h.keys.Quit):
		return tea.Quit, nil
	case key.Matches(km, h.keys.Escape), key.Matches(km, h.keys.Help):
		return nil, &PageNav{PageID: pageDashboard}
	}
	return nil, nil
}

func (h *HelpPage) View(width, _ int) string {
	var lines []string
	for _, b := range h.keys.FullHelp() {
		hb := b.Help()
		lines = append(lines, fmt.Sprintf("%s  %s", valueStyle.Width(10).Render(hb.Key), hb.Desc))
	}
	body := sectionStyle.Width(max(width-4, 30)).Render(strings.Join(lines, "\n"))
	return lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keys"),
		body,
		helpStyle.Render("esc back"),
	)
}
