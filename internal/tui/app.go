package tui

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
)

// App is the top-level Bubble Tea model that routes between pages.
type App struct {
	pages      map[string]Page
	activePage string
	keys       KeyMap
	width      int
	height     int
}

// NewApp creates an App with dash as the start page and a help page.
func NewApp(dash *DashboardPage) *App {
	help := NewHelpPage(dash.keys)
	return &App{
		pages: map[string]Page{
			dash.ID(): dash,
			help.ID(): help,
		},
		activePage: dash.ID(),
		keys:       dash.keys,
	}
}

func (a *App) Init() tea.Cmd {
	return a.pages[a.activePage].Init()
}

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width, a.height = msg.Width, msg.Height
	case tea.KeyMsg:
		if key.Matches(msg, a.keys.ForceQuit) {
			return a, tea.Quit
		}
	}

	// Data messages always reach the dashboard so polling survives page switches.
	if a.activePage != pageDashboard {
		if _, isKey := msg.(tea.KeyMsg); !isKey {
			cmd, _ := a.pages[pageDashboard].Update(msg)
			return a, cmd
		}
	}

	cmd, nav := a.pages[a.activePage].Update(msg)
	if nav != nil {
		if _, exists := a.pages[nav.PageID]; exists {
			a.activePage = nav.PageID
		}
	}
	return a, cmd
}

func (a *App) View() string {
	if p, ok := a.pages[a.activePage]; ok {
		return p.View(a.width, a.height)
	}
	return "No active page"
}
