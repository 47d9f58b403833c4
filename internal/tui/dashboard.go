package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/electionneedle/needle/internal/model"
	"github.com/electionneedle/needle/internal/needle"
)

// Source is the device as seen by the dashboard. socketrpc.Client satisfies it.
type Source interface {
	Status() (model.Status, error)
	UpdateSlug(slug string) (model.SlugResult, error)
}

type statusMsg struct {
	status model.Status
	err    error
}

type slugMsg struct {
	slug   string
	result model.SlugResult
	err    error
}

type tickMsg time.Time

// DashboardPage shows the live device status and lets the user change market.
type DashboardPage struct {
	source   Source
	interval time.Duration
	mapper   needle.Mapper
	keys     KeyMap

	status     model.Status
	hasStatus  bool
	err        error
	lastUpdate time.Time

	editing   bool
	submitted bool
	input     textinput.Model
	notice    string
	noticeErr bool
}

// NewDashboardPage creates the dashboard. interval is the refresh period.
func NewDashboardPage(src Source, interval time.Duration, mapper needle.Mapper) *DashboardPage {
	if interval <= 0 {
		interval = model.DefaultDashboardRefresh
	}
	input := textinput.New()
	input.Placeholder = model.DefaultSlug
	input.Prompt = "slug> "
	input.CharLimit = 256

	return &DashboardPage{
		source:   src,
		interval: interval,
		mapper:   mapper,
		keys:     DefaultKeyMap(),
		input:    input,
	}
}

func (d *DashboardPage) ID() string { return pageDashboard }

func (d *DashboardPage) Init() tea.Cmd {
	return tea.Batch(d.fetchStatus(), d.tick())
}

func (d *DashboardPage) fetchStatus() tea.Cmd {
	src := d.source
	return func() tea.Msg {
		st, err := src.Status()
		return statusMsg{status: st, err: err}
	}
}

func (d *DashboardPage) submitSlug(slug string) tea.Cmd {
	src := d.source
	return func() tea.Msg {
		res, err := src.UpdateSlug(slug)
		return slugMsg{slug: slug, result: res, err: err}
	}
}

func (d *DashboardPage) tick() tea.Cmd {
	return tea.Tick(d.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (d *DashboardPage) Update(msg tea.Msg) (tea.Cmd, *PageNav) {
	switch msg := msg.(type) {
	case tickMsg:
		return tea.Batch(d.fetchStatus(), d.tick()), nil

	case statusMsg:
		d.err = msg.err
		if msg.err == nil {
			d.status = msg.status
			d.hasStatus = true
			d.lastUpdate = time.Now()
		}
		return nil, nil

	case slugMsg:
		d.submitted = false
		switch {
		case msg.err != nil:
			d.notice, d.noticeErr = fmt.Sprintf("update failed: %v", msg.err), true
		case !msg.result.Success:
			d.notice, d.noticeErr = msg.result.Message, true
		default:
			d.notice, d.noticeErr = fmt.Sprintf("%s: %s", msg.result.Message, msg.slug), false
		}
		return d.fetchStatus(), nil

	case tea.KeyMsg:
		if d.editing {
			return d.updateEditing(msg), nil
		}
		switch {
		case key.Matches(msg, d.keys.Quit):
			return tea.Quit, nil
		case key.Matches(msg, d.keys.Help):
			return nil, &PageNav{PageID: pageHelp}
		case key.Matches(msg, d.keys.Refresh):
			return d.fetchStatus(), nil
		case key.Matches(msg, d.keys.EditSlug):
			if d.status.Mode != model.ModePolling || d.submitted {
				return nil, nil
			}
			d.editing = true
			d.notice = ""
			d.input.SetValue(d.status.Slug)
			d.input.CursorEnd()
			return d.input.Focus(), nil
		}
	}
	return nil, nil
}

func (d *DashboardPage) updateEditing(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, d.keys.Escape):
		d.editing = false
		d.input.Blur()
		return nil
	case key.Matches(msg, d.keys.Submit):
		slug := strings.TrimSpace(d.input.Value())
		d.editing = false
		d.input.Blur()
		if slug == "" {
			d.notice, d.noticeErr = "Missing slug", true
			return nil
		}
		d.submitted = true
		d.notice, d.noticeErr = "Validating "+slug+"...", false
		return d.submitSlug(slug)
	}

	var cmd tea.Cmd
	d.input, cmd = d.input.Update(msg)
	return cmd
}

func (d *DashboardPage) View(width, height int) string {
	if width <= 0 {
		width = 80
	}
	inner := max(width-4, minChartWidth)

	header := titleStyle.Render("Election Needle")
	if d.hasStatus {
		mode := d.status.Mode.String()
		header = lipgloss.JoinHorizontal(lipgloss.Top, header, " ", modeStyles[mode].Render(strings.ToUpper(mode)))
	}

	var body string
	switch {
	case !d.hasStatus && d.err != nil:
		body = errorStyle.Render("cannot reach needled: " + d.err.Error())
	case !d.hasStatus:
		body = helpStyle.Render("Waiting for device...")
	default:
		body = d.renderStatus(inner, height)
	}

	parts := []string{header, sectionStyle.Width(inner).Render(body)}
	if d.editing {
		parts = append(parts, d.input.View())
	}
	if d.notice != "" {
		style := okStyle
		if d.noticeErr {
			style = errorStyle
		}
		parts = append(parts, style.Render(d.notice))
	}
	if d.hasStatus && d.err != nil {
		parts = append(parts, errorStyle.Render("stale: "+d.err.Error()))
	}
	parts = append(parts, d.renderFooter())

	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (d *DashboardPage) renderStatus(width, height int) string {
	st := d.status
	row := func(label, value string) string {
		return labelStyle.Render(fmt.Sprintf("%-12s", label)) + valueStyle.Render(value)
	}

	rows := []string{
		row("Market", st.Slug),
		row("Probability", fmt.Sprintf("%.1f%%", st.Probability*100)),
		row("Angle", fmt.Sprintf("%d°", st.Angle)),
	}
	if st.Mode == model.ModeConfig {
		rows = append(rows, row("Portal", "http://"+st.APAddress+"/"))
	} else {
		rows = append(rows, row("Address", st.IP))
		if st.Hostname != "" {
			rows = append(rows, row("Hostname", st.Hostname))
		}
	}
	rows = append(rows, row("Updated", d.lastUpdate.Format("15:04:05")))

	chartHeight := 6
	if height > 0 && height < 24 {
		chartHeight = minChartHeight
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		strings.Join(rows, "\n"),
		"",
		renderDial(st.Angle, d.mapper, width-2),
		"",
		renderOddsChart(st.Probability, width-2, chartHeight),
	)
}

func (d *DashboardPage) renderFooter() string {
	var hints []string
	for _, b := range d.keys.ShortHelp() {
		h := b.Help()
		hints = append(hints, h.Key+" "+h.Desc)
	}
	if d.editing {
		hints = []string{"enter submit", "esc cancel"}
	}
	return helpStyle.Render(strings.Join(hints, " • "))
}
