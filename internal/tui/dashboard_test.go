package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/electionneedle/needle/internal/model"
	"github.com/electionneedle/needle/internal/needle"
)

type fakeSource struct {
	status   model.Status
	err      error
	accepted map[string]bool
	updates  []string
}

func (f *fakeSource) Status() (model.Status, error) { return f.status, f.err }

func (f *fakeSource) UpdateSlug(slug string) (model.SlugResult, error) {
	f.updates = append(f.updates, slug)
	if !f.accepted[slug] {
		return model.SlugResult{Message: "Invalid market slug. Please check the URL and try again."}, nil
	}
	f.status.Slug = slug
	return model.SlugResult{Success: true, Message: "Market updated successfully"}, nil
}

func pollingSource() *fakeSource {
	return &fakeSource{
		status: model.Status{
			Probability: 0.73,
			Angle:       49,
			Slug:        "my-market",
			IP:          "192.168.1.50",
			Mode:        model.ModePolling,
			Hostname:    "electionneedle.local",
		},
		accepted: map[string]bool{"fed-cuts-rates": true},
	}
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// loaded returns a dashboard that has already received one status.
func loaded(t *testing.T, src *fakeSource) *DashboardPage {
	t.Helper()
	d := NewDashboardPage(src, time.Second, needle.DefaultMapper())
	d.Update(d.fetchStatus()())
	if !d.hasStatus {
		t.Fatal("status not applied")
	}
	return d
}

func TestDashboardRendersStatus(t *testing.T) {
	t.Parallel()
	d := loaded(t, pollingSource())

	view := d.View(100, 40)
	for _, want := range []string{"my-market", "73.0%", "49°", "192.168.1.50", "POLLING", "YES 73.0%", "NO 27.0%"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestDashboardConfigModeShowsPortal(t *testing.T) {
	t.Parallel()
	src := pollingSource()
	src.status = model.Status{Probability: 0.5, Angle: 90, Slug: model.DefaultSlug, Mode: model.ModeConfig, APAddress: "192.168.4.1"}
	d := loaded(t, src)

	view := d.View(100, 40)
	if !strings.Contains(view, "http://192.168.4.1/") || !strings.Contains(view, "CONFIG") {
		t.Errorf("config view = %s", view)
	}

	d.Update(keyRunes("s"))
	if d.editing {
		t.Error("slug editing allowed in config mode")
	}
}

func TestDashboardUnreachable(t *testing.T) {
	t.Parallel()
	src := &fakeSource{err: errors.New("connection refused")}
	d := NewDashboardPage(src, time.Second, needle.DefaultMapper())
	d.Update(d.fetchStatus()())

	if view := d.View(80, 24); !strings.Contains(view, "cannot reach needled") {
		t.Errorf("view = %s", view)
	}
}

func TestDashboardKeepsLastStatusOnError(t *testing.T) {
	t.Parallel()
	src := pollingSource()
	d := loaded(t, src)

	src.err = errors.New("socketrpc: connection closed")
	d.Update(d.fetchStatus()())

	view := d.View(100, 40)
	if !strings.Contains(view, "my-market") || !strings.Contains(view, "stale") {
		t.Errorf("view = %s", view)
	}
}

func TestDashboardSlugEditFlow(t *testing.T) {
	t.Parallel()
	src := pollingSource()
	d := loaded(t, src)

	d.Update(keyRunes("s"))
	if !d.editing {
		t.Fatal("s did not start editing")
	}
	if d.input.Value() != "my-market" {
		t.Fatalf("input prefilled with %q", d.input.Value())
	}

	d.input.SetValue("")
	d.Update(keyRunes("fed-cuts-rates"))
	cmd, _ := d.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if d.editing {
		t.Fatal("still editing after enter")
	}
	if cmd == nil {
		t.Fatal("enter produced no command")
	}

	msg := cmd()
	res, ok := msg.(slugMsg)
	if !ok {
		t.Fatalf("command produced %T, want slugMsg", msg)
	}
	if len(src.updates) != 1 || src.updates[0] != "fed-cuts-rates" {
		t.Fatalf("updates = %v", src.updates)
	}

	refresh, _ := d.Update(res)
	if d.noticeErr || !strings.Contains(d.notice, "Market updated successfully") {
		t.Fatalf("notice = %q (err=%v)", d.notice, d.noticeErr)
	}
	d.Update(refresh())
	if d.status.Slug != "fed-cuts-rates" {
		t.Fatalf("slug after refresh = %q", d.status.Slug)
	}
}

func TestDashboardRejectedSlug(t *testing.T) {
	t.Parallel()
	src := pollingSource()
	d := loaded(t, src)

	d.Update(keyRunes("s"))
	d.input.SetValue("bogus")
	cmd, _ := d.Update(tea.KeyMsg{Type: tea.KeyEnter})
	d.Update(cmd())

	if !d.noticeErr || !strings.Contains(d.notice, "Invalid market slug") {
		t.Fatalf("notice = %q (err=%v)", d.notice, d.noticeErr)
	}
}

func TestDashboardEscapeCancelsEdit(t *testing.T) {
	t.Parallel()
	src := pollingSource()
	d := loaded(t, src)

	d.Update(keyRunes("s"))
	cmd, _ := d.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if d.editing {
		t.Fatal("still editing after esc")
	}
	if cmd != nil {
		t.Fatal("esc produced a command")
	}
	if len(src.updates) != 0 {
		t.Fatalf("updates = %v, want none", src.updates)
	}
}

func TestDashboardTickSchedulesRefresh(t *testing.T) {
	t.Parallel()
	d := loaded(t, pollingSource())

	if cmd, _ := d.Update(tickMsg(time.Now())); cmd == nil {
		t.Fatal("tick produced no command")
	}
}

func TestDashboardQuit(t *testing.T) {
	t.Parallel()
	d := loaded(t, pollingSource())

	cmd, _ := d.Update(keyRunes("q"))
	if cmd == nil {
		t.Fatal("q produced no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
}

func TestAppNavigatesToHelpAndBack(t *testing.T) {
	t.Parallel()
	d := loaded(t, pollingSource())
	app := NewApp(d)

	app.Update(keyRunes("?"))
	if app.activePage != pageHelp {
		t.Fatalf("active page = %q, want help", app.activePage)
	}
	if view := app.View(); !strings.Contains(view, "change market") {
		t.Errorf("help view = %s", view)
	}

	// Status updates still reach the dashboard while help is shown.
	app.Update(statusMsg{status: model.Status{Slug: "other", Mode: model.ModePolling}})
	if d.status.Slug != "other" {
		t.Errorf("dashboard slug = %q, want other", d.status.Slug)
	}

	app.Update(tea.KeyMsg{Type: tea.KeyEsc})
	if app.activePage != pageDashboard {
		t.Fatalf("active page = %q, want dashboard", app.activePage)
	}
}

func TestRenderDialEnds(t *testing.T) {
	t.Parallel()
	m := needle.DefaultMapper()

	tests := []struct {
		angle int
		pos   int
	}{
		{m.Angle(0), 0},
		{m.Angle(1), 29},
		{m.Angle(0.5), 15},
	}
	for _, tt := range tests {
		dial := []rune(renderDial(tt.angle, m, 30))
		if len(dial) != 30 {
			t.Fatalf("dial width = %d, want 30", len(dial))
		}
		if dial[tt.pos] != '▲' {
			t.Errorf("angle %d: marker not at %d: %s", tt.angle, tt.pos, string(dial))
		}
	}
}
