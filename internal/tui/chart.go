package tui

import (
	"fmt"
	"strings"

	"github.com/NimbleMarkets/ntcharts/barchart"
	"github.com/charmbracelet/lipgloss"

	"github.com/electionneedle/needle/internal/needle"
)

const (
	minChartWidth  = 20
	minChartHeight = 4
)

// renderOddsChart draws the YES/NO split of p as two bars.
func renderOddsChart(p float64, width, height int) string {
	width = max(width, minChartWidth)
	height = max(height, minChartHeight)
	p = needle.Clamp(p)

	barWidth := max((width-2)/2, 1)
	bc := barchart.New(width, height,
		barchart.WithBarGap(2),
		barchart.WithBarWidth(barWidth),
		barchart.WithNoAxis(),
	)
	bc.Push(barchart.BarData{
		Label:  "YES",
		Values: []barchart.BarValue{{Name: "YES", Value: p * 100, Style: yesBarStyle}},
	})
	bc.Push(barchart.BarData{
		Label:  "NO",
		Values: []barchart.BarValue{{Name: "NO", Value: (1 - p) * 100, Style: noBarStyle}},
	})
	bc.Draw()

	legend := lipgloss.JoinHorizontal(lipgloss.Top,
		okStyle.Width(barWidth+2).Render(fmt.Sprintf("YES %.1f%%", p*100)),
		errorStyle.Render(fmt.Sprintf("NO %.1f%%", (1-p)*100)),
	)
	return lipgloss.JoinVertical(lipgloss.Left, bc.View(), legend)
}

// renderDial draws the needle position across the gauge's sweep, with
// probability 0 at the left end.
func renderDial(angle int, mapper needle.Mapper, width int) string {
	width = max(width, minChartWidth)
	lo, hi := mapper.Bounds()
	span := hi - lo
	pos := 0
	if span > 0 {
		pos = (angle - lo) * (width - 1) / span
	}
	if mapper.MinAngle > mapper.MaxAngle {
		pos = width - 1 - pos
	}
	pos = min(max(pos, 0), width-1)

	track := []rune(strings.Repeat("─", width))
	track[pos] = '▲'
	return string(track)
}
