package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

var styles = NewPalette("#1DB954", "#04B575", "#FF0000", "#FFA500", "#626262")

// barWidth is the cell count of a full embedding bar.
const barWidth = 24

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
	label lipgloss.Style
	bar   lipgloss.Style
	track lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
		label: NewStyle(h).Width(18),
		bar:   NewStyle(s),
		track: NewStyle(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// bar draws v in [0,1] as filled and empty cells, width cells in total.
func bar(v float32, width int) (filled, empty string) {
	if math.IsNaN(float64(v)) || v < 0 {
		v = 0
	}
	if v > 1 {
		v = 1
	}
	n := int(math.Round(float64(v) * float64(width)))
	return strings.Repeat("█", n), strings.Repeat("░", width-n)
}
