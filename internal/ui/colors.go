package ui

import (
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/pxm/internal/stage"
)

var styles = NewPalette("#1A73E8", "#188038", "#D93025", "#F9AB00", "#5F6368")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t).MarginBottom(1),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

// State colors a page state: retired pages are done, pending ones were interrupted.
func (p *Palette) State(s stage.PageState) lipgloss.Style {
	switch s {
	case stage.Retired:
		return p.ok
	case stage.Pending:
		return p.warn
	case stage.Staged:
		return p.title.UnsetMarginBottom()
	default:
		return p.help
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
