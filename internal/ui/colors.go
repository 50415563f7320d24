package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/desertthunder/jam/internal/models"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// struct Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title  lipgloss.Style
	header lipgloss.Style
	ok     lipgloss.Style
	err    lipgloss.Style
	warn   lipgloss.Style
	help   lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title:  NewBold(t).MarginBottom(1),
		header: NewBold(t),
		ok:     NewBold(s),
		err:    NewBold(e),
		warn:   NewStyle(w),
		help:   NewEm(h),
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

// State colours a connection state: green when joined, orange while handshaking, red when failed.
func (p *Palette) State(s models.ConnectionState) string {
	switch {
	case s == models.Joined:
		return p.ok.Render(s.String())
	case s == models.Failed:
		return p.err.Render(s.String())
	case s.Handshaking() || s == models.Connecting || s == models.Reconnecting:
		return p.warn.Render(s.String())
	default:
		return p.help.Render(s.String())
	}
}
