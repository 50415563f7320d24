package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/shared"
)

var _ list.DefaultItem = trackItem{}

// trackItem wraps [models.Track] to implement [list.DefaultItem].
type trackItem struct {
	track   models.Track
	addedBy string
}

func (i trackItem) FilterValue() string { return i.track.Title }

func (i trackItem) Title() string {
	if i.track.Title == "" {
		return i.track.ID
	}
	return i.track.Title
}

func (i trackItem) Description() string {
	desc := fmt.Sprintf("%s • %s", i.track.Artist, shared.FormatDuration(i.track.Duration))
	if i.addedBy != "" {
		desc = fmt.Sprintf("%s • added by %s", desc, i.addedBy)
	}
	return desc
}

func trackItems(session models.Session, tracks []models.Track) []list.Item {
	items := make([]list.Item, len(tracks))
	for i, t := range tracks {
		item := trackItem{track: t, addedBy: t.AddedBy}
		if p, ok := session.Participant(t.AddedBy); ok {
			item.addedBy = p.Name
		}
		items[i] = item
	}
	return items
}

func newTrackList(title string) list.Model {
	l := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	l.Title = title
	l.SetFilteringEnabled(false)
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}
