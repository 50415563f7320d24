package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/session"
)

const tickInterval = 500 * time.Millisecond

// Controller is the part of a session channel the viewer drives.
type Controller interface {
	State() models.ConnectionState
	Connect(sessionID string) error
	AddTrack(track models.Track) bool
	RemoveTrack(trackID string) bool
}

// StateSource publishes the reconciled session.
type StateSource interface {
	Snapshot() models.Session
	Subscribe(buffer int) (<-chan session.StateChange, func())
}

// Pane is the list that receives navigation keys.
type Pane int

const (
	PlaylistPane Pane = iota
	RecommendationPane
)

// Model represents the viewer state.
type Model struct {
	ctl       Controller
	source    StateSource
	sessionID string

	changes     <-chan session.StateChange
	unsubscribe func()

	session  models.Session
	state    models.ConnectionState
	err      *models.SessionError
	notice   string
	pane     Pane
	playlist list.Model
	recs     list.Model
	width    int
	height   int
	help     help.Model
	keys     keyMap
}

// NewModel creates a viewer for sessionID. The viewer subscribes to source immediately; call [Model.Close] when done.
func NewModel(ctl Controller, source StateSource, sessionID string) *Model {
	changes, unsubscribe := source.Subscribe(64)
	m := &Model{
		ctl:         ctl,
		source:      source,
		sessionID:   sessionID,
		changes:     changes,
		unsubscribe: unsubscribe,
		state:       ctl.State(),
		playlist:    newTrackList("Playlist"),
		recs:        newTrackList("Recommendations"),
		help:        help.New(),
		keys:        newKeyMap(),
	}
	m.apply(source.Snapshot())
	return m
}

// Close stops listening for state changes.
func (m *Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
		m.unsubscribe = nil
	}
}

// Session returns the snapshot currently displayed.
func (m *Model) Session() models.Session {
	return m.session
}

// Init starts waiting for state changes and polling the connection state.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(m.waitForChange(), m.tick())
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)

	case Msg:
		switch msg.kind {
		case MsgStateChange:
			change := msg.data.(session.StateChange)
			if change.Err != nil {
				m.err = change.Err
			} else {
				m.apply(change.Session)
			}
			return m, m.waitForChange()
		case MsgTick:
			m.state = msg.data.(models.ConnectionState)
			if m.state == models.Joined {
				m.err = nil
			}
			return m, m.tick()
		case MsgRejoin:
			if err, _ := msg.data.(error); err != nil {
				m.notice = fmt.Sprintf("rejoin failed: %v", err)
			} else {
				m.notice = "rejoining..."
			}
			return m, nil
		case MsgUnsubscribed:
			return m, nil
		}
	}

	return m.updateLists(msg)
}

// View renders the header, roster and the two track panes.
func (m *Model) View() string {
	var b strings.Builder

	b.WriteString(styles.title.Render(fmt.Sprintf("jam · %s", m.sessionID)))
	b.WriteString("\n")
	fmt.Fprintf(&b, "State: %s\n", styles.State(m.state))

	names := make([]string, len(m.session.Participants))
	for i, p := range m.session.Participants {
		names[i] = p.Name
	}
	fmt.Fprintf(&b, "%s %s\n", styles.header.Render(fmt.Sprintf("Listening (%d):", len(names))), strings.Join(names, ", "))

	if m.err != nil {
		b.WriteString(styles.err.Render(m.err.UserMessage()))
		b.WriteString("\n")
	} else if m.notice != "" {
		b.WriteString(styles.warn.Render(m.notice))
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(m.playlist.View())
	b.WriteString("\n\n")
	b.WriteString(m.recs.View())
	b.WriteString("\n\n")

	helpKeys := []key.Binding{m.keys.tab}
	if m.pane == PlaylistPane {
		helpKeys = append(helpKeys, m.keys.remove)
	} else {
		helpKeys = append(helpKeys, m.keys.add)
	}
	helpKeys = append(helpKeys, m.keys.rejoin, m.keys.quit)
	b.WriteString(m.help.ShortHelpView(helpKeys))
	return b.String()
}

func (m *Model) handleKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.quit):
		m.Close()
		return m, tea.Quit
	case key.Matches(msg, m.keys.tab):
		if m.pane == PlaylistPane {
			m.pane = RecommendationPane
		} else {
			m.pane = PlaylistPane
		}
		return m, nil
	case key.Matches(msg, m.keys.rejoin):
		m.err = nil
		return m, m.rejoin()
	case m.pane == PlaylistPane && key.Matches(msg, m.keys.remove):
		if item, ok := m.playlist.SelectedItem().(trackItem); ok {
			m.command(m.ctl.RemoveTrack(item.track.ID), "remove")
		}
		return m, nil
	case m.pane == RecommendationPane && key.Matches(msg, m.keys.add):
		if item, ok := m.recs.SelectedItem().(trackItem); ok {
			track := item.track
			track.AddedBy = ""
			m.command(m.ctl.AddTrack(track), "queue")
		}
		return m, nil
	}

	return m.updateLists(msg)
}

// command reports a rejected send. Accepted commands show up once the relay confirms them.
func (m *Model) command(sent bool, what string) {
	if sent {
		m.notice = ""
		return
	}
	m.notice = fmt.Sprintf("cannot %s track while %s", what, m.state)
}

func (m *Model) updateLists(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.pane {
	case PlaylistPane:
		m.playlist, cmd = m.playlist.Update(msg)
	case RecommendationPane:
		m.recs, cmd = m.recs.Update(msg)
	}
	return m, cmd
}

func (m *Model) apply(s models.Session) {
	m.session = s
	m.playlist.SetItems(trackItems(s, s.Playlist))
	m.recs.SetItems(trackItems(s, s.Recommendations))
}

func (m *Model) resize() {
	w := max(m.width-4, 0)
	h := max((m.height-10)/2, 0)
	m.playlist.SetSize(w, h)
	m.recs.SetSize(w, h)
}

func (m *Model) waitForChange() tea.Cmd {
	changes := m.changes
	return func() tea.Msg {
		change, ok := <-changes
		if !ok {
			return unsubscribedMsg()
		}
		return stateChangeMsg(change)
	}
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(tickInterval, func(time.Time) tea.Msg {
		return tickMsg(m.ctl.State())
	})
}

func (m *Model) rejoin() tea.Cmd {
	ctl, id := m.ctl, m.sessionID
	return func() tea.Msg {
		return rejoinMsg(ctl.Connect(id))
	}
}
