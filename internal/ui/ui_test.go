package ui

import (
	"errors"
	"io"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/session"
	"github.com/desertthunder/jam/internal/shared"
)

type fakeController struct {
	state      models.ConnectionState
	connectErr error
	connected  []string
	added      []models.Track
	removed    []string
}

func (f *fakeController) State() models.ConnectionState { return f.state }

func (f *fakeController) Connect(id string) error {
	f.connected = append(f.connected, id)
	return f.connectErr
}

func (f *fakeController) AddTrack(t models.Track) bool {
	if f.state != models.Joined {
		return false
	}
	f.added = append(f.added, t)
	return true
}

func (f *fakeController) RemoveTrack(id string) bool {
	if f.state != models.Joined {
		return false
	}
	f.removed = append(f.removed, id)
	return true
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func newTestModel(t *testing.T) (*Model, *fakeController, *session.Reconciler) {
	t.Helper()
	rec := session.NewReconciler(shared.NewLogger(io.Discard))
	rec.Apply(models.Event{Type: models.SessionUpdate, Session: &models.Session{
		ID:           "jam-1",
		Participants: []models.Participant{{ID: "ada", Name: "Ada"}, {ID: "bob", Name: "Bob"}},
		Playlist:     []models.Track{{ID: "t1", Title: "One", AddedBy: "ada"}, {ID: "t2", Title: "Two"}},
	}})
	rec.Apply(models.Event{Type: models.RecommendationAdded, SessionID: "jam-1", Track: &models.Track{ID: "r1", Title: "Suggested", AddedBy: "x"}})

	ctl := &fakeController{state: models.Joined}
	m := NewModel(ctl, rec, "jam-1")
	t.Cleanup(m.Close)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m, ctl, rec
}

func TestModel(t *testing.T) {
	t.Run("Initial Snapshot", func(t *testing.T) {
		m, _, _ := newTestModel(t)

		view := m.View()
		for _, want := range []string{"jam-1", "joined", "Listening (2):", "Ada, Bob"} {
			if !strings.Contains(view, want) {
				t.Errorf("view missing %q:\n%s", want, view)
			}
		}
		if got := len(m.playlist.Items()); got != 2 {
			t.Errorf("expected 2 playlist items, got %d", got)
		}
		if item := m.playlist.Items()[0].(trackItem); item.addedBy != "Ada" {
			t.Errorf("expected added by Ada, got %q", item.addedBy)
		}
	})

	t.Run("State Changes", func(t *testing.T) {
		m, _, rec := newTestModel(t)

		rec.Apply(models.Event{Type: models.PlaylistUpdate, SessionID: "jam-1", Op: models.OpAdd, Track: &models.Track{ID: "t3"}})
		change := <-m.changes
		if _, cmd := m.Update(stateChangeMsg(change)); cmd == nil {
			t.Error("expected to keep waiting for changes")
		}
		if got := len(m.playlist.Items()); got != 3 {
			t.Errorf("expected 3 playlist items, got %d", got)
		}

		rec.Reset()
		m.Update(stateChangeMsg(<-m.changes))
		if got := len(m.playlist.Items()); got != 0 {
			t.Errorf("expected empty playlist after reset, got %d", got)
		}
	})

	t.Run("Error Message", func(t *testing.T) {
		m, _, _ := newTestModel(t)

		change := session.StateChange{Type: models.Error, Err: models.NewSessionError(models.ConnectionFailed, "gave up")}
		m.Update(stateChangeMsg(change))
		if view := m.View(); !strings.Contains(view, "Session disconnected, please rejoin.") {
			t.Errorf("expected user message in view:\n%s", view)
		}
		if got := len(m.playlist.Items()); got != 2 {
			t.Errorf("error must not clear the playlist, got %d items", got)
		}

		m.Update(tickMsg(models.Joined))
		if m.err != nil {
			t.Error("expected error cleared once joined again")
		}
	})

	t.Run("Remove Track", func(t *testing.T) {
		m, ctl, _ := newTestModel(t)

		m.Update(runes("x"))
		if len(ctl.removed) != 1 || ctl.removed[0] != "t1" {
			t.Errorf("expected t1 removed, got %v", ctl.removed)
		}
		if got := len(m.playlist.Items()); got != 2 {
			t.Errorf("removal must wait for confirmation, got %d items", got)
		}
	})

	t.Run("Queue Recommendation", func(t *testing.T) {
		m, ctl, _ := newTestModel(t)

		m.Update(tea.KeyMsg{Type: tea.KeyTab})
		if m.pane != RecommendationPane {
			t.Fatal("expected recommendation pane")
		}
		m.Update(runes("x"))
		if len(ctl.removed) != 0 {
			t.Error("remove must not apply to recommendations")
		}
		m.Update(runes("a"))
		if len(ctl.added) != 1 || ctl.added[0].ID != "r1" || ctl.added[0].AddedBy != "" {
			t.Errorf("unexpected added tracks %+v", ctl.added)
		}
	})

	t.Run("Commands Rejected While Disconnected", func(t *testing.T) {
		m, ctl, _ := newTestModel(t)
		ctl.state = models.Reconnecting
		m.Update(tickMsg(ctl.State()))

		m.Update(runes("x"))
		if !strings.Contains(m.View(), "cannot remove track while reconnecting") {
			t.Errorf("expected rejection notice:\n%s", m.View())
		}
	})

	t.Run("Rejoin", func(t *testing.T) {
		m, ctl, _ := newTestModel(t)
		ctl.connectErr = errors.New("no credential")

		_, cmd := m.Update(runes("r"))
		if cmd == nil {
			t.Fatal("expected rejoin command")
		}
		m.Update(cmd())
		if len(ctl.connected) != 1 || ctl.connected[0] != "jam-1" {
			t.Errorf("expected Connect(jam-1), got %v", ctl.connected)
		}
		if !strings.Contains(m.View(), "rejoin failed: no credential") {
			t.Errorf("expected failure notice:\n%s", m.View())
		}
	})

	t.Run("Quit Unsubscribes", func(t *testing.T) {
		m, _, _ := newTestModel(t)

		_, cmd := m.Update(runes("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
		if _, open := <-m.changes; open {
			t.Error("expected subscription closed")
		}
		if msg := m.waitForChange()(); msg.(Msg).kind != MsgUnsubscribed {
			t.Errorf("expected unsubscribed message, got %+v", msg)
		}
	})
}

func TestPaletteState(t *testing.T) {
	for _, s := range []models.ConnectionState{models.Disconnected, models.Connecting, models.Joined, models.Failed} {
		if got := styles.State(s); !strings.Contains(got, s.String()) {
			t.Errorf("State(%s) = %q", s, got)
		}
	}
}
