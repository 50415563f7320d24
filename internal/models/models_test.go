package models

import (
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/jam/internal/shared"
)

func TestSession(t *testing.T) {
	t.Run("AddTrack is set-once", func(t *testing.T) {
		var s Session
		if !s.AddTrack(Track{ID: "t1"}) {
			t.Fatal("first add should change the playlist")
		}
		if s.AddTrack(Track{ID: "t1", Title: "again"}) {
			t.Error("duplicate add should be a no-op")
		}
		if len(s.Playlist) != 1 || s.Playlist[0].Title != "" {
			t.Errorf("expected the original single copy, got %+v", s.Playlist)
		}
	})

	t.Run("RemoveTrack of unknown id is a no-op", func(t *testing.T) {
		s := Session{Playlist: []Track{{ID: "t1"}}}
		if s.RemoveTrack("missing") {
			t.Error("removing an unknown id should not report a change")
		}
		if !s.RemoveTrack("t1") || s.HasTrack("t1") {
			t.Error("expected t1 to be removed")
		}
	})

	t.Run("Participants keep insertion order", func(t *testing.T) {
		var s Session
		for _, id := range []string{"c", "a", "b"} {
			s.AddParticipant(Participant{ID: id})
		}
		s.AddParticipant(Participant{ID: "a"})
		s.RemoveParticipant("zzz")

		got := []string{}
		for _, p := range s.Participants {
			got = append(got, p.ID)
		}
		if len(got) != 3 || got[0] != "c" || got[1] != "a" || got[2] != "b" {
			t.Errorf("expected [c a b], got %v", got)
		}
	})

	t.Run("lookups work on returned copies", func(t *testing.T) {
		s := Session{
			ID:           "s",
			Participants: []Participant{{ID: "u1", Name: "Ada"}},
			Playlist:     []Track{{ID: "t1"}},
		}
		if !s.Clone().HasTrack("t1") || s.Clone().HasTrack("t2") {
			t.Error("HasTrack should report playlist membership")
		}
		if p, ok := s.Clone().Participant("u1"); !ok || p.Name != "Ada" {
			t.Errorf("expected Ada, got %+v (%v)", p, ok)
		}
		if _, ok := s.Clone().Participant("u2"); ok {
			t.Error("unknown participant should not be found")
		}
	})

	t.Run("Clone is deep", func(t *testing.T) {
		s := Session{ID: "s", Playlist: []Track{{ID: "t1"}}}
		c := s.Clone()
		c.Playlist[0].ID = "changed"
		if s.Playlist[0].ID != "t1" {
			t.Error("mutating the clone leaked into the original")
		}
	})
}

func TestEventValidate(t *testing.T) {
	tc := []struct {
		name    string
		event   Event
		wantErr bool
	}{
		{name: "snapshot", event: Event{Type: SessionUpdate, Session: &Session{}}},
		{name: "snapshot without session", event: Event{Type: SessionUpdate}, wantErr: true},
		{name: "playlist add", event: Event{Type: PlaylistUpdate, Track: &Track{ID: "t"}, Op: OpAdd}},
		{name: "playlist without track id", event: Event{Type: PlaylistUpdate, Track: &Track{}, Op: OpAdd}, wantErr: true},
		{name: "playlist unknown op", event: Event{Type: PlaylistUpdate, Track: &Track{ID: "t"}, Op: "move"}, wantErr: true},
		{name: "join", event: Event{Type: UserJoin, Participant: &Participant{ID: "p"}}},
		{name: "leave without participant", event: Event{Type: UserLeave}, wantErr: true},
		{name: "recommendation", event: Event{Type: RecommendationAdded, Track: &Track{ID: "t"}}},
		{name: "error without reason", event: Event{Type: Error}, wantErr: true},
		{name: "unknown type", event: Event{Type: EventType(99)}, wantErr: true},
	}

	for _, tt := range tc {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.event.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, shared.ErrMalformedEvent) {
				t.Errorf("expected ErrMalformedEvent, got %v", err)
			}
		})
	}
}

func TestSessionError(t *testing.T) {
	err := NewSessionError(AuthRequired, "no credential")
	if !errors.Is(err, shared.ErrAuthRequired) {
		t.Error("AuthRequired should unwrap to shared.ErrAuthRequired")
	}
	if err.Error() != "auth_required: no credential" {
		t.Errorf("unexpected message %q", err.Error())
	}
	if NewSessionError(ConnectionFailed, "").UserMessage() != "Session disconnected, please rejoin." {
		t.Error("ConnectionFailed should read as a rejoin prompt")
	}
}

func TestRefreshLeaseExpired(t *testing.T) {
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	lease := RefreshLease{AcquiredAt: now, ExpiresAt: now.Add(10 * time.Second)}

	if lease.Expired(now.Add(9 * time.Second)) {
		t.Error("lease should still be valid before expiresAt")
	}
	if !lease.Expired(now.Add(10 * time.Second)) {
		t.Error("lease should be expired at expiresAt")
	}
}

func TestConnectionStateString(t *testing.T) {
	if Joined.String() != "joined" || Reconnecting.String() != "reconnecting" {
		t.Error("unexpected state names")
	}
	if !Joined.Handshaking() || Connecting.Handshaking() || Reconnecting.Handshaking() {
		t.Error("only identifying/joining/joined should trigger reconnection")
	}
}
