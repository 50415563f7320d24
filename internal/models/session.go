package models

import (
	"fmt"
	"slices"
)

// Participant is a member of a listening session.
type Participant struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// Validate checks the fields a participant must carry.
func (p Participant) Validate() error {
	if p.ID == "" {
		return fmt.Errorf("participant id is required")
	}
	return nil
}

// Track is a playlist or recommendation entry.
//
// AddedBy is a display-only reference to the participant who added the track; the track outlives that participant.
type Track struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Artist   string `json:"artist"`
	AlbumArt string `json:"albumArt,omitempty"`
	Duration int    `json:"duration"` // seconds
	AddedBy  string `json:"addedBy,omitempty"`
}

// Validate checks the fields a track must carry.
func (t Track) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("track id is required")
	}
	return nil
}

// Session is the shared object synchronised between participants.
//
// Playlist order is the transport's delivery order; Recommendations are replaced or appended, never merged.
type Session struct {
	ID              string        `json:"id"`
	Participants    []Participant `json:"participants"`
	Playlist        []Track       `json:"playlist"`
	Recommendations []Track       `json:"recommendations"`
}

// Clone returns a deep copy so readers never observe later merges.
func (s Session) Clone() Session {
	return Session{
		ID:              s.ID,
		Participants:    slices.Clone(s.Participants),
		Playlist:        slices.Clone(s.Playlist),
		Recommendations: slices.Clone(s.Recommendations),
	}
}

// Participant looks up a participant by id.
func (s Session) Participant(id string) (Participant, bool) {
	i := slices.IndexFunc(s.Participants, func(p Participant) bool { return p.ID == id })
	if i < 0 {
		return Participant{}, false
	}
	return s.Participants[i], true
}

// AddParticipant appends p unless a participant with the same id is present. Reports whether the roster changed.
func (s *Session) AddParticipant(p Participant) bool {
	if _, ok := s.Participant(p.ID); ok {
		return false
	}
	s.Participants = append(s.Participants, p)
	return true
}

// RemoveParticipant deletes the participant with the given id. Unknown ids are a no-op.
func (s *Session) RemoveParticipant(id string) bool {
	n := len(s.Participants)
	s.Participants = slices.DeleteFunc(s.Participants, func(p Participant) bool { return p.ID == id })
	return len(s.Participants) != n
}

// HasTrack reports whether the playlist contains the track id.
func (s Session) HasTrack(id string) bool {
	return slices.ContainsFunc(s.Playlist, func(t Track) bool { return t.ID == id })
}

// AddTrack appends t when its id is not already in the playlist (set-once).
func (s *Session) AddTrack(t Track) bool {
	if s.HasTrack(t.ID) {
		return false
	}
	s.Playlist = append(s.Playlist, t)
	return true
}

// RemoveTrack deletes the track with the given id. Unknown ids are a no-op.
func (s *Session) RemoveTrack(id string) bool {
	n := len(s.Playlist)
	s.Playlist = slices.DeleteFunc(s.Playlist, func(t Track) bool { return t.ID == id })
	return len(s.Playlist) != n
}
