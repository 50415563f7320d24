package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/jam/internal/models"
	"github.com/desertthunder/jam/internal/session"
)

// MsgKind enumerates all message types in the viewer.
type MsgKind int

// Msg represents all possible messages in the viewer (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgStateChange MsgKind = iota
	MsgTick
	MsgRejoin
	MsgUnsubscribed
)

// stateChangeMsg is the constructor for [MsgStateChange]
func stateChangeMsg(change session.StateChange) Msg {
	return Msg{kind: MsgStateChange, data: change}
}

// tickMsg is the constructor for [MsgTick]
func tickMsg(state models.ConnectionState) Msg {
	return Msg{kind: MsgTick, data: state}
}

// rejoinMsg is the constructor for [MsgRejoin]
func rejoinMsg(err error) Msg {
	return Msg{kind: MsgRejoin, data: err}
}

// unsubscribedMsg is the constructor for [MsgUnsubscribed]
func unsubscribedMsg() Msg {
	return Msg{kind: MsgUnsubscribed}
}
