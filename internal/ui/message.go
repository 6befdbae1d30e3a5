package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/ttrack/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
type Msg struct {
	kind MsgKind
	data any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgTick MsgKind = iota
	MsgSyncStatus
	MsgActionDone
	MsgSignedIn
	MsgSignedOut
)

// tickMsg is the constructor for [MsgTick]
func tickMsg(at time.Time) Msg {
	return Msg{kind: MsgTick, data: at}
}

// syncStatusMsg is the constructor for [MsgSyncStatus]
func syncStatusMsg(update tasks.StatusUpdate) Msg {
	return Msg{kind: MsgSyncStatus, data: update}
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(err error) Msg {
	return Msg{kind: MsgActionDone, data: err}
}

// signedInMsg is the constructor for [MsgSignedIn]
func signedInMsg(err error) Msg {
	return Msg{kind: MsgSignedIn, data: err}
}

// signedOutMsg is the constructor for [MsgSignedOut]
func signedOutMsg(err error) Msg {
	return Msg{kind: MsgSignedOut, data: err}
}

// errOf extracts the error carried by action and session messages.
func (m Msg) errOf() error {
	err, _ := m.data.(error)
	return err
}
