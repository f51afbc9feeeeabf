package ui

import (
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tracksearch/internal/services"
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
	MsgSearchDone MsgKind = iota
	MsgOpenDone
)

type searchResult struct {
	params services.SearchParams
	page   *services.TrackPage
	err    error
}

// searchDoneMsg is the constructor for [MsgSearchDone]
func searchDoneMsg(params services.SearchParams, page *services.TrackPage, err error) Msg {
	return Msg{kind: MsgSearchDone, data: searchResult{params: params, page: page, err: err}}
}

// openDoneMsg reports the outcome of opening a track link.
func openDoneMsg(err error) Msg {
	return Msg{kind: MsgOpenDone, data: err}
}
