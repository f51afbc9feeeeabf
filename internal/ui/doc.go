// Package ui implements the interactive track browser using bubbletea's Elm architecture.
//
// The browser moves through three views:
//  1. [QueryView] : Type a search query
//  2. [ResultsView] : Page through matching tracks
//  3. [DetailView] : Inspect one track and its embedding, drawn as one bar per dimension; "o" opens it in the browser
//
// The [Model] implements bubbletea's Init/Update/View pattern, receiving results via the [Msg] union type.
// Searches run as [tea.Cmd]s against a [Searcher], so the event loop never blocks on the network.
//
// Keyboard navigation uses vim-style bindings with contextual help displayed via charmbracelet/bubbles/help.
package ui
