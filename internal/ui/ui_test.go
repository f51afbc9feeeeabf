package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/services"
	"github.com/desertthunder/tracksearch/internal/shared"
)

type stubSearcher struct {
	mu     sync.Mutex
	calls  []services.SearchParams
	total  int
	err    error
	noEmbs bool
}

func (s *stubSearcher) Search(ctx context.Context, p services.SearchParams) (*services.TrackPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, p)
	if s.err != nil {
		return nil, s.err
	}
	page := &services.TrackPage{Total: s.total, Limit: p.Limit, Offset: p.Offset}
	for i := p.Offset; i < min(p.Offset+p.Limit, s.total); i++ {
		id := "t" + string(rune('a'+i))
		t := models.TrackWithFeatures{Track: models.Track{
			ID:      id,
			Name:    "Song " + id,
			Artists: []models.Artist{{Name: "Artist " + id}},
		}}
		if !s.noEmbs {
			e := models.Embedding{1, 0.5, 0, 0.25, 1, 0, 0, 0, 0, 0.75, 0.5, 0.5}
			t.Embedding = &e
		}
		page.Tracks = append(page.Tracks, t)
	}
	return page, nil
}

func keyRunes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

var (
	enterKey = tea.KeyMsg{Type: tea.KeyEnter}
	escKey   = tea.KeyMsg{Type: tea.KeyEsc}
)

// send applies msg and, when the model returns a command, runs it and feeds back any [Msg] it yields.
func send(t *testing.T, m *Model, msg tea.Msg) *Model {
	t.Helper()
	_, cmd := m.Update(msg)
	for _, out := range drain(cmd) {
		if res, ok := out.(Msg); ok {
			m.Update(res)
		}
	}
	return m
}

func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := runWithTimeout(cmd)
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func runWithTimeout(cmd tea.Cmd) tea.Msg {
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(time.Second):
		return nil
	}
}

func typeQuery(t *testing.T, m *Model, q string) {
	t.Helper()
	for _, r := range q {
		m.Update(keyRunes(string(r)))
	}
}

func newTestModel(s Searcher) *Model {
	m := NewModel(context.Background(), s, 3)
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 40})
	return m
}

func TestModel(t *testing.T) {
	t.Run("Search Flow", func(t *testing.T) {
		s := &stubSearcher{total: 5}
		m := newTestModel(s)

		typeQuery(t, m, "queen")
		if m.input.Value() != "queen" {
			t.Fatalf("expected typed query, got %q", m.input.Value())
		}
		send(t, m, enterKey)

		if len(s.calls) != 1 {
			t.Fatalf("expected one search, got %d", len(s.calls))
		}
		if p := s.calls[0]; p.Query != "queen" || p.Limit != 3 || p.Offset != 0 || !p.IncludeFeatures {
			t.Errorf("unexpected params %+v", p)
		}
		if m.view != ResultsView {
			t.Fatalf("expected results view, got %d", m.view)
		}
		if len(m.results.Items()) != 3 {
			t.Errorf("expected 3 items, got %d", len(m.results.Items()))
		}
		if !strings.Contains(m.results.Title, "1-3 of 5") {
			t.Errorf("unexpected title %q", m.results.Title)
		}
	})

	t.Run("Q Types In Query View", func(t *testing.T) {
		m := newTestModel(&stubSearcher{})
		_, cmd := m.Update(keyRunes("q"))
		if cmd != nil {
			if _, quit := runWithTimeout(cmd).(tea.QuitMsg); quit {
				t.Fatal("q should not quit while typing")
			}
		}
		if m.input.Value() != "q" {
			t.Errorf("expected q in input, got %q", m.input.Value())
		}
	})

	t.Run("Blank Query Ignored", func(t *testing.T) {
		s := &stubSearcher{total: 5}
		m := newTestModel(s)
		typeQuery(t, m, "   ")
		send(t, m, enterKey)
		if len(s.calls) != 0 || m.view != QueryView {
			t.Errorf("blank query should not search")
		}
	})

	t.Run("Paging", func(t *testing.T) {
		s := &stubSearcher{total: 5}
		m := newTestModel(s)
		typeQuery(t, m, "x")
		send(t, m, enterKey)

		send(t, m, keyRunes("p"))
		if len(s.calls) != 1 {
			t.Error("prev on the first page should not search")
		}

		send(t, m, keyRunes("n"))
		if len(s.calls) != 2 || s.calls[1].Offset != 3 {
			t.Fatalf("expected second page request, got %+v", s.calls)
		}
		if len(m.results.Items()) != 2 {
			t.Errorf("expected 2 items on the last page, got %d", len(m.results.Items()))
		}

		send(t, m, keyRunes("n"))
		if len(s.calls) != 2 {
			t.Error("next on the last page should not search")
		}

		send(t, m, keyRunes("p"))
		if len(s.calls) != 3 || s.calls[2].Offset != 0 {
			t.Errorf("expected first page request, got %+v", s.calls)
		}
	})

	t.Run("Detail View", func(t *testing.T) {
		m := newTestModel(&stubSearcher{total: 2})
		typeQuery(t, m, "x")
		send(t, m, enterKey)
		send(t, m, enterKey)

		if m.view != DetailView || m.selected == nil || m.selected.Track.ID != "ta" {
			t.Fatalf("expected detail of first track, got view %d", m.view)
		}
		out := m.View()
		for _, name := range models.EmbeddingDimensions {
			if !strings.Contains(out, name) {
				t.Errorf("detail missing dimension %q", name)
			}
		}
		if !strings.Contains(out, strings.Repeat("█", barWidth)) {
			t.Error("expected a full bar for a 1.0 dimension")
		}

		send(t, m, escKey)
		if m.view != ResultsView || m.selected != nil {
			t.Errorf("esc should return to results")
		}
	})

	t.Run("Open In Browser", func(t *testing.T) {
		m := newTestModel(&stubSearcher{total: 1})
		var opened []string
		m.open = func(url string) error {
			opened = append(opened, url)
			return nil
		}
		typeQuery(t, m, "x")
		send(t, m, enterKey)
		send(t, m, enterKey)
		send(t, m, keyRunes("o"))

		if len(opened) != 1 || opened[0] != m.selected.Track.URL() {
			t.Fatalf("opened = %v, want the selected track link", opened)
		}
		if m.err != nil {
			t.Errorf("unexpected error %v", m.err)
		}

		m.open = func(string) error { return errors.New("no display") }
		send(t, m, keyRunes("o"))
		if m.view != DetailView || !strings.Contains(m.View(), "no display") {
			t.Error("open failure should be shown in the detail view")
		}

		send(t, m, escKey)
		if m.err != nil {
			t.Error("leaving the detail view should clear the error")
		}
	})

	t.Run("Detail Without Embedding", func(t *testing.T) {
		m := newTestModel(&stubSearcher{total: 1, noEmbs: true})
		typeQuery(t, m, "x")
		send(t, m, enterKey)
		send(t, m, enterKey)
		if !strings.Contains(m.View(), "No audio features") {
			t.Error("expected missing features notice")
		}
	})

	t.Run("Back To Query Keeps Results", func(t *testing.T) {
		m := newTestModel(&stubSearcher{total: 2})
		typeQuery(t, m, "x")
		send(t, m, enterKey)

		send(t, m, escKey)
		if m.view != QueryView {
			t.Fatalf("expected query view, got %d", m.view)
		}
		send(t, m, escKey)
		if m.view != ResultsView {
			t.Errorf("esc from query should return to the previous results")
		}
	})

	t.Run("Search Error", func(t *testing.T) {
		err := shared.NewError(shared.KindRateLimited, "search", "", nil)
		err.RetryAfter = 3 * time.Second
		m := newTestModel(&stubSearcher{err: err})
		typeQuery(t, m, "x")
		send(t, m, enterKey)

		if m.view != QueryView {
			t.Errorf("expected to stay on query view, got %d", m.view)
		}
		if m.loading {
			t.Error("loading should be cleared")
		}
		if !strings.Contains(m.View(), "retry in 3s") {
			t.Errorf("expected retry hint, got %q", m.View())
		}
	})

	t.Run("Quit", func(t *testing.T) {
		m := newTestModel(&stubSearcher{total: 1})
		typeQuery(t, m, "x")
		send(t, m, enterKey)
		_, cmd := m.Update(keyRunes("q"))
		if cmd == nil {
			t.Fatal("expected quit command")
		}
		if _, ok := cmd().(tea.QuitMsg); !ok {
			t.Error("expected tea.QuitMsg")
		}
	})
}

func TestBar(t *testing.T) {
	tests := []struct {
		v             float32
		filled, empty int
	}{
		{0, 0, 10},
		{0.5, 5, 5},
		{1, 10, 0},
		{1.7, 10, 0},
		{-1, 0, 10},
	}
	for _, tt := range tests {
		filled, empty := bar(tt.v, 10)
		if strings.Count(filled, "█") != tt.filled || strings.Count(empty, "░") != tt.empty {
			t.Errorf("bar(%v) = %q %q", tt.v, filled, empty)
		}
	}
}
