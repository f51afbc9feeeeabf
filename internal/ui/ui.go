package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/desertthunder/tracksearch/internal/models"
	"github.com/desertthunder/tracksearch/internal/services"
	"github.com/desertthunder/tracksearch/internal/shared"
)

// ViewState represents the current view in the TUI.
type ViewState int

const (
	QueryView ViewState = iota
	ResultsView
	DetailView
)

// Searcher runs a track search. [services.Catalog] satisfies it.
type Searcher interface {
	Search(ctx context.Context, p services.SearchParams) (*services.TrackPage, error)
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	view     ViewState
	searcher Searcher
	pageSize int
	width    int
	height   int
	input    textinput.Model
	spinner  spinner.Model
	loading  bool
	results  list.Model
	params   services.SearchParams
	page     *services.TrackPage
	selected *models.TrackWithFeatures
	err      error
	help     help.Model
	keys     keyMap
	open     func(url string) error
}

// NewModel creates a browser that searches through searcher. pageSize is clamped like any search limit.
func NewModel(ctx context.Context, searcher Searcher, pageSize int) *Model {
	input := textinput.New()
	input.Placeholder = "artist, track or album"
	input.Prompt = "search › "
	input.CharLimit = 200
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.ok

	results := list.New(nil, list.NewDefaultDelegate(), 0, 0)
	results.SetShowHelp(false)

	return &Model{
		ctx:      ctx,
		view:     QueryView,
		searcher: searcher,
		pageSize: models.ClampLimit(pageSize),
		input:    input,
		spinner:  sp,
		results:  results,
		help:     help.New(),
		keys:     newKeyMap(),
		open:     shared.OpenBrowser,
	}
}

// Init starts the cursor blinking in the query input.
func (m *Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.results.SetSize(max(msg.Width-4, 0), max(msg.Height-6, 0))
		m.input.Width = max(msg.Width-12, 10)
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.quit) && (msg.String() == "ctrl+c" || m.view != QueryView) &&
			m.results.FilterState() != list.Filtering {
			return m, tea.Quit
		}
		switch m.view {
		case QueryView:
			return m.handleQueryKeys(msg)
		case ResultsView:
			return m.handleResultsKeys(msg)
		case DetailView:
			return m.handleDetailKeys(msg)
		}

	case Msg:
		switch msg.kind {
		case MsgSearchDone:
			return m.handleSearchDone(msg.data.(searchResult))
		case MsgOpenDone:
			m.err, _ = msg.data.(error)
			return m, nil
		}

	case spinner.TickMsg:
		if !m.loading {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	return m.updateComponents(msg)
}

// View renders the UI based on the current view state.
func (m *Model) View() string {
	switch m.view {
	case QueryView:
		return m.renderQuery()
	case ResultsView:
		return m.renderResults()
	case DetailView:
		return m.renderDetail()
	default:
		return ""
	}
}

func (m *Model) handleQueryKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.enter):
		q := strings.TrimSpace(m.input.Value())
		if q == "" || m.loading {
			return m, nil
		}
		return m, m.search(services.SearchParams{Query: q, Limit: m.pageSize, IncludeFeatures: true})
	case key.Matches(msg, m.keys.back):
		if m.page != nil {
			m.view = ResultsView
			m.input.Blur()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m *Model) handleResultsKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.results.FilterState() == list.Filtering {
		var cmd tea.Cmd
		m.results, cmd = m.results.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.enter):
		if item, ok := m.results.SelectedItem().(trackItem); ok {
			t := item.track
			m.selected = &t
			m.view = DetailView
		}
		return m, nil
	case key.Matches(msg, m.keys.back):
		if m.results.FilterState() == list.FilterApplied {
			m.results.ResetFilter()
			return m, nil
		}
		m.view = QueryView
		m.err = nil
		return m, m.input.Focus()
	case key.Matches(msg, m.keys.next):
		if m.page != nil && !m.loading && m.page.Offset+len(m.page.Tracks) < m.page.Total {
			p := m.params
			p.Offset = m.page.Offset + m.page.Limit
			return m, m.search(p)
		}
		return m, nil
	case key.Matches(msg, m.keys.prev):
		if m.page != nil && !m.loading && m.page.Offset > 0 {
			p := m.params
			p.Offset = max(m.page.Offset-m.page.Limit, 0)
			return m, m.search(p)
		}
		return m, nil
	}

	var cmd tea.Cmd
	m.results, cmd = m.results.Update(msg)
	return m, cmd
}

func (m *Model) handleDetailKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.back), key.Matches(msg, m.keys.enter):
		m.view = ResultsView
		m.selected = nil
		m.err = nil
	case key.Matches(msg, m.keys.open) && m.selected != nil:
		open, url := m.open, m.selected.Track.URL()
		return m, func() tea.Msg { return openDoneMsg(open(url)) }
	}
	return m, nil
}

func (m *Model) handleSearchDone(res searchResult) (tea.Model, tea.Cmd) {
	m.loading = false
	if res.err != nil {
		m.err = res.err
		return m, nil
	}

	m.err = nil
	m.params = res.params
	m.page = res.page
	m.results.SetItems(trackItems(res.page.Tracks))
	m.results.Select(0)
	m.results.Title = fmt.Sprintf("%q • %s", res.params.Query, pageLabel(res.page))
	m.view = ResultsView
	m.input.Blur()
	return m, nil
}

func (m *Model) updateComponents(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd
	switch m.view {
	case QueryView:
		m.input, cmd = m.input.Update(msg)
	case ResultsView:
		m.results, cmd = m.results.Update(msg)
	}
	return m, cmd
}

func (m *Model) search(p services.SearchParams) tea.Cmd {
	m.loading = true
	m.err = nil
	searcher, ctx := m.searcher, m.ctx
	return tea.Batch(m.spinner.Tick, func() tea.Msg {
		page, err := searcher.Search(ctx, p)
		return searchDoneMsg(p, page, err)
	})
}

func pageLabel(p *services.TrackPage) string {
	if len(p.Tracks) == 0 {
		return "no results"
	}
	return fmt.Sprintf("%d-%d of %d", p.Offset+1, p.Offset+len(p.Tracks), p.Total)
}

func (m *Model) renderStatus() string {
	switch {
	case m.loading:
		return m.spinner.View() + " searching..."
	case m.err != nil:
		return styles.err.Render(describeError(m.err))
	}
	return ""
}

func (m *Model) renderQuery() string {
	title := styles.title.Render("Track Search")
	keys := []key.Binding{m.keys.enter}
	if m.page != nil {
		keys = append(keys, m.keys.back)
	}
	quit := key.NewBinding(key.WithKeys("ctrl+c"), key.WithHelp("ctrl+c", "quit"))
	keys = append(keys, quit)
	return fmt.Sprintf("%s\n%s\n\n%s\n\n%s", title, m.input.View(), m.renderStatus(), m.help.ShortHelpView(keys))
}

func (m *Model) renderResults() string {
	helpKeys := []key.Binding{m.keys.enter, m.keys.next, m.keys.prev, m.keys.back, m.keys.quit}
	status := m.renderStatus()
	if status != "" {
		status = "\n" + status
	}
	return fmt.Sprintf("%s%s\n\n%s", m.results.View(), status, m.help.ShortHelpView(helpKeys))
}

func (m *Model) renderDetail() string {
	t := m.selected
	if t == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(t.Track.Name))
	b.WriteString("\n")
	fmt.Fprintf(&b, "%s\n", t.Track.ArtistNames())
	if t.Track.Album.Name != "" {
		fmt.Fprintf(&b, "%s\n", t.Track.Album.Name)
	}
	fmt.Fprintf(&b, "%s\n\n", styles.track.Render(t.Track.URL()))

	if t.Embedding == nil {
		b.WriteString(styles.warn.Render("No audio features available for this track."))
	} else {
		fmt.Fprintf(&b, "%s\n", styles.help.Render("embedding "+models.EmbeddingVersion))
		for d, name := range models.EmbeddingDimensions {
			v := t.Embedding[d]
			filled, empty := bar(v, barWidth)
			fmt.Fprintf(&b, "%s %s%s %.2f\n", styles.label.Render(name), styles.bar.Render(filled), styles.help.Render(empty), v)
		}
	}

	if m.err != nil {
		fmt.Fprintf(&b, "\n%s", styles.err.Render(describeError(m.err)))
	}

	helpKeys := []key.Binding{m.keys.open, m.keys.back, m.keys.quit}
	return fmt.Sprintf("%s\n\n%s", b.String(), m.help.ShortHelpView(helpKeys))
}

func describeError(err error) string {
	switch shared.KindOf(err) {
	case shared.KindRateLimited:
		if d := shared.RetryAfterOf(err); d > 0 {
			return fmt.Sprintf("Rate limited, retry in %s", d)
		}
		return "Rate limited, try again shortly"
	case shared.KindAuthFailure:
		return "Could not authenticate with Spotify: " + err.Error()
	case shared.KindUpstreamTimeout:
		return "Spotify took too long to answer"
	}
	return "Error: " + err.Error()
}
