// Package tui is an interactive terminal browser for a running docrag server.
package tui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/NimbleMarkets/ntcharts/sparkline"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	httpapi "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

const (
	sparklineWidth  = 30
	sparklineHeight = 3
	historySize     = 30

	defaultSnippetWidth = 72
	minSnippetWidth     = 40
)

// Searcher is the slice of the HTTP client the browser needs.
type Searcher interface {
	Retrieve(ctx context.Context, query string, topK int) (httpapi.RetrieveResponse, error)
	Stats(ctx context.Context) (retrieval.Stats, error)
}

// Config controls the browser.
type Config struct {
	// ServerURL is only displayed.
	ServerURL string
	// TopK is sent with every query; zero lets the server decide.
	TopK int
	// Interval between stats refreshes.
	Interval time.Duration
	// Timeout bounds each request.
	Timeout time.Duration
}

func (c *Config) applyDefaults() {
	if c.Interval <= 0 {
		c.Interval = 5 * time.Second
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.TopK < 0 {
		c.TopK = 0
	}
}

type op string

const (
	opSearch op = "search"
	opStats  op = "stats"
)

// Model is the bubbletea model for the document browser.
type Model struct {
	searcher Searcher
	cfg      Config
	keys     KeyMap

	input    textinput.Model
	spinner  spinner.Model
	scoreBar progress.Model

	query     string
	results   []vectorstore.SearchResult
	cursor    int
	searching bool

	stats        retrieval.Stats
	statsLoaded  bool
	chunkHistory []float64
	lastUpdate   time.Time

	err      error
	errOp    op
	width    int
	quitting bool
}

// NewModel returns a browser model querying searcher.
func NewModel(searcher Searcher, cfg Config) Model {
	cfg.applyDefaults()

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "search your documents"
	ti.CharLimit = 1024
	ti.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = sparklineStyle

	bar := progress.New(
		progress.WithGradient("#ff0000", "#00ff00"),
		progress.WithWidth(40),
	)

	return Model{
		searcher:     searcher,
		cfg:          cfg,
		keys:         DefaultKeyMap(),
		input:        ti,
		spinner:      sp,
		scoreBar:     bar,
		chunkHistory: make([]float64, 0, historySize),
	}
}

// Run starts the browser full-screen and blocks until the user quits or ctx
// is cancelled.
func Run(ctx context.Context, searcher Searcher, cfg Config) error {
	p := tea.NewProgram(NewModel(searcher, cfg), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}

// Message types
type tickMsg time.Time
type statsMsg retrieval.Stats

type resultsMsg struct {
	query   string
	results []vectorstore.SearchResult
}

type errMsg struct {
	op  op
	err error
}

// Init starts the stats refresh loop.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		textinput.Blink,
		tick(m.cfg.Interval),
		fetchStats(m.searcher, m.cfg.Timeout),
	)
}

func tick(interval time.Duration) tea.Cmd {
	return tea.Tick(interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchStats(s Searcher, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		st, err := s.Stats(ctx)
		if err != nil {
			return errMsg{op: opStats, err: err}
		}
		return statsMsg(st)
	}
}

func search(s Searcher, query string, topK int, timeout time.Duration) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		resp, err := s.Retrieve(ctx, query, topK)
		if err != nil {
			return errMsg{op: opSearch, err: err}
		}
		return resultsMsg{query: query, results: resp.Results}
	}
}

// appendToHistory appends a value to history, maintaining max size
func appendToHistory(history []float64, value float64) []float64 {
	history = append(history, value)
	if len(history) > historySize {
		history = history[1:]
	}
	return history
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.input.Width = max(20, msg.Width-10)
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Quit):
			m.quitting = true
			return m, tea.Quit
		case key.Matches(msg, m.keys.Search):
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.searching {
				return m, nil
			}
			m.query = q
			m.searching = true
			return m, tea.Batch(m.spinner.Tick, search(m.searcher, q, m.cfg.TopK, m.cfg.Timeout))
		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
			}
			return m, nil
		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.results)-1 {
				m.cursor++
			}
			return m, nil
		case key.Matches(msg, m.keys.Refresh):
			return m, fetchStats(m.searcher, m.cfg.Timeout)
		}

	case tickMsg:
		return m, tea.Batch(
			tick(m.cfg.Interval),
			fetchStats(m.searcher, m.cfg.Timeout),
		)

	case statsMsg:
		m.stats = retrieval.Stats(msg)
		m.statsLoaded = true
		m.chunkHistory = appendToHistory(m.chunkHistory, float64(m.stats.Chunks))
		m.lastUpdate = time.Now()
		if m.errOp == opStats {
			m.err, m.errOp = nil, ""
		}
		return m, nil

	case resultsMsg:
		if msg.query != m.query {
			return m, nil
		}
		m.searching = false
		m.results = msg.results
		m.cursor = 0
		if m.errOp == opSearch {
			m.err, m.errOp = nil, ""
		}
		return m, nil

	case errMsg:
		if msg.op == opSearch {
			m.searching = false
			m.results = nil
			m.cursor = 0
		}
		m.err, m.errOp = msg.err, msg.op
		return m, nil

	case spinner.TickMsg:
		if !m.searching {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// View renders the browser.
func (m Model) View() string {
	if m.quitting {
		return ""
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString(m.renderIndex())
	b.WriteString(m.renderQuery())
	b.WriteString(m.renderResults())
	b.WriteString(m.renderFooter())
	return containerStyle.Render(b.String())
}

func (m Model) renderHeader() string {
	lastUpdate := "never"
	if !m.lastUpdate.IsZero() {
		lastUpdate = m.lastUpdate.Format("3:04:05 PM")
	}
	return headerStyle.Render(" docrag ") + "\n" +
		fmt.Sprintf("%s   %s   %s\n",
			m.statusBadge(),
			valueStyle.Render(m.cfg.ServerURL),
			dimStyle.Render(lastUpdate))
}

func (m Model) statusBadge() string {
	switch {
	case m.errOp == opStats:
		return errorStyle.Render("✗ UNREACHABLE")
	case !m.statsLoaded:
		return warningStyle.Render("… CONNECTING")
	default:
		return healthyStyle.Render("✓ CONNECTED")
	}
}

func (m Model) renderIndex() string {
	s := "\n" + sectionStyle.Render("┃ Index") + "\n"
	if !m.statsLoaded {
		return s + dimStyle.Render("  waiting for stats") + "\n"
	}
	s += labelStyle.Render("  Stored: ") +
		valueStyle.Render(FormatCount(m.stats.Chunks)) +
		"   " + createSparkline(m.chunkHistory) + "\n"
	s += labelStyle.Render("  Backend: ") +
		valueStyle.Render(m.stats.Backend) +
		dimStyle.Render(" / ") +
		valueStyle.Render(m.stats.Collection) + "\n"
	return s
}

func (m Model) renderQuery() string {
	s := "\n" + sectionStyle.Render("┃ Query") + "\n"
	s += "  " + m.input.View() + "\n"
	if m.searching {
		s += "  " + m.spinner.View() + dimStyle.Render(" searching") + "\n"
	}
	return s
}

func (m Model) renderResults() string {
	s := "\n" + sectionStyle.Render("┃ Results") + "\n"

	switch {
	case m.errOp == opSearch:
		return s + errorStyle.Render("  ⚠ "+m.err.Error()) + "\n"
	case m.query == "":
		return s + dimStyle.Render("  type a query and press enter") + "\n"
	case m.searching && len(m.results) == 0:
		return s
	case len(m.results) == 0:
		return s + dimStyle.Render(fmt.Sprintf("  no chunks match %q", m.query)) + "\n"
	}

	scores := make([]float64, 0, len(m.results))
	for i, r := range m.results {
		scores = append(scores, float64(r.Score))
		line := fmt.Sprintf("%2d. %s  %s", i+1,
			FormatSource(r.Metadata.Filename, r.Metadata.Ordinal), FormatScore(r.Score))
		if i == m.cursor {
			s += selectedStyle.Render("▸ "+line) + "\n"
		} else {
			s += dimStyle.Render("  "+line) + "\n"
		}
	}

	sel := m.results[m.cursor]
	s += "\n" + labelStyle.Render("  Score: ") +
		m.scoreBar.ViewAs(clampUnit(float64(sel.Score))) +
		" " + valueStyle.Render(FormatScore(sel.Score)) + "\n"
	s += "  " + Snippet(sel.Text, m.snippetWidth()) + "\n"
	s += "\n" + labelStyle.Render("  Scores: ") + createSparkline(scores) + "\n"
	return s
}

func (m Model) renderFooter() string {
	parts := make([]string, 0, len(m.keys.bindings()))
	for _, kb := range m.keys.bindings() {
		h := kb.Help()
		parts = append(parts, footerKeyStyle.Render("["+h.Key+"]")+" "+h.Desc)
	}
	s := footerStyle.Render(strings.Join(parts, "  "))
	if m.errOp == opStats {
		s += "\n" + errorStyle.Render("stats: "+m.err.Error())
	}
	return s
}

func (m Model) snippetWidth() int {
	if m.width == 0 {
		return defaultSnippetWidth
	}
	return max(minSnippetWidth, m.width-12)
}

func clampUnit(v float64) float64 {
	return min(1, max(0, v))
}

// createSparkline creates a sparkline chart from a series.
func createSparkline(data []float64) string {
	if len(data) == 0 {
		return dimStyle.Render(fmt.Sprintf("%*s", sparklineWidth, "no data"))
	}

	spark := sparkline.New(sparklineWidth, sparklineHeight)
	for _, v := range data {
		spark.Push(v)
	}
	spark.Draw()

	return sparklineStyle.Render(spark.View())
}
