package tui

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	httpapi "github.com/fyrsmithlabs/docrag/internal/http"
	"github.com/fyrsmithlabs/docrag/internal/retrieval"
	"github.com/fyrsmithlabs/docrag/internal/vectorstore"
)

type fakeSearcher struct {
	results  []vectorstore.SearchResult
	stats    retrieval.Stats
	err      error
	lastTopK int
	lastQ    string
}

func (f *fakeSearcher) Retrieve(_ context.Context, query string, topK int) (httpapi.RetrieveResponse, error) {
	f.lastQ, f.lastTopK = query, topK
	if f.err != nil {
		return httpapi.RetrieveResponse{}, f.err
	}
	return httpapi.RetrieveResponse{Results: f.results, Count: len(f.results)}, nil
}

func (f *fakeSearcher) Stats(context.Context) (retrieval.Stats, error) {
	if f.err != nil {
		return retrieval.Stats{}, f.err
	}
	return f.stats, nil
}

func sampleResults() []vectorstore.SearchResult {
	return []vectorstore.SearchResult{
		{ID: "a", Text: "the quick brown fox", Score: 0.91, Metadata: vectorstore.Metadata{DocumentID: "d1", Filename: "fox.txt", Ordinal: 0}},
		{ID: "b", Text: "jumps over the lazy dog", Score: 0.55, Metadata: vectorstore.Metadata{DocumentID: "d1", Filename: "fox.txt", Ordinal: 1}},
		{ID: "c", Text: "unrelated", Score: -0.2, Metadata: vectorstore.Metadata{DocumentID: "d2", Filename: "other.pdf", Ordinal: 3}},
	}
}

func newTestModel(s Searcher) Model {
	return NewModel(s, Config{ServerURL: "http://127.0.0.1:8088", TopK: 3, Interval: time.Second})
}

func typeQuery(t *testing.T, m Model, q string) Model {
	t.Helper()
	updated, _ := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(q)})
	return updated.(Model)
}

func TestNewModel(t *testing.T) {
	m := NewModel(&fakeSearcher{}, Config{ServerURL: "http://x"})
	assert.Equal(t, 5*time.Second, m.cfg.Interval)
	assert.Equal(t, 30*time.Second, m.cfg.Timeout)
	assert.Equal(t, 0, m.cfg.TopK)
	assert.True(t, m.input.Focused())
	assert.False(t, m.quitting)
}

func TestModel_Init(t *testing.T) {
	m := newTestModel(&fakeSearcher{})
	assert.NotNil(t, m.Init())
}

func TestModel_Update_QuitKeys(t *testing.T) {
	for _, msg := range []tea.KeyMsg{
		{Type: tea.KeyEsc},
		{Type: tea.KeyCtrlC},
	} {
		t.Run(msg.String(), func(t *testing.T) {
			updated, cmd := newTestModel(&fakeSearcher{}).Update(msg)
			m := updated.(Model)
			assert.True(t, m.quitting)
			assert.NotNil(t, cmd)
			assert.Empty(t, m.View())
		})
	}
}

func TestModel_Update_TypingDoesNotQuit(t *testing.T) {
	m := typeQuery(t, newTestModel(&fakeSearcher{}), "q")
	assert.False(t, m.quitting)
	assert.Equal(t, "q", m.input.Value())
}

func TestModel_Update_Search(t *testing.T) {
	fs := &fakeSearcher{results: sampleResults()}
	m := typeQuery(t, newTestModel(fs), "  lazy dog ")

	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = updated.(Model)
	require.NotNil(t, cmd)
	assert.True(t, m.searching)
	assert.Equal(t, "lazy dog", m.query)

	// A second enter while searching is ignored.
	_, again := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, again)

	msg := search(fs, m.query, m.cfg.TopK, time.Second)()
	assert.Equal(t, "lazy dog", fs.lastQ)
	assert.Equal(t, 3, fs.lastTopK)

	updated, _ = m.Update(msg)
	m = updated.(Model)
	assert.False(t, m.searching)
	assert.Len(t, m.results, 3)
	assert.Equal(t, 0, m.cursor)

	view := m.View()
	assert.Contains(t, view, "fox.txt #0")
	assert.Contains(t, view, "0.910")
	assert.Contains(t, view, "the quick brown fox")
}

func TestModel_Update_BlankSearchIgnored(t *testing.T) {
	m := typeQuery(t, newTestModel(&fakeSearcher{}), "   ")
	updated, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, updated.(Model).searching)
}

func TestModel_Update_StaleResultsIgnored(t *testing.T) {
	m := newTestModel(&fakeSearcher{})
	m.query = "current"
	m.searching = true

	updated, _ := m.Update(resultsMsg{query: "older", results: sampleResults()})
	m = updated.(Model)
	assert.True(t, m.searching)
	assert.Empty(t, m.results)
}

func TestModel_Update_Navigation(t *testing.T) {
	m := newTestModel(&fakeSearcher{})
	m.query = "fox"
	m.searching = true
	updated, _ := m.Update(resultsMsg{query: "fox", results: sampleResults()})
	m = updated.(Model)

	press := func(kt tea.KeyType) {
		updated, _ := m.Update(tea.KeyMsg{Type: kt})
		m = updated.(Model)
	}

	press(tea.KeyUp)
	assert.Equal(t, 0, m.cursor)
	press(tea.KeyDown)
	press(tea.KeyDown)
	assert.Equal(t, 2, m.cursor)
	press(tea.KeyDown)
	assert.Equal(t, 2, m.cursor)
	assert.Contains(t, m.View(), "other.pdf #3")
	press(tea.KeyUp)
	assert.Equal(t, 1, m.cursor)
}

func TestModel_Update_NoResults(t *testing.T) {
	m := newTestModel(&fakeSearcher{})
	m.query = "nothing"
	m.searching = true
	updated, _ := m.Update(resultsMsg{query: "nothing", results: []vectorstore.SearchResult{}})
	m = updated.(Model)

	assert.Contains(t, m.View(), `no chunks match "nothing"`)
}

func TestModel_Update_SearchError(t *testing.T) {
	fs := &fakeSearcher{err: errors.New("connection refused")}
	m := newTestModel(fs)
	m.query = "fox"
	m.searching = true
	m.results = sampleResults()

	updated, _ := m.Update(search(fs, "fox", 3, time.Second)())
	m = updated.(Model)
	assert.False(t, m.searching)
	assert.Empty(t, m.results)
	assert.Equal(t, opSearch, m.errOp)
	assert.Contains(t, m.View(), "connection refused")

	// A successful search clears it.
	m.searching = true
	updated, _ = m.Update(resultsMsg{query: "fox", results: sampleResults()})
	m = updated.(Model)
	assert.NoError(t, m.err)
}

func TestModel_Update_TickMsg(t *testing.T) {
	updated, cmd := newTestModel(&fakeSearcher{}).Update(tickMsg(time.Now()))
	assert.False(t, updated.(Model).quitting)
	assert.NotNil(t, cmd)
}

func TestModel_Update_RefreshKey(t *testing.T) {
	_, cmd := newTestModel(&fakeSearcher{}).Update(tea.KeyMsg{Type: tea.KeyCtrlR})
	require.NotNil(t, cmd)
}

func TestModel_Update_StatsMsg(t *testing.T) {
	fs := &fakeSearcher{stats: retrieval.Stats{Chunks: 42, Backend: "chromem", Collection: "documents"}}
	m := newTestModel(fs)
	assert.Contains(t, m.View(), "CONNECTING")

	updated, cmd := m.Update(fetchStats(fs, time.Second)())
	m = updated.(Model)
	assert.Nil(t, cmd)
	assert.True(t, m.statsLoaded)
	assert.Equal(t, 42, m.stats.Chunks)
	assert.Equal(t, []float64{42}, m.chunkHistory)
	assert.False(t, m.lastUpdate.IsZero())

	view := m.View()
	assert.Contains(t, view, "CONNECTED")
	assert.Contains(t, view, "42 chunks")
	assert.Contains(t, view, "chromem")
}

func TestModel_Update_StatsError(t *testing.T) {
	m := newTestModel(&fakeSearcher{})
	updated, _ := m.Update(errMsg{op: opStats, err: errors.New("dial tcp: refused")})
	m = updated.(Model)
	view := m.View()
	assert.Contains(t, view, "UNREACHABLE")
	assert.Contains(t, view, "dial tcp: refused")

	updated, _ = m.Update(statsMsg(retrieval.Stats{Chunks: 1}))
	m = updated.(Model)
	assert.NoError(t, m.err)
}

func TestModel_Update_SpinnerOnlyWhileSearching(t *testing.T) {
	m := newTestModel(&fakeSearcher{})
	_, cmd := m.Update(spinner.TickMsg{})
	assert.Nil(t, cmd)
}

func TestModel_Update_WindowSize(t *testing.T) {
	updated, _ := newTestModel(&fakeSearcher{}).Update(tea.WindowSizeMsg{Width: 120, Height: 40})
	m := updated.(Model)
	assert.Equal(t, 120, m.width)
	assert.Equal(t, 108, m.snippetWidth())
}

func TestAppendToHistory(t *testing.T) {
	var h []float64
	for i := 0; i < historySize+5; i++ {
		h = appendToHistory(h, float64(i))
	}
	assert.Len(t, h, historySize)
	assert.Equal(t, float64(5), h[0])
}

func TestCreateSparkline_Empty(t *testing.T) {
	assert.Contains(t, createSparkline(nil), "no data")
	assert.NotEmpty(t, createSparkline([]float64{0.1, 0.5, 0.9}))
}

func TestClampUnit(t *testing.T) {
	assert.Equal(t, 0.0, clampUnit(-0.3))
	assert.Equal(t, 0.5, clampUnit(0.5))
	assert.Equal(t, 1.0, clampUnit(1.2))
}
