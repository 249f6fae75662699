package dashboard

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

// fakeControl records start and clear requests
type fakeControl struct {
	active   bool
	started  []string
	clears   int
	clearErr error
}

func (c *fakeControl) StartIfIdle(request string) (*runtime.RunHandle, bool) {
	if c.active {
		return &runtime.RunHandle{ID: "running-run-id"}, false
	}
	c.active = true
	c.started = append(c.started, request)
	return &runtime.RunHandle{ID: "new-run-id", Request: request}, true
}

func (c *fakeControl) ClearAll() error {
	if c.active {
		return runtime.ErrBusy
	}
	if c.clearErr != nil {
		return c.clearErr
	}
	c.clears++
	return nil
}

func (c *fakeControl) Active() bool { return c.active }

type fixture struct {
	log       *runlog.RunLog
	artifacts storage.ArtifactStore
	control   *fakeControl
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	provider := storage.NewMemoryProvider()
	require.NoError(t, provider.Initialize())
	log := runlog.New(provider.GetLogStore(), nil)
	require.NoError(t, log.Init())
	return fixture{log: log, artifacts: provider.GetArtifactStore(), control: &fakeControl{}}
}

func (f fixture) model(query string) Model {
	teams := loader.NewTeams(
		[]string{runtime.TeamOrchestrator, runtime.TeamData},
		map[string][]models.AgentRecord{
			runtime.TeamOrchestrator: {{Name: runtime.AgentPlanner}, {Name: runtime.AgentReviewer}},
			runtime.TeamData:         {{Name: "keyword_researcher"}, {Name: "price_monitor"}},
		},
	)
	return New(Options{
		Log:       f.log,
		Artifacts: f.artifacts,
		Agents:    teams,
		Control:   f.control,
		Query:     query,
	})
}

func key(s string) tea.KeyMsg {
	switch s {
	case "enter":
		return tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		return tea.KeyMsg{Type: tea.KeyEsc}
	case "tab":
		return tea.KeyMsg{Type: tea.KeyTab}
	case "shift+tab":
		return tea.KeyMsg{Type: tea.KeyShiftTab}
	case "ctrl+c":
		return tea.KeyMsg{Type: tea.KeyCtrlC}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		max  int
		want string
	}{
		{"short", 10, "short"},
		{"this is a long string", 10, "this is..."},
		{"abcd", 3, "abc"},
		{"여름원피스분석", 5, "여름..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truncate(tt.s, tt.max), tt.s)
	}
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "0m 00s", formatDuration(0))
	assert.Equal(t, "1m 05s", formatDuration(65*time.Second))
}

func TestEnterStartsRun(t *testing.T) {
	f := newFixture(t)
	m := f.model("summer dresses")
	require.True(t, m.input.Focused())

	m, _ = update(t, m, key("enter"))
	assert.Equal(t, []string{"summer dresses"}, f.control.started)
	notice, isErr := m.Notice()
	assert.False(t, isErr)
	assert.Contains(t, notice, "new-run-")
	assert.False(t, m.input.Focused())

	m, _ = update(t, m, key("enter"))
	assert.Len(t, f.control.started, 1, "second start is refused")
	notice, isErr = m.Notice()
	assert.True(t, isErr)
	assert.Contains(t, notice, "already in progress")
}

func TestEnterWithEmptyQuery(t *testing.T) {
	f := newFixture(t)
	m := f.model("   ")

	m, _ = update(t, m, key("enter"))
	assert.Empty(t, f.control.started)
	_, isErr := m.Notice()
	assert.True(t, isErr)
	assert.True(t, m.input.Focused())
}

func TestClearRefusedWhileRunning(t *testing.T) {
	f := newFixture(t)
	m := f.model("")
	m, _ = update(t, m, key("esc"))

	f.control.active = true
	m, _ = update(t, m, key("c"))
	assert.Equal(t, 0, f.control.clears)
	notice, isErr := m.Notice()
	assert.True(t, isErr)
	assert.Contains(t, notice, "in progress")

	f.control.active = false
	m, _ = update(t, m, key("c"))
	assert.Equal(t, 1, f.control.clears)
	_, isErr = m.Notice()
	assert.False(t, isErr)
}

func TestTypingCGoesToInput(t *testing.T) {
	f := newFixture(t)
	m := f.model("")
	m, _ = update(t, m, key("c"))
	assert.Equal(t, 0, f.control.clears)
	assert.Equal(t, "c", m.input.Value())
}

func TestTabCyclesOutputs(t *testing.T) {
	f := newFixture(t)
	_, err := f.artifacts.Save("keyword_researcher_output.md", "# keywords")
	require.NoError(t, err)
	_, err = f.artifacts.Save("planner_output.md", "# plan")
	require.NoError(t, err)

	m := f.model("")
	assert.Equal(t, "keyword_researcher_output.md", m.Selected())
	assert.Contains(t, m.preview.View(), "# keywords")

	m, _ = update(t, m, key("tab"))
	assert.False(t, m.input.Focused())
	assert.Equal(t, "planner_output.md", m.Selected())
	assert.Contains(t, m.preview.View(), "# plan")

	m, _ = update(t, m, key("tab"))
	assert.Equal(t, "keyword_researcher_output.md", m.Selected())

	m, _ = update(t, m, key("shift+tab"))
	assert.Equal(t, "planner_output.md", m.Selected())
}

func TestQuit(t *testing.T) {
	f := newFixture(t)
	m := f.model("")

	m, _ = update(t, m, key("q"))
	assert.Equal(t, "q", m.input.Value(), "q is text while the input is focused")

	m, _ = update(t, m, key("esc"))
	_, cmd := update(t, m, key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestTickRefreshesFromStore(t *testing.T) {
	f := newFixture(t)
	m := f.model("")
	assert.Empty(t, m.entries)

	f.log.SetCurrentAgent("keyword_researcher", "Processing: keywords")
	_, err := f.artifacts.Save(storage.OutputName(runtime.AgentPlanner), "plan")
	require.NoError(t, err)

	m, cmd := update(t, m, tickMsg(time.Now()))
	assert.NotNil(t, cmd, "tick chain continues")
	assert.Equal(t, "keyword_researcher", m.status.Agent())
	require.NotEmpty(t, m.entries)
	assert.Equal(t, "keyword_researcher started", m.entries[len(m.entries)-1].Message)

	assert.Equal(t, stateDone, m.agentStateOf(runtime.AgentPlanner))
	assert.Equal(t, stateActive, m.agentStateOf("keyword_researcher"))
	assert.Equal(t, statePending, m.agentStateOf("price_monitor"))

	f.log.Log("keyword_researcher", models.LevelError, "capability failed: boom", nil)
	m, _ = update(t, m, tickMsg(time.Now()))
	assert.Equal(t, stateFailed, m.agentStateOf("keyword_researcher"))

	view := m.View()
	assert.Contains(t, view, "keyword_researcher")
	assert.Contains(t, view, "capability failed")
	assert.True(t, strings.Contains(view, "Running") || strings.Contains(view, "Idle"))
}

func TestViewIdle(t *testing.T) {
	f := newFixture(t)
	m := f.model("")
	m, _ = update(t, m, tea.WindowSizeMsg{Width: 120, Height: 40})
	view := m.View()
	assert.Contains(t, view, "Idle")
	assert.Contains(t, view, "(no outputs yet)")
	assert.Contains(t, view, runtime.TeamData)
}
