// Package dashboard is the terminal dashboard. It polls the run log and the
// artifact store once a second and drives the run supervisor.
package dashboard

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

// LogTail is how many log entries the dashboard shows.
const LogTail = 50

// Controller starts and clears runs
type Controller interface {
	StartIfIdle(request string) (*runtime.RunHandle, bool)
	ClearAll() error
	Active() bool
}

// Options configures the dashboard
type Options struct {
	Log       *runlog.RunLog
	Artifacts storage.ArtifactStore
	Agents    runtime.AgentStore
	Control   Controller

	// Interval between polls, one second when zero
	Interval time.Duration

	// Query pre-fills the input
	Query string
}

type tickMsg time.Time

// Model is the bubbletea model of the dashboard
type Model struct {
	log       *runlog.RunLog
	artifacts storage.ArtifactStore
	agents    runtime.AgentStore
	control   Controller
	interval  time.Duration

	input   textinput.Model
	preview viewport.Model

	status   models.RunStatus
	running  bool
	entries  []models.LogEntry
	outputs  []string
	selected int

	shownName    string
	shownContent string

	notice    string
	noticeErr bool

	width  int
	height int
}

// New creates the dashboard model
func New(opts Options) Model {
	interval := opts.Interval
	if interval <= 0 {
		interval = time.Second
	}

	ti := textinput.New()
	ti.Placeholder = "Marketing request, e.g. analyze the summer dress market"
	ti.CharLimit = 500
	ti.Width = 60
	ti.SetValue(opts.Query)
	ti.Focus()

	vp := viewport.New(80, 12)

	m := Model{
		log:       opts.Log,
		artifacts: opts.Artifacts,
		agents:    opts.Agents,
		control:   opts.Control,
		interval:  interval,
		input:     ti,
		preview:   vp,
		width:     100,
		height:    40,
	}
	m.refresh()
	return m
}

// Run starts the dashboard in the alternate screen and blocks until quit.
func Run(opts Options) error {
	p := tea.NewProgram(New(opts), tea.WithAltScreen())
	_, err := p.Run()
	return err
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Init starts the poll loop
func (m Model) Init() tea.Cmd {
	return tea.Batch(textinput.Blink, m.tickCmd())
}

// Update handles ticks, resizes and keys
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case tickMsg:
		m.refresh()
		return m, m.tickCmd()

	case tea.KeyMsg:
		if m.input.Focused() {
			return m.updateInput(msg)
		}
		return m.updateKeys(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.start()
		if !m.noticeErr {
			m.input.Blur()
		}
		return m, nil
	case "esc":
		m.input.Blur()
		return m, nil
	case "tab":
		m.input.Blur()
		m.cycle(1)
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		return m, tea.Quit
	case "enter":
		m.start()
		return m, nil
	case "c":
		m.clear()
		return m, nil
	case "tab":
		m.cycle(1)
		return m, nil
	case "shift+tab":
		m.cycle(-1)
		return m, nil
	case "/", "i":
		cmd := m.input.Focus()
		return m, cmd
	case "r":
		m.refresh()
		return m, nil
	}
	var cmd tea.Cmd
	m.preview, cmd = m.preview.Update(msg)
	return m, cmd
}

// start launches a run for the input text unless one is active.
func (m *Model) start() {
	query := strings.TrimSpace(m.input.Value())
	if query == "" {
		m.setNotice("enter a request first", true)
		return
	}
	if m.control == nil {
		m.setNotice("run control is not available", true)
		return
	}
	h, started := m.control.StartIfIdle(query)
	if !started {
		m.setNotice("a workflow run is already in progress ("+shortID(h)+")", true)
		return
	}
	m.setNotice("started run "+shortID(h), false)
	m.refresh()
}

// clear empties the log and artifacts unless a run is active.
func (m *Model) clear() {
	if m.control == nil {
		m.setNotice("run control is not available", true)
		return
	}
	if err := m.control.ClearAll(); err != nil {
		if errors.Is(err, runtime.ErrBusy) {
			m.setNotice("cannot clear while a run is in progress", true)
			return
		}
		m.setNotice("clear failed: "+err.Error(), true)
		return
	}
	m.selected = 0
	m.shownName, m.shownContent = "", ""
	m.preview.SetContent("")
	m.setNotice("cleared logs and outputs", false)
	m.refresh()
}

func (m *Model) cycle(step int) {
	if len(m.outputs) == 0 {
		return
	}
	m.selected = (m.selected + step + len(m.outputs)) % len(m.outputs)
	m.loadPreview()
}

func (m *Model) setNotice(text string, isErr bool) {
	m.notice = text
	m.noticeErr = isErr
}

// refresh re-reads status, log tail and artifacts.
func (m *Model) refresh() {
	if m.log != nil {
		m.status = m.log.CurrentStatus()
		m.entries = m.log.Tail(LogTail)
	}
	if m.control != nil {
		m.running = m.control.Active()
	} else {
		m.running = m.status.Active()
	}
	if m.artifacts != nil {
		outputs, err := m.artifacts.List()
		if err != nil {
			m.setNotice("list outputs: "+err.Error(), true)
			outputs = nil
		}
		m.outputs = outputs
	}
	if m.selected >= len(m.outputs) {
		m.selected = 0
	}
	m.loadPreview()
}

func (m *Model) loadPreview() {
	if len(m.outputs) == 0 || m.artifacts == nil {
		if m.shownName != "" {
			m.shownName, m.shownContent = "", ""
			m.preview.SetContent("")
		}
		return
	}
	name := m.outputs[m.selected]
	content, err := m.artifacts.Read(name)
	if err != nil {
		content = fmt.Sprintf("(failed to read %s: %v)", name, err)
	}
	if name == m.shownName && content == m.shownContent {
		return
	}
	// Keep the scroll position while the same artifact grows.
	renamed := name != m.shownName
	m.shownName, m.shownContent = name, content
	m.preview.SetContent(content)
	if renamed {
		m.preview.GotoTop()
	}
}

func (m *Model) resize() {
	w := m.width - 4
	if w < 20 {
		w = 20
	}
	m.input.Width = w - 4
	m.preview.Width = w
	h := m.height / 3
	if h < 5 {
		h = 5
	}
	m.preview.Height = h
}

// Selected returns the name of the selected artifact, or "".
func (m Model) Selected() string {
	if len(m.outputs) == 0 {
		return ""
	}
	return m.outputs[m.selected]
}

// Notice returns the last feedback message and whether it was an error.
func (m Model) Notice() (string, bool) {
	return m.notice, m.noticeErr
}

// agentState is the per-agent marker in the team panel
type agentState int

const (
	statePending agentState = iota
	stateActive
	stateDone
	stateFailed
)

func (s agentState) String() string {
	switch s {
	case stateActive:
		return "active"
	case stateDone:
		return "done"
	case stateFailed:
		return "failed"
	default:
		return "pending"
	}
}

// agentStateOf derives state from the status snapshot, artifact presence
// and the log tail.
func (m Model) agentStateOf(name string) agentState {
	if m.status.Agent() == name {
		for i := len(m.entries) - 1; i >= 0; i-- {
			e := m.entries[i]
			if e.AgentName != name {
				continue
			}
			if e.Level == models.LevelError {
				return stateFailed
			}
			break
		}
		return stateActive
	}
	output := storage.OutputName(name)
	for _, o := range m.outputs {
		if o == output {
			return stateDone
		}
	}
	return statePending
}

func shortID(h *runtime.RunHandle) string {
	if h == nil {
		return "unknown"
	}
	if len(h.ID) > 8 {
		return h.ID[:8]
	}
	return h.ID
}
