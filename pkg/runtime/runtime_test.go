package runtime

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

// testRoster builds orchestrator {planner, reviewer}, the given data and
// content teams.
func testRoster(data, content []string) *loader.Teams {
	records := func(names ...string) []models.AgentRecord {
		out := make([]models.AgentRecord, len(names))
		for i, n := range names {
			out[i] = models.AgentRecord{Name: n, Role: n + " role"}
		}
		return out
	}
	return loader.NewTeams(
		[]string{TeamOrchestrator, TeamData, TeamContent},
		map[string][]models.AgentRecord{
			TeamOrchestrator: records(AgentPlanner, AgentReviewer),
			TeamData:         records(data...),
			TeamContent:      records(content...),
		},
	)
}

// recordingCapability answers "<name> output" and records each call.
type recordingCapability struct {
	mu    sync.Mutex
	calls []string
	tasks map[string]string
	fail  map[string]error
}

func newRecordingCapability() *recordingCapability {
	return &recordingCapability{tasks: map[string]string{}, fail: map[string]error{}}
}

func (c *recordingCapability) Execute(_ context.Context, agent models.AgentRecord, task string, _ []Hint) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, agent.Name)
	c.tasks[agent.Name] = task
	if err := c.fail[agent.Name]; err != nil {
		return "", err
	}
	return agent.Name + " output", nil
}

func (c *recordingCapability) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.calls...)
}

type testEnv struct {
	provider   *storage.MemoryProvider
	log        *runlog.RunLog
	artifacts  storage.ArtifactStore
	executor   *AgentExecutor
	engine     *WorkflowEngine
	capability *recordingCapability
}

func newTestEnv(t *testing.T, roster *loader.Teams) *testEnv {
	t.Helper()
	p := storage.NewMemoryProvider()
	require.NoError(t, p.Initialize())
	log := runlog.New(p.GetLogStore(), logging.NewNop())
	require.NoError(t, log.Init())

	capability := newRecordingCapability()
	executor := NewAgentExecutor(roster, log, p.GetArtifactStore(), capability, nil, logging.NewNop())
	engine := NewWorkflowEngine(executor, roster, log, p.GetArtifactStore(), logging.NewNop())
	return &testEnv{
		provider:   p,
		log:        log,
		artifacts:  p.GetArtifactStore(),
		executor:   executor,
		engine:     engine,
		capability: capability,
	}
}

func messages(entries []models.LogEntry) []string {
	out := make([]string, len(entries))
	for i, e := range entries {
		out[i] = fmt.Sprintf("%s %s %s", e.AgentName, e.Level, e.Message)
	}
	return out
}

func indexOf(t *testing.T, s, sub string) int {
	t.Helper()
	i := strings.Index(s, sub)
	require.GreaterOrEqual(t, i, 0, "missing %q", sub)
	return i
}
