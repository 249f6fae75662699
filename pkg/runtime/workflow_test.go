package runtime

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

func TestWorkflow_FinalReportOrder(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"X", "Y"}, []string{"Z"}))

	report, err := env.engine.Run(context.Background(), "launch a tumbler")
	require.NoError(t, err)

	assert.Equal(t, []string{AgentPlanner, "X", "Y", "Z", AgentReviewer}, env.capability.Calls())

	positions := []int{
		indexOf(t, report, "# Marketing Analysis Final Report"),
		indexOf(t, report, "## Original Request\nlaunch a tumbler"),
		indexOf(t, report, "## Planner Analysis\nplanner output"),
		indexOf(t, report, "## Data Team Results\n## X\nX output\n\n---\n\n## Y\nY output"),
		indexOf(t, report, "## Content Team Deliverables\n### Z\nZ output\n\n"),
		indexOf(t, report, "## Reviewer Assessment\nreviewer output"),
	}
	assert.IsIncreasing(t, positions)

	saved, err := env.artifacts.Read(storage.FinalReportName)
	require.NoError(t, err)
	assert.Equal(t, report, saved)

	stage := env.engine.Stage()
	assert.Equal(t, StageCompleted, stage.Stage)
	assert.False(t, env.log.CurrentStatus().Active())

	entries := env.log.Tail(1)
	require.Len(t, entries, 1)
	assert.Equal(t, "workflow completed", entries[0].Message)
}

func TestWorkflow_TaskStrings(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"X", "Y"}, []string{"Z"}))

	_, err := env.engine.Run(context.Background(), "req")
	require.NoError(t, err)

	assert.Equal(t, "req", env.capability.tasks[AgentPlanner])
	assert.Equal(t,
		"Work on the following analysis request:\n\nOriginal request: req\n\nPlanner instructions: planner output",
		env.capability.tasks["X"])
	assert.Equal(t, env.capability.tasks["X"], env.capability.tasks["Y"])
	assert.Equal(t,
		"Create content based on the following analysis:\n\n## X\nX output\n\n---\n\n## Y\nY output",
		env.capability.tasks["Z"])
	assert.Equal(t,
		"Review the following deliverables:\n\n## X\nX output\n\n---\n\n## Y\nY output\n\n---\n\n## Z\nZ output",
		env.capability.tasks[AgentReviewer])
}

func TestWorkflow_TeamBoundariesLogged(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"X", "Y"}, []string{"Z"}))

	_, err := env.engine.Run(context.Background(), "req")
	require.NoError(t, err)

	var system []string
	for _, e := range env.log.Tail(1000) {
		if e.AgentName == runlog.SystemAgent {
			system = append(system, string(e.Level)+" "+e.Message)
		}
	}
	assert.Equal(t, []string{
		"INFO workflow started",
		"INFO data_team started",
		"INFO data_team completed",
		"INFO content_team started",
		"INFO content_team completed",
		"OUTPUT final report saved: final_report.md",
		"INFO workflow completed",
	}, system)

	entries := env.log.Tail(1000)
	dataStart := indexOfEntry(t, entries, "data_team started")
	dataDone := indexOfEntry(t, entries, "data_team completed")
	assert.Less(t, indexOfEntry(t, entries, "Y completed"), dataDone)
	assert.Less(t, dataStart, indexOfEntry(t, entries, "X started"))
	assert.Equal(t, 2, entries[dataStart].Data["agents"])
}

func TestWorkflow_AbortSkipsTeamCompletion(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"X"}, []string{"Z"}))
	env.capability.fail["X"] = errors.New("upstream 500")

	_, err := env.engine.Run(context.Background(), "req")
	require.Error(t, err)

	for _, e := range env.log.Tail(1000) {
		assert.NotEqual(t, "data_team completed", e.Message)
		assert.NotEqual(t, "content_team started", e.Message)
	}
}

func indexOfEntry(t *testing.T, entries []models.LogEntry, message string) int {
	t.Helper()
	for i, e := range entries {
		if e.Message == message {
			return i
		}
	}
	require.Failf(t, "missing log entry", "%q", message)
	return -1
}

func TestWorkflow_ContentOverridesDataOnNameCollision(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"shared", "X"}, []string{"shared"}))

	_, err := env.engine.Run(context.Background(), "req")
	require.NoError(t, err)

	assert.Equal(t,
		"Review the following deliverables:\n\n## shared\nshared output\n\n---\n\n## X\nX output",
		env.capability.tasks[AgentReviewer])
}

func TestWorkflow_EmptyTeams(t *testing.T) {
	env := newTestEnv(t, testRoster(nil, nil))

	report, err := env.engine.Run(context.Background(), "req")
	require.NoError(t, err)
	assert.Contains(t, report, "## Data Team Results\n\n\n## Content Team Deliverables\n## Reviewer Assessment")
	assert.Equal(t, "Review the following deliverables:\n\n", env.capability.tasks[AgentReviewer])
}

func TestWorkflow_DataAgentFailureAborts(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"X", "Y", "W"}, []string{"Z"}))
	env.capability.fail["Y"] = errors.New("upstream 500")

	report, err := env.engine.Run(context.Background(), "req")
	require.Error(t, err)
	assert.Empty(t, report)

	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "Y", capErr.Agent)

	assert.Equal(t, []string{AgentPlanner, "X", "Y"}, env.capability.Calls())

	_, err = env.artifacts.Read("Y_output.md")
	assert.ErrorIs(t, err, storage.ErrArtifactNotFound)
	_, err = env.artifacts.Read(storage.FinalReportName)
	assert.ErrorIs(t, err, storage.ErrArtifactNotFound)
	x, err := env.artifacts.Read("X_output.md")
	require.NoError(t, err)
	assert.Equal(t, "X output", x)

	entries := env.log.Tail(2)
	require.Len(t, entries, 2)
	assert.Equal(t, "Y", entries[0].AgentName)
	assert.Equal(t, models.LevelError, entries[0].Level)
	assert.Contains(t, entries[0].Message, "upstream 500")
	assert.Equal(t, models.LevelError, entries[1].Level)
	assert.Contains(t, entries[1].Message, "workflow aborted")

	stage := env.engine.Stage()
	assert.Equal(t, StageFailed, stage.Stage)
	assert.Equal(t, "Y", stage.Agent)
	assert.Equal(t, 1, stage.Index)

	assert.Equal(t, "Y", env.log.CurrentStatus().Agent())
}

func TestWorkflow_MissingReviewer(t *testing.T) {
	roster := testRoster([]string{"X"}, nil)
	env := newTestEnv(t, roster)
	env.engine.agents = rosterWithout(roster, TeamOrchestrator, AgentReviewer)
	env.executor.agents = env.engine.agents

	_, err := env.engine.Run(context.Background(), "req")
	var notFound *AgentNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, AgentReviewer, notFound.Agent)
	assert.Equal(t, []string{AgentPlanner, "X"}, env.capability.Calls())
}

func TestWorkflow_ClearsPreviousRun(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"X"}, nil))
	env.log.Log("old", models.LevelInfo, "stale entry", nil)

	_, err := env.engine.RunWithID(context.Background(), "run-42", "req")
	require.NoError(t, err)

	entries := env.log.Tail(1000)
	assert.Equal(t, "workflow started", entries[0].Message)
	for _, e := range entries {
		assert.NotEqual(t, "stale entry", e.Message)
		assert.Equal(t, "run-42", e.Data["run_id"])
	}
}

func TestWorkflow_RequestAvailableToCapabilities(t *testing.T) {
	roster := testRoster(nil, nil)
	env := newTestEnv(t, roster)

	var seen []string
	capability := CapabilityFunc(func(ctx context.Context, agent models.AgentRecord, task string, hints []Hint) (string, error) {
		request, ok := RequestFromContext(ctx)
		require.True(t, ok)
		seen = append(seen, request)
		return "ok", nil
	})
	env.executor.capability = capability

	_, err := env.engine.Run(context.Background(), "the request")
	require.NoError(t, err)
	assert.Equal(t, []string{"the request", "the request"}, seen)
}

// rosterWithout returns roster minus one agent.
func rosterWithout(roster AgentStore, team, name string) AgentStore {
	agents := map[string][]models.AgentRecord{}
	for _, t := range roster.Names() {
		for _, a := range roster.Agents(t) {
			if t == team && a.Name == name {
				continue
			}
			agents[t] = append(agents[t], a)
		}
	}
	return loader.NewTeams(roster.Names(), agents)
}
