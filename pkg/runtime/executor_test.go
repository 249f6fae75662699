package runtime

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

type mockCapability struct {
	mock.Mock
}

func (m *mockCapability) Execute(ctx context.Context, agent models.AgentRecord, task string, hints []Hint) (string, error) {
	args := m.Called(ctx, agent, task, hints)
	return args.String(0), args.Error(1)
}

type failingArtifacts struct {
	storage.ArtifactStore
}

func (failingArtifacts) Save(name, content string) (string, error) {
	return "", errors.New("read-only filesystem")
}

func TestRunAgent_Success(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"keyword_researcher"}, nil))

	output, err := env.executor.RunAgent(context.Background(), TeamData, "keyword_researcher", "find keywords")
	require.NoError(t, err)
	assert.Equal(t, "keyword_researcher output", output)

	saved, err := env.artifacts.Read("keyword_researcher_output.md")
	require.NoError(t, err)
	assert.Equal(t, output, saved)

	assert.Equal(t, []string{
		"keyword_researcher INFO keyword_researcher started",
		"keyword_researcher THINKING task received: find keywords...",
		"keyword_researcher ACTION calling model",
		"keyword_researcher OUTPUT output saved: keyword_researcher_output.md",
		"keyword_researcher INFO keyword_researcher completed",
	}, messages(env.log.Tail(100)))

	assert.False(t, env.log.CurrentStatus().Active())
}

func TestRunAgent_TaskPreviewIsTruncatedByRunes(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"a"}, nil))
	task := strings.Repeat("가", 80)

	_, err := env.executor.RunAgent(context.Background(), TeamData, "a", task)
	require.NoError(t, err)

	thinking := env.log.Tail(100)[1]
	assert.Equal(t, models.LevelThinking, thinking.Level)
	assert.Equal(t, "task received: "+strings.Repeat("가", 50)+"...", thinking.Message)
	assert.Equal(t, task, env.capability.tasks["a"])
}

func TestRunAgent_NotFound(t *testing.T) {
	env := newTestEnv(t, testRoster(nil, nil))

	_, err := env.executor.RunAgent(context.Background(), TeamData, "ghost", "task")
	var notFound *AgentNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "ghost", notFound.Agent)
	assert.Equal(t, TeamData, notFound.Team)
	assert.Empty(t, env.log.Tail(10))
	assert.Empty(t, env.capability.Calls())
}

func TestRunAgent_CapabilityFailureLeavesStatusActive(t *testing.T) {
	env := newTestEnv(t, testRoster([]string{"price_monitor"}, nil))
	cause := errors.New("rate limited")
	env.capability.fail["price_monitor"] = cause

	_, err := env.executor.RunAgent(context.Background(), TeamData, "price_monitor", "task")
	var capErr *CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.ErrorIs(t, err, cause)

	status := env.log.CurrentStatus()
	assert.True(t, status.Active())
	assert.Equal(t, "price_monitor", status.Agent())

	entries := env.log.Tail(100)
	last := entries[len(entries)-1]
	assert.Equal(t, models.LevelError, last.Level)
	assert.Contains(t, last.Message, "rate limited")

	_, err = env.artifacts.Read("price_monitor_output.md")
	assert.ErrorIs(t, err, storage.ErrArtifactNotFound)
}

func TestRunAgent_PersistenceFailure(t *testing.T) {
	roster := testRoster([]string{"a"}, nil)
	env := newTestEnv(t, roster)
	executor := NewAgentExecutor(roster, env.log, failingArtifacts{env.artifacts}, env.capability, nil, logging.NewNop())

	_, err := executor.RunAgent(context.Background(), TeamData, "a", "task")
	var persistErr *PersistenceError
	require.ErrorAs(t, err, &persistErr)
	assert.Equal(t, "a_output.md", persistErr.Artifact)

	msgs := messages(env.log.Tail(100))
	assert.NotContains(t, strings.Join(msgs, "\n"), "OUTPUT")
	assert.NotContains(t, strings.Join(msgs, "\n"), "a completed")
	assert.True(t, env.log.CurrentStatus().Active())
}

func TestRunAgent_PassesResolvedHints(t *testing.T) {
	roster := testRoster([]string{"keyword_researcher", "copy"}, nil)
	env := newTestEnv(t, roster)

	hints := ResolveHints(loader.DefaultCapabilityTable(), map[string]string{
		loader.SkillSearchAd: "# Search Ad API",
	}, nil)

	capability := new(mockCapability)
	capability.On("Execute", mock.Anything, mock.MatchedBy(func(a models.AgentRecord) bool {
		return a.Name == "keyword_researcher"
	}), "task", []Hint{{Name: loader.SkillSearchAd, Doc: "# Search Ad API"}}).Return("ok", nil).Once()
	capability.On("Execute", mock.Anything, mock.MatchedBy(func(a models.AgentRecord) bool {
		return a.Name == "copy"
	}), "task", []Hint(nil)).Return("ok", nil).Once()

	executor := NewAgentExecutor(roster, env.log, env.artifacts, capability, hints, logging.NewNop())
	_, err := executor.RunAgent(context.Background(), TeamData, "keyword_researcher", "task")
	require.NoError(t, err)
	_, err = executor.RunAgent(context.Background(), TeamData, "copy", "task")
	require.NoError(t, err)

	capability.AssertExpectations(t)

	action := env.log.Tail(100)[2]
	assert.Equal(t, models.LevelAction, action.Level)
	assert.Equal(t, []string{loader.SkillSearchAd}, action.Data["hints"])
}

type stubProvider struct{}

func (stubProvider) Fetch(context.Context, string) (interface{}, error) { return nil, nil }

func TestResolveHints(t *testing.T) {
	table := loader.CapabilityTable{
		"keyword_researcher": {loader.SkillSearchAd, loader.SkillDataLab},
		"price_monitor":      {loader.SkillShopping},
		"nobody":             {"unknown"},
	}
	provider := stubProvider{}
	hints := ResolveHints(table,
		map[string]string{loader.SkillSearchAd: "doc"},
		map[string]DataProvider{loader.SkillShopping: provider})

	require.Len(t, hints["keyword_researcher"], 1)
	assert.Equal(t, "doc", hints["keyword_researcher"][0].Doc)
	assert.Nil(t, hints["keyword_researcher"][0].Provider)
	require.Len(t, hints["price_monitor"], 1)
	assert.Equal(t, provider, hints["price_monitor"][0].Provider)
	assert.NotContains(t, hints, "nobody")
}
