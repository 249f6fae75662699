package plugins

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
	"github.com/JaiwanShin/ai-marketing-team/pkg/utils"
)

type mockCompleter struct {
	mock.Mock
}

func (m *mockCompleter) Complete(ctx context.Context, request utils.LLMRequest) (*utils.LLMResponse, error) {
	args := m.Called(ctx, request)
	resp, _ := args.Get(0).(*utils.LLMResponse)
	return resp, args.Error(1)
}

func reply(text string) *utils.LLMResponse {
	return &utils.LLMResponse{Choices: []utils.Choice{{Message: utils.Message{Role: "assistant", Content: text}}}}
}

func TestSimulatedOutput(t *testing.T) {
	agent := models.AgentRecord{Name: "trend_analyst", Role: strings.Repeat("r", 150)}

	out := SimulatedOutput(agent)
	assert.Equal(t, "# trend_analyst analysis result\n\n[simulation mode] "+strings.Repeat("r", 100)+"...\n\n"+
		"This section will be replaced by a real model response.", out)

	short := SimulatedOutput(models.AgentRecord{Name: "a", Role: "짧은 역할"})
	assert.Contains(t, short, "[simulation mode] 짧은 역할...")
}

func TestSimulatedCapability(t *testing.T) {
	agent := models.AgentRecord{Name: "planner", Role: "plan"}

	out, err := NewSimulatedCapability(0).Execute(context.Background(), agent, "task", nil)
	require.NoError(t, err)
	assert.Equal(t, SimulatedOutput(agent), out)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = NewSimulatedCapability(time.Hour).Execute(ctx, agent, "task", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLLMCapability_BuildsMessages(t *testing.T) {
	completer := new(mockCompleter)
	var captured utils.LLMRequest
	completer.On("Complete", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		captured = args.Get(1).(utils.LLMRequest)
	}).Return(reply("analysis"), nil)

	capability := NewLLMCapability(completer, LLMCapabilityConfig{Model: "gpt-4o", Temperature: 0.7, MaxTokens: 512}, logging.NewNop())
	agent := models.AgentRecord{Name: "keyword_researcher", Role: "keywords"}
	hints := []runtime.Hint{
		{Name: "search_ad", Doc: "# Search Ad skill", Provider: staticProvider{data: map[string]int{"volume": 42}}},
		{Name: "datalab", Doc: "# DataLab skill"},
	}

	ctx := runtime.WithRequest(context.Background(), "calming pad")
	out, err := capability.Execute(ctx, agent, "do the task", hints)
	require.NoError(t, err)
	assert.Equal(t, "analysis", out)

	require.Len(t, captured.Messages, 2)
	assert.Equal(t, "gpt-4o", captured.Model)
	assert.Equal(t, 512, captured.MaxTokens)

	system := captured.Messages[0]
	assert.Equal(t, "system", system.Role)
	assert.True(t, strings.HasPrefix(system.Content, "# keyword_researcher\n\n## Role\nkeywords"))
	assert.Contains(t, system.Content, "## Available Skills/Tools\n# Search Ad skill\n# DataLab skill")

	user := captured.Messages[1].Content
	assert.True(t, strings.HasPrefix(user, "do the task\n\n## Reference Data\n"))
	assert.Contains(t, user, "### search_ad\n```json\n{\n  \"volume\": 42\n}\n```")
	assert.NotContains(t, user, "### datalab")
}

func TestLLMCapability_Errors(t *testing.T) {
	agent := models.AgentRecord{Name: "a"}

	failing := new(mockCompleter)
	failing.On("Complete", mock.Anything, mock.Anything).Return(nil, errors.New("connection refused"))
	_, err := NewLLMCapability(failing, LLMCapabilityConfig{}, nil).Execute(context.Background(), agent, "t", nil)
	assert.EqualError(t, err, "connection refused")

	blank := new(mockCompleter)
	blank.On("Complete", mock.Anything, mock.Anything).Return(reply("  \n"), nil)
	_, err = NewLLMCapability(blank, LLMCapabilityConfig{}, nil).Execute(context.Background(), agent, "t", nil)
	assert.ErrorIs(t, err, utils.ErrEmptyCompletion)

	empty := new(mockCompleter)
	empty.On("Complete", mock.Anything, mock.Anything).Return(&utils.LLMResponse{}, nil)
	_, err = NewLLMCapability(empty, LLMCapabilityConfig{}, nil).Execute(context.Background(), agent, "t", nil)
	assert.ErrorIs(t, err, utils.ErrEmptyCompletion)
}

func TestLLMCapability_NoProvidersMeansNoReferenceSection(t *testing.T) {
	completer := new(mockCompleter)
	completer.On("Complete", mock.Anything, mock.MatchedBy(func(r utils.LLMRequest) bool {
		return r.Messages[1].Content == "plain task"
	})).Return(reply("ok"), nil).Once()

	_, err := NewLLMCapability(completer, LLMCapabilityConfig{}, nil).Execute(context.Background(), models.AgentRecord{Name: "a"}, "plain task", nil)
	require.NoError(t, err)
	completer.AssertExpectations(t)
}

func TestNewPriceReport(t *testing.T) {
	items := make([]utils.ShoppingItem, 30)
	for i := range items {
		items[i] = utils.ShoppingItem{Title: "p", LPrice: "1000"}
	}
	report := NewPriceReport(&utils.ShoppingResult{Items: items})
	assert.Len(t, report.SampleItems, 20)
	require.NotNil(t, report.Stats)
	assert.Equal(t, 30, report.Stats.Count)

	empty := NewPriceReport(&utils.ShoppingResult{})
	assert.Nil(t, empty.Stats)
}

func TestLLMCapability_FailedLookupFailsStep(t *testing.T) {
	agent := models.AgentRecord{Name: "price_monitor"}

	tests := []struct {
		name     string
		provider staticProvider
		msg      string
	}{
		{"fetch error", staticProvider{err: errors.New("naver 503")}, "fetch shopping data: naver 503"},
		{"unencodable data", staticProvider{data: make(chan int)}, "encode shopping data"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := new(mockCompleter)
			capability := NewLLMCapability(completer, LLMCapabilityConfig{}, nil)

			_, err := capability.Execute(context.Background(), agent, "task",
				[]runtime.Hint{{Name: "shopping", Provider: tt.provider}})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.msg)
			completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
		})
	}
}

func TestLLMCapability_FailedLookupAbortsAgent(t *testing.T) {
	provider := storage.NewMemoryProvider()
	require.NoError(t, provider.Initialize())
	log := runlog.New(provider.GetLogStore(), logging.NewNop())
	require.NoError(t, log.Init())

	roster := loader.NewTeams([]string{runtime.TeamData}, map[string][]models.AgentRecord{
		runtime.TeamData: {{Name: "price_monitor", Role: "prices"}},
	})
	hints := map[string][]runtime.Hint{
		"price_monitor": {{Name: "shopping", Provider: staticProvider{err: errors.New("naver 503")}}},
	}
	completer := new(mockCompleter)
	capability := NewLLMCapability(completer, LLMCapabilityConfig{}, nil)
	executor := runtime.NewAgentExecutor(roster, log, provider.GetArtifactStore(), capability, hints, logging.NewNop())

	_, err := executor.RunAgent(context.Background(), runtime.TeamData, "price_monitor", "check prices")

	var capErr *runtime.CapabilityError
	require.ErrorAs(t, err, &capErr)
	assert.Equal(t, "price_monitor", capErr.Agent)

	_, err = provider.GetArtifactStore().Read("price_monitor_output.md")
	assert.ErrorIs(t, err, storage.ErrArtifactNotFound)

	entries := log.Tail(10)
	require.NotEmpty(t, entries)
	last := entries[len(entries)-1]
	assert.Equal(t, models.LevelError, last.Level)
	assert.Equal(t, "price_monitor", last.AgentName)
	assert.Contains(t, last.Message, "naver 503")
	completer.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}
