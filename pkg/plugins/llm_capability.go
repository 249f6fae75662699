package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
	"github.com/JaiwanShin/ai-marketing-team/pkg/utils"
)

// Completer sends chat completions. *utils.LLMClient implements it.
type Completer interface {
	Complete(ctx context.Context, request utils.LLMRequest) (*utils.LLMResponse, error)
}

// LLMCapability runs agents on a chat model
type LLMCapability struct {
	client      Completer
	model       string
	temperature float64
	maxTokens   int
	logger      logging.Logger
}

// LLMCapabilityConfig holds model parameters
type LLMCapabilityConfig struct {
	Model       string
	Temperature float64
	MaxTokens   int
}

// NewLLMCapability creates a model backed capability
func NewLLMCapability(client Completer, config LLMCapabilityConfig, logger logging.Logger) *LLMCapability {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &LLMCapability{
		client:      client,
		model:       config.Model,
		temperature: config.Temperature,
		maxTokens:   config.MaxTokens,
		logger:      logger,
	}
}

// Execute sends the agent prompt as the system message and the task, plus
// any reference data fetched through hints, as the user message.
func (c *LLMCapability) Execute(ctx context.Context, agent models.AgentRecord, task string, hints []runtime.Hint) (string, error) {
	var skills []string
	for _, h := range hints {
		if h.Doc != "" {
			skills = append(skills, h.Doc)
		}
	}

	reference, err := c.referenceData(ctx, agent.Name, task, hints)
	if err != nil {
		return "", err
	}
	userMessage := task
	if reference != "" {
		userMessage += "\n\n## Reference Data\n" + reference
	}

	resp, err := c.client.Complete(ctx, utils.LLMRequest{
		Model: c.model,
		Messages: []utils.Message{
			{Role: "system", Content: loader.BuildPrompt(agent, skills)},
			{Role: "user", Content: userMessage},
		},
		Temperature: c.temperature,
		MaxTokens:   c.maxTokens,
	})
	if err != nil {
		return "", err
	}
	text, err := resp.Text()
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(text) == "" {
		return "", utils.ErrEmptyCompletion
	}
	return text, nil
}

// referenceData fetches every hint provider. A failed lookup fails the step
// before the model is called.
func (c *LLMCapability) referenceData(ctx context.Context, agentName, task string, hints []runtime.Hint) (string, error) {
	query, ok := runtime.RequestFromContext(ctx)
	if !ok || query == "" {
		query = task
	}

	var b strings.Builder
	for _, h := range hints {
		if h.Provider == nil {
			continue
		}
		data, err := h.Provider.Fetch(ctx, query)
		if err != nil {
			c.logger.Warn("Reference data fetch failed",
				logging.F("agent", agentName),
				logging.F("skill", h.Name),
				logging.Err(err))
			return "", fmt.Errorf("fetch %s data: %w", h.Name, err)
		}
		encoded, err := json.MarshalIndent(data, "", "  ")
		if err != nil {
			return "", fmt.Errorf("encode %s data: %w", h.Name, err)
		}
		fmt.Fprintf(&b, "### %s\n```json\n%s\n```\n\n", h.Name, encoded)
	}
	return strings.TrimRight(b.String(), "\n"), nil
}
