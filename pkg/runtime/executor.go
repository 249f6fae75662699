package runtime

import (
	"context"
	"fmt"

	"github.com/JaiwanShin/ai-marketing-team/pkg/loader"
	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runlog"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

const taskPreviewRunes = 50

// AgentExecutor runs one agent step: log intake, call the capability,
// persist the artifact, log completion.
type AgentExecutor struct {
	agents     AgentStore
	log        *runlog.RunLog
	artifacts  storage.ArtifactStore
	capability Capability
	hints      map[string][]Hint
	logger     logging.Logger
}

// NewAgentExecutor creates an executor. hints is keyed by agent name and is
// not modified afterwards.
func NewAgentExecutor(
	agents AgentStore,
	log *runlog.RunLog,
	artifacts storage.ArtifactStore,
	capability Capability,
	hints map[string][]Hint,
	logger logging.Logger,
) *AgentExecutor {
	if logger == nil {
		logger = logging.NewNop()
	}
	if hints == nil {
		hints = map[string][]Hint{}
	}
	return &AgentExecutor{
		agents:     agents,
		log:        log,
		artifacts:  artifacts,
		capability: capability,
		hints:      hints,
		logger:     logger,
	}
}

// ResolveHints binds each agent's granted skills to their documents and data
// providers. Skills with neither a document nor a provider are dropped.
func ResolveHints(table loader.CapabilityTable, skills map[string]string, providers map[string]DataProvider) map[string][]Hint {
	resolved := make(map[string][]Hint, len(table))
	for _, agent := range table.Agents() {
		for _, skill := range table[agent] {
			doc, hasDoc := skills[skill]
			provider, hasProvider := providers[skill]
			if !hasDoc && !hasProvider {
				continue
			}
			resolved[agent] = append(resolved[agent], Hint{
				Name:     skill,
				Doc:      doc,
				Provider: provider,
			})
		}
	}
	return resolved
}

// Hints returns the hints granted to an agent.
func (e *AgentExecutor) Hints(agentName string) []Hint {
	return append([]Hint(nil), e.hints[agentName]...)
}

// RunAgent executes agentName from team on task and returns its output.
func (e *AgentExecutor) RunAgent(ctx context.Context, team, agentName, task string) (string, error) {
	agent, ok := e.agents.Find(team, agentName)
	if !ok {
		return "", &AgentNotFoundError{Team: team, Agent: agentName}
	}

	runID := e.log.RunID()
	e.log.SetCurrentAgent(agentName, agentName+" working...")
	e.logger.LogAgentEvent(runID, agentName, "started", map[string]interface{}{"team": team})

	e.log.Log(agentName, models.LevelThinking, "task received: "+truncateRunes(task, taskPreviewRunes)+"...", nil)

	hints := e.hints[agentName]
	var actionData map[string]interface{}
	if len(hints) > 0 {
		names := make([]string, len(hints))
		for i, h := range hints {
			names[i] = h.Name
		}
		actionData = map[string]interface{}{"hints": names}
	}
	e.log.Log(agentName, models.LevelAction, "calling model", actionData)

	output, err := e.capability.Execute(ctx, agent, task, hints)
	if err != nil {
		e.log.Log(agentName, models.LevelError, "capability failed: "+err.Error(), map[string]interface{}{
			"team":  team,
			"error": err.Error(),
		})
		e.logger.LogAgentEvent(runID, agentName, "failed", map[string]interface{}{"error": err.Error()})
		return "", &CapabilityError{Agent: agentName, Err: err}
	}

	name := storage.OutputName(agentName)
	path, err := e.artifacts.Save(name, output)
	if err != nil {
		e.log.Log(agentName, models.LevelError, "failed to save output: "+err.Error(), map[string]interface{}{
			"artifact": name,
			"error":    err.Error(),
		})
		e.logger.LogAgentEvent(runID, agentName, "failed", map[string]interface{}{"error": err.Error()})
		return "", &PersistenceError{Artifact: name, Err: err}
	}

	e.log.Log(agentName, models.LevelOutput, fmt.Sprintf("output saved: %s", name), map[string]interface{}{"path": path})
	e.log.CompleteAgent(agentName)
	e.logger.LogAgentEvent(runID, agentName, "completed", map[string]interface{}{"output_len": len(output)})

	return output, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
