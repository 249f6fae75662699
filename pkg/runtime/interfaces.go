// Package runtime executes the marketing agent team: one agent step at a time
// through the AgentExecutor, the fixed stage order through the WorkflowEngine,
// and at most one run per process through the RunSupervisor.
package runtime

import (
	"context"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// Team and agent names the workflow depends on.
const (
	TeamOrchestrator = "orchestrator"
	TeamData         = "data_team"
	TeamContent      = "content_team"

	AgentPlanner  = "planner"
	AgentReviewer = "reviewer"
)

// Capability turns an agent definition and a task into output text
type Capability interface {
	// Execute runs the agent on the task. Hints name the external data the
	// agent is allowed to consult.
	Execute(ctx context.Context, agent models.AgentRecord, task string, hints []Hint) (string, error)
}

// CapabilityFunc adapts a function to the Capability interface
type CapabilityFunc func(ctx context.Context, agent models.AgentRecord, task string, hints []Hint) (string, error)

// Execute calls f
func (f CapabilityFunc) Execute(ctx context.Context, agent models.AgentRecord, task string, hints []Hint) (string, error) {
	return f(ctx, agent, task, hints)
}

// DataProvider fetches reference data for a query
type DataProvider interface {
	// Fetch returns JSON encodable data
	Fetch(ctx context.Context, query string) (interface{}, error)
}

// Hint is a named external capability granted to an agent
type Hint struct {
	// Name is the skill name, e.g. "search_ad"
	Name string

	// Doc is the skill document shown to the model
	Doc string

	// Provider fetches the skill's data. Nil when no client is configured.
	Provider DataProvider
}

// AgentStore resolves agent definitions by team
type AgentStore interface {
	// Names returns team names in load order
	Names() []string

	// Agents returns a team's agents in load order
	Agents(team string) []models.AgentRecord

	// Find resolves one agent
	Find(team, name string) (models.AgentRecord, bool)
}

// AgentRunner runs a single agent step
type AgentRunner interface {
	RunAgent(ctx context.Context, team, agentName, task string) (string, error)
}

// WorkflowRunner runs a whole workflow under a given run ID
type WorkflowRunner interface {
	RunWithID(ctx context.Context, runID, request string) (string, error)
}

type requestKey struct{}

// WithRequest attaches the user's original request to ctx.
func WithRequest(ctx context.Context, request string) context.Context {
	return context.WithValue(ctx, requestKey{}, request)
}

// RequestFromContext returns the request attached by WithRequest.
func RequestFromContext(ctx context.Context) (string, bool) {
	request, ok := ctx.Value(requestKey{}).(string)
	return request, ok
}
