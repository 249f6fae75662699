package plugins

import (
	"context"
	"time"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
)

const simulatedRolePreviewRunes = 100

// SimulatedCapability returns canned text after a fixed delay. It exercises
// the whole workflow without a model key.
type SimulatedCapability struct {
	Delay time.Duration
}

// NewSimulatedCapability creates a simulation with the given per-step delay
func NewSimulatedCapability(delay time.Duration) *SimulatedCapability {
	return &SimulatedCapability{Delay: delay}
}

// Execute waits Delay, or until ctx is done, and returns SimulatedOutput.
func (s *SimulatedCapability) Execute(ctx context.Context, agent models.AgentRecord, task string, hints []runtime.Hint) (string, error) {
	if s.Delay > 0 {
		timer := time.NewTimer(s.Delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-timer.C:
		}
	}
	return SimulatedOutput(agent), nil
}

// SimulatedOutput is the deterministic text produced for an agent.
func SimulatedOutput(agent models.AgentRecord) string {
	role := []rune(agent.Role)
	if len(role) > simulatedRolePreviewRunes {
		role = role[:simulatedRolePreviewRunes]
	}
	return "# " + agent.Name + " analysis result\n\n" +
		"[simulation mode] " + string(role) + "...\n\n" +
		"This section will be replaced by a real model response."
}
