// Package loader reads agent definitions, skill documents and the capability
// table from disk.
package loader

import (
	"fmt"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// AgentLoader loads agent definitions grouped by team.
type AgentLoader interface {
	// LoadAll reads every team directory under rootDir
	LoadAll(rootDir string) (*Teams, error)
}

// ConfigLoadError reports a missing or unreadable agent source.
// It is fatal at startup.
type ConfigLoadError struct {
	Path string
	Err  error
}

func (e *ConfigLoadError) Error() string {
	return fmt.Sprintf("load agent config %s: %v", e.Path, e.Err)
}

func (e *ConfigLoadError) Unwrap() error {
	return e.Err
}

// Teams maps team names to their agents in load order.
type Teams struct {
	order  []string
	agents map[string][]models.AgentRecord
}

// NewTeams builds a roster from explicit team lists. Team order follows the
// order of names.
func NewTeams(names []string, agents map[string][]models.AgentRecord) *Teams {
	t := &Teams{agents: make(map[string][]models.AgentRecord, len(names))}
	for _, name := range names {
		t.add(name, agents[name])
	}
	return t
}

func (t *Teams) add(team string, records []models.AgentRecord) {
	if _, exists := t.agents[team]; !exists {
		t.order = append(t.order, team)
	}
	cloned := make([]models.AgentRecord, len(records))
	copy(cloned, records)
	for i := range cloned {
		cloned[i].Team = team
	}
	t.agents[team] = cloned
}

// Names returns team names in load order.
func (t *Teams) Names() []string {
	if t == nil {
		return nil
	}
	return append([]string(nil), t.order...)
}

// Agents returns a copy of the team's agents in load order.
func (t *Teams) Agents(team string) []models.AgentRecord {
	if t == nil {
		return nil
	}
	return append([]models.AgentRecord(nil), t.agents[team]...)
}

// Find resolves an agent by team and name.
func (t *Teams) Find(team, name string) (models.AgentRecord, bool) {
	if t == nil {
		return models.AgentRecord{}, false
	}
	for _, agent := range t.agents[team] {
		if agent.Name == name {
			return agent, true
		}
	}
	return models.AgentRecord{}, false
}

// Count returns the number of agents in a team.
func (t *Teams) Count(team string) int {
	if t == nil {
		return 0
	}
	return len(t.agents[team])
}
