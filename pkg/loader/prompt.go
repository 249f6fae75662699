package loader

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// BuildPrompt renders an agent as a system prompt. Skills, when present, are
// appended under their own heading.
func BuildPrompt(agent models.AgentRecord, skills []string) string {
	parts := []string{
		"# " + agent.Name,
		"",
		"## Role\n" + agent.Role,
		"",
		"## Goal\n" + agent.Goal,
		"",
		"## Backstory\n" + agent.Backstory,
		"",
		"## Instructions\n" + agent.Instructions,
		"",
		"## Output Format\n" + agent.OutputFormat,
	}

	if len(skills) > 0 {
		parts = append(parts, "", "## Available Skills/Tools")
		parts = append(parts, skills...)
	}

	return strings.Join(parts, "\n")
}

// LoadSkills reads every markdown skill document in dir keyed by file stem.
// A missing directory yields an empty set.
func LoadSkills(dir string) (map[string]string, error) {
	skills := make(map[string]string)
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return skills, nil
		}
		return nil, &ConfigLoadError{Path: dir, Err: err}
	}
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != agentFileExt {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, &ConfigLoadError{Path: path, Err: err}
		}
		skills[strings.TrimSuffix(entry.Name(), agentFileExt)] = string(data)
	}
	return skills, nil
}
