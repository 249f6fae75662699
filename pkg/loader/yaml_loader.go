package loader

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Skill names with a bound data provider.
const (
	SkillSearchAd = "search_ad"
	SkillShopping = "shopping"
	SkillDataLab  = "datalab"
)

// CapabilityTable maps agent names to the skills they are granted. It is
// resolved once when the executor is built.
type CapabilityTable map[string][]string

// capabilityFile is the on-disk shape of the table
type capabilityFile struct {
	Agents map[string][]string `yaml:"agents"`
}

// DefaultCapabilityTable returns the built-in grants.
func DefaultCapabilityTable() CapabilityTable {
	return CapabilityTable{
		"keyword_researcher": {SkillSearchAd},
		"price_monitor":      {SkillShopping},
		"review_analyst":     {SkillShopping},
		"trend_analyst":      {SkillDataLab},
	}
}

// LoadCapabilityTable reads a YAML table of the form
//
//	agents:
//	  keyword_researcher: [search_ad]
func LoadCapabilityTable(path string) (CapabilityTable, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &ConfigLoadError{Path: path, Err: err}
	}
	return ParseCapabilityTable(data)
}

// ParseCapabilityTable decodes and validates YAML table content.
func ParseCapabilityTable(data []byte) (CapabilityTable, error) {
	var file capabilityFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse capability table: %w", err)
	}
	table := make(CapabilityTable, len(file.Agents))
	for agent, skills := range file.Agents {
		if agent == "" {
			return nil, fmt.Errorf("capability table: empty agent name")
		}
		table[agent] = append([]string(nil), skills...)
	}
	return table, nil
}

// Agents returns the agent names in the table, sorted.
func (t CapabilityTable) Agents() []string {
	names := make([]string, 0, len(t))
	for name := range t {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Marshal renders the table as YAML.
func (t CapabilityTable) Marshal() ([]byte, error) {
	return yaml.Marshal(capabilityFile{Agents: t})
}
