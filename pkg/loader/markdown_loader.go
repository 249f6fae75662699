package loader

import (
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

const agentFileExt = ".md"

// Section names recognized in agent files.
const (
	SectionRole         = "role"
	SectionGoal         = "goal"
	SectionBackstory    = "backstory"
	SectionInstructions = "instructions"
	SectionOutputFormat = "output format"
)

// MarkdownLoader implements AgentLoader for markdown agent files
type MarkdownLoader struct{}

// NewMarkdownLoader creates a markdown agent loader
func NewMarkdownLoader() AgentLoader {
	return &MarkdownLoader{}
}

// LoadAll treats each immediate subdirectory of rootDir as a team and every
// markdown file inside it as one agent.
func (l *MarkdownLoader) LoadAll(rootDir string) (*Teams, error) {
	entries, err := os.ReadDir(rootDir)
	if err != nil {
		return nil, &ConfigLoadError{Path: rootDir, Err: err}
	}

	teams := &Teams{agents: make(map[string][]models.AgentRecord)}
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		teamDir := filepath.Join(rootDir, entry.Name())
		records, err := loadTeam(teamDir)
		if err != nil {
			return nil, err
		}
		teams.add(entry.Name(), records)
	}
	return teams, nil
}

func loadTeam(teamDir string) ([]models.AgentRecord, error) {
	entries, err := os.ReadDir(teamDir)
	if err != nil {
		return nil, &ConfigLoadError{Path: teamDir, Err: err}
	}
	// os.ReadDir is already sorted; keep it explicit since order drives execution.
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	var records []models.AgentRecord
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != agentFileExt {
			continue
		}
		record, err := LoadAgentFile(filepath.Join(teamDir, entry.Name()))
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, nil
}

// LoadAgentFile reads and parses a single agent definition.
func LoadAgentFile(path string) (models.AgentRecord, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.AgentRecord{}, &ConfigLoadError{Path: path, Err: err}
	}
	return ParseAgent(AgentName(path), string(data)), nil
}

// AgentName derives the agent identifier from a file path.
func AgentName(path string) string {
	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.ReplaceAll(stem, "-", "_")
}

// ParseAgent splits markdown content into sections. Missing sections are
// empty; parsing never fails.
func ParseAgent(name, content string) models.AgentRecord {
	sections := make(map[string]string)
	var (
		title   string
		current string
		open    bool
		body    []string
	)
	flush := func() {
		if open {
			sections[current] = strings.TrimSpace(strings.Join(body, "\n"))
		}
	}

	for _, line := range strings.Split(content, "\n") {
		line = strings.TrimRight(line, "\r")
		switch {
		case strings.HasPrefix(line, "## "):
			flush()
			current = strings.ToLower(strings.TrimSpace(line[3:]))
			open = true
			body = body[:0]
		case strings.HasPrefix(line, "# "):
			title = strings.TrimSpace(line[2:])
		default:
			body = append(body, line)
		}
	}
	flush()

	return models.AgentRecord{
		Name:         name,
		Title:        title,
		Role:         sections[SectionRole],
		Goal:         sections[SectionGoal],
		Backstory:    sections[SectionBackstory],
		Instructions: sections[SectionInstructions],
		OutputFormat: sections[SectionOutputFormat],
		RawContent:   content,
	}
}
