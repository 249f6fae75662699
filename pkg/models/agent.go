package models

// AgentRecord is an agent definition loaded from a markdown file.
// Records are never mutated after loading.
type AgentRecord struct {
	// Name is derived from the file name and is unique within a team
	Name string `json:"name"`

	// Team is the directory the record was loaded from
	Team string `json:"team"`

	// Title is the top level heading, kept for display only
	Title string `json:"title,omitempty"`

	Role         string `json:"role"`
	Goal         string `json:"goal"`
	Backstory    string `json:"backstory"`
	Instructions string `json:"instructions"`
	OutputFormat string `json:"output_format"`

	// RawContent is the full source text
	RawContent string `json:"raw_content"`
}
