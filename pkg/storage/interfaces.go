// Package storage provides the persistence backends shared by the workflow
// writer and the dashboard pollers.
//
// Every write must be atomic from a reader's point of view: a reader sees a
// log entry only once it is fully written, and sees either the old or the new
// status snapshot, never a mixture.
package storage

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// File names of the persisted layout.
const (
	LogFileName          = "agent_logs.jsonl"
	StatusFileName       = "status.json"
	FinalReportName      = "final_report.md"
	ArtifactExt          = ".md"
	artifactOutputSuffix = "_output.md"
)

// Errors returned by storage providers
var (
	ErrArtifactNotFound    = errors.New("artifact not found")
	ErrInvalidArtifactName = errors.New("invalid artifact name")
)

// StorageProvider defines the interface for persistence backends
type StorageProvider interface {
	// Initialize sets up the storage backend. It is idempotent.
	Initialize() error

	// Close cleans up resources
	Close() error

	// GetLogStore returns the run log and status store
	GetLogStore() LogStore

	// GetArtifactStore returns the output artifact store
	GetArtifactStore() ArtifactStore
}

// LogStore persists the append-only run log and the status snapshot
type LogStore interface {
	// AppendEntry appends one entry to the log
	AppendEntry(entry models.LogEntry) error

	// ReadEntries returns up to the last limit entries in append order
	ReadEntries(limit int) ([]models.LogEntry, error)

	// WriteStatus replaces the status snapshot
	WriteStatus(status models.RunStatus) error

	// ReadStatus returns the snapshot; found is false when none was written
	ReadStatus() (status models.RunStatus, found bool, err error)

	// Truncate removes every log entry
	Truncate() error
}

// ArtifactStore persists per-agent output documents
type ArtifactStore interface {
	// Save writes an artifact and returns where it was stored
	Save(name, content string) (string, error)

	// Read returns an artifact's content
	Read(name string) (string, error)

	// List returns artifact names, sorted
	List() ([]string, error)

	// Clear removes every artifact
	Clear() error
}

// OutputName returns the artifact name for an agent's output.
func OutputName(agentName string) string {
	return agentName + artifactOutputSuffix
}

// ValidateArtifactName rejects names that could escape the artifact store.
func ValidateArtifactName(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidArtifactName, name)
	case strings.ContainsAny(name, `/\`), filepath.Base(name) != name:
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidArtifactName, name)
	case filepath.Ext(name) != ArtifactExt:
		return fmt.Errorf("%w: %q must end with %s", ErrInvalidArtifactName, name, ArtifactExt)
	}
	return nil
}

func tailEntries(entries []models.LogEntry, limit int) []models.LogEntry {
	if limit <= 0 || len(entries) == 0 {
		return []models.LogEntry{}
	}
	if len(entries) > limit {
		entries = entries[len(entries)-limit:]
	}
	out := make([]models.LogEntry, len(entries))
	copy(out, entries)
	return out
}
