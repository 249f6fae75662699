package storage

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// MemoryProvider implements the StorageProvider interface using in-memory storage
type MemoryProvider struct {
	logStore      *MemoryLogStore
	artifactStore *MemoryArtifactStore
}

// NewMemoryProvider creates a new in-memory storage provider
func NewMemoryProvider() *MemoryProvider {
	return &MemoryProvider{
		logStore:      NewMemoryLogStore(),
		artifactStore: NewMemoryArtifactStore(),
	}
}

// Initialize sets up the storage backend
func (p *MemoryProvider) Initialize() error {
	// Nothing to initialize for in-memory storage
	return nil
}

// Close cleans up resources
func (p *MemoryProvider) Close() error {
	// Nothing to close for in-memory storage
	return nil
}

// GetLogStore returns the run log and status store
func (p *MemoryProvider) GetLogStore() LogStore {
	return p.logStore
}

// GetArtifactStore returns the output artifact store
func (p *MemoryProvider) GetArtifactStore() ArtifactStore {
	return p.artifactStore
}

// MemoryLogStore implements LogStore using in-memory storage
type MemoryLogStore struct {
	entries []models.LogEntry
	status  *models.RunStatus
	mu      sync.RWMutex
}

// NewMemoryLogStore creates a new in-memory log store
func NewMemoryLogStore() *MemoryLogStore {
	return &MemoryLogStore{}
}

// AppendEntry appends one entry to the log
func (s *MemoryLogStore) AppendEntry(entry models.LogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, copyEntry(entry))
	return nil
}

// ReadEntries returns up to the last limit entries
func (s *MemoryLogStore) ReadEntries(limit int) ([]models.LogEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return tailEntries(s.entries, limit), nil
}

// WriteStatus replaces the status snapshot
func (s *MemoryLogStore) WriteStatus(status models.RunStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = &status
	return nil
}

// ReadStatus returns the snapshot
func (s *MemoryLogStore) ReadStatus() (models.RunStatus, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.status == nil {
		return models.RunStatus{}, false, nil
	}
	return *s.status, true, nil
}

// Truncate removes every log entry
func (s *MemoryLogStore) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = nil
	return nil
}

func copyEntry(entry models.LogEntry) models.LogEntry {
	if entry.Data != nil {
		data := make(map[string]interface{}, len(entry.Data))
		for k, v := range entry.Data {
			data[k] = v
		}
		entry.Data = data
	}
	return entry
}

// MemoryArtifactStore implements ArtifactStore using in-memory storage
type MemoryArtifactStore struct {
	artifacts map[string]string
	mu        sync.RWMutex
}

// NewMemoryArtifactStore creates a new in-memory artifact store
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{
		artifacts: make(map[string]string),
	}
}

// Save stores an artifact
func (s *MemoryArtifactStore) Save(name, content string) (string, error) {
	if err := ValidateArtifactName(name); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts[name] = content
	return "memory://" + name, nil
}

// Read returns an artifact's content
func (s *MemoryArtifactStore) Read(name string) (string, error) {
	if err := ValidateArtifactName(name); err != nil {
		return "", err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	content, ok := s.artifacts[name]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
	}
	return content, nil
}

// List returns artifact names, sorted
func (s *MemoryArtifactStore) List() ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.artifacts))
	for name := range s.artifacts {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// Clear removes every artifact
func (s *MemoryArtifactStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.artifacts = make(map[string]string)
	return nil
}
