package storage

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
)

// FileProvider implements StorageProvider on a plain directory:
//
//	<dir>/agent_logs.jsonl   one LogEntry per line, append only
//	<dir>/status.json        RunStatus snapshot, replaced by rename
//	<dir>/*.md               output artifacts, replaced by rename
type FileProvider struct {
	dir       string
	logs      *FileLogStore
	artifacts *FileArtifactStore
}

// NewFileProvider creates a file backed provider rooted at dir
func NewFileProvider(dir string) *FileProvider {
	return &FileProvider{
		dir:       dir,
		logs:      &FileLogStore{dir: dir},
		artifacts: &FileArtifactStore{dir: dir},
	}
}

// Dir returns the directory backing this provider.
func (p *FileProvider) Dir() string {
	return p.dir
}

// Initialize creates the output directory
func (p *FileProvider) Initialize() error {
	if err := os.MkdirAll(p.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	return nil
}

// Close cleans up resources
func (p *FileProvider) Close() error {
	// File handles are opened per operation
	return nil
}

// GetLogStore returns the run log and status store
func (p *FileProvider) GetLogStore() LogStore {
	return p.logs
}

// GetArtifactStore returns the output artifact store
func (p *FileProvider) GetArtifactStore() ArtifactStore {
	return p.artifacts
}

// FileLogStore keeps the log as JSON lines and the status as a JSON document
type FileLogStore struct {
	dir string
	mu  sync.Mutex
}

func (s *FileLogStore) logPath() string {
	return filepath.Join(s.dir, LogFileName)
}

func (s *FileLogStore) statusPath() string {
	return filepath.Join(s.dir, StatusFileName)
}

// AppendEntry writes the entry and its newline in a single write on an
// O_APPEND descriptor, so readers never observe half an entry followed by
// another entry.
func (s *FileLogStore) AppendEntry(entry models.LogEntry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal log entry: %w", err)
	}
	data = append(data, '\n')

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	f, err := os.OpenFile(s.logPath(), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open run log: %w", err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("append log entry: %w", err)
	}
	return nil
}

// ReadEntries returns the last limit complete entries. A trailing line with no
// newline is an append still in flight and is skipped.
func (s *FileLogStore) ReadEntries(limit int) ([]models.LogEntry, error) {
	if limit <= 0 {
		return []models.LogEntry{}, nil
	}
	data, err := os.ReadFile(s.logPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []models.LogEntry{}, nil
		}
		return nil, fmt.Errorf("read run log: %w", err)
	}

	if i := bytes.LastIndexByte(data, '\n'); i >= 0 {
		data = data[:i+1]
	} else {
		data = nil
	}

	entries := make([]models.LogEntry, 0)
	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var entry models.LogEntry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	return tailEntries(entries, limit), nil
}

// WriteStatus replaces status.json through a temp file and rename
func (s *FileLogStore) WriteStatus(status models.RunStatus) error {
	data, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal status: %w", err)
	}
	return writeFileAtomic(s.statusPath(), append(data, '\n'))
}

// ReadStatus loads status.json
func (s *FileLogStore) ReadStatus() (models.RunStatus, bool, error) {
	data, err := os.ReadFile(s.statusPath())
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return models.RunStatus{}, false, nil
		}
		return models.RunStatus{}, false, fmt.Errorf("read status: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return models.RunStatus{}, false, nil
	}
	var status models.RunStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return models.RunStatus{}, false, fmt.Errorf("parse status: %w", err)
	}
	return status, true, nil
}

// Truncate removes the log file
func (s *FileLogStore) Truncate() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := os.Remove(s.logPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("truncate run log: %w", err)
	}
	return nil
}

// FileArtifactStore keeps artifacts as markdown files
type FileArtifactStore struct {
	dir string
}

// Save writes the artifact atomically
func (s *FileArtifactStore) Save(name, content string) (string, error) {
	if err := ValidateArtifactName(name); err != nil {
		return "", err
	}
	path := filepath.Join(s.dir, name)
	if err := writeFileAtomic(path, []byte(content)); err != nil {
		return "", err
	}
	return path, nil
}

// Read returns the artifact content
func (s *FileArtifactStore) Read(name string) (string, error) {
	if err := ValidateArtifactName(name); err != nil {
		return "", err
	}
	data, err := os.ReadFile(filepath.Join(s.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrArtifactNotFound, name)
		}
		return "", fmt.Errorf("read artifact %s: %w", name, err)
	}
	return string(data), nil
}

// List returns the markdown artifacts in the directory
func (s *FileArtifactStore) List() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []string{}, nil
		}
		return nil, fmt.Errorf("list artifacts: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ArtifactExt {
			continue
		}
		names = append(names, entry.Name())
	}
	sort.Strings(names)
	return names, nil
}

// Clear deletes every markdown artifact
func (s *FileArtifactStore) Clear() error {
	names, err := s.List()
	if err != nil {
		return err
	}
	for _, name := range names {
		if err := os.Remove(filepath.Join(s.dir, name)); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("remove artifact %s: %w", name, err)
		}
	}
	return nil
}

// writeFileAtomic writes data next to path and renames it into place.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+strings.TrimPrefix(filepath.Base(path), ".")+"-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpName) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		cleanup()
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
