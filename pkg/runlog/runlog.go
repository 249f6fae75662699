// Package runlog records what the agent team is doing for dashboards that poll
// from other goroutines or processes.
//
// A RunLog has exactly one writer, the workflow goroutine. Write failures are
// reported on the diagnostic logger and never interrupt the workflow.
package runlog

import (
	"sync"
	"time"

	"github.com/JaiwanShin/ai-marketing-team/pkg/logging"
	"github.com/JaiwanShin/ai-marketing-team/pkg/models"
	"github.com/JaiwanShin/ai-marketing-team/pkg/storage"
)

// SystemAgent is the agent name used for workflow-level entries.
const SystemAgent = "system"

// Option configures a RunLog
type Option func(*RunLog)

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(l *RunLog) {
		l.now = now
	}
}

// RunLog is the append-only log plus status snapshot of the current run
type RunLog struct {
	store  storage.LogStore
	logger logging.Logger
	now    func() time.Time

	mu    sync.Mutex
	runID string
}

// New creates a RunLog over a storage backend
func New(store storage.LogStore, logger logging.Logger, opts ...Option) *RunLog {
	if logger == nil {
		logger = logging.NewNop()
	}
	l := &RunLog{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Init writes the idle snapshot when no readable status exists yet.
func (l *RunLog) Init() error {
	if _, found, err := l.store.ReadStatus(); err == nil && found {
		return nil
	}
	return l.store.WriteStatus(models.IdleStatus(l.now()))
}

// SetRunID stamps subsequent entries and status writes with a run identifier.
func (l *RunLog) SetRunID(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.runID = id
}

// RunID returns the identifier set by SetRunID.
func (l *RunLog) RunID() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.runID
}

// Log appends an entry built from its parts.
func (l *RunLog) Log(agentName string, level models.LogLevel, message string, data map[string]interface{}) {
	l.Append(models.LogEntry{
		Timestamp: l.now(),
		AgentName: agentName,
		Level:     level,
		Message:   message,
		Data:      data,
	})
}

// Append persists one entry and bumps the status LastUpdate.
func (l *RunLog) Append(entry models.LogEntry) {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = l.now()
	}
	if runID := l.RunID(); runID != "" {
		data := make(map[string]interface{}, len(entry.Data)+1)
		for k, v := range entry.Data {
			data[k] = v
		}
		data["run_id"] = runID
		entry.Data = data
	}

	if err := l.store.AppendEntry(entry); err != nil {
		l.logger.Error("Failed to append run log entry",
			logging.F("agent", entry.AgentName),
			logging.F("level", string(entry.Level)),
			logging.F("message", entry.Message),
			logging.Err(err))
		return
	}

	status := l.CurrentStatus()
	status.LastUpdate = entry.Timestamp
	if err := l.store.WriteStatus(status); err != nil {
		l.logger.Debug("Failed to refresh status timestamp", logging.Err(err))
	}
}

// SetCurrentAgent marks agentName as running, then logs its start.
func (l *RunLog) SetCurrentAgent(agentName, statusText string) {
	status := models.ActiveStatus(agentName, statusText, l.now())
	status.RunID = l.RunID()
	if err := l.store.WriteStatus(status); err != nil {
		l.logger.Error("Failed to write status",
			logging.F("agent", agentName),
			logging.Err(err))
	}
	l.Log(agentName, models.LevelInfo, agentName+" started", nil)
}

// CompleteAgent logs completion, then returns the status to idle.
func (l *RunLog) CompleteAgent(agentName string) {
	l.Log(agentName, models.LevelInfo, agentName+" completed", nil)
	status := models.IdleStatus(l.now())
	status.RunID = l.RunID()
	if err := l.store.WriteStatus(status); err != nil {
		l.logger.Error("Failed to write status",
			logging.F("agent", agentName),
			logging.Err(err))
	}
}

// Tail returns the last limit entries in append order.
func (l *RunLog) Tail(limit int) []models.LogEntry {
	entries, err := l.store.ReadEntries(limit)
	if err != nil {
		l.logger.Warn("Failed to read run log", logging.Err(err))
		return []models.LogEntry{}
	}
	return entries
}

// CurrentStatus returns the persisted snapshot, or idle when there is none.
func (l *RunLog) CurrentStatus() models.RunStatus {
	status, found, err := l.store.ReadStatus()
	if err != nil {
		l.logger.Warn("Failed to read status", logging.Err(err))
		return models.IdleStatus(l.now())
	}
	if !found {
		return models.IdleStatus(l.now())
	}
	return status
}

// Clear truncates the log and resets status to idle.
func (l *RunLog) Clear() error {
	if err := l.store.Truncate(); err != nil {
		return err
	}
	status := models.IdleStatus(l.now())
	status.RunID = l.RunID()
	return l.store.WriteStatus(status)
}
