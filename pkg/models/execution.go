// Package models holds the records shared between the run log, the workflow
// runtime and the dashboard surfaces.
package models

import "time"

// StatusIdle is the status text of the idle snapshot.
const StatusIdle = "idle"

// LogLevel tags a log entry with the phase it describes
type LogLevel string

const (
	// LevelInfo marks lifecycle events (start, completion)
	LevelInfo LogLevel = "INFO"
	// LevelThinking marks task intake
	LevelThinking LogLevel = "THINKING"
	// LevelAction marks outbound capability calls
	LevelAction LogLevel = "ACTION"
	// LevelOutput marks persisted results
	LevelOutput LogLevel = "OUTPUT"
	// LevelError marks failures
	LevelError LogLevel = "ERROR"
)

// Valid reports whether the level is one of the known tags.
func (l LogLevel) Valid() bool {
	switch l {
	case LevelInfo, LevelThinking, LevelAction, LevelOutput, LevelError:
		return true
	}
	return false
}

// RunStatus is the single status snapshot observed by pollers
type RunStatus struct {
	// CurrentAgent is the agent currently executing, nil when idle
	CurrentAgent *string `json:"current_agent"`

	// CurrentStatus is free text describing what the agent is doing
	CurrentStatus string `json:"current_status"`

	// StartedAt is when the current agent started, nil when idle
	StartedAt *time.Time `json:"started_at"`

	// LastUpdate is bumped on every log write
	LastUpdate time.Time `json:"last_update"`

	// RunID identifies the workflow run that last wrote the snapshot
	RunID string `json:"run_id,omitempty"`
}

// IdleStatus returns the idle snapshot stamped with the given time.
func IdleStatus(now time.Time) RunStatus {
	return RunStatus{
		CurrentStatus: StatusIdle,
		LastUpdate:    now,
	}
}

// ActiveStatus returns the snapshot of an agent that has just started.
func ActiveStatus(agentName, statusText string, now time.Time) RunStatus {
	name := agentName
	started := now
	return RunStatus{
		CurrentAgent:  &name,
		CurrentStatus: statusText,
		StartedAt:     &started,
		LastUpdate:    now,
	}
}

// Active reports whether an agent is recorded as running.
func (s RunStatus) Active() bool {
	return s.CurrentAgent != nil
}

// Agent returns the current agent name or "" when idle.
func (s RunStatus) Agent() string {
	if s.CurrentAgent == nil {
		return ""
	}
	return *s.CurrentAgent
}

// LogEntry is one immutable record of the run log
type LogEntry struct {
	// Timestamp of the entry
	Timestamp time.Time `json:"timestamp"`

	// AgentName is the agent (or "system") that produced the entry
	AgentName string `json:"agent_name"`

	// Level of the entry
	Level LogLevel `json:"level"`

	// Message is the human readable text
	Message string `json:"message"`

	// Data is optional structured context
	Data map[string]interface{} `json:"data,omitempty"`
}
