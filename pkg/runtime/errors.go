package runtime

import (
	"errors"
	"fmt"
)

// ErrBusy is returned when an operation needs the supervisor to be idle.
var ErrBusy = errors.New("a workflow run is in progress")

// AgentNotFoundError reports an agent missing from the roster. It is fatal
// for the run and never retried.
type AgentNotFoundError struct {
	Team  string
	Agent string
}

func (e *AgentNotFoundError) Error() string {
	return fmt.Sprintf("agent %s not found in team %s", e.Agent, e.Team)
}

// CapabilityError wraps a failure of the model or data capability.
type CapabilityError struct {
	Agent string
	Err   error
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("agent %s: capability failed: %v", e.Agent, e.Err)
}

func (e *CapabilityError) Unwrap() error {
	return e.Err
}

// PersistenceError wraps a failure to save an artifact.
type PersistenceError struct {
	Artifact string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("save %s: %v", e.Artifact, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
