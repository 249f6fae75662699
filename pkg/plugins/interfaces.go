// Package plugins provides the capabilities agents run on (a model client or a
// simulation) and the data providers bound to agent skills.
package plugins

import (
	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
)

// ProviderRegistry manages data providers keyed by skill name
type ProviderRegistry interface {
	// Register adds a provider to the registry
	Register(skill string, provider runtime.DataProvider) error

	// Get retrieves a provider by skill name
	Get(skill string) (runtime.DataProvider, error)

	// List returns all registered skill names
	List() []string

	// Providers returns a snapshot of the registry for hint resolution
	Providers() map[string]runtime.DataProvider
}
