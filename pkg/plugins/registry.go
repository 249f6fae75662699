package plugins

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JaiwanShin/ai-marketing-team/pkg/runtime"
)

// providerRegistry implements the ProviderRegistry interface.
type providerRegistry struct {
	providers map[string]runtime.DataProvider
	mu        sync.RWMutex
}

// NewProviderRegistry creates a new ProviderRegistry.
func NewProviderRegistry() ProviderRegistry {
	return &providerRegistry{
		providers: make(map[string]runtime.DataProvider),
	}
}

// Register adds a provider to the registry.
func (r *providerRegistry) Register(skill string, provider runtime.DataProvider) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if provider == nil {
		return fmt.Errorf("provider for skill '%s' is nil", skill)
	}
	if _, exists := r.providers[skill]; exists {
		return fmt.Errorf("provider for skill '%s' already registered", skill)
	}

	r.providers[skill] = provider
	return nil
}

// Get retrieves a provider by skill name.
func (r *providerRegistry) Get(skill string) (runtime.DataProvider, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	provider, exists := r.providers[skill]
	if !exists {
		return nil, fmt.Errorf("provider for skill '%s' not found", skill)
	}

	return provider, nil
}

// List returns all registered skill names, sorted.
func (r *providerRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Providers returns a copy of the registered providers.
func (r *providerRegistry) Providers() map[string]runtime.DataProvider {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make(map[string]runtime.DataProvider, len(r.providers))
	for k, v := range r.providers {
		out[k] = v
	}
	return out
}
