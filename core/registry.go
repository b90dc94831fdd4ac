package core

import (
	"fmt"
	"sort"
	"sync"
)

// Registry resolves provider adapters by provider id. Hosts can supply
// their own implementation to add providers beyond the built-in set.
type Registry interface {
	Register(adapter ProviderAdapter) error
	Get(provider Provider) (ProviderAdapter, bool)
	List() []ProviderAdapter
}

type ProviderRegistry struct {
	mu       sync.RWMutex
	adapters map[Provider]ProviderAdapter
}

func NewProviderRegistry() *ProviderRegistry {
	return &ProviderRegistry{adapters: make(map[Provider]ProviderAdapter)}
}

func (r *ProviderRegistry) Register(adapter ProviderAdapter) error {
	if adapter == nil {
		return fmt.Errorf("core: provider adapter is nil")
	}
	id, err := ParseProvider(string(adapter.ID()))
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.adapters[id]; exists {
		return fmt.Errorf("core: provider already registered: %s", id)
	}
	r.adapters[id] = adapter
	return nil
}

func (r *ProviderRegistry) Get(provider Provider) (ProviderAdapter, bool) {
	if provider == "" {
		return nil, false
	}
	r.mu.RLock()
	adapter, ok := r.adapters[provider]
	r.mu.RUnlock()
	return adapter, ok
}

func (r *ProviderRegistry) List() []ProviderAdapter {
	r.mu.RLock()
	keys := make([]string, 0, len(r.adapters))
	for id := range r.adapters {
		keys = append(keys, string(id))
	}
	r.mu.RUnlock()
	sort.Strings(keys)

	adapters := make([]ProviderAdapter, 0, len(keys))
	r.mu.RLock()
	for _, id := range keys {
		adapters = append(adapters, r.adapters[Provider(id)])
	}
	r.mu.RUnlock()
	return adapters
}
