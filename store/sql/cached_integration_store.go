package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	repositorycache "github.com/goliatone/go-repository-cache/cache"
	"github.com/Mithrandiirr/hookwise/core"
)

const integrationCacheKeyPrefix = "hookwise::integration::v1"

// CachedIntegrationStore puts a read-through cache in front of integration
// lookups. Ingestion resolves the integration on every webhook, so the Get
// path is the one worth keeping off the database; writes invalidate.
type CachedIntegrationStore struct {
	base  core.IntegrationStore
	cache repositorycache.CacheService
}

func NewCachedIntegrationStore(base core.IntegrationStore, cacheService repositorycache.CacheService) (*CachedIntegrationStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base integration store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: integration cache service is required")
	}
	return &CachedIntegrationStore{base: base, cache: cacheService}, nil
}

// IntegrationCacheKey returns the deterministic cache key for one
// integration: hookwise::integration::v1::<id>.
func IntegrationCacheKey(id string) (string, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return "", fmt.Errorf("sqlstore: integration id is required")
	}
	return integrationCacheKeyPrefix + "::" + url.PathEscape(trimmed), nil
}

func (s *CachedIntegrationStore) Create(ctx context.Context, in core.CreateIntegrationInput) (core.Integration, error) {
	if s == nil || s.base == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	return s.base.Create(ctx, in)
}

func (s *CachedIntegrationStore) Get(ctx context.Context, id string) (core.Integration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	cacheKey, err := IntegrationCacheKey(id)
	if err != nil {
		return core.Integration{}, err
	}
	integration, err := repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.Integration, error) {
		return s.base.Get(ctx, id)
	})
	if err != nil {
		return core.Integration{}, err
	}
	return cloneIntegration(integration), nil
}

func (s *CachedIntegrationStore) List(ctx context.Context, filter core.IntegrationFilter) ([]core.Integration, int, error) {
	if s == nil || s.base == nil {
		return nil, 0, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	return s.base.List(ctx, filter)
}

func (s *CachedIntegrationStore) Update(ctx context.Context, id string, in core.UpdateIntegrationInput) (core.Integration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	updated, err := s.base.Update(ctx, id, in)
	if err != nil {
		return core.Integration{}, err
	}
	if err := s.invalidate(ctx, id); err != nil {
		return core.Integration{}, err
	}
	return updated, nil
}

func (s *CachedIntegrationStore) UpdateStatus(ctx context.Context, id string, status core.IntegrationStatus, reason string) (core.Integration, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.Integration{}, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	updated, err := s.base.UpdateStatus(ctx, id, status, reason)
	if err != nil {
		return core.Integration{}, err
	}
	if err := s.invalidate(ctx, id); err != nil {
		return core.Integration{}, err
	}
	return updated, nil
}

func (s *CachedIntegrationStore) ListReconcilable(ctx context.Context) ([]core.Integration, error) {
	if s == nil || s.base == nil {
		return nil, fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	return s.base.ListReconcilable(ctx)
}

func (s *CachedIntegrationStore) Delete(ctx context.Context, id string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached integration store is not configured")
	}
	if err := s.base.Delete(ctx, id); err != nil {
		return err
	}
	return s.invalidate(ctx, id)
}

func (s *CachedIntegrationStore) invalidate(ctx context.Context, id string) error {
	cacheKey, err := IntegrationCacheKey(id)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

func cloneIntegration(in core.Integration) core.Integration {
	cloned := in
	cloned.SealedCredential = append([]byte(nil), in.SealedCredential...)
	return cloned
}

var _ core.IntegrationStore = (*CachedIntegrationStore)(nil)
