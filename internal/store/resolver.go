package store

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"pagebot/internal/domain"
)

type cacheEntry struct {
	profile *domain.PageProfile
	expires time.Time
}

// Resolver is a read-through cache in front of a ProfileStore. Lookups for
// pages that are missing, disabled, or invalid all resolve to
// domain.ErrProfileNotFound so callers have a single skip path.
type Resolver struct {
	store  domain.ProfileStore
	ttl    time.Duration
	logger *slog.Logger

	mu    sync.RWMutex
	cache map[string]cacheEntry
}

func NewResolver(store domain.ProfileStore, ttl time.Duration, logger *slog.Logger) *Resolver {
	return &Resolver{
		store:  store,
		ttl:    ttl,
		logger: logger,
		cache:  make(map[string]cacheEntry),
	}
}

// Resolve returns the profile for pageID if it is enabled and valid.
func (r *Resolver) Resolve(ctx context.Context, pageID string) (*domain.PageProfile, error) {
	r.mu.RLock()
	entry, ok := r.cache[pageID]
	r.mu.RUnlock()
	if ok && time.Now().Before(entry.expires) {
		if entry.profile == nil {
			return nil, domain.ErrProfileNotFound
		}
		return entry.profile, nil
	}

	profile, err := r.store.Get(ctx, pageID)
	if err != nil {
		if err == domain.ErrProfileNotFound {
			r.remember(pageID, nil)
		}
		return nil, err
	}

	if !profile.Enabled {
		r.logger.Debug("page disabled", "page_id", pageID)
		r.remember(pageID, nil)
		return nil, domain.ErrProfileNotFound
	}
	if err := profile.Validate(); err != nil {
		r.logger.Warn("invalid page profile", "page_id", pageID, "error", err)
		r.remember(pageID, nil)
		return nil, domain.ErrProfileNotFound
	}

	r.remember(pageID, profile)
	return profile, nil
}

// Invalidate drops the cached entry for pageID, forcing the next Resolve
// to hit the store.
func (r *Resolver) Invalidate(pageID string) {
	r.mu.Lock()
	delete(r.cache, pageID)
	r.mu.Unlock()
}

func (r *Resolver) remember(pageID string, profile *domain.PageProfile) {
	r.mu.Lock()
	r.cache[pageID] = cacheEntry{profile: profile, expires: time.Now().Add(r.ttl)}
	r.mu.Unlock()
}
