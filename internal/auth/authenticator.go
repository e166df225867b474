// Package auth resolves the X-API-Key presented to mutating twin endpoints.
package auth

import (
	"context"
	"sync"
	"time"

	"yacht-twin/monitor/internal/config"
)

// StaticOwner is reported for keys listed in VALID_API_KEYS.
const StaticOwner = "config"

// KeyLookup resolves an API key to its owner; an empty owner means unknown.
// *store.RedisStore satisfies it.
type KeyLookup interface {
	GetAPIKey(ctx context.Context, apiKey string) (string, error)
}

type cachedOwner struct {
	owner     string
	expiresAt time.Time
}

// Authenticator checks keys against config first, then a short-lived cache
// of earlier lookups, then the KeyLookup.
type Authenticator struct {
	static map[string]struct{}
	keys   KeyLookup
	ttl    time.Duration
	cache  sync.Map // apiKey -> cachedOwner
	now    func() time.Time
}

// NewAuthenticator builds an Authenticator from config. keys may be nil,
// leaving only the configured static keys.
func NewAuthenticator(cfg *config.Config, keys KeyLookup) *Authenticator {
	static := make(map[string]struct{}, len(cfg.ValidAPIKeys))
	for _, k := range cfg.ValidAPIKeys {
		if k != "" {
			static[k] = struct{}{}
		}
	}

	return &Authenticator{
		static: static,
		keys:   keys,
		ttl:    time.Duration(cfg.AuthCacheTTLSeconds) * time.Second,
		now:    time.Now,
	}
}

// Owner returns who an API key belongs to and whether it is accepted.
// Lookup errors reject the key.
func (a *Authenticator) Owner(ctx context.Context, apiKey string) (string, bool) {
	if apiKey == "" {
		return "", false
	}
	if _, ok := a.static[apiKey]; ok {
		return StaticOwner, true
	}
	if owner, ok := a.fromCache(apiKey); ok {
		return owner, true
	}
	if a.keys == nil {
		return "", false
	}

	owner, err := a.keys.GetAPIKey(ctx, apiKey)
	if err != nil || owner == "" {
		return "", false
	}
	if a.ttl > 0 {
		a.cache.Store(apiKey, cachedOwner{owner: owner, expiresAt: a.now().Add(a.ttl)})
	}
	return owner, true
}

func (a *Authenticator) Validate(ctx context.Context, apiKey string) bool {
	_, ok := a.Owner(ctx, apiKey)
	return ok
}

func (a *Authenticator) fromCache(apiKey string) (string, bool) {
	raw, ok := a.cache.Load(apiKey)
	if !ok {
		return "", false
	}
	entry := raw.(cachedOwner)
	if !a.now().Before(entry.expiresAt) {
		a.cache.Delete(apiKey)
		return "", false
	}
	return entry.owner, true
}
