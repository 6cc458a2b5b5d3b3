package auth

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"time"

	"github.com/flowmetric/ingest-gateway/internal/cache"
)

// ResolvedKey maps a presented credential to its owning project/workspace.
// KeyHash is the credential's lookup hash; it identifies the individual key
// without exposing the raw secret, e.g. for per-credential rate buckets.
type ResolvedKey struct {
	ProjectID   string
	WorkspaceID string
	KeyHash     string
}

// resolvedEntry is the cache value. valid=false is a negative entry: the key
// is known not to resolve, cached to avoid hammering the backing store with
// repeated lookups of the same bad credential.
type resolvedEntry struct {
	key   ResolvedKey
	valid bool
}

// KeyStore is the relational lookup behind the resolver. Implemented by
// store.PostgresStore; mocked in tests.
type KeyStore interface {
	// LookupKey returns the identity for a non-revoked key hash, or
	// found=false when no such key exists.
	LookupKey(ctx context.Context, keyHash string) (projectID, workspaceID string, found bool, err error)
	// TouchKey updates the key's last-used timestamp.
	TouchKey(ctx context.Context, keyHash string) error
}

// Resolver resolves raw API keys to identities. The raw key is never stored
// or logged; lookups go through a keyed hash of the credential.
type Resolver struct {
	secret []byte
	store  KeyStore
	cache  *cache.Cache[string, resolvedEntry]
	logger *slog.Logger
}

// NewResolver builds a resolver caching outcomes (positive and negative) for
// ttl, holding at most capacity entries.
func NewResolver(lookupSecret string, st KeyStore, ttl time.Duration, capacity int, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		secret: []byte(lookupSecret),
		store:  st,
		cache:  cache.New[string, resolvedEntry](ttl, capacity),
		logger: logger,
	}
}

// hashKey derives the deterministic lookup hash for a raw credential.
func (r *Resolver) hashKey(rawKey string) string {
	mac := hmac.New(sha256.New, r.secret)
	mac.Write([]byte(rawKey))
	return hex.EncodeToString(mac.Sum(nil))
}

// Resolve maps a raw key to its identity, or nil when the key is unknown or
// revoked. Outcomes are cached either way; a second call within the TTL
// performs no store query. A successful resolution fires a detached
// last-used update whose failure is logged and swallowed.
func (r *Resolver) Resolve(ctx context.Context, rawKey string) (*ResolvedKey, error) {
	hash := r.hashKey(rawKey)

	if entry, ok := r.cache.Get(hash); ok {
		if !entry.valid {
			return nil, nil
		}
		k := entry.key
		return &k, nil
	}

	projectID, workspaceID, found, err := r.store.LookupKey(ctx, hash)
	if err != nil {
		// Transient store errors are not "known invalid"; don't cache them.
		return nil, err
	}
	if !found {
		r.cache.Set(hash, resolvedEntry{valid: false})
		return nil, nil
	}

	resolved := ResolvedKey{ProjectID: projectID, WorkspaceID: workspaceID, KeyHash: hash}
	r.cache.Set(hash, resolvedEntry{key: resolved, valid: true})

	// Last-used is an analytics signal, not a correctness dependency. The
	// update runs detached from the request and its failure never reaches
	// the caller.
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := r.store.TouchKey(ctx, hash); err != nil {
			r.logger.Warn("api key last-used update failed", "error", err)
		}
	}()

	return &resolved, nil
}

// ClearCache empties the resolver cache. Used on credential rotation.
func (r *Resolver) ClearCache() {
	r.cache.Clear()
}
