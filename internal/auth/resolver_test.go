package auth

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeKeyStore records lookups and serves a fixed set of key hashes.
type fakeKeyStore struct {
	mu       sync.Mutex
	keys     map[string][2]string // hash -> {projectID, workspaceID}
	lookups  int
	touches  int
	touchErr error
	touched  chan struct{}
}

func (f *fakeKeyStore) LookupKey(_ context.Context, hash string) (string, string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	ids, ok := f.keys[hash]
	if !ok {
		return "", "", false, nil
	}
	return ids[0], ids[1], true, nil
}

func (f *fakeKeyStore) TouchKey(_ context.Context, _ string) error {
	f.mu.Lock()
	f.touches++
	err := f.touchErr
	f.mu.Unlock()
	if f.touched != nil {
		f.touched <- struct{}{}
	}
	return err
}

func (f *fakeKeyStore) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lookups
}

func newResolverWithKey(t *testing.T, rawKey string) (*Resolver, *fakeKeyStore) {
	t.Helper()
	st := &fakeKeyStore{keys: map[string][2]string{}, touched: make(chan struct{}, 4)}
	r := NewResolver("lookup-secret", st, time.Minute, 100, nil)
	st.keys[r.hashKey(rawKey)] = [2]string{"proj_1", "ws_1"}
	return r, st
}

func TestResolveCachesPositiveOutcome(t *testing.T) {
	r, st := newResolverWithKey(t, "igk_live_abc")

	first, err := r.Resolve(context.Background(), "igk_live_abc")
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "proj_1", first.ProjectID)
	assert.Equal(t, "ws_1", first.WorkspaceID)

	second, err := r.Resolve(context.Background(), "igk_live_abc")
	require.NoError(t, err)
	require.NotNil(t, second)
	assert.Equal(t, *first, *second)
	assert.Equal(t, 1, st.lookupCount(), "second resolve within TTL must not hit the store")
}

func TestResolveCachesNegativeOutcome(t *testing.T) {
	r, st := newResolverWithKey(t, "igk_live_abc")

	for i := 0; i < 3; i++ {
		resolved, err := r.Resolve(context.Background(), "igk_live_wrong")
		require.NoError(t, err)
		assert.Nil(t, resolved)
	}
	assert.Equal(t, 1, st.lookupCount(), "unknown key should be negatively cached")
}

func TestResolveDoesNotCacheStoreErrors(t *testing.T) {
	r := NewResolver("lookup-secret", erroringKeyStore{}, time.Minute, 100, nil)

	_, err := r.Resolve(context.Background(), "igk_live_abc")
	require.Error(t, err)

	_, err = r.Resolve(context.Background(), "igk_live_abc")
	require.Error(t, err, "errors must not be served from cache")
}

type erroringKeyStore struct{}

func (erroringKeyStore) LookupKey(context.Context, string) (string, string, bool, error) {
	return "", "", false, errors.New("connection refused")
}
func (erroringKeyStore) TouchKey(context.Context, string) error { return nil }

func TestClearCacheForcesRequery(t *testing.T) {
	r, st := newResolverWithKey(t, "igk_live_abc")

	_, err := r.Resolve(context.Background(), "igk_live_abc")
	require.NoError(t, err)

	r.ClearCache()

	_, err = r.Resolve(context.Background(), "igk_live_abc")
	require.NoError(t, err)
	assert.Equal(t, 2, st.lookupCount())
}

func TestTouchFailureNeverReachesCaller(t *testing.T) {
	r, st := newResolverWithKey(t, "igk_live_abc")
	st.touchErr = errors.New("write timeout")

	resolved, err := r.Resolve(context.Background(), "igk_live_abc")
	require.NoError(t, err)
	require.NotNil(t, resolved)

	select {
	case <-st.touched:
	case <-time.After(2 * time.Second):
		t.Fatal("last-used update was never attempted")
	}
}

func TestParseAuthorization(t *testing.T) {
	assert.IsType(t, APIKeyCredential{}, ParseAuthorization("Bearer igk_live_abc"))
	assert.IsType(t, BearerToken{}, ParseAuthorization("Bearer aaa.bbb.ccc"))
	assert.IsType(t, Malformed{}, ParseAuthorization("Bearer what-is-this"))
	assert.IsType(t, Malformed{}, ParseAuthorization("Basic igk_live_abc"))
	assert.IsType(t, Malformed{}, ParseAuthorization("igk_live_abc"))
	assert.IsType(t, Malformed{}, ParseAuthorization("Bearer "))
	assert.IsType(t, Malformed{}, ParseAuthorization(""))
}
