package auth

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMintVerifyRoundTrip(t *testing.T) {
	codec := NewTokenCodec("test-secret", 15*time.Minute)

	token, expires, err := codec.Mint("proj_1", "ws_1", "trace_1", "sess_1")
	require.NoError(t, err)
	assert.True(t, expires.After(time.Now()))
	assert.Equal(t, 3, len(strings.Split(token, ".")))

	claims, ok := codec.Verify(token)
	require.True(t, ok)
	assert.Equal(t, "proj_1", claims.ProjectID)
	assert.Equal(t, "ws_1", claims.WorkspaceID)
	assert.Equal(t, "trace_1", claims.TraceID)
	assert.Equal(t, "sess_1", claims.SessionID)
}

func TestVerifyExpiredToken(t *testing.T) {
	codec := NewTokenCodec("test-secret", 15*time.Minute)

	issued := time.Now()
	codec.now = func() time.Time { return issued }
	token, _, err := codec.Mint("proj_1", "ws_1", "t", "s")
	require.NoError(t, err)

	// Just before expiry: valid. At expiry: invalid.
	codec.now = func() time.Time { return issued.Add(15*time.Minute - time.Second) }
	_, ok := codec.Verify(token)
	assert.True(t, ok)

	codec.now = func() time.Time { return issued.Add(15 * time.Minute) }
	_, ok = codec.Verify(token)
	assert.False(t, ok)
}

func TestVerifyTamperedPayload(t *testing.T) {
	codec := NewTokenCodec("test-secret", 15*time.Minute)

	token, _, err := codec.Mint("proj_1", "ws_1", "t", "s")
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	// Flip one byte of the payload segment.
	payload := []byte(parts[1])
	if payload[0] == 'A' {
		payload[0] = 'B'
	} else {
		payload[0] = 'A'
	}
	tampered := parts[0] + "." + string(payload) + "." + parts[2]

	_, ok := codec.Verify(tampered)
	assert.False(t, ok)
}

func TestVerifyWrongSecret(t *testing.T) {
	minter := NewTokenCodec("secret-a", 15*time.Minute)
	verifier := NewTokenCodec("secret-b", 15*time.Minute)

	token, _, err := minter.Mint("proj_1", "ws_1", "t", "s")
	require.NoError(t, err)

	_, ok := verifier.Verify(token)
	assert.False(t, ok)
}

func TestVerifyMalformedInput(t *testing.T) {
	codec := NewTokenCodec("test-secret", 15*time.Minute)

	for _, raw := range []string{
		"",
		"not-a-token",
		"a.b",
		"a.b.c.d",
		"eyJhbGciOiJIUzI1NiJ9..sig",
	} {
		_, ok := codec.Verify(raw)
		assert.False(t, ok, "input %q should not verify", raw)
	}
}

func TestVerifyRejectsMissingIdentityClaims(t *testing.T) {
	codec := NewTokenCodec("test-secret", 15*time.Minute)

	token, _, err := codec.Mint("", "", "t", "s")
	require.NoError(t, err)

	_, ok := codec.Verify(token)
	assert.False(t, ok)
}
