package auth

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// WidgetClaims is the payload of a short-lived widget token. Trace and
// session identifiers scope the token to one widget conversation.
type WidgetClaims struct {
	jwt.RegisteredClaims
	ProjectID   string `json:"project_id"`
	WorkspaceID string `json:"workspace_id"`
	TraceID     string `json:"trace_id"`
	SessionID   string `json:"session_id"`
}

// TokenCodec mints and verifies widget tokens. Tokens are HMAC-SHA256 signed
// and valid for TTL from issuance. Verification never returns an error for
// bad input; it returns ok=false.
type TokenCodec struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenCodec returns a codec signing with secret. ttl bounds token
// lifetime; 15 minutes in production.
func NewTokenCodec(secret string, ttl time.Duration) *TokenCodec {
	return &TokenCodec{secret: []byte(secret), ttl: ttl, now: time.Now}
}

// Mint signs a token for the given identity and scope. Only callers holding
// a resolved API key identity may mint; the handler enforces that tokens are
// never exchanged for other tokens.
func (c *TokenCodec) Mint(projectID, workspaceID, traceID, sessionID string) (string, time.Time, error) {
	now := c.now().UTC()
	expires := now.Add(c.ttl)
	claims := WidgetClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expires),
		},
		ProjectID:   projectID,
		WorkspaceID: workspaceID,
		TraceID:     traceID,
		SessionID:   sessionID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expires, nil
}

// Verify parses and validates a token string. Malformed structure, a bad
// signature, a missing required claim or an expiry at or before now all
// yield ok=false.
func (c *TokenCodec) Verify(raw string) (*WidgetClaims, bool) {
	claims := &WidgetClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(t *jwt.Token) (any, error) { return c.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(c.now),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid {
		return nil, false
	}
	if claims.ProjectID == "" || claims.WorkspaceID == "" {
		return nil, false
	}
	return claims, true
}
