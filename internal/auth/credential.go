package auth

import "strings"

// APIKeyPrefix marks long-lived project credentials. Anything else presented
// as a bearer value is either a signed widget token or garbage.
const APIKeyPrefix = "igk_"

// Credential is the closed set of things a caller can present in the
// Authorization header. Parsing happens once at the boundary; the rest of
// the codebase switches on the concrete type, never on raw strings.
type Credential interface {
	credential()
}

// APIKeyCredential is a long-lived prefixed secret identifying a project.
type APIKeyCredential struct {
	Raw string
}

// BearerToken is a compact signed widget token (header.payload.signature).
type BearerToken struct {
	Raw string
}

// Malformed is anything that matches neither credential shape.
type Malformed struct {
	Raw string
}

func (APIKeyCredential) credential() {}
func (BearerToken) credential()      {}
func (Malformed) credential()        {}

// ParseAuthorization classifies the Authorization header value. The "Bearer"
// scheme is required; its absence yields Malformed.
func ParseAuthorization(header string) Credential {
	const scheme = "Bearer "
	if !strings.HasPrefix(header, scheme) {
		return Malformed{Raw: header}
	}
	raw := strings.TrimSpace(header[len(scheme):])
	switch {
	case raw == "":
		return Malformed{Raw: raw}
	case strings.HasPrefix(raw, APIKeyPrefix):
		return APIKeyCredential{Raw: raw}
	case strings.Count(raw, ".") == 2:
		return BearerToken{Raw: raw}
	default:
		return Malformed{Raw: raw}
	}
}
