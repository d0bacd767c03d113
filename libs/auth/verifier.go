package auth

import (
	"context"
	"net/http"
	"strings"
)

// Verifier accepts HS256 tokens signed with a shared secret and, when a JWKS
// client is configured, RS256 tokens whose kid resolves through it.
type Verifier struct {
	secret string
	jwks   *JWKSClient
}

func NewVerifier(secret string, jwks *JWKSClient) *Verifier {
	return &Verifier{secret: secret, jwks: jwks}
}

func (v *Verifier) Verify(ctx context.Context, token string) (*Claims, error) {
	header, err := ParseHeader(token)
	if err != nil {
		return nil, err
	}
	switch header.Alg {
	case "HS256":
		if v.secret == "" {
			return nil, ErrInvalidToken
		}
		return ParseAndVerifyHS256(token, v.secret)
	case "RS256":
		if v.jwks == nil || header.Kid == "" {
			return nil, ErrInvalidToken
		}
		key, err := v.jwks.Get(ctx, header.Kid)
		if err != nil {
			return nil, ErrInvalidToken
		}
		return VerifyRS256(token, key)
	default:
		return nil, ErrInvalidToken
	}
}

// BearerToken extracts the token from an "Authorization: Bearer <token>" header.
func BearerToken(r *http.Request) (string, bool) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}
