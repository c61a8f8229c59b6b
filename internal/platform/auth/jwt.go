package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// JWTVerifier validates HS256 tokens signed with a shared secret. It backs local and
// test deployments where Firebase is not available.
type JWTVerifier struct {
	secret []byte
	issuer string
	now    func() time.Time
}

// JWTOption customises JWTVerifier instances.
type JWTOption func(*JWTVerifier)

// WithJWTClock overrides the clock used for expiry checks.
func WithJWTClock(now func() time.Time) JWTOption {
	return func(v *JWTVerifier) {
		if now != nil {
			v.now = now
		}
	}
}

// NewJWTVerifier constructs a verifier. issuer is optional; when set the iss claim must match.
func NewJWTVerifier(secret, issuer string, opts ...JWTOption) (*JWTVerifier, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, errors.New("auth: jwt secret is required")
	}
	v := &JWTVerifier{secret: []byte(secret), issuer: strings.TrimSpace(issuer), now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(v)
		}
	}
	return v, nil
}

// Verify parses the token, checks its signature, expiry and issuer.
func (v *JWTVerifier) Verify(_ context.Context, raw string) (Claims, error) {
	claims := jwt.MapClaims{}
	parser := jwt.Parser{ValidMethods: []string{jwt.SigningMethodHS256.Alg()}, SkipClaimsValidation: true}
	if _, err := parser.ParseWithClaims(raw, claims, func(token *jwt.Token) (any, error) {
		return v.secret, nil
	}); err != nil {
		return Claims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	now := v.now().Unix()
	if !claims.VerifyExpiresAt(now, true) {
		return Claims{}, ErrTokenExpired
	}
	if !claims.VerifyNotBefore(now, false) {
		return Claims{}, fmt.Errorf("%w: token not valid yet", ErrTokenInvalid)
	}
	if v.issuer != "" && !claims.VerifyIssuer(v.issuer, true) {
		return Claims{}, fmt.Errorf("%w: unexpected issuer", ErrTokenInvalid)
	}

	subject, _ := claims["sub"].(string)
	if strings.TrimSpace(subject) == "" {
		return Claims{}, fmt.Errorf("%w: subject missing", ErrTokenInvalid)
	}
	return Claims{Subject: strings.TrimSpace(subject), Values: claims}, nil
}

// SignHS256 issues a token for subject with the given roles. Used by local tooling and tests.
func SignHS256(secret, issuer, subject string, roles []string, expiresAt time.Time) (string, error) {
	claims := jwt.MapClaims{
		"sub":  subject,
		"exp":  expiresAt.Unix(),
		"role": roles,
	}
	if issuer != "" {
		claims["iss"] = issuer
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
}
