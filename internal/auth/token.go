package auth

import (
	"fmt"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"

	"github.com/spec-kit/kakao-auth/internal/domain"
)

// AccessClaims is the access token payload: iss, sub, role, iat, exp.
type AccessClaims struct {
	Role string `json:"role"`
	jwt.RegisteredClaims
}

// TokenSigner issues and verifies HS256 access tokens. It holds no state beyond its configuration.
type TokenSigner struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// SignerOption customizes a TokenSigner.
type SignerOption func(*TokenSigner)

// WithClock makes the signer read time from now instead of the wall clock.
func WithClock(now func() time.Time) SignerOption {
	return func(s *TokenSigner) { s.now = now }
}

// NewTokenSigner builds a signer for issuer with the given access token lifetime.
func NewTokenSigner(secret, issuer string, ttl time.Duration, opts ...SignerOption) (*TokenSigner, error) {
	if secret == "" {
		return nil, ErrMissingSecret
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("auth: access token ttl must be positive, got %s", ttl)
	}
	s := &TokenSigner{secret: []byte(secret), issuer: issuer, ttl: ttl, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// TTL returns the configured access token lifetime.
func (s *TokenSigner) TTL() time.Duration {
	return s.ttl
}

// Issue signs a token for subject carrying role and returns it with its lifetime.
func (s *TokenSigner) Issue(subject string, role domain.Role) (string, time.Duration, error) {
	issuedAt := s.now()
	claims := &AccessClaims{
		Role: string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    s.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.ttl)),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", 0, fmt.Errorf("sign access token: %w", err)
	}
	return signed, s.ttl, nil
}

// Verify checks signature, issuer and expiry, in that order. Any failure yields no claims,
// and expiry is only reported for tokens that are otherwise genuine.
func (s *TokenSigner) Verify(token string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	if !parsed.Valid {
		return nil, ErrTokenInvalid
	}

	if claims.Issuer != s.issuer {
		return nil, fmt.Errorf("%w: issuer %q", ErrTokenInvalid, claims.Issuer)
	}
	if claims.ExpiresAt == nil {
		return nil, fmt.Errorf("%w: missing exp", ErrTokenInvalid)
	}
	now := s.now()
	if claims.NotBefore != nil && now.Before(claims.NotBefore.Time) {
		return nil, fmt.Errorf("%w: not valid yet", ErrTokenInvalid)
	}
	if !now.Before(claims.ExpiresAt.Time) {
		return nil, ErrTokenExpired
	}
	return claims, nil
}

// ExtractRole maps the role claim to the closed role set.
func (s *TokenSigner) ExtractRole(claims *AccessClaims) (domain.Role, error) {
	if claims == nil {
		return "", ErrTokenInvalid
	}
	role, err := domain.ParseRole(claims.Role)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}
	return role, nil
}
