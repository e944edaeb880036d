// Package auth issues and verifies signed session tokens and carries the
// resulting Principal through request contexts.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/workflow/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// DefaultAlgorithm signs session tokens when none is configured.
const DefaultAlgorithm = "HS256"

var (
	ErrUnsupportedAlgorithm = errors.New("unsupported signing algorithm")
	ErrEmptySecret          = errors.New("signing secret must not be empty")
)

// Claims are the session token claims: the registered subject, issued-at and
// expiry plus the principal's email and role.
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Codec signs and verifies session tokens with a shared HMAC secret.
type Codec struct {
	secret []byte
	method jwt.SigningMethod
	ttl    time.Duration
	now    func() time.Time
}

func NewCodec(secret []byte, algorithm string, ttl time.Duration) (*Codec, error) {
	method, err := signingMethod(algorithm)
	if err != nil {
		return nil, err
	}
	if len(secret) == 0 {
		return nil, ErrEmptySecret
	}
	return &Codec{secret: secret, method: method, ttl: ttl, now: time.Now}, nil
}

// WithClock replaces the time source used for issuance and expiry checks.
func (c *Codec) WithClock(now func() time.Time) *Codec {
	cp := *c
	cp.now = now
	return &cp
}

func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue signs a token for p. The expiry is fixed at issued_at + ttl.
func (c *Codec) Issue(p Principal) (string, error) {
	now := c.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   p.SubjectID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(c.ttl)),
		},
		Email: p.Email,
		Role:  p.Role,
	}

	tokenString, err := jwt.NewWithClaims(c.method, claims).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}

	return tokenString, nil
}

// Verify checks, in order, the signature (and algorithm), the presence of
// every required claim and finally expiry. It returns common.ErrInvalidToken
// or common.ErrTokenExpired; callers must not tell them apart to clients.
func (c *Codec) Verify(tokenString string) (Principal, error) {
	claims := &Claims{}

	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		return c.secret, nil
	}, jwt.WithValidMethods([]string{c.method.Alg()}), jwt.WithoutClaimsValidation())
	if err != nil || !token.Valid {
		return Principal{}, common.ErrInvalidToken
	}

	if claims.Subject == "" || claims.Email == "" || claims.Role == "" ||
		claims.IssuedAt == nil || claims.ExpiresAt == nil {
		return Principal{}, common.ErrInvalidToken
	}

	if c.now().After(claims.ExpiresAt.Time) {
		return Principal{}, common.ErrTokenExpired
	}

	return Principal{SubjectID: claims.Subject, Email: claims.Email, Role: claims.Role}, nil
}

// GenerateToken is a one-shot Issue with the current time.
func GenerateToken(p Principal, secret []byte, algorithm string, ttl time.Duration) (string, error) {
	c, err := NewCodec(secret, algorithm, ttl)
	if err != nil {
		return "", err
	}
	return c.Issue(p)
}

// ParseToken is a one-shot Verify with the current time.
func ParseToken(tokenString string, secret []byte, algorithm string) (Principal, error) {
	c, err := NewCodec(secret, algorithm, 0)
	if err != nil {
		return Principal{}, err
	}
	return c.Verify(tokenString)
}

func signingMethod(algorithm string) (jwt.SigningMethod, error) {
	if algorithm == "" {
		algorithm = DefaultAlgorithm
	}
	m, ok := jwt.GetSigningMethod(algorithm).(*jwt.SigningMethodHMAC)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedAlgorithm, algorithm)
	}
	return m, nil
}
