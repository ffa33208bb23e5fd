// Package auth signs and verifies access tokens and extracts bearer
// credentials from requests.
//
// Tokens use the compact JWS form: base64url(header).base64url(claims).base64url(HMAC-SHA256),
// without padding. Only HS256 is accepted.
package auth

import (
	"errors"
	"time"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/golang-jwt/jwt/v5"
)

// Claims is the access token payload.
type Claims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// Codec encodes and verifies signed claims with a shared HMAC secret.
// It holds no mutable state and is safe for concurrent use.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec returns a Codec for secret. An empty secret is rejected with
// common.ErrMissingSecret. now may be nil to use time.Now.
func NewCodec(secret string, now func() time.Time) (*Codec, error) {
	if secret == "" {
		return nil, common.ErrMissingSecret
	}
	if now == nil {
		now = time.Now
	}
	return &Codec{secret: []byte(secret), now: now}, nil
}

// Encode signs claims with HS256.
func (c *Codec) Encode(claims *Claims) (string, error) {
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Decode verifies tokenString and returns its claims. Failures are reported
// as one of common.ErrMalformedToken, common.ErrUnsupportedAlgorithm,
// common.ErrInvalidSignature or common.ErrTokenExpired. A token is expired
// from the instant of its exp claim onwards.
func (c *Codec) Decode(tokenString string) (*Claims, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, c.key, jwt.WithTimeFunc(c.now))
	if err != nil {
		return nil, classify(err)
	}
	return claims, nil
}

func (c *Codec) key(t *jwt.Token) (any, error) {
	if t.Method == nil || t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
		return nil, common.ErrUnsupportedAlgorithm
	}
	return c.secret, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed):
		return common.ErrMalformedToken
	case errors.Is(err, common.ErrUnsupportedAlgorithm), errors.Is(err, jwt.ErrTokenUnverifiable):
		return common.ErrUnsupportedAlgorithm
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return common.ErrInvalidSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return common.ErrTokenExpired
	default:
		return common.ErrMalformedToken
	}
}
