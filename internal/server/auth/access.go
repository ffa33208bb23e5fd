package auth

import (
	"context"
	"time"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/logging"
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/golang-jwt/jwt/v5"
)

// AccessTokens issues and verifies short-lived bearer tokens.
type AccessTokens struct {
	codec  *Codec
	ttl    time.Duration
	now    func() time.Time
	logger logging.Logger
}

func NewAccessTokens(codec *Codec, ttl time.Duration, now func() time.Time, logger logging.Logger) *AccessTokens {
	if now == nil {
		now = time.Now
	}
	return &AccessTokens{codec: codec, ttl: ttl, now: now, logger: logger}
}

// TTL is the lifetime of every issued token.
func (a *AccessTokens) TTL() time.Duration {
	return a.ttl
}

// Issue returns a token for user expiring exactly TTL after its issue time.
// Times are truncated to whole seconds, the precision of the claims.
func (a *AccessTokens) Issue(user *models.User) (string, error) {
	now := a.now().Truncate(time.Second)
	return a.codec.Encode(&Claims{
		Username: user.Username,
		Email:    user.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	})
}

// Verify returns the identity carried by token. Every failure is reported
// as common.ErrUnauthenticated; the underlying reason is only logged.
func (a *AccessTokens) Verify(ctx context.Context, token string) (*models.Identity, error) {
	claims, err := a.codec.Decode(token)
	if err != nil {
		a.logger.Debug(ctx, "access token rejected", "reason", err.Error())
		return nil, common.ErrUnauthenticated
	}
	if claims.Subject == "" {
		a.logger.Debug(ctx, "access token rejected", "reason", "missing subject")
		return nil, common.ErrUnauthenticated
	}
	return &models.Identity{UserID: claims.Subject, Username: claims.Username, Email: claims.Email}, nil
}
