package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/dbx"
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/refreshtokens"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/repomanager"
)

// errTakenExpired is returned by Take when the row was removed but had
// already expired. The deletion should be kept; the caller still fails.
var errTakenExpired = fmt.Errorf("%w: expired", common.ErrInvalidOrExpired)

// RefreshTokenStore manages server-side sessions. A token value is valid
// until it is revoked, rotated or reaches its expiry; once deleted it never
// becomes valid again.
type RefreshTokenStore struct {
	repos repomanager.RepositoryManager
	db    dbx.DBTX
	ttl   time.Duration
	now   func() time.Time
}

func NewRefreshTokenStore(db dbx.DBTX, m repomanager.RepositoryManager, ttl time.Duration, now func() time.Time) *RefreshTokenStore {
	return &RefreshTokenStore{repos: m, db: db, ttl: ttl, now: now}
}

// On returns a copy of the store bound to db, typically a transaction.
func (s *RefreshTokenStore) On(db dbx.DBTX) *RefreshTokenStore {
	c := *s
	c.db = db
	return &c
}

func (s *RefreshTokenStore) repo() refreshtokens.Repository {
	return s.repos.RefreshTokens(s.db)
}

// Issue creates a new session for userID.
func (s *RefreshTokenStore) Issue(ctx context.Context, userID string) (*models.RefreshToken, error) {
	value, err := common.MakeRandHexString(common.RefreshTokenBytes)
	if err != nil {
		return nil, err
	}
	t := &models.RefreshToken{UserID: userID, Token: value, ExpiresAt: s.now().Add(s.ttl)}
	if err := s.repo().Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate returns the row for token. Unknown tokens and expired tokens
// yield common.ErrInvalidOrExpired; an expired row is deleted on the way.
func (s *RefreshTokenStore) Validate(ctx context.Context, token string) (*models.RefreshToken, error) {
	repo := s.repo()
	t, err := repo.Find(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpired
		}
		return nil, err
	}
	if t.Expired(s.now()) {
		if _, err := repo.Delete(ctx, token); err != nil {
			return nil, err
		}
		return nil, common.ErrInvalidOrExpired
	}
	return t, nil
}

// Take removes token and returns its row. Only one caller can take a given
// value. An expired row is still removed but reported as errTakenExpired.
func (s *RefreshTokenStore) Take(ctx context.Context, token string) (*models.RefreshToken, error) {
	t, err := s.repo().Take(ctx, token)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidOrExpired
		}
		return nil, err
	}
	if t.Expired(s.now()) {
		return nil, errTakenExpired
	}
	return t, nil
}

// Revoke deletes token. Revoking an absent token is not an error; the
// result reports whether a row was removed.
func (s *RefreshTokenStore) Revoke(ctx context.Context, token string) (bool, error) {
	return s.repo().Delete(ctx, token)
}

// RevokeAll deletes every session of userID.
func (s *RefreshTokenStore) RevokeAll(ctx context.Context, userID string) (int64, error) {
	return s.repo().DeleteByUser(ctx, userID)
}

// SweepExpired purges expired rows. Validation never depends on it.
func (s *RefreshTokenStore) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo().DeleteExpired(ctx, s.now())
}
