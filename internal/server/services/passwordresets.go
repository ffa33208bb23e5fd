package services

import (
	"context"
	"errors"
	"time"

	"github.com/dmitrijs2005/brainy/internal/common"
	"github.com/dmitrijs2005/brainy/internal/dbx"
	"github.com/dmitrijs2005/brainy/internal/server/models"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/passwordresets"
	"github.com/dmitrijs2005/brainy/internal/server/repositories/repomanager"
)

// ResetTokenStore manages single-use password reset grants, at most one
// per user.
type ResetTokenStore struct {
	repos repomanager.RepositoryManager
	db    dbx.DBTX
	ttl   time.Duration
	now   func() time.Time
}

func NewResetTokenStore(db dbx.DBTX, m repomanager.RepositoryManager, ttl time.Duration, now func() time.Time) *ResetTokenStore {
	return &ResetTokenStore{repos: m, db: db, ttl: ttl, now: now}
}

func (s *ResetTokenStore) On(db dbx.DBTX) *ResetTokenStore {
	c := *s
	c.db = db
	return &c
}

func (s *ResetTokenStore) repo() passwordresets.Repository {
	return s.repos.PasswordResets(s.db)
}

// Issue replaces any existing grant for userID with a new one. Run it in a
// transaction so the delete and insert land together.
func (s *ResetTokenStore) Issue(ctx context.Context, userID string) (*models.PasswordResetToken, error) {
	repo := s.repo()
	if _, err := repo.DeleteByUser(ctx, userID); err != nil {
		return nil, err
	}

	value, err := common.MakeRandHexString(common.ResetTokenBytes)
	if err != nil {
		return nil, err
	}
	t := &models.PasswordResetToken{UserID: userID, Token: value, ExpiresAt: s.now().Add(s.ttl)}
	if err := repo.Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// Validate returns the grant for token, deleting it if it has expired.
func (s *ResetTokenStore) Validate(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	repo := s.repo()
	t, err := repo.Find(ctx, token)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidOrExpired
	}
	if err != nil {
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

// Take redeems token: the row is deleted and returned. An expired row is
// deleted too but reported as errTakenExpired.
func (s *ResetTokenStore) Take(ctx context.Context, token string) (*models.PasswordResetToken, error) {
	t, err := s.repo().Take(ctx, token)
	if errors.Is(err, common.ErrorNotFound) {
		return nil, common.ErrInvalidOrExpired
	}
	if err != nil {
		return nil, err
	}
	if t.Expired(s.now()) {
		return nil, errTakenExpired
	}
	return t, nil
}

// Consume deletes token and reports whether it existed.
func (s *ResetTokenStore) Consume(ctx context.Context, token string) (bool, error) {
	return s.repo().Delete(ctx, token)
}

func (s *ResetTokenStore) SweepExpired(ctx context.Context) (int64, error) {
	return s.repo().DeleteExpired(ctx, s.now())
}
